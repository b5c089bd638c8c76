package warden

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSigner is returned when no wallet is available
	ErrNoSigner = errors.New("no wallet signer available")

	// ErrUserRejected is returned when the user declines a wallet prompt
	ErrUserRejected = errors.New("request rejected by user")

	// ErrUnrecognizedChain is returned by a Signer asked to switch to a chain it does not know
	ErrUnrecognizedChain = errors.New("unrecognized chain")

	// ErrChainSwitchRejected is returned when the wallet could not be moved to the required chain
	ErrChainSwitchRejected = errors.New("chain switch rejected")

	// ErrNoAccounts is returned when the wallet exposes no account
	ErrNoAccounts = errors.New("wallet returned no accounts")

	// ErrNoSession is returned by a SessionStorage holding no token
	ErrNoSession = errors.New("no session stored")

	// ErrHandshakeUsed is returned when a handshake is run twice
	ErrHandshakeUsed = errors.New("handshake already run")
)

// Fallback messages shown when the server does not explain a failure
const (
	MsgRegisterFailed      = "Our server failed to register your account. Please contact us."
	MsgSignInFailed        = "Our server failed to register your account and sign you in. Please contact us."
	MsgNoNonceMessage      = "No nonceMsg Generated"
	MsgServerRequestFailed = "Our server failed to process your request. Please contact us."
)

// SignerError wraps a wallet failure other than a user rejection
type SignerError struct {
	Err error
}

func (e *SignerError) Error() string {
	return fmt.Sprintf("signer error: %v", e.Err)
}

func (e *SignerError) Unwrap() error {
	return e.Err
}

// ServerError is an upstream failure carrying a user-facing message
type ServerError struct {
	Status int
	Code   string
	Detail string
}

func (e *ServerError) Error() string {
	return e.Detail
}

func newServerError(status int, code, detail, fallback string) *ServerError {
	if detail == "" {
		detail = fallback
	}
	return &ServerError{Status: status, Code: code, Detail: detail}
}
