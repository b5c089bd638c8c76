package warden

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/layer-3/warden/core"
)

// MessageVersion is the challenge message version requested from the server
const MessageVersion = "1"

// State is a step of the wallet handshake
type State int

const (
	StateIdle State = iota
	StateAccountsRequested
	StateChainVerified
	StateNonceIssued
	StateSigned
	StateLoggedIn
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccountsRequested:
		return "accounts_requested"
	case StateChainVerified:
		return "chain_verified"
	case StateNonceIssued:
		return "nonce_issued"
	case StateSigned:
		return "signed"
	case StateLoggedIn:
		return "logged_in"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Handshake walks a wallet through account access, chain selection, challenge
// signing and login. A Handshake runs once; start a new one to retry.
type Handshake struct {
	signer  Signer
	client  Client
	storage SessionStorage
	chain   core.Chain
	host    string
	now     func() time.Time

	mu      sync.Mutex
	started bool
	state   State
	address string
	err     error
}

// NewHandshake creates a handshake requiring the wallet to be on chain and
// requesting challenges for host. storage may be nil.
func NewHandshake(signer Signer, client Client, storage SessionStorage, chain core.Chain, host string) *Handshake {
	return &Handshake{
		signer:  signer,
		client:  client,
		storage: storage,
		chain:   chain,
		host:    host,
		now:     time.Now,
	}
}

// State returns the current step
func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Address returns the wallet address once accounts were granted
func (h *Handshake) Address() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.address
}

// Err returns the error that moved the handshake to StateErrored
func (h *Handshake) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Register creates an account for the wallet with inviteCode and signs it in
func (h *Handshake) Register(ctx context.Context, inviteCode string) (string, error) {
	return h.run(ctx, true, inviteCode)
}

// SignIn signs the wallet's existing account in
func (h *Handshake) SignIn(ctx context.Context) (string, error) {
	return h.run(ctx, false, "")
}

func (h *Handshake) run(ctx context.Context, register bool, inviteCode string) (string, error) {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return "", ErrHandshakeUsed
	}
	h.started = true
	h.mu.Unlock()

	if h.signer == nil {
		return "", h.fail(ErrNoSigner)
	}
	if register && inviteCode == "" {
		return "", h.fail(&core.ValidationError{Field: "inviteCode", Message: core.MsgInviteRequired})
	}

	accounts, err := h.signer.Accounts(ctx)
	if err = settle(ctx, err); err != nil {
		return "", h.fail(signerFault(err))
	}
	if len(accounts) == 0 {
		return "", h.fail(ErrNoAccounts)
	}
	address := accounts[0]
	h.advance(StateAccountsRequested, address)

	if err := h.ensureChain(ctx); err != nil {
		return "", h.fail(err)
	}
	h.advance(StateChainVerified, "")

	if register {
		err := h.client.RegisterWithAddress(ctx, address, inviteCode)
		if err = settle(ctx, err); err != nil {
			return "", h.fail(err)
		}
	}

	message, err := h.client.GenerateNonce(ctx, NonceRequest{
		Host:     h.host,
		Address:  address,
		IssuedAt: h.now().UTC(),
		ChainID:  h.chain.ID,
		Version:  MessageVersion,
	})
	if err = settle(ctx, err); err != nil {
		return "", h.fail(err)
	}
	h.advance(StateNonceIssued, "")

	signature, err := h.signer.SignPersonal(ctx, message, address)
	if err = settle(ctx, err); err != nil {
		return "", h.fail(signerFault(err))
	}
	h.advance(StateSigned, "")

	token, err := h.client.LoginWithSignature(ctx, address, message, signature)
	if err = settle(ctx, err); err != nil {
		return "", h.fail(err)
	}

	if h.storage != nil {
		if err := h.storage.SaveToken(ctx, token); err != nil {
			return "", h.fail(fmt.Errorf("failed to store session: %w", err))
		}
	}
	h.advance(StateLoggedIn, "")
	return token, nil
}

// ensureChain moves the wallet to the required chain, teaching it the chain
// and retrying once when the wallet does not know it
func (h *Handshake) ensureChain(ctx context.Context) error {
	active, err := h.signer.ChainID(ctx)
	if err = settle(ctx, err); err != nil {
		return signerFault(err)
	}
	if active == h.chain.ID {
		return nil
	}

	err = h.signer.SwitchChain(ctx, h.chain.ID)
	if errors.Is(err, ErrUnrecognizedChain) && ctx.Err() == nil {
		if err := settle(ctx, h.signer.AddChain(ctx, h.chain)); err != nil {
			return chainFault(err)
		}
		err = h.signer.SwitchChain(ctx, h.chain.ID)
	}
	if err = settle(ctx, err); err != nil {
		return chainFault(err)
	}
	return nil
}

func (h *Handshake) advance(state State, address string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = state
	if address != "" {
		h.address = address
	}
}

func (h *Handshake) fail(err error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StateErrored
	h.err = err
	return err
}

// settle prefers the context error once the context is done, so an abandoned
// prompt is reported as abandoned whatever the collaborator returned
func settle(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func signerFault(err error) error {
	if errors.Is(err, ErrUserRejected) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &SignerError{Err: err}
}

func chainFault(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrChainSwitchRejected, err)
}
