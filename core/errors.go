package core

import "errors"

var (
	ErrInvalidAddress       = errors.New("invalid ethereum address")
	ErrUnsupportedChain     = errors.New("unsupported chain")
	ErrNonceNotFound        = errors.New("nonce not found")
	ErrNonceExpired         = errors.New("nonce has expired")
	ErrNonceAlreadyConsumed = errors.New("nonce already consumed")
	ErrNonceMismatch        = errors.New("nonce message mismatch")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrInvalidInvite        = errors.New("invalid invite code")
	ErrAccountExists        = errors.New("account already exists")
	ErrAccountNotFound      = errors.New("account not found")
	ErrNoAuthMethod         = errors.New("account has no authentication method")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrCredentialNotFound   = errors.New("credential not found")
	ErrCredentialExpired    = errors.New("credential has expired")
	ErrInvalidToken         = errors.New("invalid token")
)

// ValidationError is a field-level input error with a user-facing message
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidationError reports whether err carries a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNonceError reports whether err means the caller should restart from a nonce request
func IsNonceError(err error) bool {
	return errors.Is(err, ErrNonceNotFound) ||
		errors.Is(err, ErrNonceExpired) ||
		errors.Is(err, ErrNonceAlreadyConsumed) ||
		errors.Is(err, ErrNonceMismatch)
}

// Wire codes carried in the "error" field of API error responses
const (
	CodeValidation         = "validation_error"
	CodeInvalidAddress     = "invalid_address"
	CodeUnsupportedChain   = "unsupported_chain"
	CodeNonceNotFound      = "nonce_not_found"
	CodeNonceExpired       = "nonce_expired"
	CodeNonceConsumed      = "nonce_consumed"
	CodeNonceMismatch      = "nonce_mismatch"
	CodeInvalidSignature   = "invalid_signature"
	CodeInvalidInvite      = "invalid_invite"
	CodeAccountExists      = "account_exists"
	CodeAccountNotFound    = "account_not_found"
	CodeInvalidCredentials = "invalid_credentials"
	CodeNotFound           = "not_found"
	CodeUnauthorized       = "unauthorized"
	CodeInternal           = "internal_error"
)

var codeErrors = map[string]error{
	CodeInvalidAddress:     ErrInvalidAddress,
	CodeUnsupportedChain:   ErrUnsupportedChain,
	CodeNonceNotFound:      ErrNonceNotFound,
	CodeNonceExpired:       ErrNonceExpired,
	CodeNonceConsumed:      ErrNonceAlreadyConsumed,
	CodeNonceMismatch:      ErrNonceMismatch,
	CodeInvalidSignature:   ErrInvalidSignature,
	CodeInvalidInvite:      ErrInvalidInvite,
	CodeAccountExists:      ErrAccountExists,
	CodeAccountNotFound:    ErrAccountNotFound,
	CodeInvalidCredentials: ErrInvalidCredentials,
	CodeNotFound:           ErrCredentialNotFound,
	CodeUnauthorized:       ErrInvalidToken,
}

// ErrorCode returns the wire code for err; unknown errors map to CodeInternal
func ErrorCode(err error) string {
	if IsValidationError(err) {
		return CodeValidation
	}
	for code, target := range codeErrors {
		if errors.Is(err, target) {
			return code
		}
	}
	if errors.Is(err, ErrCredentialExpired) {
		return CodeUnauthorized
	}
	return CodeInternal
}

// ErrorForCode returns the sentinel error behind a wire code, or nil when the
// code has none
func ErrorForCode(code string) error {
	return codeErrors[code]
}
