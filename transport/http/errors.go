package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/warden/core"
	"github.com/rs/zerolog"
)

// ErrorResponse is the envelope of every API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

var statusByCode = map[string]int{
	core.CodeValidation:         http.StatusBadRequest,
	core.CodeInvalidAddress:     http.StatusBadRequest,
	core.CodeUnsupportedChain:   http.StatusBadRequest,
	core.CodeInvalidInvite:      http.StatusBadRequest,
	core.CodeAccountExists:      http.StatusConflict,
	core.CodeAccountNotFound:    http.StatusNotFound,
	core.CodeNotFound:           http.StatusNotFound,
	core.CodeNonceNotFound:      http.StatusUnauthorized,
	core.CodeNonceExpired:       http.StatusUnauthorized,
	core.CodeNonceConsumed:      http.StatusUnauthorized,
	core.CodeNonceMismatch:      http.StatusUnauthorized,
	core.CodeInvalidSignature:   http.StatusUnauthorized,
	core.CodeInvalidCredentials: http.StatusUnauthorized,
	core.CodeUnauthorized:       http.StatusUnauthorized,
}

var detailByCode = map[string]string{
	core.CodeInvalidAddress:     "Please provide a valid wallet address.",
	core.CodeUnsupportedChain:   "Please switch your wallet to the supported network.",
	core.CodeNonceNotFound:      "No sign-in request is pending for this address. Please try again.",
	core.CodeNonceExpired:       "Your sign-in request expired. Please try again.",
	core.CodeNonceConsumed:      "This sign-in request was already used. Please try again.",
	core.CodeNonceMismatch:      "This sign-in request was replaced by a newer one. Please try again.",
	core.CodeInvalidSignature:   "The signature does not match your address.",
	core.CodeInvalidInvite:      "Your invite code is invalid or has already been used.",
	core.CodeAccountExists:      "An account already exists for this username or address.",
	core.CodeAccountNotFound:    "No account is registered for this address.",
	core.CodeInvalidCredentials: "Invalid username or password.",
	core.CodeNotFound:           "Key not found.",
	core.CodeUnauthorized:       "Please sign in again.",
}

const internalErrorDetail = "Our server failed to process your request. Please contact us."

// writeError renders err as an ErrorResponse. Unexpected errors are logged and
// replaced by a generic message.
func writeError(c *gin.Context, logger zerolog.Logger, err error) {
	code := core.ErrorCode(err)

	var ve *core.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: code, Details: ve.Message})
		return
	}

	status, ok := statusByCode[code]
	if !ok {
		logger.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("unhandled error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: core.CodeInternal, Details: internalErrorDetail})
		return
	}

	c.JSON(status, ErrorResponse{Error: code, Details: detailByCode[code]})
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
		Error:   core.CodeUnauthorized,
		Details: detailByCode[core.CodeUnauthorized],
	})
}
