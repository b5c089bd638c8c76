package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/service"
	"github.com/rs/zerolog"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	logger      zerolog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, logger zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		logger:      logger,
	}
}

// TokenResponse carries a freshly issued session token
type TokenResponse struct {
	Token string `json:"token"`
}

// KeyResponse describes one credential. Token is only set right after creation.
type KeyResponse struct {
	TokenHash string     `json:"tokenHash"`
	Token     string     `json:"token,omitempty"`
	Label     string     `json:"label"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	IsSession bool       `json:"isSession"`
	Current   bool       `json:"current,omitempty"`
}

// SweepResponse reports the outcome of an expired key sweep
type SweepResponse struct {
	Removed  int            `json:"removed"`
	Failures []SweepFailure `json:"failures,omitempty"`
}

// SweepFailure names a credential the sweep could not remove
type SweepFailure struct {
	TokenHash string `json:"tokenHash"`
	Error     string `json:"error"`
}

// ChainResponse describes the required network in the shape wallets accept
// for wallet_addEthereumChain
type ChainResponse struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls,omitempty"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// NativeCurrency is the gas currency of a chain
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: core.CodeValidation, Details: "Invalid request"})
}

// Register handles password registration
func (h *AuthHandlers) Register(c *gin.Context) {
	var req struct {
		Username        string `json:"username"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
		InviteCode      string `json:"inviteCode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	cred, err := h.authService.Register(c.Request.Context(), service.RegisterRequest{
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		InviteCode:      req.InviteCode,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.setSessionCookie(c, cred.Token)
	c.JSON(http.StatusOK, TokenResponse{Token: cred.Token})
}

// Login handles password sign-in
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	cred, err := h.authService.LoginWithPassword(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.setSessionCookie(c, cred.Token)
	c.JSON(http.StatusOK, TokenResponse{Token: cred.Token})
}

// RegisterWithAddress handles wallet registration
func (h *AuthHandlers) RegisterWithAddress(c *gin.Context) {
	var req struct {
		Address    string `json:"address" binding:"required"`
		InviteCode string `json:"inviteCode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	if _, err := h.authService.RegisterWithAddress(c.Request.Context(), req.Address, req.InviteCode); err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GenerateNonce handles a sign-in challenge request
func (h *AuthHandlers) GenerateNonce(c *gin.Context) {
	var req struct {
		Host     string    `json:"host"`
		Address  string    `json:"address" binding:"required"`
		IssuedAt time.Time `json:"issuedAt"`
		ChainID  uint64    `json:"chainId"`
		Version  string    `json:"version"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if req.Host == "" {
		req.Host = c.Request.Host
	}

	nonce, err := h.authService.GenerateNonce(c.Request.Context(), service.NonceRequest{
		Address:  req.Address,
		Host:     req.Host,
		IssuedAt: req.IssuedAt,
		ChainID:  req.ChainID,
		Version:  req.Version,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonceMsg": nonce.Message})
}

// LoginWithSignature handles wallet sign-in
func (h *AuthHandlers) LoginWithSignature(c *gin.Context) {
	var req struct {
		Address   string `json:"address" binding:"required"`
		Signature string `json:"signature" binding:"required"`
		Message   string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	cred, err := h.authService.LoginWithSignature(c.Request.Context(), req.Address, req.Signature, req.Message)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.setSessionCookie(c, cred.Token)
	c.JSON(http.StatusOK, TokenResponse{Token: cred.Token})
}

// Logout revokes the session the request was made with
func (h *AuthHandlers) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), c.GetString(ctxToken)); err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// ListKeys lists the caller's credentials
func (h *AuthHandlers) ListKeys(c *gin.Context) {
	cred := credentialFrom(c)

	includeSession := true
	if raw := c.Query("includeSession"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c)
			return
		}
		includeSession = v
	}

	creds, err := h.authService.ListKeys(c.Request.Context(), cred.AccountID, includeSession)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	keys := make([]KeyResponse, 0, len(creds))
	for _, k := range creds {
		resp := toKeyResponse(k)
		resp.Current = k.TokenHash == cred.TokenHash
		keys = append(keys, resp)
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// CreateKey mints an API key for the caller
func (h *AuthHandlers) CreateKey(c *gin.Context) {
	var req struct {
		Label     string `json:"label"`
		Permanent bool   `json:"permanent"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	policy := core.ExpiryEphemeral
	if req.Permanent {
		policy = core.ExpiryPermanent
	}

	key, err := h.authService.CreateKey(c.Request.Context(), credentialFrom(c).AccountID, req.Label, policy)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, toKeyResponse(key))
}

// RevokeKey removes one of the caller's credentials by token or token hash
func (h *AuthHandlers) RevokeKey(c *gin.Context) {
	found, err := h.authService.RevokeKey(c.Request.Context(), credentialFrom(c).AccountID, c.Param("key"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if !found {
		writeError(c, h.logger, core.ErrCredentialNotFound)
		return
	}

	c.Status(http.StatusNoContent)
}

// SweepKeys removes the caller's expired credentials
func (h *AuthHandlers) SweepKeys(c *gin.Context) {
	cred := credentialFrom(c)

	result, err := h.authService.SweepExpiredKeys(c.Request.Context(), cred.AccountID, c.GetString(ctxToken))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	resp := SweepResponse{Removed: result.Removed}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, SweepFailure{TokenHash: f.TokenHash, Error: f.Err.Error()})
	}
	c.JSON(http.StatusOK, resp)
}

// Chain describes the network wallets must sign in on
func (h *AuthHandlers) Chain(c *gin.Context) {
	chain := h.authService.Chain()
	c.JSON(http.StatusOK, ChainResponse{
		ChainID:   chain.HexID(),
		ChainName: chain.Name,
		NativeCurrency: NativeCurrency{
			Name:     chain.CurrencyName,
			Symbol:   chain.CurrencySymbol,
			Decimals: chain.Decimals,
		},
		RPCURLs:           chain.RPCURLs,
		BlockExplorerURLs: chain.ExplorerURLs,
	})
}

// Health reports liveness
func (h *AuthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AuthHandlers) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookie, token, 0, "/", "", c.Request.TLS != nil, true)
}

func toKeyResponse(cred *core.Credential) KeyResponse {
	return KeyResponse{
		TokenHash: cred.TokenHash,
		Token:     cred.Token,
		Label:     cred.Label,
		CreatedAt: cred.CreatedAt,
		ExpiresAt: cred.ExpiresAt,
		IsSession: cred.IsSession,
	}
}
