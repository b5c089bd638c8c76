package warden

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/warden/core"
)

const defaultTimeout = 30 * time.Second

// Key is a credential as listed by the key endpoints. Token is only set on creation.
type Key struct {
	TokenHash string     `json:"tokenHash"`
	Token     string     `json:"token,omitempty"`
	Label     string     `json:"label"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	IsSession bool       `json:"isSession"`
	Current   bool       `json:"current,omitempty"`
}

// SweepResult reports which expired keys a sweep removed
type SweepResult struct {
	Removed  int `json:"removed"`
	Failures []struct {
		TokenHash string `json:"tokenHash"`
		Error     string `json:"error"`
	} `json:"failures,omitempty"`
}

// HTTPClient talks to the auth API. Authenticated calls use the token held by
// its SessionStorage.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	storage SessionStorage
}

// ClientOption configures an HTTPClient
type ClientOption func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) { hc.http = c }
}

// WithSessionStorage sets where session tokens are kept
func WithSessionStorage(s SessionStorage) ClientOption {
	return func(hc *HTTPClient) { hc.storage = s }
}

// NewHTTPClient creates a client for the API at baseURL
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		storage: NewMemorySessionStorage(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Client = (*HTTPClient)(nil)

// Storage returns the session storage of the client
func (c *HTTPClient) Storage() SessionStorage {
	return c.storage
}

// Register creates a password account and stores its session. Input is
// validated locally first, so malformed requests never reach the server.
func (c *HTTPClient) Register(ctx context.Context, username, password, confirmPassword, inviteCode string) (string, error) {
	if err := core.ValidateRegistration(username, password, confirmPassword, inviteCode); err != nil {
		return "", err
	}

	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/register", false, map[string]string{
		"username":        strings.ToLower(username),
		"password":        password,
		"confirmPassword": confirmPassword,
		"inviteCode":      inviteCode,
	}, &resp, MsgRegisterFailed)
	if err != nil {
		return "", err
	}
	return c.keepSession(ctx, resp.Token, MsgSignInFailed)
}

// Login signs a password account in and stores its session
func (c *HTTPClient) Login(ctx context.Context, username, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/login", false, map[string]string{
		"username": username,
		"password": password,
	}, &resp, MsgServerRequestFailed)
	if err != nil {
		return "", err
	}
	return c.keepSession(ctx, resp.Token, MsgServerRequestFailed)
}

// RegisterWithAddress creates an account bound to a wallet address
func (c *HTTPClient) RegisterWithAddress(ctx context.Context, address, inviteCode string) error {
	return c.do(ctx, http.MethodPost, "/register-with-metamask", false, map[string]string{
		"address":    address,
		"inviteCode": inviteCode,
	}, nil, MsgRegisterFailed)
}

// Chain fetches the network the server expects wallets to sign in on
func (c *HTTPClient) Chain(ctx context.Context) (core.Chain, error) {
	var resp struct {
		ChainID        string `json:"chainId"`
		ChainName      string `json:"chainName"`
		NativeCurrency struct {
			Name     string `json:"name"`
			Symbol   string `json:"symbol"`
			Decimals int    `json:"decimals"`
		} `json:"nativeCurrency"`
		RPCURLs           []string `json:"rpcUrls"`
		BlockExplorerURLs []string `json:"blockExplorerUrls"`
	}
	if err := c.do(ctx, http.MethodGet, "/chain", false, nil, &resp, MsgServerRequestFailed); err != nil {
		return core.Chain{}, err
	}

	id, err := hexutil.DecodeUint64(resp.ChainID)
	if err != nil {
		return core.Chain{}, fmt.Errorf("invalid chain id %q: %w", resp.ChainID, err)
	}
	return core.Chain{
		ID:             id,
		Name:           resp.ChainName,
		RPCURLs:        resp.RPCURLs,
		CurrencyName:   resp.NativeCurrency.Name,
		CurrencySymbol: resp.NativeCurrency.Symbol,
		Decimals:       resp.NativeCurrency.Decimals,
		ExplorerURLs:   resp.BlockExplorerURLs,
	}, nil
}

// GenerateNonce requests a sign-in challenge for a wallet address
func (c *HTTPClient) GenerateNonce(ctx context.Context, req NonceRequest) (string, error) {
	var resp struct {
		NonceMsg string `json:"nonceMsg"`
	}
	if err := c.do(ctx, http.MethodPost, "/generate-nonce", false, req, &resp, MsgServerRequestFailed); err != nil {
		return "", err
	}
	if resp.NonceMsg == "" {
		return "", &ServerError{Status: http.StatusOK, Code: core.CodeInternal, Detail: MsgNoNonceMessage}
	}
	return resp.NonceMsg, nil
}

// LoginWithSignature exchanges a signed challenge for a session token. The
// token is returned but not stored; the handshake decides where it goes.
func (c *HTTPClient) LoginWithSignature(ctx context.Context, address, message, signature string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/login-with-metamask", false, map[string]string{
		"address":   address,
		"signature": signature,
		"message":   message,
	}, &resp, MsgSignInFailed)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", &ServerError{Status: http.StatusOK, Code: core.CodeInternal, Detail: MsgSignInFailed}
	}
	return resp.Token, nil
}

// Logout revokes the stored session on the server and forgets it locally
func (c *HTTPClient) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/logout", true, nil, nil, MsgServerRequestFailed); err != nil {
		var se *ServerError
		if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
			return err
		}
	}
	return c.storage.ClearToken(ctx)
}

// ListKeys lists the signed-in account's credentials in creation order
func (c *HTTPClient) ListKeys(ctx context.Context, includeSession bool) ([]Key, error) {
	var resp struct {
		Keys []Key `json:"keys"`
	}
	path := "/user/api-keys"
	if !includeSession {
		path += "?includeSession=false"
	}
	if err := c.do(ctx, http.MethodGet, path, true, nil, &resp, MsgServerRequestFailed); err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

// CreateKey mints an API key; the returned Key carries the plaintext token
func (c *HTTPClient) CreateKey(ctx context.Context, label string, permanent bool) (*Key, error) {
	var key Key
	err := c.do(ctx, http.MethodPost, "/user/api-keys", true, map[string]interface{}{
		"label":     label,
		"permanent": permanent,
	}, &key, MsgServerRequestFailed)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// DeleteKey revokes a key by token or token hash. It reports false when the
// key did not exist.
func (c *HTTPClient) DeleteKey(ctx context.Context, tokenOrHash string) (bool, error) {
	err := c.do(ctx, http.MethodDelete, "/user/api-keys/"+url.PathEscape(tokenOrHash), true, nil, nil, MsgServerRequestFailed)
	if errors.Is(err, core.ErrCredentialNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SweepExpiredKeys removes the account's expired keys, sparing the current session
func (c *HTTPClient) SweepExpiredKeys(ctx context.Context) (*SweepResult, error) {
	var result SweepResult
	if err := c.do(ctx, http.MethodPost, "/user/api-keys/sweep", true, nil, &result, MsgServerRequestFailed); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) keepSession(ctx context.Context, token, fallback string) (string, error) {
	if token == "" {
		return "", &ServerError{Status: http.StatusOK, Code: core.CodeInternal, Detail: fallback}
	}
	if err := c.storage.SaveToken(ctx, token); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return token, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, authed bool, body, out interface{}, fallback string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token, err := c.storage.LoadToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, raw, fallback)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError turns an error response back into the sentinel the server
// started from. Validation failures keep their message; anything else
// becomes a ServerError.
func decodeError(status int, raw []byte, fallback string) error {
	var body errorBody
	_ = json.Unmarshal(raw, &body)

	if body.Error == core.CodeValidation && body.Details != "" {
		return &core.ValidationError{Message: body.Details}
	}

	serverErr := newServerError(status, body.Error, body.Details, fallback)
	if sentinel := core.ErrorForCode(body.Error); sentinel != nil {
		return fmt.Errorf("%w: %w", sentinel, serverErr)
	}
	return serverErr
}
