package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voxhealth/ivr-platform/internal/observability/metrics"
	"github.com/voxhealth/ivr-platform/internal/session"
	"github.com/voxhealth/ivr-platform/pkg/logging"
)

// refreshSafetyMargin is subtracted from the token expiry before deciding
// whether a cached access token is still usable, guarding against clock skew
// between us and the authorization server.
const refreshSafetyMargin = 10 * time.Second

// ErrMissingVerifier indicates a code redemption was attempted for a session
// that never went through BuildAuthorizeURL.
var ErrMissingVerifier = errors.New("oauth: pkce verifier missing for session")

// TokenExchangeError carries the provider's rejection of a token request.
type TokenExchangeError struct {
	StatusCode int
	Body       string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("oauth: token endpoint returned status %d: %s", e.StatusCode, e.Body)
}

// Config holds configuration for the authorization client.
type Config struct {
	ClientID     string
	ClientSecret string // optional; enables HTTP Basic auth on the token endpoint
	AuthBaseURL  string // e.g. "https://fhir.epic.com/interconnect-fhir-oauth/oauth2"
	FHIRBaseURL  string // audience for issued tokens
	RedirectURI  string
	Scopes       string
	Timeout      time.Duration
}

// Client drives the OAuth2 authorization-code-with-PKCE handshake against the
// clinical records provider and keeps each call session's token fresh.
type Client struct {
	cfg        Config
	store      session.Store
	httpClient *http.Client
	logger     *logging.Logger
	metrics    *metrics.CallMetrics
}

// SetMetrics attaches call metrics. All metric methods tolerate a nil
// receiver, so leaving this unset is fine.
func (c *Client) SetMetrics(m *metrics.CallMetrics) { c.metrics = m }

// New creates an authorization client bound to a session store.
func New(cfg Config, store session.Store, logger *logging.Logger) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("oauth: ClientID is required")
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("oauth: RedirectURI is required")
	}
	if cfg.AuthBaseURL == "" {
		return nil, fmt.Errorf("oauth: AuthBaseURL is required")
	}
	if cfg.FHIRBaseURL == "" {
		return nil, fmt.Errorf("oauth: FHIRBaseURL is required")
	}
	if store == nil {
		return nil, fmt.Errorf("oauth: session store is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cfg.AuthBaseURL = strings.TrimSuffix(cfg.AuthBaseURL, "/")
	cfg.FHIRBaseURL = strings.TrimSuffix(cfg.FHIRBaseURL, "/")

	return &Client{
		cfg:        cfg,
		store:      store,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

func (c *Client) authorizeURL() string { return c.cfg.AuthBaseURL + "/authorize" }
func (c *Client) tokenURL() string     { return c.cfg.AuthBaseURL + "/token" }

// BuildAuthorizeURL generates a PKCE pair, records the verifier in the
// session, and returns the browser-facing authorize URL. The state parameter
// is the session id, binding the eventual callback to this session.
func (c *Client) BuildAuthorizeURL(ctx context.Context, sessionID string) (string, error) {
	pair, err := GeneratePKCEPair()
	if err != nil {
		return "", err
	}
	if err := c.store.SetVerifier(ctx, sessionID, pair.Verifier); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("client_id", c.cfg.ClientID)
	params.Set("response_type", "code")
	params.Set("redirect_uri", c.cfg.RedirectURI)
	params.Set("scope", c.cfg.Scopes)
	params.Set("state", sessionID)
	params.Set("code_challenge", pair.Challenge)
	params.Set("code_challenge_method", "S256")
	params.Set("aud", c.cfg.FHIRBaseURL)

	return c.authorizeURL() + "?" + params.Encode(), nil
}

// tokenResponse is the provider's token endpoint payload. Non-standard fields
// (Epic's patient id keys) are captured separately via a raw map.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	IDToken      string `json:"id_token"`
}

// RedeemCode exchanges an authorization code for tokens using the session's
// stored PKCE verifier, persists the token, and links the external patient id
// when one can be derived.
func (c *Client) RedeemCode(ctx context.Context, code, sessionID string) (*session.Token, error) {
	sess, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.PKCEVerifier == "" {
		return nil, ErrMissingVerifier
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURI)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("code_verifier", sess.PKCEVerifier)
	form.Set("aud", c.cfg.FHIRBaseURL)

	tok, extras, err := c.postTokenEndpoint(ctx, form)
	if err != nil {
		return nil, err
	}

	if err := c.store.SetToken(ctx, sessionID, *tok); err != nil {
		return nil, err
	}
	c.linkPatientID(ctx, sessionID, extras, tok.IDToken)

	c.logger.Info("authorization code redeemed", "session_id", sessionID)
	return tok, nil
}

// Refresh obtains a new access token from the stored refresh token. A missing
// refresh token or a provider rejection yields ok=false, never an error:
// callers must treat that as "re-authorization required".
func (c *Client) Refresh(ctx context.Context, sessionID string) (string, bool) {
	sess, err := c.store.Get(ctx, sessionID)
	if err != nil || sess.Token == nil {
		return "", false
	}
	if sess.Token.RefreshToken == "" {
		c.logger.Debug("no refresh token for session", "session_id", sessionID)
		return "", false
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", sess.Token.RefreshToken)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("aud", c.cfg.FHIRBaseURL)

	tok, extras, err := c.postTokenEndpoint(ctx, form)
	if err != nil {
		c.metrics.ObserveTokenRefresh(false)
		c.logger.Warn("token refresh rejected", "session_id", sessionID, "error", err)
		return "", false
	}

	if err := c.store.SetToken(ctx, sessionID, *tok); err != nil {
		c.logger.Error("failed to store refreshed token", "session_id", sessionID, "error", err)
		return "", false
	}
	c.linkPatientID(ctx, sessionID, extras, tok.IDToken)

	c.metrics.ObserveTokenRefresh(true)
	return tok.AccessToken, true
}

// ValidAccessToken returns a usable access token for the session, refreshing
// at most once when the cached token is within the safety margin of expiry.
func (c *Client) ValidAccessToken(ctx context.Context, sessionID string) (string, bool) {
	sess, err := c.store.Get(ctx, sessionID)
	if err != nil || sess.Token == nil {
		return "", false
	}
	if sess.Token.Fresh(time.Now(), refreshSafetyMargin) {
		return sess.Token.AccessToken, true
	}
	return c.Refresh(ctx, sessionID)
}

func (c *Client) postTokenEndpoint(ctx context.Context, form url.Values) (*session.Token, map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, fmt.Errorf("oauth: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.cfg.ClientSecret != "" {
		req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("oauth: token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("oauth: read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, &TokenExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, nil, fmt.Errorf("oauth: decode token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return nil, nil, &TokenExchangeError{StatusCode: resp.StatusCode, Body: "response missing access_token"}
	}

	extras := map[string]any{}
	_ = json.Unmarshal(body, &extras)

	expiresIn := parsed.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}

	tok := &session.Token{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		IDToken:      parsed.IDToken,
		ExpiresAt:    time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
	return tok, extras, nil
}

func (c *Client) linkPatientID(ctx context.Context, sessionID string, extras map[string]any, idToken string) {
	pid := derivePatientID(extras, idToken)
	if pid == "" {
		return
	}
	if err := c.store.SetPatientID(ctx, sessionID, pid); err != nil {
		c.logger.Warn("failed to link patient id", "session_id", sessionID, "error", err)
	}
}
