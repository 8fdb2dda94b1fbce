package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/voxhealth/ivr-platform/internal/oauth"
	"github.com/voxhealth/ivr-platform/internal/session"
	"github.com/voxhealth/ivr-platform/pkg/logging"
)

// OAuthHandler serves the browser-facing half of the authorization flow: the
// start endpoint that hands out an authorize URL, the provider callback, and
// the poll endpoint a calling UI watches.
type OAuthHandler struct {
	client   *oauth.Client
	sessions session.Store
	logger   *logging.Logger
}

// NewOAuthHandler creates the handler.
func NewOAuthHandler(client *oauth.Client, sessions session.Store, logger *logging.Logger) *OAuthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &OAuthHandler{client: client, sessions: sessions, logger: logger}
}

// StartResponse is the body of GET /oauth/start.
type StartResponse struct {
	SessionID string `json:"session_id"`
	AuthURL   string `json:"auth_url"`
}

// Start allocates a session and returns its authorize URL.
// Route: GET /oauth/start
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	sessionID, err := h.sessions.Create(r.Context())
	if err != nil {
		h.logger.Error("session create failed", "error", err)
		http.Error(w, "could not create session", http.StatusInternalServerError)
		return
	}
	authURL, err := h.client.BuildAuthorizeURL(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("authorize url build failed", "error", err, "session_id", sessionID)
		http.Error(w, "could not build authorize url", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, StartResponse{SessionID: sessionID, AuthURL: authURL})
}

// Callback redeems the provider's authorization code. Missing code or state
// is a client error.
// Route: GET /oauth/callback
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		http.Error(w, "missing code or state", http.StatusBadRequest)
		return
	}

	if _, err := h.client.RedeemCode(r.Context(), code, state); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, session.ErrUnknownSession), errors.Is(err, oauth.ErrMissingVerifier):
			status = http.StatusBadRequest
		default:
			var exchangeErr *oauth.TokenExchangeError
			if errors.As(err, &exchangeErr) {
				status = http.StatusBadGateway
			}
		}
		h.logger.Error("code redemption failed", "error", err, "session_id", state)
		http.Error(w, "login could not be completed", status)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<h3>Login complete. You may return to the call.</h3>"))
}

// PollResponse is the body of GET /auth/poll.
type PollResponse struct {
	Authenticated bool `json:"authenticated"`
}

// Poll reports whether the session has completed authorization. Unknown
// sessions read as not authenticated; polling never mutates the session.
// Route: GET /auth/poll?session=
func (h *OAuthHandler) Poll(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}
	ok, err := h.sessions.HasToken(r.Context(), sessionID)
	if err != nil && !errors.Is(err, session.ErrUnknownSession) {
		h.logger.Error("token poll failed", "error", err, "session_id", sessionID)
		http.Error(w, "poll failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, PollResponse{Authenticated: ok})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
