package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voxhealth/ivr-platform/internal/http/handlers"
	httpmiddleware "github.com/voxhealth/ivr-platform/internal/http/middleware"
	"github.com/voxhealth/ivr-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	CallsHandler       *handlers.CallsHandler
	OAuthHandler       *handlers.OAuthHandler
	ConsoleHandler     *handlers.ConsoleHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.CallsHandler != nil {
		r.Route("/calls", func(r chi.Router) {
			r.Get("/start", cfg.CallsHandler.Live)
			r.Post("/start", cfg.CallsHandler.Start)
		})
	}

	if cfg.OAuthHandler != nil {
		r.Route("/oauth", func(r chi.Router) {
			r.Get("/start", cfg.OAuthHandler.Start)
			r.Get("/callback", cfg.OAuthHandler.Callback)
		})
		r.Get("/auth/poll", cfg.OAuthHandler.Poll)
	}

	if cfg.ConsoleHandler != nil {
		r.Get("/console/ws", cfg.ConsoleHandler.Stream)
	}

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
