package router

import (
	"net/http"

	"github.com/mailblast/mailblast/internal/config"
	"github.com/mailblast/mailblast/internal/handler"
	"github.com/mailblast/mailblast/internal/middleware"
)

// New creates and configures the HTTP router
func New(h *handler.Handler, mw *middleware.Middleware, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints (no session required)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"mailblast API v1","version":"` + handler.Version + `"}`))
	})

	// Provider authorization
	loginRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Name:   "login",
		Limit:  cfg.RateLimit.Limit * 3,
		Window: cfg.RateLimit.Window,
		KeyFn:  mw.IPKey,
	})
	api.Handle("GET /api/v1/auth/{provider}/login", loginRateLimit(http.HandlerFunc(h.Login)))
	api.HandleFunc("GET /api/v1/auth/{provider}/callback", h.Callback)
	api.HandleFunc("POST /api/v1/auth/{provider}/logout", h.Logout)
	api.HandleFunc("GET /api/v1/auth/status", h.AuthStatus)

	// Sending
	sendRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Name:   "send",
		Limit:  cfg.RateLimit.Limit,
		Window: cfg.RateLimit.Window,
		KeyFn:  mw.SessionKey,
	})
	api.Handle("POST /api/v1/send", sendRateLimit(http.HandlerFunc(h.Send)))
	api.HandleFunc("POST /api/v1/preview", h.Preview)

	mux.Handle("/api/", mw.Session(api))

	// Apply middleware stack
	var handler http.Handler = mux

	handler = mw.CORS(cfg.Server.AllowedOrigins)(handler)

	// Security headers
	handler = mw.SecurityHeaders(handler)

	// Request logging
	handler = mw.Logger(handler)

	// Request ID
	handler = mw.RequestID(handler)

	// Panic recovery (outermost)
	handler = mw.Recover(handler)

	return handler
}
