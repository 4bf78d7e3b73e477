package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mailblast/mailblast/internal/config"
	"github.com/mailblast/mailblast/internal/credential"
	"github.com/mailblast/mailblast/internal/database"
	"github.com/mailblast/mailblast/internal/logger"
	"github.com/mailblast/mailblast/internal/middleware"
	"github.com/mailblast/mailblast/internal/model"
	"github.com/mailblast/mailblast/internal/oauth"
	"github.com/mailblast/mailblast/internal/service"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Handler holds all HTTP handlers
type Handler struct {
	rdb       *database.Redis
	log       *logger.Logger
	cfg       *config.Config
	providers *oauth.Registry
	authSvc   *service.AuthService
	sendSvc   *service.SendService
}

// New creates a new Handler instance. rdb may be nil when sessions live in memory.
func New(rdb *database.Redis, log *logger.Logger, cfg *config.Config, providers *oauth.Registry, authSvc *service.AuthService, sendSvc *service.SendService) *Handler {
	return &Handler{
		rdb:       rdb,
		log:       log,
		cfg:       cfg,
		providers: providers,
		authSvc:   authSvc,
		sendSvc:   sendSvc,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeErrorWithDetails(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	body := map[string]any{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	if reqID := middleware.GetRequestID(r.Context()); reqID != "" {
		body["request_id"] = reqID
	}
	writeJSON(w, status, map[string]any{"error": body})
}

// writeServiceError maps the error taxonomy onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr   *model.ValidationError
		exErr  *model.AuthExchangeError
		cfgErr *model.ConfigError
	)

	switch {
	case errors.As(err, &vErr):
		writeErrorWithDetails(w, r, http.StatusBadRequest, "validation_error", vErr.Message, map[string]any{"field": vErr.Field})
	case errors.Is(err, model.ErrUnauthenticated):
		writeErrorWithDetails(w, r, http.StatusUnauthorized, "unauthenticated", "Sign in with the selected provider first", nil)
	case errors.Is(err, credential.ErrNoSession):
		writeErrorWithDetails(w, r, http.StatusUnauthorized, "no_session", "Session is missing", nil)
	case errors.As(err, &exErr):
		status := http.StatusBadGateway
		switch exErr.Code {
		case "invalid_state", "invalid_request", "invalid_grant":
			status = http.StatusBadRequest
		}
		code := exErr.Code
		if code == "" {
			code = "auth_exchange_failed"
		}
		writeErrorWithDetails(w, r, status, code, exErr.Error(), map[string]any{"provider": exErr.Provider})
	case errors.Is(err, service.ErrProviderNotConfigured), errors.As(err, &cfgErr):
		writeErrorWithDetails(w, r, http.StatusServiceUnavailable, "provider_not_configured", err.Error(), nil)
	default:
		h.log.WithRequestID(middleware.GetRequestID(r.Context())).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeErrorWithDetails(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred", nil)
	}
}
