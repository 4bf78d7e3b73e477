package handler

import (
	"net/http"
	"time"

	"github.com/mailblast/mailblast/internal/middleware"
	"github.com/mailblast/mailblast/internal/model"
)

// LoginResponse carries the provider authorization URL
type LoginResponse struct {
	Provider model.Provider `json:"provider"`
	URL      string         `json:"url"`
}

// CallbackResponse describes the session after a completed authorization
type CallbackResponse struct {
	Provider  model.Provider  `json:"provider"`
	State     model.FlowState `json:"state"`
	Scopes    []string        `json:"scopes,omitempty"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
}

// Login starts the authorization flow. With ?redirect=1 the browser is sent
// straight to the provider.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	provider, err := model.ParseProvider(r.PathValue("provider"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	authURL, err := h.authSvc.BeginAuthorization(r.Context(), middleware.GetSessionID(r.Context()), provider)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, authURL, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Provider: provider, URL: authURL})
}

// Callback receives the provider redirect and completes the authorization.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	provider, err := model.ParseProvider(r.PathValue("provider"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	q := r.URL.Query()
	if code := q.Get("error"); code != "" {
		h.writeServiceError(w, r, &model.AuthExchangeError{
			Provider:    provider,
			Code:        code,
			Description: q.Get("error_description"),
		})
		return
	}

	cred, err := h.authSvc.CompleteAuthorization(r.Context(), middleware.GetSessionID(r.Context()), provider, q.Get("code"), q.Get("state"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := CallbackResponse{Provider: provider, State: model.FlowAuthenticated, Scopes: cred.Scopes}
	if !cred.Expiry.IsZero() {
		resp.ExpiresAt = &cred.Expiry
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout clears the provider credential for the session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	provider, err := model.ParseProvider(r.PathValue("provider"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if err := h.authSvc.Logout(r.Context(), middleware.GetSessionID(r.Context()), provider); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider": provider, "state": model.FlowUnauthenticated})
}

// AuthStatus reports the flow state of every provider.
func (h *Handler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.authSvc.Status(r.Context(), middleware.GetSessionID(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": status})
}
