package middleware

import (
	"net/http"
)

// Session resolves the session cookie, issuing a new session when the cookie
// is absent or fails verification. The session ID is stored in the context.
func (m *Middleware) Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := m.sessions.FromRequest(r)
		if err != nil {
			id, token, expiresAt, issueErr := m.sessions.Issue()
			if issueErr != nil {
				m.log.Error().Err(issueErr).Msg("failed to issue session")
				http.Error(w, `{"error":{"code":"internal_error","message":"An unexpected error occurred"}}`, http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, m.sessions.Cookie(token, expiresAt))
			sessionID = id
			m.log.WithRequestID(GetRequestID(r.Context())).Debug().Str("session_id", id).Msg("session issued")
		}

		next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sessionID)))
	})
}
