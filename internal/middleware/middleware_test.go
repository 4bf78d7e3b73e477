package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mailblast/mailblast/internal/config"
	"github.com/mailblast/mailblast/internal/logger"
	"github.com/mailblast/mailblast/internal/middleware"
	"github.com/mailblast/mailblast/internal/session"
)

func newMiddleware(t *testing.T) (*middleware.Middleware, *session.Manager) {
	t.Helper()
	cfg := &config.Config{
		Session: config.SessionConfig{Secret: "secret", TTL: time.Hour, CookieName: "sid"},
	}
	sessions, err := session.NewManager(cfg.Session)
	require.NoError(t, err)
	return middleware.New(nil, logger.Nop(), cfg, sessions), sessions
}

func TestSession_IssuesAndReuses(t *testing.T) {
	t.Parallel()
	mw, sessions := newMiddleware(t)

	var seen string
	h := mw.Session(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetSessionID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	first := seen

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, first, seen)
	require.Empty(t, rec.Result().Cookies())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessions.CookieName(), Value: "tampered"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.NotEqual(t, first, seen)
	require.Len(t, rec.Result().Cookies(), 1)
}

func TestRecover(t *testing.T) {
	t.Parallel()
	mw, _ := newMiddleware(t)

	h := mw.Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal_error")
}

func TestRequestID(t *testing.T) {
	t.Parallel()
	mw, _ := newMiddleware(t)

	var seen string
	h := mw.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "abc", seen)
	require.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestRateLimit_PassThroughWithoutRedis(t *testing.T) {
	t.Parallel()
	mw, _ := newMiddleware(t)

	calls := 0
	h := mw.RateLimit(middleware.RateLimitConfig{Name: "send", Limit: 1, Window: time.Minute, KeyFn: mw.IPKey})(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls++ }))
	for range 3 {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	}
	require.Equal(t, 3, calls)
}

func TestCORS(t *testing.T) {
	t.Parallel()
	mw, _ := newMiddleware(t)
	h := mw.CORS([]string{"http://app.local"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/send", nil)
	req.Header.Set("Origin", "http://app.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://app.local", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_WildcardIsNotReflected(t *testing.T) {
	t.Parallel()
	mw, _ := newMiddleware(t)
	h := mw.CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/status", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestClientIP_IgnoresForwardedWithoutTrustedProxy(t *testing.T) {
	t.Parallel()
	mw, _ := newMiddleware(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	require.Equal(t, "203.0.113.7", mw.ClientIP(req))
	require.Equal(t, "203.0.113.7", mw.IPKey(req))
}

func TestClientIP_TrustedProxy(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server:  config.ServerConfig{TrustedProxies: []string{"10.0.0.0/8"}},
		Session: config.SessionConfig{Secret: "secret", TTL: time.Hour, CookieName: "sid"},
	}
	sessions, err := session.NewManager(cfg.Session)
	require.NoError(t, err)
	mw := middleware.New(nil, logger.Nop(), cfg, sessions)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:443"
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 203.0.113.9, 10.0.0.2")
	require.Equal(t, "203.0.113.9", mw.ClientIP(req), "a client-supplied leftmost hop is not believed")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:443"
	require.Equal(t, "10.0.0.5", mw.ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	require.Equal(t, "203.0.113.7", mw.ClientIP(req))
}
