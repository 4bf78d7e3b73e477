package email

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/mailblast/mailblast/internal/model"
	"github.com/mailblast/mailblast/internal/oauth"
)

// ErrInvalidHeader is returned when a header value contains a line break.
var ErrInvalidHeader = errors.New("email: header value contains a line break")

// Message represents an email message to be sent.
type Message struct {
	To      string // recipient email address
	Subject string // email subject
	Body    string // plain-text body
}

func (m Message) validate() error {
	if strings.ContainsAny(m.To, "\r\n") || strings.ContainsAny(m.Subject, "\r\n") {
		return ErrInvalidHeader
	}
	return nil
}

// Transport sends mail through one provider's API.
// This abstraction keeps provider selection a closed set of implementations.
type Transport interface {
	// Provider returns the provider this transport talks to.
	Provider() model.Provider

	// Open binds a credential for a series of sends. Expired access tokens
	// are refreshed through the bound session when a refresh token is present.
	Open(ctx context.Context, cred *model.Credential) (Session, error)

	// Send performs exactly one send call. Failures are *model.TransportError.
	Send(ctx context.Context, cred *model.Credential, msg Message) error
}

// Session is a credential bound to a transport.
type Session interface {
	// Send performs exactly one send call. Failures are *model.TransportError.
	Send(ctx context.Context, msg Message) error

	// Refreshed returns the updated bundle when the access token was refreshed.
	Refreshed() (*model.Credential, bool)
}

// Option configures a transport.
type Option func(*options)

type options struct {
	endpoint string
	timeout  time.Duration
}

// WithEndpoint overrides the provider API base URL.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

// WithTimeout bounds every send call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

func buildOptions(opts []Option) options {
	o := options{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New returns the transport for the provider. Unknown providers are rejected.
func New(p oauth.Provider, opts ...Option) (Transport, error) {
	switch p.Name() {
	case model.ProviderGoogle:
		return NewGmailTransport(p, opts...), nil
	case model.ProviderMicrosoft:
		return NewGraphTransport(p, opts...), nil
	default:
		return nil, &model.ValidationError{Field: "provider", Message: "no transport for provider " + string(p.Name())}
	}
}

// tokenSource records the last token it handed out so refreshed tokens can be written back.
type tokenSource struct {
	mu   sync.Mutex
	src  oauth2.TokenSource
	cred *model.Credential
	last *oauth2.Token
}

func newTokenSource(ctx context.Context, p oauth.Provider, cred *model.Credential) *tokenSource {
	tok := oauth.Token(cred)
	return &tokenSource{
		src:  oauth2.ReuseTokenSource(tok, p.OAuth2Config().TokenSource(p.HTTPContext(ctx), tok)),
		cred: cred.Clone(),
	}
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.last = tok
	s.mu.Unlock()
	return tok, nil
}

func (s *tokenSource) refreshed() (*model.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last == nil || s.last.AccessToken == s.cred.AccessToken {
		return nil, false
	}
	out := s.cred.Clone()
	out.AccessToken = s.last.AccessToken
	out.Expiry = s.last.Expiry
	if s.last.TokenType != "" {
		out.TokenType = s.last.TokenType
	}
	if s.last.RefreshToken != "" {
		out.RefreshToken = s.last.RefreshToken
	}
	return out, true
}

// authClient returns an HTTP client that adds the bearer token and refreshes it on demand.
func authClient(ctx context.Context, p oauth.Provider, ts *tokenSource) *http.Client {
	return oauth2.NewClient(p.HTTPContext(ctx), ts)
}

// sendError wraps any failure as a TransportError unless it already is one.
func sendError(provider model.Provider, err error) error {
	var tErr *model.TransportError
	if errors.As(err, &tErr) {
		return err
	}
	return &model.TransportError{Provider: provider, Err: err}
}
