package email

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mailblast/mailblast/internal/model"
	"github.com/mailblast/mailblast/internal/oauth"
)

// GmailTransport implements Transport using the Gmail API.
type GmailTransport struct {
	provider oauth.Provider
	opts     options
}

// NewGmailTransport creates a Gmail transport. Token refresh uses the provider's client configuration.
func NewGmailTransport(p oauth.Provider, opts ...Option) *GmailTransport {
	return &GmailTransport{provider: p, opts: buildOptions(opts)}
}

// Provider returns model.ProviderGoogle.
func (g *GmailTransport) Provider() model.Provider {
	return model.ProviderGoogle
}

// Open creates a Gmail API service bound to cred.
func (g *GmailTransport) Open(ctx context.Context, cred *model.Credential) (Session, error) {
	if !cred.Usable() || cred.Provider != model.ProviderGoogle {
		return nil, &model.TransportError{Provider: model.ProviderGoogle, Err: model.ErrUnauthenticated}
	}

	ts := newTokenSource(ctx, g.provider, cred)
	svcOpts := []option.ClientOption{option.WithHTTPClient(authClient(ctx, g.provider, ts))}
	if g.opts.endpoint != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(g.opts.endpoint))
	}

	svc, err := gmail.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, &model.TransportError{Provider: model.ProviderGoogle, Err: fmt.Errorf("gmail: failed to create service: %w", err)}
	}

	return &gmailSession{service: svc, tokens: ts, opts: g.opts}, nil
}

// Send sends a single message with cred.
func (g *GmailTransport) Send(ctx context.Context, cred *model.Credential, msg Message) error {
	s, err := g.Open(ctx, cred)
	if err != nil {
		return err
	}
	return s.Send(ctx, msg)
}

type gmailSession struct {
	service *gmail.Service
	tokens  *tokenSource
	opts    options
}

// Send submits the message as a single raw field.
func (s *gmailSession) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return &model.TransportError{Provider: model.ProviderGoogle, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	gmailMsg := &gmail.Message{
		Raw: EncodeRaw(msg),
	}

	_, err := s.service.Users.Messages.Send("me", gmailMsg).Context(ctx).Do()
	if err != nil {
		return gmailError(err)
	}
	return nil
}

func (s *gmailSession) Refreshed() (*model.Credential, bool) {
	return s.tokens.refreshed()
}

// RawMessage builds the minimal RFC 2822 message: To, Subject, a blank line and the body, CRLF separated.
func RawMessage(msg Message) string {
	return strings.Join([]string{
		"To: " + msg.To,
		"Subject: " + msg.Subject,
		"",
		msg.Body,
	}, "\r\n")
}

// EncodeRaw base64url-encodes the raw message for the Gmail "raw" field.
func EncodeRaw(msg Message) string {
	return base64.URLEncoding.EncodeToString([]byte(RawMessage(msg)))
}

func gmailError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		body := apiErr.Body
		if body == "" {
			body = apiErr.Message
		}
		return &model.TransportError{
			Provider:   model.ProviderGoogle,
			StatusCode: apiErr.Code,
			Body:       strings.TrimSpace(body),
			Err:        err,
		}
	}
	return sendError(model.ProviderGoogle, fmt.Errorf("gmail: failed to send email: %w", err))
}
