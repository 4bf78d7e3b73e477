package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mailblast/mailblast/internal/model"
	"github.com/mailblast/mailblast/internal/oauth"
)

const (
	// DefaultGraphURL is the Microsoft Graph API root.
	DefaultGraphURL = "https://graph.microsoft.com"
	sendMailPath    = "/v1.0/me/sendMail"
	maxErrorBody    = 64 << 10
)

// sendMailRequest is the Graph sendMail payload.
type sendMailRequest struct {
	Message         graphMessage `json:"message"`
	SaveToSentItems bool         `json:"saveToSentItems"`
}

type graphMessage struct {
	Subject      string         `json:"subject"`
	Body         graphBody      `json:"body"`
	ToRecipients []graphAddress `json:"toRecipients"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphAddress struct {
	EmailAddress graphEmail `json:"emailAddress"`
}

type graphEmail struct {
	Address string `json:"address"`
}

// GraphTransport implements Transport using Microsoft Graph sendMail.
type GraphTransport struct {
	provider oauth.Provider
	opts     options
}

// NewGraphTransport creates a Graph transport.
func NewGraphTransport(p oauth.Provider, opts ...Option) *GraphTransport {
	o := buildOptions(opts)
	if o.endpoint == "" {
		o.endpoint = DefaultGraphURL
	}
	o.endpoint = strings.TrimSuffix(o.endpoint, "/")
	return &GraphTransport{provider: p, opts: o}
}

// Provider returns model.ProviderMicrosoft.
func (t *GraphTransport) Provider() model.Provider {
	return model.ProviderMicrosoft
}

// Open binds cred to an authenticated HTTP client.
func (t *GraphTransport) Open(ctx context.Context, cred *model.Credential) (Session, error) {
	if !cred.Usable() || cred.Provider != model.ProviderMicrosoft {
		return nil, &model.TransportError{Provider: model.ProviderMicrosoft, Err: model.ErrUnauthenticated}
	}

	ts := newTokenSource(ctx, t.provider, cred)
	return &graphSession{
		client: authClient(ctx, t.provider, ts),
		tokens: ts,
		url:    t.opts.endpoint + sendMailPath,
		opts:   t.opts,
	}, nil
}

// Send sends a single message with cred.
func (t *GraphTransport) Send(ctx context.Context, cred *model.Credential, msg Message) error {
	s, err := t.Open(ctx, cred)
	if err != nil {
		return err
	}
	return s.Send(ctx, msg)
}

type graphSession struct {
	client *http.Client
	tokens *tokenSource
	url    string
	opts   options
}

// Send posts the sendMail payload and maps any non-2xx response to a TransportError.
func (s *graphSession) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return &model.TransportError{Provider: model.ProviderMicrosoft, Err: err}
	}

	payload, err := json.Marshal(SendMailPayload(msg))
	if err != nil {
		return &model.TransportError{Provider: model.ProviderMicrosoft, Err: fmt.Errorf("graph: failed to encode message: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return &model.TransportError{Provider: model.ProviderMicrosoft, Err: fmt.Errorf("graph: failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &model.TransportError{Provider: model.ProviderMicrosoft, Err: fmt.Errorf("graph: request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &model.TransportError{
			Provider:   model.ProviderMicrosoft,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *graphSession) Refreshed() (*model.Credential, bool) {
	return s.tokens.refreshed()
}

// SendMailPayload builds the Graph sendMail request body for msg.
func SendMailPayload(msg Message) any {
	return sendMailRequest{
		Message: graphMessage{
			Subject: msg.Subject,
			Body: graphBody{
				ContentType: "Text",
				Content:     msg.Body,
			},
			ToRecipients: []graphAddress{
				{EmailAddress: graphEmail{Address: msg.To}},
			},
		},
		SaveToSentItems: true,
	}
}
