package model

import (
	"fmt"
	"strings"
	"time"
)

// EmailColumn is the mandatory recipient column header. Matching is exact and case-sensitive.
const EmailColumn = "email"

// Row is one recipient row: column name to cell value.
type Row map[string]any

// Email returns the recipient address of the row.
func (r Row) Email() (string, bool) {
	v, ok := r[EmailColumn]
	if !ok || v == nil {
		return "", false
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return "", false
	}
	return s, true
}

// SendJob is constructed per send trigger and never persisted.
type SendJob struct {
	Provider Provider
	Subject  string
	Body     string
	Rows     []Row
}

// Validate checks the job preconditions that do not depend on session state.
func (j SendJob) Validate() error {
	if strings.TrimSpace(j.Subject) == "" {
		return &ValidationError{Field: "subject", Message: "subject must not be empty"}
	}
	if strings.ContainsAny(j.Subject, "\r\n") {
		return &ValidationError{Field: "subject", Message: "subject must be a single line"}
	}
	if strings.TrimSpace(j.Body) == "" {
		return &ValidationError{Field: "body", Message: "message body must not be empty"}
	}
	if j.Provider == "" {
		return &ValidationError{Field: "provider", Message: "a provider must be selected"}
	}
	if !j.Provider.Valid() {
		return &ValidationError{Field: "provider", Message: fmt.Sprintf("unsupported provider %q", j.Provider)}
	}
	return nil
}

// Outcome is the per-row result of a send pass.
type Outcome string

const (
	// OutcomeSent means the rendered message was accepted by the provider.
	OutcomeSent Outcome = "sent"
	// OutcomeTemplateFallback means the literal template was sent because
	// the row did not satisfy every placeholder.
	OutcomeTemplateFallback Outcome = "template_fallback"
	// OutcomeTransportError means the provider rejected the send call.
	OutcomeTransportError Outcome = "transport_error"
	// OutcomeMissingEmail means the row had no recipient address; no send was attempted.
	OutcomeMissingEmail Outcome = "missing_email"
	// OutcomeCancelled means the batch was cancelled before the row was reached.
	OutcomeCancelled Outcome = "cancelled"
)

// Delivered reports whether the provider accepted the message.
func (o Outcome) Delivered() bool {
	return o == OutcomeSent || o == OutcomeTemplateFallback
}

// SendResult records the outcome for one row.
type SendResult struct {
	Row              int     `json:"row"`
	Recipient        string  `json:"recipient,omitempty"`
	Outcome          Outcome `json:"outcome"`
	TemplateFallback bool    `json:"templateFallback,omitempty"`
	Detail           string  `json:"detail,omitempty"`
}

// BatchReport aggregates the results of one send pass in row order.
type BatchReport struct {
	Provider   Provider     `json:"provider"`
	Total      int          `json:"total"`
	Sent       int          `json:"sent"`
	Failed     int          `json:"failed"`
	Cancelled  bool         `json:"cancelled,omitempty"`
	Results    []SendResult `json:"results"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
}

// NewBatchReport creates an empty report sized for total rows.
func NewBatchReport(provider Provider, total int) *BatchReport {
	return &BatchReport{
		Provider:  provider,
		Total:     total,
		Results:   make([]SendResult, 0, total),
		StartedAt: time.Now(),
	}
}

// Add appends a row result and updates the counters.
func (b *BatchReport) Add(r SendResult) {
	b.Results = append(b.Results, r)
	switch {
	case r.Outcome.Delivered():
		b.Sent++
	case r.Outcome == OutcomeCancelled:
		b.Cancelled = true
	default:
		b.Failed++
	}
}

// Progress returns the fraction of rows processed so far.
func (b *BatchReport) Progress() float64 {
	if b.Total == 0 {
		return 1
	}
	return float64(len(b.Results)) / float64(b.Total)
}
