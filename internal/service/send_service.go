package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mailblast/mailblast/internal/credential"
	"github.com/mailblast/mailblast/internal/email"
	"github.com/mailblast/mailblast/internal/logger"
	"github.com/mailblast/mailblast/internal/merge"
	"github.com/mailblast/mailblast/internal/model"
)

// ProgressFunc observes a batch after every row.
type ProgressFunc func(sent, total int, result model.SendResult)

// SendService runs bulk send passes.
type SendService struct {
	store      credential.Store
	transports map[model.Provider]email.Transport
	now        func() time.Time
	log        *logger.Logger
}

// NewSendService creates a new SendService
func NewSendService(store credential.Store, log *logger.Logger, transports ...email.Transport) *SendService {
	m := make(map[model.Provider]email.Transport, len(transports))
	for _, t := range transports {
		m[t.Provider()] = t
	}
	return &SendService{
		store:      store,
		transports: m,
		now:        time.Now,
		log:        log.WithComponent("send_service"),
	}
}

// Run sends job.Body to every row in order and returns one result per row.
//
// Precondition failures are returned as errors before any row is touched:
// *model.ValidationError, ErrProviderNotConfigured or model.ErrUnauthenticated.
// Row failures never stop the loop. When ctx is cancelled the rows not yet
// reached are recorded as model.OutcomeCancelled.
func (s *SendService) Run(ctx context.Context, sessionID string, job model.SendJob, progress ProgressFunc) (*model.BatchReport, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, credential.ErrNoSession
	}
	transport, ok := s.transports[job.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, job.Provider)
	}

	cred, err := s.store.Get(ctx, sessionID, job.Provider)
	if err != nil {
		return nil, err
	}
	sess, err := transport.Open(ctx, cred)
	if err != nil {
		if errors.Is(err, model.ErrUnauthenticated) {
			return nil, model.ErrUnauthenticated
		}
		return nil, err
	}

	log := s.log.WithSessionID(sessionID).WithProvider(job.Provider)
	report := model.NewBatchReport(job.Provider, len(job.Rows))
	report.StartedAt = s.now()

	for i, row := range job.Rows {
		var result model.SendResult
		if ctx.Err() != nil {
			result = model.SendResult{Row: i + 1, Outcome: model.OutcomeCancelled, Detail: ctx.Err().Error()}
			result.Recipient, _ = row.Email()
		} else {
			result = s.sendRow(ctx, sess, i+1, row, job)
		}

		report.Add(result)
		log.RowResult(report.Sent, report.Total, result)
		if progress != nil {
			progress(report.Sent, report.Total, result)
		}
	}

	if refreshed, ok := sess.Refreshed(); ok {
		// the caller's context may be done; the write-back must still land
		if err := s.store.Set(context.WithoutCancel(ctx), sessionID, refreshed); err != nil {
			log.Warn().Err(err).Msg("failed to store refreshed credential")
		} else {
			log.Debug().Msg("refreshed credential stored")
		}
	}

	report.FinishedAt = s.now()
	log.BatchSummary(report)
	return report, nil
}

func (s *SendService) sendRow(ctx context.Context, sess email.Session, n int, row model.Row, job model.SendJob) model.SendResult {
	to, ok := row.Email()
	if !ok {
		return model.SendResult{Row: n, Outcome: model.OutcomeMissingEmail, Detail: fmt.Sprintf("row has no %q value", model.EmailColumn)}
	}

	rendered := merge.Render(job.Body, row)
	result := model.SendResult{Row: n, Recipient: to, Outcome: model.OutcomeSent}
	if rendered.Fallback {
		result.Outcome = model.OutcomeTemplateFallback
		result.TemplateFallback = true
		result.Detail = rendered.Err.Error()
	}

	err := sess.Send(ctx, email.Message{To: to, Subject: job.Subject, Body: rendered.Text})
	if err != nil {
		result.Outcome = model.OutcomeTransportError
		result.Detail = err.Error()
	}
	return result
}

// PreviewResult is one rendered row.
type PreviewResult struct {
	Row       int      `json:"row"`
	Recipient string   `json:"recipient,omitempty"`
	Text      string   `json:"text"`
	Fallback  bool     `json:"fallback,omitempty"`
	Missing   []string `json:"missing,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Preview renders body for every row without sending.
func Preview(body string, rows []model.Row) []PreviewResult {
	out := make([]PreviewResult, 0, len(rows))
	for i, row := range rows {
		r := merge.Render(body, row)
		p := PreviewResult{Row: i + 1, Text: r.Text, Fallback: r.Fallback}
		p.Recipient, _ = row.Email()
		if r.Fallback {
			p.Error = r.Err.Error()
			p.Missing, _ = merge.Missing(body, row)
		}
		out = append(out, p)
	}
	return out
}
