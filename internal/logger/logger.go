package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/mailblast/mailblast/internal/model"
)

// Logger wraps zerolog.Logger with application-specific methods
type Logger struct {
	zerolog.Logger
}

// New creates a new Logger instance writing to stdout
func New(level string, format string) *Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter creates a Logger writing to w
func NewWithWriter(w io.Writer, level string, format string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger

	if format == "text" || format == "console" {
		// Human-readable output for development
		output := zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
		logger = zerolog.New(output).Level(lvl).With().Timestamp().Caller().Logger()
	} else {
		logger = zerolog.New(w).Level(lvl).With().Timestamp().Caller().Logger()
	}

	return &Logger{Logger: logger}
}

// Nop returns a Logger that discards everything
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithRequestID returns a new logger with the request ID attached
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With().Str("request_id", requestID).Logger(),
	}
}

// WithSessionID returns a new logger with the session ID attached
func (l *Logger) WithSessionID(sessionID string) *Logger {
	return &Logger{
		Logger: l.With().Str("session_id", sessionID).Logger(),
	}
}

// WithProvider returns a new logger with the provider attached
func (l *Logger) WithProvider(provider model.Provider) *Logger {
	return &Logger{
		Logger: l.With().Str("provider", string(provider)).Logger(),
	}
}

// WithComponent returns a new logger with the component name attached
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.With().Str("component", component).Logger(),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, statusCode int, duration time.Duration, clientIP string) {
	l.Info().
		Str("method", method).
		Str("path", path).
		Int("status", statusCode).
		Dur("duration", duration).
		Str("client_ip", clientIP).
		Msg("HTTP request")
}

// RowResult logs the outcome of a single recipient row
func (l *Logger) RowResult(sent, total int, r model.SendResult) {
	var event *zerolog.Event
	if r.Outcome.Delivered() {
		event = l.Info()
	} else {
		event = l.Warn()
	}

	event = event.
		Int("row", r.Row).
		Str("recipient", r.Recipient).
		Str("outcome", string(r.Outcome)).
		Bool("template_fallback", r.TemplateFallback).
		Int("sent", sent).
		Int("total", total)

	if r.Detail != "" {
		event = event.Str("detail", r.Detail)
	}

	event.Msg("row processed")
}

// BatchSummary logs the final tally of a send pass
func (l *Logger) BatchSummary(report *model.BatchReport) {
	l.Info().
		Str("provider", string(report.Provider)).
		Int("total", report.Total).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Bool("cancelled", report.Cancelled).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("batch finished")
}
