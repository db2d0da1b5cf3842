package observability

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Audit event types
const (
	AuditTypeTurn         = "turn"
	AuditTypeJurisdiction = "jurisdiction"
)

// AuditEvent is one entry of the chat audit trail. Message text never goes in
// an event; Metadata carries sizes and labels only.
type AuditEvent struct {
	Type      string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor,omitempty"` // user ID
	Action    string         `json:"action"`
	Status    string         `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
}

// AuditLogger writes audit events as JSON lines
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

var (
	auditMu   sync.RWMutex
	auditInst = &AuditLogger{logger: zerolog.Nop()}
)

// NewAuditLogger creates an audit logger writing to w
func NewAuditLogger(w io.Writer) *AuditLogger {
	return &AuditLogger{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// GetAuditLogger returns the process audit logger. It discards events until
// InitAuditLogger or SetAuditLogger is called.
func GetAuditLogger() *AuditLogger {
	auditMu.RLock()
	defer auditMu.RUnlock()
	return auditInst
}

// SetAuditLogger replaces the process audit logger and returns the previous one
func SetAuditLogger(a *AuditLogger) *AuditLogger {
	if a == nil {
		a = &AuditLogger{logger: zerolog.Nop()}
	}
	auditMu.Lock()
	defer auditMu.Unlock()
	prev := auditInst
	auditInst = a
	return prev
}

// InitAuditLogger opens path for appending and installs it as the process audit logger
func InitAuditLogger(path string) (*AuditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	a := NewAuditLogger(file)
	a.file = file
	SetAuditLogger(a)
	return a, nil
}

// Record emits an audit event and mirrors it as a span event when ctx carries a span
func (a *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		event.TraceID = span.SpanContext().TraceID().String()

		span.AddEvent(event.Action, trace.WithAttributes(
			attribute.String("audit.type", event.Type),
			attribute.String("audit.status", event.Status),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("type", event.Type).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("status", event.Status)
	if event.TraceID != "" {
		entry = entry.Str("trace_id", event.TraceID)
	}
	if event.Metadata != nil {
		entry = entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// Close closes the audit logger's file handle
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		err := a.file.Close()
		a.file = nil
		return err
	}
	return nil
}

// RecordTurnAudit records the outcome of a chat turn for userID
func RecordTurnAudit(ctx context.Context, userID, outcome string, metadata map[string]any) {
	status := "success"
	if outcome == OutcomeProviderFailed || outcome == OutcomeInvalidInput {
		status = "failure"
	}
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     AuditTypeTurn,
		Actor:    userID,
		Action:   "turn:" + outcome,
		Status:   status,
		Metadata: metadata,
	})
}

// RecordJurisdictionAudit records that a jurisdiction was fixed for userID
func RecordJurisdictionAudit(ctx context.Context, userID, jurisdiction string) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     AuditTypeJurisdiction,
		Actor:    userID,
		Action:   "jurisdiction:detected",
		Status:   "success",
		Metadata: map[string]any{"jurisdiction": jurisdiction},
	})
}
