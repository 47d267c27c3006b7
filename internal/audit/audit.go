// Package audit provides the append-only trail of privileged actions and
// access-control decisions.
package audit

import (
	"context"
	"strings"
	"time"

	"vibebiz.dev/internal/ids"
	"vibebiz.dev/internal/obs"
)

// Entry is one immutable audit record. Organization and user ids are
// optional: unauthenticated probes have neither.
type Entry struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	Action         string         `json:"action"`
	ResourceType   string         `json:"resource_type,omitempty"`
	ResourceID     string         `json:"resource_id,omitempty"`
	Changes        map[string]any `json:"changes,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
	IPAddress      string         `json:"ip_address,omitempty"`
	UserAgent      string         `json:"user_agent,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Store appends immutable entries. Application code never updates or
// deletes audit rows.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
}

const appendTimeout = 5 * time.Second

// Logger records audit entries alongside privileged actions. Append
// failures never propagate: they are logged and counted, and the triggering
// action proceeds unaffected.
type Logger struct {
	store Store
	now   func() time.Time
}

// NewLogger constructs a Logger.
func NewLogger(store Store) *Logger {
	return &Logger{store: store, now: time.Now}
}

// Record appends the entry, enriched with the request id from context. The
// write is detached from request cancellation: once started it completes
// even if the caller disconnects, preserving the forensic record.
func (l *Logger) Record(ctx context.Context, entry Entry) {
	if l == nil || l.store == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now().UTC()
	}
	if entry.RequestID == "" {
		entry.RequestID = RequestIDFromContext(ctx)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()
	if err := l.store.Append(writeCtx, &entry); err != nil {
		obs.CountAuditFailure()
		obs.LogError("audit append failed", map[string]any{
			"action":     entry.Action,
			"request_id": entry.RequestID,
			"error":      err.Error(),
		})
	}
}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}
