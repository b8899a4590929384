package audit

import (
	"context"
	"log/slog"
)

// queueSize bounds pending entries. Entries beyond it are dropped so a
// slow disk never stalls a request.
const queueSize = 256

// Recorder writes audit entries asynchronously and serially, which suits
// SQLite's single-writer model. Failures are logged, never returned.
type Recorder struct {
	repo   Repository
	logger *slog.Logger
	queue  chan AuditLog
}

// NewRecorder creates a Recorder. Call Run to start writing. A nil repo
// yields a Recorder that drops every entry.
func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{repo: repo, logger: logger, queue: make(chan AuditLog, queueSize)}
}

// Record enqueues one entry without blocking.
func (r *Recorder) Record(entry AuditLog) {
	if r == nil || r.repo == nil {
		return
	}
	select {
	case r.queue <- entry:
	default:
		r.logger.Warn("audit queue full, dropping entry",
			"action", entry.Action, "entity_type", entry.EntityType)
	}
}

// SessionEvent records a login or logout for a session.
func (r *Recorder) SessionEvent(action, sessionID, userID string, details map[string]any) {
	r.Record(AuditLog{
		Action:     action,
		EntityType: EntitySession,
		EntityID:   sessionID,
		UserID:     userID,
		SessionID:  sessionID,
		Details:    details,
	})
}

// Run writes queued entries until ctx is cancelled, then drains what is
// left before returning.
func (r *Recorder) Run(ctx context.Context) {
	if r == nil || r.repo == nil {
		return
	}
	for {
		select {
		case entry := <-r.queue:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.queue:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry AuditLog) {
	if err := r.repo.Create(context.Background(), &entry); err != nil {
		r.logger.Error("audit log write failed",
			"action", entry.Action, "entity_type", entry.EntityType, "error", err)
	}
}
