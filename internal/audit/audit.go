// Package audit writes the back-office audit trail. Auditing is
// best-effort: a failed write falls back to a structured log line so the
// business operation never aborts over bookkeeping.
package audit

import (
	"context"

	"go.uber.org/zap"
)

// Sink persists audit rows. The hybrid store's audit_log table is the
// production sink.
type Sink interface {
	RecordAudit(ctx context.Context, action string, actorID *int64, payload map[string]any) error
}

// Recorder implements rfq.AuditRecorder over a Sink.
type Recorder struct {
	sink   Sink
	logger *zap.Logger
}

func NewRecorder(sink Sink, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{sink: sink, logger: logger}
}

// Record appends one audit entry. On sink failure the entry is emitted to
// the log instead so it is never silently lost.
func (r *Recorder) Record(ctx context.Context, action string, actorID *int64, payload map[string]any) {
	if r.sink != nil {
		if err := r.sink.RecordAudit(ctx, action, actorID, payload); err == nil {
			return
		} else {
			r.logger.Warn("audit.sink_failed", zap.String("action", action), zap.Error(err))
		}
	}
	fields := []zap.Field{zap.String("action", action), zap.Any("payload", payload)}
	if actorID != nil {
		fields = append(fields, zap.Int64("actor_id", *actorID))
	}
	r.logger.Info("audit.fallback", fields...)
}
