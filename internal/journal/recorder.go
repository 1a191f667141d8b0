package journal

import (
	"context"
	"log/slog"

	"mediadrop/internal/logging"
)

// Recorder is the best-effort write path used by the pipelines. A nil
// Recorder, or one without a store, drops events silently.
type Recorder struct {
	store  *Store
	logger *slog.Logger
}

// NewRecorder wraps store. A nil store yields a Recorder that drops events.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recorder{store: store, logger: logger}
}

// Record appends event, logging failures instead of returning them.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil || r.store == nil {
		return
	}
	if _, err := r.store.Append(ctx, event); err != nil {
		logging.WarnWithContext(r.logger, "journal write failed", "journal_write_failed",
			logging.String("journal_event", string(event.Type)),
			logging.String(logging.FieldTaskID, event.TaskID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check journal.path permissions or disable the journal"),
			logging.String(logging.FieldImpact, "event history is incomplete; pipeline continues"),
		)
	}
}
