// Package dlq records deliveries that exhausted all retry attempts or
// failed terminally. Entries are append-only and never deleted by the
// relay; operators review them out of band.
package dlq

import (
	"context"
	"time"

	"github.com/google/uuid"

	"webhook-relay/internal/common/logging"
)

// Entry is one dead-lettered delivery. Immutable once written.
type Entry struct {
	ID                   string    `json:"id"`
	Payload              []byte    `json:"payload"`
	Attempts             int       `json:"attempts"`
	LastError            string    `json:"last_error"`
	Endpoint             string    `json:"endpoint"`
	RequiresManualReview bool      `json:"requires_manual_review"`
	RecordedAt           time.Time `json:"recorded_at"`
}

// Stats summarizes the dead-letter store
type Stats struct {
	TotalEntries int64      `json:"total_entries"`
	OldestEntry  *time.Time `json:"oldest_entry,omitempty"`
	NewestEntry  *time.Time `json:"newest_entry,omitempty"`
}

// Store persists dead-letter entries
type Store interface {
	Insert(ctx context.Context, entry *Entry) error
	List(ctx context.Context, limit, offset int) ([]*Entry, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Recorder appends failed deliveries to a Store. Duplicate records for
// the same failure are acceptable; consumers filter by timestamps.
type Recorder struct {
	store  Store
	logger logging.Logger
}

// NewRecorder creates a dead-letter recorder
func NewRecorder(store Store, logger logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Recorder{
		store:  store,
		logger: logger,
	}
}

// Record persists one dead-letter entry. A failure to write is logged and
// returned, but callers must never let it mask the delivery error that
// caused dead-lettering in the first place.
func (r *Recorder) Record(ctx context.Context, payload []byte, attempts int, lastErr error, endpoint string) error {
	entry := &Entry{
		ID:                   uuid.NewString(),
		Payload:              payload,
		Attempts:             attempts,
		LastError:            lastErr.Error(),
		Endpoint:             endpoint,
		RequiresManualReview: true,
		RecordedAt:           time.Now().UTC(),
	}

	if err := r.store.Insert(ctx, entry); err != nil {
		r.logger.Error("Failed to record dead-letter entry", err,
			logging.Field{Key: "endpoint", Value: endpoint},
			logging.Field{Key: "attempts", Value: attempts},
			logging.Field{Key: "original_error", Value: lastErr.Error()},
		)
		return err
	}

	r.logger.Info("Delivery dead-lettered",
		logging.Field{Key: "entry_id", Value: entry.ID},
		logging.Field{Key: "endpoint", Value: endpoint},
		logging.Field{Key: "attempts", Value: attempts},
		logging.Field{Key: "last_error", Value: lastErr.Error()},
	)

	return nil
}

// List returns recorded entries, newest first
func (r *Recorder) List(ctx context.Context, limit, offset int) ([]*Entry, error) {
	return r.store.List(ctx, limit, offset)
}

// Stats returns store statistics
func (r *Recorder) Stats(ctx context.Context) (*Stats, error) {
	return r.store.Stats(ctx)
}
