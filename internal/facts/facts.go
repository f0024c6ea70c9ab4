package facts

import (
	"context"
	"time"

	"webhook-relay/internal/common/logging"
)

// Fact is a single observability record pushed to the dashboard store.
// Scope groups related facts (a service name, "queue", "budget") and
// FactType names the measurement within the scope.
type Fact struct {
	Scope     string                 `json:"scope"`
	FactType  string                 `json:"fact_type"`
	Value     float64                `json:"value"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Sink is the write-only persistence boundary for facts. Implementations
// must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, fact Fact) error
	Close() error
}

// Emitter wraps a Sink so that callers on the delivery path never see a
// persistence failure. Facts are advisory; a lost fact is logged and
// forgotten.
type Emitter struct {
	sink   Sink
	logger logging.Logger
}

// NewEmitter creates a fact emitter
func NewEmitter(sink Sink, logger logging.Logger) *Emitter {
	if sink == nil {
		sink = NewNoopSink()
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Emitter{sink: sink, logger: logger}
}

// Emit records one fact, stamping the timestamp if unset. Failures are
// logged and swallowed.
func (e *Emitter) Emit(ctx context.Context, fact Fact) {
	if fact.Timestamp.IsZero() {
		fact.Timestamp = time.Now().UTC()
	}

	if err := e.sink.Record(ctx, fact); err != nil {
		e.logger.Warn("Failed to record fact",
			logging.Field{Key: "scope", Value: fact.Scope},
			logging.Field{Key: "fact_type", Value: fact.FactType},
			logging.Field{Key: "error", Value: err.Error()},
		)
	}
}

// Close releases the underlying sink
func (e *Emitter) Close() error {
	return e.sink.Close()
}
