package facts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterStampsTimestamp(t *testing.T) {
	sink := NewMemorySink()
	emitter := NewEmitter(sink, nil)

	emitter.Emit(context.Background(), Fact{
		Scope:    "agent-sdk",
		FactType: "delivery_latency_ms",
		Value:    412,
	})

	recorded := sink.Facts()
	require.Len(t, recorded, 1)
	assert.False(t, recorded[0].Timestamp.IsZero())
	assert.Equal(t, "agent-sdk", recorded[0].Scope)
	assert.Equal(t, 412.0, recorded[0].Value)
}

type failingSink struct{}

func (failingSink) Record(ctx context.Context, fact Fact) error {
	return errors.New("connection refused")
}

func (failingSink) Close() error { return nil }

func TestEmitterSwallowsSinkFailures(t *testing.T) {
	emitter := NewEmitter(failingSink{}, nil)

	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), Fact{Scope: "queue", FactType: "depth", Value: 12})
	})
}

func TestEmitterNilSinkDefaultsToNoop(t *testing.T) {
	emitter := NewEmitter(nil, nil)

	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), Fact{Scope: "x", FactType: "y"})
	})
	assert.NoError(t, emitter.Close())
}

func TestMemorySinkByType(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	require.NoError(t, sink.Record(ctx, Fact{FactType: "depth", Value: 1}))
	require.NoError(t, sink.Record(ctx, Fact{FactType: "latency", Value: 2}))
	require.NoError(t, sink.Record(ctx, Fact{FactType: "depth", Value: 3}))

	depths := sink.ByType("depth")
	require.Len(t, depths, 2)
	assert.Equal(t, 1.0, depths[0].Value)
	assert.Equal(t, 3.0, depths[1].Value)
}
