package monitor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webhook-relay/internal/facts"
)

func newTestMonitor(t *testing.T, opts ...Option) (*Monitor, *facts.MemorySink) {
	t.Helper()
	sink := facts.NewMemorySink()
	m, err := New(DefaultConfig(), facts.NewEmitter(sink, nil), nil, opts...)
	require.NoError(t, err)
	return m, sink
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults valid", mutate: func(c *Config) {}},
		{name: "zero window", mutate: func(c *Config) { c.WindowSize = 0 }, wantErr: true},
		{name: "zero alert threshold", mutate: func(c *Config) { c.QueueDepthAlert = 0 }, wantErr: true},
		{name: "escalation below alert", mutate: func(c *Config) { c.QueueDepthEscalation = c.QueueDepthAlert }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)
			err := config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckNoSamplesIsCompliant(t *testing.T) {
	m, _ := newTestMonitor(t)

	report := m.Check("agent-sdk")
	assert.True(t, report.Compliant)
	assert.Zero(t, report.SampleCount)
	assert.Equal(t, 100.0, report.AvailabilityPercent)
}

func TestCheckHealthyService(t *testing.T) {
	m, _ := newTestMonitor(t)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		m.Record(ctx, "agent-sdk", 200, true)
	}

	report := m.Check("agent-sdk")
	assert.True(t, report.Compliant)
	assert.Empty(t, report.Violations)
	assert.Equal(t, 100, report.SampleCount)
	assert.Equal(t, 200.0, report.P95LatencyMs)
	assert.Equal(t, 0.0, report.ErrorRatePercent)
	assert.Equal(t, 100.0, report.AvailabilityPercent)
}

func TestCheckLatencyViolation(t *testing.T) {
	m, _ := newTestMonitor(t)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		m.Record(ctx, "agent-sdk", 8000, true)
	}

	report := m.Check("agent-sdk")
	assert.False(t, report.Compliant)
	require.Len(t, report.Violations, 1)
	assert.Contains(t, report.Violations[0], "p95 latency 8000ms")
	assert.Contains(t, report.Violations[0], "threshold 5000ms")
}

func TestCheckErrorRateAndAvailabilityViolations(t *testing.T) {
	m, _ := newTestMonitor(t)
	ctx := context.Background()

	// 20% failures breaches both the 10% error-rate ceiling and the
	// 99% availability floor.
	for i := 0; i < 80; i++ {
		m.Record(ctx, "agent-sdk", 100, true)
	}
	for i := 0; i < 20; i++ {
		m.Record(ctx, "agent-sdk", 100, false)
	}

	report := m.Check("agent-sdk")
	assert.False(t, report.Compliant)
	require.Len(t, report.Violations, 2)
	assert.Contains(t, report.Violations[0], "error rate 20.0%")
	assert.Contains(t, report.Violations[1], "availability 80.0%")
}

func TestCheckPerServiceSLAOverride(t *testing.T) {
	m, _ := newTestMonitor(t, WithSLA("slow-partner", SLAConfig{
		P95LatencyMs:        20000,
		ErrorRatePercent:    50,
		AvailabilityPercent: 50,
	}))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		m.Record(ctx, "slow-partner", 9000, true)
	}

	assert.True(t, m.Check("slow-partner").Compliant)
}

func TestRingEvictsOldestSamples(t *testing.T) {
	config := DefaultConfig()
	config.WindowSize = 10
	m, err := New(config, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	// Ten failures, then ten successes. The failures must age out of
	// the window entirely.
	for i := 0; i < 10; i++ {
		m.Record(ctx, "agent-sdk", 100, false)
	}
	for i := 0; i < 10; i++ {
		m.Record(ctx, "agent-sdk", 100, true)
	}

	report := m.Check("agent-sdk")
	assert.Equal(t, 10, report.SampleCount)
	assert.Equal(t, 0.0, report.ErrorRatePercent)
	assert.True(t, report.Compliant)
}

func TestPercentile(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1)
	}

	assert.Equal(t, 95.0, percentile(values, 95))
	assert.Equal(t, 50.0, percentile(values, 50))
	assert.Equal(t, 7.0, percentile([]float64{7}, 95))
}

func TestObserveQueueDepth(t *testing.T) {
	m, sink := newTestMonitor(t)
	ctx := context.Background()

	t.Run("below alert", func(t *testing.T) {
		reading := m.ObserveQueueDepth(ctx, 10)
		assert.Equal(t, QueueDepthOK, reading.Level)
		assert.Empty(t, reading.Message)
	})

	t.Run("at alert threshold", func(t *testing.T) {
		reading := m.ObserveQueueDepth(ctx, 50)
		assert.Equal(t, QueueDepthWarning, reading.Level)
		assert.Contains(t, reading.Message, "alert threshold 50")
	})

	t.Run("above escalation threshold", func(t *testing.T) {
		reading := m.ObserveQueueDepth(ctx, 101)
		assert.Equal(t, QueueDepthCritical, reading.Level)
		assert.Contains(t, reading.Message, "escalation threshold 100")
	})

	t.Run("every reading recorded as fact", func(t *testing.T) {
		depths := sink.ByType("queue_depth")
		require.Len(t, depths, 3)
		assert.Equal(t, 10.0, depths[0].Value)
		assert.Equal(t, "ok", depths[0].Metadata["level"])
		assert.Equal(t, "critical", depths[2].Metadata["level"])
	})
}

func TestRecordEmitsLatencyFact(t *testing.T) {
	m, sink := newTestMonitor(t)

	m.Record(context.Background(), "agent-sdk", 412, true)

	recorded := sink.ByType("delivery_latency_ms")
	require.Len(t, recorded, 1)
	assert.Equal(t, "agent-sdk", recorded[0].Scope)
	assert.Equal(t, 412.0, recorded[0].Value)
	assert.Equal(t, true, recorded[0].Metadata["success"])
}

func TestServices(t *testing.T) {
	m, _ := newTestMonitor(t)
	ctx := context.Background()

	m.Record(ctx, "b-service", 100, true)
	m.Record(ctx, "a-service", 100, true)

	assert.Equal(t, []string{"a-service", "b-service"}, m.Services())
}
