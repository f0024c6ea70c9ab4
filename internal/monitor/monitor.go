package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"webhook-relay/internal/common/logging"
	"webhook-relay/internal/facts"
)

const (
	// DefaultWindowSize bounds the per-service sample ring. Once full,
	// the oldest sample is evicted.
	DefaultWindowSize = 1000
)

// SLAConfig holds the compliance thresholds for one service
type SLAConfig struct {
	P95LatencyMs        int
	ErrorRatePercent    float64
	AvailabilityPercent float64
}

// DefaultSLAConfig returns the thresholds used when a service has no
// dedicated configuration.
func DefaultSLAConfig() SLAConfig {
	return SLAConfig{
		P95LatencyMs:        5000,
		ErrorRatePercent:    10,
		AvailabilityPercent: 99,
	}
}

// Report is the outcome of one compliance check
type Report struct {
	Service             string    `json:"service"`
	Compliant           bool      `json:"compliant"`
	Violations          []string  `json:"violations,omitempty"`
	SampleCount         int       `json:"sample_count"`
	P95LatencyMs        float64   `json:"p95_latency_ms"`
	ErrorRatePercent    float64   `json:"error_rate_percent"`
	AvailabilityPercent float64   `json:"availability_percent"`
	CheckedAt           time.Time `json:"checked_at"`
}

// QueueDepthLevel classifies a queue-depth reading
type QueueDepthLevel string

const (
	QueueDepthOK       QueueDepthLevel = "ok"
	QueueDepthWarning  QueueDepthLevel = "warning"
	QueueDepthCritical QueueDepthLevel = "critical"
)

// QueueDepthReading is the outcome of one depth observation
type QueueDepthReading struct {
	Depth      int             `json:"depth"`
	Level      QueueDepthLevel `json:"level"`
	Message    string          `json:"message,omitempty"`
	ObservedAt time.Time       `json:"observed_at"`
}

type sample struct {
	latencyMs float64
	success   bool
}

// ring is a fixed-capacity sample buffer, oldest evicted first
type ring struct {
	samples []sample
	next    int
	full    bool
}

func newRing(capacity int) *ring {
	return &ring{samples: make([]sample, capacity)}
}

func (r *ring) add(s sample) {
	r.samples[r.next] = s
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.full = true
	}
}

func (r *ring) len() int {
	if r.full {
		return len(r.samples)
	}
	return r.next
}

func (r *ring) snapshot() []sample {
	out := make([]sample, 0, r.len())
	if r.full {
		out = append(out, r.samples[r.next:]...)
	}
	out = append(out, r.samples[:r.next]...)
	return out
}

// Config for the monitor
type Config struct {
	WindowSize           int
	QueueDepthAlert      int
	QueueDepthEscalation int
	Defaults             SLAConfig
}

// DefaultConfig returns monitoring defaults
func DefaultConfig() Config {
	return Config{
		WindowSize:           DefaultWindowSize,
		QueueDepthAlert:      50,
		QueueDepthEscalation: 100,
		Defaults:             DefaultSLAConfig(),
	}
}

// Validate checks config sanity
func (c Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("window size must be positive, got %d", c.WindowSize)
	}
	if c.QueueDepthAlert <= 0 {
		return fmt.Errorf("queue depth alert threshold must be positive, got %d", c.QueueDepthAlert)
	}
	if c.QueueDepthEscalation <= c.QueueDepthAlert {
		return fmt.Errorf("queue depth escalation threshold (%d) must exceed alert threshold (%d)",
			c.QueueDepthEscalation, c.QueueDepthAlert)
	}
	return nil
}

// Monitor tracks delivery outcomes per service and checks them against
// SLA thresholds. All methods are safe for concurrent use.
type Monitor struct {
	mu      sync.RWMutex
	config  Config
	rings   map[string]*ring
	slas    map[string]SLAConfig
	emitter *facts.Emitter
	logger  logging.Logger
	now     func() time.Time
}

// Option customizes a Monitor
type Option func(*Monitor)

// WithSLA sets dedicated thresholds for one service
func WithSLA(service string, sla SLAConfig) Option {
	return func(m *Monitor) {
		m.slas[service] = sla
	}
}

// New creates a monitor
func New(config Config, emitter *facts.Emitter, logger logging.Logger, opts ...Option) (*Monitor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if emitter == nil {
		emitter = facts.NewEmitter(nil, logger)
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	m := &Monitor{
		config:  config,
		rings:   make(map[string]*ring),
		slas:    make(map[string]SLAConfig),
		emitter: emitter,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Record appends one delivery outcome for a service and pushes the
// latency as a fact.
func (m *Monitor) Record(ctx context.Context, service string, latencyMs float64, success bool) {
	m.mu.Lock()
	r, ok := m.rings[service]
	if !ok {
		r = newRing(m.config.WindowSize)
		m.rings[service] = r
	}
	r.add(sample{latencyMs: latencyMs, success: success})
	m.mu.Unlock()

	m.emitter.Emit(ctx, facts.Fact{
		Scope:    service,
		FactType: "delivery_latency_ms",
		Value:    latencyMs,
		Metadata: map[string]interface{}{"success": success},
	})
}

// Check evaluates the current window for a service against its SLA. A
// service with no samples is compliant.
func (m *Monitor) Check(service string) Report {
	m.mu.RLock()
	sla, ok := m.slas[service]
	if !ok {
		sla = m.config.Defaults
	}
	var samples []sample
	if r, exists := m.rings[service]; exists {
		samples = r.snapshot()
	}
	m.mu.RUnlock()

	report := Report{
		Service:     service,
		Compliant:   true,
		SampleCount: len(samples),
		CheckedAt:   m.now().UTC(),
	}
	if len(samples) == 0 {
		report.AvailabilityPercent = 100
		return report
	}

	latencies := make([]float64, 0, len(samples))
	failures := 0
	for _, s := range samples {
		latencies = append(latencies, s.latencyMs)
		if !s.success {
			failures++
		}
	}

	report.P95LatencyMs = percentile(latencies, 95)
	report.ErrorRatePercent = float64(failures) / float64(len(samples)) * 100
	report.AvailabilityPercent = 100 - report.ErrorRatePercent

	if report.P95LatencyMs > float64(sla.P95LatencyMs) {
		report.Violations = append(report.Violations, fmt.Sprintf(
			"p95 latency %.0fms exceeds threshold %dms", report.P95LatencyMs, sla.P95LatencyMs))
	}
	if report.ErrorRatePercent > sla.ErrorRatePercent {
		report.Violations = append(report.Violations, fmt.Sprintf(
			"error rate %.1f%% exceeds threshold %.1f%%", report.ErrorRatePercent, sla.ErrorRatePercent))
	}
	if report.AvailabilityPercent < sla.AvailabilityPercent {
		report.Violations = append(report.Violations, fmt.Sprintf(
			"availability %.1f%% below floor %.1f%%", report.AvailabilityPercent, sla.AvailabilityPercent))
	}

	report.Compliant = len(report.Violations) == 0
	return report
}

// Services returns the names of every service with recorded samples
func (m *Monitor) Services() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.rings))
	for service := range m.rings {
		out = append(out, service)
	}
	sort.Strings(out)
	return out
}

// ObserveQueueDepth classifies one queue-depth reading, logs a breach,
// and records the reading as a fact whether or not it breached.
func (m *Monitor) ObserveQueueDepth(ctx context.Context, depth int) QueueDepthReading {
	reading := QueueDepthReading{
		Depth:      depth,
		Level:      QueueDepthOK,
		ObservedAt: m.now().UTC(),
	}

	switch {
	case depth >= m.config.QueueDepthEscalation:
		reading.Level = QueueDepthCritical
		reading.Message = fmt.Sprintf("queue depth %d at or above escalation threshold %d",
			depth, m.config.QueueDepthEscalation)
	case depth >= m.config.QueueDepthAlert:
		reading.Level = QueueDepthWarning
		reading.Message = fmt.Sprintf("queue depth %d at or above alert threshold %d",
			depth, m.config.QueueDepthAlert)
	}

	if reading.Level != QueueDepthOK {
		m.logger.Warn("Queue depth threshold breached",
			logging.Field{Key: "depth", Value: depth},
			logging.Field{Key: "level", Value: string(reading.Level)},
		)
	}

	m.emitter.Emit(ctx, facts.Fact{
		Scope:    "queue",
		FactType: "queue_depth",
		Value:    float64(depth),
		Metadata: map[string]interface{}{"level": string(reading.Level)},
	})

	return reading
}

// percentile returns the pth percentile of values using nearest-rank on
// a sorted copy.
func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := int(float64(len(sorted))*p/100+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
