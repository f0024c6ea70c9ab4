// Package budget tracks retry consumption per external service over a
// one-hour window. The budget is advisory: it feeds alerting and never
// blocks an in-flight delivery.
//
// The window resets wholesale once it ages out rather than sliding
// continuously, which produces a saw-tooth at window boundaries (a burst
// just before the reset and another just after can both fit under the
// cap). Accepted as a simplification; the facts trail keeps the history.
package budget

import (
	"sync"
	"time"
)

// DefaultWindow is the budget accounting period
const DefaultWindow = time.Hour

// DefaultCap is the per-service retry cap used when no override exists
const DefaultCap = 100

// warningFraction of the cap at which Status reports Warning
const warningFraction = 0.8

// Status is a point-in-time view of one service's budget window
type Status struct {
	Service          string    `json:"service"`
	Requests         int       `json:"requests"`
	Retries          int       `json:"retries"`
	RetryRatePercent float64   `json:"retry_rate_percent"`
	Cap              int       `json:"cap"`
	Remaining        int       `json:"remaining"`
	Warning          bool      `json:"warning"`
	Exhausted        bool      `json:"exhausted"`
	WindowStart      time.Time `json:"window_start"`
}

type window struct {
	requests    int
	retries     int
	windowStart time.Time
}

// Tracker maintains per-service retry budget windows
type Tracker struct {
	mu         sync.Mutex
	windows    map[string]*window
	caps       map[string]int
	defaultCap int
	windowSize time.Duration

	// now is swappable for tests
	now func() time.Time
}

// Option configures a Tracker
type Option func(*Tracker)

// WithCap sets a per-service retry cap
func WithCap(service string, cap int) Option {
	return func(t *Tracker) {
		t.caps[service] = cap
	}
}

// WithDefaultCap sets the cap applied to services without an override
func WithDefaultCap(cap int) Option {
	return func(t *Tracker) {
		t.defaultCap = cap
	}
}

// WithWindow sets the accounting window size
func WithWindow(d time.Duration) Option {
	return func(t *Tracker) {
		t.windowSize = d
	}
}

// NewTracker creates a retry budget tracker
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		windows:    make(map[string]*window),
		caps:       make(map[string]int),
		defaultCap: DefaultCap,
		windowSize: DefaultWindow,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record notes one logical delivery for a service. retries is the
// number of extra attempts the delivery consumed beyond the first, so a
// delivery that needed three attempts burns two retries from the budget.
func (t *Tracker) Record(service string, retries int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.windowLocked(service)
	w.requests++
	if retries > 0 {
		w.retries += retries
	}
}

// Status returns the current window's counters for a service
func (t *Tracker) Status(service string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.windowLocked(service)
	cap := t.capFor(service)

	remaining := cap - w.retries
	if remaining < 0 {
		remaining = 0
	}

	rate := 0.0
	if w.requests > 0 {
		rate = float64(w.retries) / float64(w.requests) * 100
	}

	return Status{
		Service:          service,
		Requests:         w.requests,
		Retries:          w.retries,
		RetryRatePercent: rate,
		Cap:              cap,
		Remaining:        remaining,
		Warning:          float64(w.retries) >= float64(cap)*warningFraction,
		Exhausted:        w.retries >= cap,
		WindowStart:      w.windowStart,
	}
}

// Services returns the names of all services seen in the current windows
func (t *Tracker) Services() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make([]string, 0, len(t.windows))
	for name := range t.windows {
		names = append(names, name)
	}
	return names
}

// windowLocked returns the live window for a service, resetting it
// wholesale when it has aged out. Caller must hold t.mu.
func (t *Tracker) windowLocked(service string) *window {
	now := t.now()

	w, ok := t.windows[service]
	if !ok {
		w = &window{windowStart: now}
		t.windows[service] = w
		return w
	}

	if now.Sub(w.windowStart) > t.windowSize {
		w.requests = 0
		w.retries = 0
		w.windowStart = now
	}
	return w
}

func (t *Tracker) capFor(service string) int {
	if cap, ok := t.caps[service]; ok {
		return cap
	}
	return t.defaultCap
}
