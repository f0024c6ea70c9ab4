package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	apperrors "webhook-relay/internal/common/errors"
	"webhook-relay/internal/common/logging"
	"webhook-relay/internal/dlq"
	"webhook-relay/internal/facts"
	"webhook-relay/internal/monitor"
	"webhook-relay/internal/ratelimit"
	"webhook-relay/internal/retry"
)

const (
	// relayName is the provenance identity sent on every outbound
	// request.
	relayName = "webhook-relay"

	maxResponseSnippet = 512
)

// Config for the forwarder
type Config struct {
	// Endpoint is the downstream receiver URL
	Endpoint string

	// ServiceName keys budget, rate-limit, and SLA bookkeeping
	ServiceName string

	// Timeout applies per attempt, not across the whole delivery
	Timeout time.Duration

	// Policy drives the retry engine
	Policy retry.Policy
}

// DefaultConfig returns forwarder defaults
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:    endpoint,
		ServiceName: "agent-sdk",
		Timeout:     10 * time.Second,
		Policy:      retry.DefaultPolicy(),
	}
}

// Validate checks the config
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	parsed, err := url.Parse(c.Endpoint)
	if err != nil || !parsed.IsAbs() {
		return fmt.Errorf("endpoint must be an absolute URL, got %q", c.Endpoint)
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return c.Policy.Validate()
}

// Result reports the outcome of one delivery
type Result struct {
	Success     bool `json:"success"`
	Attempts    int  `json:"attempts"`
	AgentStatus int  `json:"agent_status"`
}

// Forwarder delivers webhook payloads to the downstream receiver under
// rate limiting, a circuit breaker, and the retry engine. Failed
// deliveries are dead-lettered.
type Forwarder struct {
	config   Config
	client   *http.Client
	limiter  *ratelimit.Registry
	breaker  *gobreaker.CircuitBreaker
	budget   budgetRecorder
	monitor  *monitor.Monitor
	recorder *dlq.Recorder
	emitter  *facts.Emitter
	logger   logging.Logger
}

// budgetRecorder is the slice of the budget tracker the forwarder needs
type budgetRecorder interface {
	Record(service string, retries int)
}

// NewForwarder creates a delivery forwarder
func NewForwarder(
	config Config,
	limiter *ratelimit.Registry,
	budget budgetRecorder,
	mon *monitor.Monitor,
	recorder *dlq.Recorder,
	emitter *facts.Emitter,
	logger logging.Logger,
) (*Forwarder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if emitter == nil {
		emitter = facts.NewEmitter(nil, logger)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    config.ServiceName,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				logging.Field{Key: "service", Value: name},
				logging.Field{Key: "from", Value: from.String()},
				logging.Field{Key: "to", Value: to.String()},
			)
		},
	})

	return &Forwarder{
		config:   config,
		client:   &http.Client{},
		limiter:  limiter,
		breaker:  breaker,
		budget:   budget,
		monitor:  mon,
		recorder: recorder,
		emitter:  emitter,
		logger:   logger,
	}, nil
}

// Forward delivers one payload. It blocks on the rate limiter, retries
// retryable failures per the policy, and dead-letters the payload when
// every attempt is exhausted or the failure is terminal. The returned
// Result is populated even when err is non-nil.
func (f *Forwarder) Forward(ctx context.Context, source string, payload []byte) (*Result, error) {
	bucket := f.limiter.Get(f.config.ServiceName)
	if err := bucket.Acquire(ctx); err != nil {
		return &Result{}, apperrors.TransportError("rate limiter wait aborted", err)
	}

	start := time.Now()
	var agentStatus int

	attempts, err := retry.Execute(ctx, f.config.Policy, func(ctx context.Context) error {
		status, attemptErr := f.attempt(ctx, source, payload)
		if status > 0 {
			agentStatus = status
		}
		return attemptErr
	})

	latencyMs := float64(time.Since(start).Milliseconds())
	success := err == nil

	if f.budget != nil {
		// One logical delivery, attempts-1 retries burned from the budget.
		f.budget.Record(f.config.ServiceName, attempts-1)
	}
	if f.monitor != nil {
		f.monitor.Record(ctx, f.config.ServiceName, latencyMs, success)
	}

	result := &Result{
		Success:     success,
		Attempts:    attempts,
		AgentStatus: agentStatus,
	}

	if err != nil {
		f.logger.Error("Delivery failed", err,
			logging.Field{Key: "source", Value: source},
			logging.Field{Key: "endpoint", Value: f.config.Endpoint},
			logging.Field{Key: "attempts", Value: attempts},
			logging.Field{Key: "agent_status", Value: agentStatus},
		)
		f.deadLetter(ctx, source, payload, attempts, err)
		return result, err
	}

	f.logger.Info("Delivery succeeded",
		logging.Field{Key: "source", Value: source},
		logging.Field{Key: "attempts", Value: attempts},
		logging.Field{Key: "agent_status", Value: agentStatus},
		logging.Field{Key: "latency_ms", Value: latencyMs},
	)

	return result, nil
}

// attempt performs one POST under the circuit breaker and the
// per-attempt timeout. Returns the downstream status when a response
// was received.
func (f *Forwarder) attempt(ctx context.Context, source string, payload []byte) (int, error) {
	out, err := f.breaker.Execute(func() (interface{}, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, f.config.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return 0, apperrors.InternalError("failed to build forward request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Relay-Source", relayName)
		req.Header.Set("X-Webhook-Source", source)

		resp, err := f.client.Do(req)
		if err != nil {
			return 0, apperrors.TransportError("forward request failed", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSnippet))

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp.StatusCode, nil
		}

		statusErr := apperrors.FromHTTPStatus(resp.StatusCode, string(body))
		if resp.StatusCode == http.StatusTooManyRequests {
			if hint := parseRetryAfter(resp.Header.Get("Retry-After")); hint > 0 {
				statusErr = statusErr.WithRetryAfter(hint)
			}
		}
		return resp.StatusCode, statusErr
	})

	status, _ := out.(int)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return status, apperrors.TransportError("circuit breaker open", err)
	}
	return status, err
}

// deadLetter records the exhausted delivery and emits a failure fact.
// Neither may mask the delivery error.
func (f *Forwarder) deadLetter(ctx context.Context, source string, payload []byte, attempts int, deliveryErr error) {
	if f.recorder != nil {
		if err := f.recorder.Record(ctx, payload, attempts, deliveryErr, f.config.Endpoint); err != nil {
			f.logger.Error("Dead-letter write failed after delivery failure", err,
				logging.Field{Key: "source", Value: source},
			)
		}
	}

	f.emitter.Emit(ctx, facts.Fact{
		Scope:    f.config.ServiceName,
		FactType: "delivery_failed",
		Value:    float64(attempts),
		Metadata: map[string]interface{}{
			"source": source,
			"error":  deliveryErr.Error(),
		},
	})
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
