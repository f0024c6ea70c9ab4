package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"webhook-relay/internal/budget"
	"webhook-relay/internal/common/logging"
	"webhook-relay/internal/facts"
	"webhook-relay/internal/idempotency"
	"webhook-relay/internal/monitor"
)

const (
	sweepSchedule = "@hourly"
	scanSchedule  = "@every 1m"

	jobTimeout = 30 * time.Second
)

// Scheduler runs the relay's periodic maintenance: idempotency sweeps,
// retry-budget scans, and SLA compliance scans. Scan findings are
// pushed to the facts sink so the dashboard sees alerts without
// polling.
type Scheduler struct {
	cron    *cron.Cron
	store   *idempotency.Store
	tracker *budget.Tracker
	monitor *monitor.Monitor
	emitter *facts.Emitter
	logger  logging.Logger
}

// New creates a scheduler. Any collaborator may be nil; its jobs are
// skipped.
func New(
	store *idempotency.Store,
	tracker *budget.Tracker,
	mon *monitor.Monitor,
	emitter *facts.Emitter,
	logger logging.Logger,
) *Scheduler {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if emitter == nil {
		emitter = facts.NewEmitter(nil, logger)
	}
	return &Scheduler{
		cron:    cron.New(),
		store:   store,
		tracker: tracker,
		monitor: mon,
		emitter: emitter,
		logger:  logger,
	}
}

// Start registers the jobs and begins the cron loop
func (s *Scheduler) Start() error {
	if s.store != nil {
		if _, err := s.cron.AddFunc(sweepSchedule, s.sweepIdempotency); err != nil {
			return fmt.Errorf("failed to schedule idempotency sweep: %w", err)
		}
	}
	if s.tracker != nil {
		if _, err := s.cron.AddFunc(scanSchedule, s.scanBudgets); err != nil {
			return fmt.Errorf("failed to schedule budget scan: %w", err)
		}
	}
	if s.monitor != nil {
		if _, err := s.cron.AddFunc(scanSchedule, s.scanSLAs); err != nil {
			return fmt.Errorf("failed to schedule SLA scan: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) sweepIdempotency() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.store.Sweep(ctx); err != nil {
		s.logger.Warn("Idempotency sweep failed",
			logging.Field{Key: "error", Value: err.Error()},
		)
		return
	}
	s.logger.Debug("Idempotency sweep completed")
}

// scanBudgets emits a fact for every service whose retry budget is in
// warning or exhausted.
func (s *Scheduler) scanBudgets() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	for _, service := range s.tracker.Services() {
		status := s.tracker.Status(service)
		if !status.Warning && !status.Exhausted {
			continue
		}

		severity := "warning"
		if status.Exhausted {
			severity = "critical"
		}

		s.logger.Warn("Retry budget threshold reached",
			logging.Field{Key: "service", Value: service},
			logging.Field{Key: "severity", Value: severity},
			logging.Field{Key: "retries", Value: status.Retries},
			logging.Field{Key: "cap", Value: status.Cap},
		)

		s.emitter.Emit(ctx, facts.Fact{
			Scope:    service,
			FactType: "retry_budget_alert",
			Value:    float64(status.Retries),
			Metadata: map[string]interface{}{
				"severity":           severity,
				"cap":                status.Cap,
				"remaining":          status.Remaining,
				"retry_rate_percent": status.RetryRatePercent,
			},
		})
	}
}

// scanSLAs emits a fact for every non-compliant service
func (s *Scheduler) scanSLAs() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	for _, service := range s.monitor.Services() {
		report := s.monitor.Check(service)
		if report.Compliant {
			continue
		}

		s.logger.Warn("SLA violation detected",
			logging.Field{Key: "service", Value: service},
			logging.Field{Key: "violations", Value: report.Violations},
		)

		s.emitter.Emit(ctx, facts.Fact{
			Scope:    service,
			FactType: "sla_violation",
			Value:    float64(len(report.Violations)),
			Metadata: map[string]interface{}{
				"violations":           report.Violations,
				"p95_latency_ms":       report.P95LatencyMs,
				"error_rate_percent":   report.ErrorRatePercent,
				"availability_percent": report.AvailabilityPercent,
			},
		})
	}
}
