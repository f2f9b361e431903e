package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/socialx/agent/internal/metrics"
)

// Trigger is one periodic behavior. A disabled trigger keeps ticking but
// its body is skipped, so flags can flip at runtime without restarting.
type Trigger struct {
	Name     string
	Interval time.Duration
	Enabled  func() bool
	Run      func(ctx context.Context) error
}

// Scheduler runs a set of triggers, each on its own ticker goroutine.
// Triggers are isolated: a panic or error in one never disturbs another,
// and an in-flight run is allowed to finish during Stop.
type Scheduler struct {
	triggers  []Trigger
	collector *metrics.Collector
	logger    *slog.Logger
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewScheduler creates a scheduler over the given triggers.
func NewScheduler(triggers []Trigger, collector *metrics.Collector, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		triggers:  triggers,
		collector: collector,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start launches all trigger loops. Each trigger fires once immediately,
// then on its interval.
func (s *Scheduler) Start(ctx context.Context) {
	for _, trigger := range s.triggers {
		s.wg.Add(1)
		go s.runLoop(ctx, trigger)
	}
	s.logger.Info("scheduler started", "triggers", len(s.triggers))
}

// Stop signals all trigger loops to exit and waits for in-flight runs to
// finish.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runLoop(ctx context.Context, trigger Trigger) {
	defer s.wg.Done()

	ticker := time.NewTicker(trigger.Interval)
	defer ticker.Stop()

	s.logger.Info("trigger loop started",
		"trigger", trigger.Name,
		"interval", trigger.Interval)

	s.fire(ctx, trigger)

	for {
		select {
		case <-ticker.C:
			s.fire(ctx, trigger)
		case <-s.stopChan:
			s.logger.Info("trigger loop stopped", "trigger", trigger.Name)
			return
		case <-ctx.Done():
			s.logger.Info("trigger loop stopped by context", "trigger", trigger.Name)
			return
		}
	}
}

// fire runs one trigger iteration behind a recover boundary.
func (s *Scheduler) fire(ctx context.Context, trigger Trigger) {
	if trigger.Enabled != nil && !trigger.Enabled() {
		s.logger.Debug("trigger disabled, skipping", "trigger", trigger.Name)
		s.collector.RecordTriggerRun(trigger.Name, "disabled")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("trigger panicked",
				"trigger", trigger.Name,
				"panic", r)
			s.collector.RecordTriggerRun(trigger.Name, "panic")
		}
	}()

	start := time.Now()
	if err := trigger.Run(ctx); err != nil {
		s.logger.Error("trigger run failed",
			"trigger", trigger.Name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		s.collector.RecordTriggerRun(trigger.Name, "error")
		return
	}

	s.collector.RecordTriggerRun(trigger.Name, "success")
	s.logger.Debug("trigger run complete",
		"trigger", trigger.Name,
		"duration_ms", time.Since(start).Milliseconds())
}
