package worker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/troublesprouter/freight-crm/internal/infra/http/middleware"
	"github.com/troublesprouter/freight-crm/internal/infra/queue"
	"github.com/troublesprouter/freight-crm/internal/logs"
	"github.com/troublesprouter/freight-crm/internal/usecase"
)

// Sweeper is the inactivity sweep use case.
type Sweeper interface {
	Execute(ctx context.Context, now time.Time) (*usecase.SweepReport, error)
}

// InactivityRunner runs the sweep for every trigger (ticker, cron endpoint,
// CLI, queue) and takes care of logging, metrics and lead.inactive events.
// Runs are serialized within the process.
type InactivityRunner struct {
	Sweep  Sweeper
	Events queue.EventPublisher

	mu sync.Mutex
}

func NewInactivityRunner(sweep Sweeper, events queue.EventPublisher) *InactivityRunner {
	if events == nil {
		events = queue.NopPublisher{}
	}
	return &InactivityRunner{Sweep: sweep, Events: events}
}

func (r *InactivityRunner) Run(ctx context.Context, trigger string, now time.Time) (*usecase.SweepReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := logs.Logger.WithFields(logrus.Fields{"trigger": trigger, "now": now.Format(time.RFC3339)})
	log.Info("🕒 inactivity sweep started")

	report, err := r.Sweep.Execute(ctx, now)
	if report == nil {
		middleware.RecordSweepRun("error")
		log.WithError(err).Error("❌ inactivity sweep failed")
		return nil, err
	}

	for trig, n := range report.TasksCreated() {
		middleware.RecordSweepTasks(string(trig), n)
	}

	for _, lead := range report.Demoted {
		owner := ""
		if lead.OwnerRepID != nil {
			owner = *lead.OwnerRepID
		}
		if pubErr := r.Events.PublishLeadEvent(ctx, queue.NewLeadEvent(queue.LeadInactive, lead, owner)); pubErr != nil {
			middleware.RecordEventPublishError()
			log.WithError(pubErr).WithField("lead", lead.ID).Warn("failed to publish lead.inactive")
		}
	}

	fields := logrus.Fields{
		"organizations":     report.Organizations,
		"moved_to_inactive": report.MovedToInactive,
		"warning_tasks":     report.WarningTasks,
		"no_contact_tasks":  report.NoContactTasks,
		"refreshed":         report.Refreshed,
		"notify_failures":   report.NotifyFailures,
	}
	if err != nil {
		middleware.RecordSweepRun("partial")
		for _, f := range report.Failed {
			log.WithField("organization", f.OrganizationID).Error(f.Error)
		}
		log.WithFields(fields).Warn("⚠️ inactivity sweep finished with failures")
		return report, err
	}

	middleware.RecordSweepRun("ok")
	log.WithFields(fields).Info("✅ inactivity sweep finished")
	return report, nil
}

// InactivityWorker triggers the sweep on a fixed interval.
type InactivityWorker struct {
	runner       queue.SweepRunner
	tickInterval time.Duration
	now          func() time.Time
}

func NewInactivityWorker(runner queue.SweepRunner, interval time.Duration) *InactivityWorker {
	return &InactivityWorker{
		runner:       runner,
		tickInterval: interval,
		now:          time.Now,
	}
}

// Start sweeps once immediately, then on every tick until ctx is done.
func (w *InactivityWorker) Start(ctx context.Context) {
	logs.Logger.Infof("🕒 inactivity worker started (every %s)", w.tickInterval)

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			logs.Logger.Info("inactivity worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *InactivityWorker) runOnce(ctx context.Context) {
	// Errors are logged by the runner
	_, _ = w.runner.Run(ctx, "ticker", w.now())
}
