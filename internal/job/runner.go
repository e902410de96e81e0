package job

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tbaxter/sitescribe/internal/scheduler"
)

// heartbeatEvery is how often a running job refreshes its liveness stamp.
// It must stay well under the store's stale grace period.
const heartbeatEvery = 10 * time.Second

// RunFunc executes the actual crawl for a job.
type RunFunc func(ctx context.Context) scheduler.Result

// Runner executes one job in the current process: it owns the record's
// running and terminal transitions, keeps the heartbeat fresh, and turns
// SIGTERM/SIGINT into cooperative cancellation.
type Runner struct {
	store  *Store
	logger *zap.Logger
	// ticks the heartbeat; overridable in tests.
	interval time.Duration
}

// NewRunner builds a Runner.
func NewRunner(store *Store, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{store: store, logger: logger, interval: heartbeatEvery}
}

// Run executes the job and returns its final record. Cancellation is not
// an error: a signalled job drains in-flight work and ends stopped, which
// is distinct from failed.
func (r *Runner) Run(ctx context.Context, id string, run RunFunc) (Record, error) {
	rec, err := r.store.Update(id, func(rec *Record) error {
		rec.Status = StatusRunning
		rec.PID = os.Getpid()
		rec.StartTime = time.Now()
		rec.Heartbeat = time.Now()
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	r.logger.Info("job running",
		zap.String("job_id", rec.ID),
		zap.Int("pid", rec.PID),
		zap.Strings("urls", rec.Config.URLs))

	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stopSignals()

	heartbeatDone := make(chan struct{})
	heartbeatExited := make(chan struct{})
	go func() {
		defer close(heartbeatExited)
		r.heartbeat(id, heartbeatDone)
	}()

	result := run(ctx)

	// The heartbeat must be fully quiesced before the terminal write, or
	// an in-flight refresh could resurrect the running status.
	close(heartbeatDone)
	<-heartbeatExited
	cancelled := ctx.Err() != nil
	stopSignals()

	final, err := r.store.Update(id, func(rec *Record) error {
		now := time.Now()
		rec.EndTime = &now
		rec.Result = &result
		switch {
		case cancelled:
			rec.Status = StatusStopped
		case result.Failed():
			rec.Status = StatusFailed
			rec.Error = "no pages were successfully processed"
		default:
			rec.Status = StatusCompleted
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	r.logger.Info("job finished",
		zap.String("job_id", final.ID),
		zap.String("status", string(final.Status)),
		zap.Int("total_pages", result.TotalPages),
		zap.String("duration", FormatDuration(final.Duration())))
	return final, nil
}

// heartbeat refreshes the record's liveness stamp until done closes. A
// failed write is not fatal; the next tick retries.
func (r *Runner) heartbeat(id string, done <-chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if _, err := r.store.Update(id, func(rec *Record) error {
				rec.Heartbeat = time.Now()
				return nil
			}); err != nil {
				r.logger.Warn("heartbeat update failed", zap.String("job_id", id), zap.Error(err))
			}
		}
	}
}
