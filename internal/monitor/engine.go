package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/web3-frozen/helium-monitor/internal/coordinator"
	"github.com/web3-frozen/helium-monitor/internal/metrics"
)

var (
	ErrUnknownJob   = errors.New("unknown job")
	ErrDuplicateJob = errors.New("job already registered")
)

type registration struct {
	job     coordinator.Coordinator
	entryID cron.EntryID
	// scheduled is false for jobs that only refresh on demand.
	scheduled bool
}

// Engine schedules job refreshes. Every scheduled job runs on its own
// cron entry, so a slow refresh only delays that job's next tick.
type Engine struct {
	logger *slog.Logger
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	jobs map[string]*registration
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		logger: logger,
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*registration),
	}
}

// Register schedules job every job.Interval().
func (e *Engine) Register(job coordinator.Coordinator) error {
	return e.add(job, true)
}

// RegisterManual tracks job for status and RefreshNow without scheduling it.
func (e *Engine) RegisterManual(job coordinator.Coordinator) error {
	return e.add(job, false)
}

func (e *Engine) add(job coordinator.Coordinator, scheduled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	name := job.Name()
	if _, ok := e.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	reg := &registration{job: job, scheduled: scheduled}
	if scheduled {
		interval := job.Interval()
		if interval <= 0 {
			interval = coordinator.DefaultInterval
		}
		id, err := e.cron.AddFunc("@every "+interval.String(), func() {
			_ = e.poll(e.ctx, job)
		})
		if err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
		reg.entryID = id
	}
	e.jobs[name] = reg
	metrics.JobsRegistered.Set(float64(len(e.jobs)))
	e.logger.Info("registered job", "job", name, "interval", job.Interval(), "scheduled", scheduled)
	return nil
}

// Unregister stops scheduling the named job. Unknown names are ignored.
func (e *Engine) Unregister(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	reg, ok := e.jobs[name]
	if !ok {
		return
	}
	if reg.scheduled {
		e.cron.Remove(reg.entryID)
	}
	delete(e.jobs, name)
	metrics.JobsRegistered.Set(float64(len(e.jobs)))
	metrics.PollLastSuccess.DeleteLabelValues(name)
	e.logger.Info("unregistered job", "job", name)
}

// JobNames returns the registered job names in sorted order.
func (e *Engine) JobNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.jobs))
	for n := range e.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Job returns the named job.
func (e *Engine) Job(name string) (coordinator.Coordinator, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	reg, ok := e.jobs[name]
	if !ok {
		return nil, false
	}
	return reg.job, true
}

// RefreshNow runs the named job immediately on the caller's goroutine.
func (e *Engine) RefreshNow(ctx context.Context, name string) error {
	job, ok := e.Job(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return e.poll(ctx, job)
}

// Status reports every registered job, sorted by name.
func (e *Engine) Status() []JobStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]JobStatus, 0, len(e.jobs))
	for _, reg := range e.jobs {
		var next time.Time
		if reg.scheduled {
			next = e.cron.Entry(reg.entryID).Next
		}
		out = append(out, statusOf(reg.job, reg.scheduled, next))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run starts the scheduler and blocks until ctx is cancelled. Refreshes in
// flight are cancelled and awaited before Run returns.
func (e *Engine) Run(ctx context.Context) {
	e.cron.Start()
	e.logger.Info("scheduler started", "jobs", len(e.JobNames()))

	<-ctx.Done()

	e.cancel()
	<-e.cron.Stop().Done()
	e.logger.Info("scheduler stopped")
}

func (e *Engine) poll(ctx context.Context, job coordinator.Coordinator) error {
	name := job.Name()
	start := time.Now()
	err := job.Refresh(ctx)
	metrics.PollDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.PollTotal.WithLabelValues(name, "error").Inc()
	case job.State() == coordinator.StateEmpty:
		metrics.PollTotal.WithLabelValues(name, "empty").Inc()
	default:
		metrics.PollTotal.WithLabelValues(name, "ok").Inc()
		metrics.PollLastSuccess.WithLabelValues(name).Set(float64(job.LastSuccess().Unix()))
		e.logger.Debug("refreshed", "job", name, "duration", time.Since(start).Round(time.Millisecond))
	}
	return err
}
