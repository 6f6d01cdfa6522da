package monitor

import (
	"log/slog"
	"time"

	"github.com/web3-frozen/helium-monitor/internal/coordinator"
)

// JobStatus is a point-in-time view of one registered job.
type JobStatus struct {
	Name        string            `json:"name"`
	Interval    string            `json:"interval"`
	Scheduled   bool              `json:"scheduled"`
	State       coordinator.State `json:"state"`
	HasPayload  bool              `json:"has_payload"`
	LastSuccess *time.Time        `json:"last_success,omitempty"`
	LastError   string            `json:"last_error,omitempty"`
	NextRun     *time.Time        `json:"next_run,omitempty"`
}

func statusOf(job coordinator.Coordinator, scheduled bool, next time.Time) JobStatus {
	st := JobStatus{
		Name:       job.Name(),
		Interval:   job.Interval().String(),
		Scheduled:  scheduled,
		State:      job.State(),
		HasPayload: job.LastPayload() != nil,
	}
	if ts := job.LastSuccess(); !ts.IsZero() {
		st.LastSuccess = &ts
	}
	if err := job.LastError(); err != nil {
		st.LastError = err.Error()
	}
	if !next.IsZero() {
		st.NextRun = &next
	}
	return st
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
