// Package coordinator holds the periodic fetch jobs. Each job is bound to one
// JSON resource and keeps the last good payload for sensors to read.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is how often the scheduler refreshes a job.
const DefaultInterval = 10 * time.Minute

// ErrNotReady is returned by FirstRefresh when no payload could be obtained.
var ErrNotReady = errors.New("first refresh failed")

// State is the refresh state of a job.
type State int

const (
	StateUninitialized State = iota
	StateRefreshing
	StateReady
	StateFailed
	// StateEmpty marks an optional resource that does not exist.
	StateEmpty
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRefreshing:
		return "refreshing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateEmpty:
		return "empty"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Coordinator is what the scheduler runs and what sensors read from.
type Coordinator interface {
	Name() string
	Interval() time.Duration
	Refresh(ctx context.Context) error
	LastPayload() json.RawMessage
	LastError() error
	LastSuccess() time.Time
	State() State
}

// FetchFunc obtains a fresh payload. Returning ErrEmpty moves the job to
// StateEmpty instead of StateFailed.
type FetchFunc func(ctx context.Context) (json.RawMessage, error)

// ErrEmpty is returned by a FetchFunc for an optional resource that is absent.
var ErrEmpty = errors.New("resource not available")

// base carries the state machine shared by every job kind.
type base struct {
	name     string
	interval time.Duration
	fetch    FetchFunc
	logger   *slog.Logger

	mu          sync.RWMutex
	state       State
	payload     json.RawMessage
	err         error
	lastSuccess time.Time
}

func newBase(name string, interval time.Duration, fetch FetchFunc, logger *slog.Logger) *base {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &base{
		name:     name,
		interval: interval,
		fetch:    fetch,
		logger:   logger.With("job", name),
	}
}

func (b *base) Name() string            { return b.name }
func (b *base) Interval() time.Duration { return b.interval }

func (b *base) LastPayload() json.RawMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.payload
}

func (b *base) LastError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.err
}

func (b *base) LastSuccess() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastSuccess
}

func (b *base) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Refresh fetches a new payload. On failure the previous payload is kept and
// the error is recorded and returned.
func (b *base) Refresh(ctx context.Context) error {
	b.mu.Lock()
	b.state = StateRefreshing
	b.mu.Unlock()

	payload, err := b.fetch(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case errors.Is(err, ErrEmpty):
		b.state = StateEmpty
		b.payload = nil
		b.err = nil
		b.logger.Debug("optional resource not available")
		return nil
	case err != nil:
		b.state = StateFailed
		b.err = err
		b.logger.Error("refresh failed", "error", err, "has_payload", b.payload != nil)
		return err
	}
	b.state = StateReady
	b.payload = payload
	b.err = nil
	b.lastSuccess = time.Now()
	return nil
}

// FirstRefresh runs the initial refresh of c. It fails with ErrNotReady when
// c ends up without a payload; consumers must not be created in that case.
// An optional resource that turns out empty is not an error.
func FirstRefresh(ctx context.Context, c Coordinator) error {
	err := c.Refresh(ctx)
	if c.State() == StateEmpty {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotReady, c.Name(), err)
	}
	if c.LastPayload() == nil {
		return fmt.Errorf("%w: %s: no payload", ErrNotReady, c.Name())
	}
	return nil
}
