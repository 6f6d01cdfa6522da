package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/web3-frozen/helium-monitor/internal/coordinator"
	"github.com/web3-frozen/helium-monitor/internal/metrics"
	"github.com/web3-frozen/helium-monitor/internal/sensor"
)

// ErrAlreadyConfigured is returned when an entry with the same ID exists.
var ErrAlreadyConfigured = errors.New("already configured")

// ErrDuplicateSensor is returned when an entry would create a sensor whose
// unique ID another entry already uses, e.g. two wallets sharing the first
// four address characters.
var ErrDuplicateSensor = errors.New("sensor id already in use")

// ErrNotFound is returned by Remove for an unknown entry ID.
var ErrNotFound = errors.New("entry not found")

// Scheduler runs job refreshes. *monitor.Engine implements it.
type Scheduler interface {
	Register(job coordinator.Coordinator) error
	RegisterManual(job coordinator.Coordinator) error
	Unregister(name string)
}

// Registry owns the running instances.
type Registry struct {
	deps   Deps
	sched  Scheduler
	logger *slog.Logger

	mu        sync.RWMutex
	instances map[string]*Instance
	order     []string
	// pending holds expected entries that are not set up yet.
	pending map[string]bool
}

func NewRegistry(deps Deps, sched Scheduler) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		deps:      deps,
		sched:     sched,
		logger:    logger,
		instances: make(map[string]*Instance),
		pending:   make(map[string]bool),
	}
}

// Expect records entries that must be set up before the registry is ready.
func (r *Registry) Expect(entries ...Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		if _, ok := r.instances[e.ID()]; !ok {
			r.pending[e.ID()] = true
		}
	}
}

// Pending returns the IDs of expected entries that are not set up yet.
func (r *Registry) Pending() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.pending))
	for id := range r.pending {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Ready reports whether every expected entry is set up and every job that
// is not empty holds a payload.
func (r *Registry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.pending) > 0 {
		return false
	}
	for _, inst := range r.instances {
		jobs := append(append([]coordinator.Coordinator{}, inst.scheduled...), inst.manual...)
		for _, job := range jobs {
			if job.State() != coordinator.StateEmpty && job.LastPayload() == nil {
				return false
			}
		}
	}
	return true
}

// Add sets up entry and schedules its jobs.
func (r *Registry) Add(ctx context.Context, entry Entry) (*Instance, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	id := entry.ID()

	r.mu.RLock()
	_, exists := r.instances[id]
	r.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("%s: %w", id, ErrAlreadyConfigured)
	}

	inst, err := Setup(ctx, entry, r.deps)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Lost a race with a concurrent Add of the same entry.
	if _, ok := r.instances[id]; ok {
		_ = inst.Close()
		return nil, fmt.Errorf("%s: %w", id, ErrAlreadyConfigured)
	}
	if uid, ok := r.sensorConflict(inst); ok {
		_ = inst.Close()
		r.logger.Error("entry rejected", "entry", id, "sensor", uid)
		return nil, fmt.Errorf("%s: %w: %s", id, ErrDuplicateSensor, uid)
	}
	if err := r.schedule(inst); err != nil {
		r.unschedule(inst)
		_ = inst.Close()
		return nil, fmt.Errorf("schedule %s: %w", id, err)
	}
	r.instances[id] = inst
	r.order = append(r.order, id)
	delete(r.pending, id)
	r.updateMetrics()
	return inst, nil
}

// Remove unschedules and releases the entry with the given ID.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	r.unschedule(inst)
	delete(r.instances, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.updateMetrics()

	if err := inst.Close(); err != nil {
		return fmt.Errorf("close %s: %w", id, err)
	}
	r.logger.Info("entry removed", "entry", id)
	return nil
}

// Close removes every entry.
func (r *Registry) Close() error {
	var errs []error
	for _, inst := range r.List() {
		if err := r.Remove(inst.ID()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// List returns the instances in the order they were added.
func (r *Registry) List() []*Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Instance, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.instances[id])
	}
	return out
}

func (r *Registry) Get(id string) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	return inst, ok
}

// Sensors returns the sensors of every instance.
func (r *Registry) Sensors() []*sensor.Sensor {
	var out []*sensor.Sensor
	for _, inst := range r.List() {
		out = append(out, inst.Sensors()...)
	}
	return out
}

// Sensor looks a sensor up by unique ID.
func (r *Registry) Sensor(uniqueID string) (*sensor.Sensor, bool) {
	for _, s := range r.Sensors() {
		if s.UniqueID == uniqueID {
			return s, true
		}
	}
	return nil, false
}

// sensorConflict must be called with r.mu held.
func (r *Registry) sensorConflict(inst *Instance) (string, bool) {
	used := make(map[string]bool)
	for _, other := range r.instances {
		for _, s := range other.sensors {
			used[s.UniqueID] = true
		}
	}
	for _, s := range inst.sensors {
		if used[s.UniqueID] {
			return s.UniqueID, true
		}
		used[s.UniqueID] = true
	}
	return "", false
}

func (r *Registry) schedule(inst *Instance) error {
	if r.sched == nil {
		return nil
	}
	for _, job := range inst.ScheduledJobs() {
		if err := r.sched.Register(job); err != nil {
			return err
		}
	}
	for _, job := range inst.ManualJobs() {
		if err := r.sched.RegisterManual(job); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) unschedule(inst *Instance) {
	if r.sched == nil {
		return
	}
	for _, job := range inst.ScheduledJobs() {
		r.sched.Unregister(job.Name())
	}
	for _, job := range inst.ManualJobs() {
		r.sched.Unregister(job.Name())
	}
}

// updateMetrics must be called with r.mu held.
func (r *Registry) updateMetrics() {
	counts := map[Kind]int{KindStats: 0, KindPrice: 0, KindWallet: 0}
	sensors := 0
	for _, inst := range r.instances {
		counts[inst.Entry.Integration]++
		sensors += len(inst.sensors)
	}
	for kind, n := range counts {
		metrics.EntriesConfigured.WithLabelValues(string(kind)).Set(float64(n))
	}
	metrics.SensorsRegistered.Set(float64(sensors))
}
