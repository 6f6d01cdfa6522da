package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/web3-frozen/helium-monitor/internal/backend"
	"github.com/web3-frozen/helium-monitor/internal/coordinator"
	"github.com/web3-frozen/helium-monitor/internal/sensor"
)

// Deps are the shared resources an instance is built from.
type Deps struct {
	// Backend sends requests to the backend proxy base URL.
	Backend    backend.Requester
	BackendKey string
	// Prices sends requests to the price API endpoint.
	Prices   coordinator.Requester
	Currency string
	CacheTTL time.Duration
	Interval time.Duration
	// NewStore returns the cache store for a new backend client. Nil means
	// an in-memory store.
	NewStore func() (backend.Store, error)
	Logger   *slog.Logger
}

// Instance is a running entry.
type Instance struct {
	Entry Entry

	client    *backend.Client
	scheduled []coordinator.Coordinator
	manual    []coordinator.Coordinator
	sensors   []*sensor.Sensor
}

func (i *Instance) ID() string    { return i.Entry.ID() }
func (i *Instance) Title() string { return i.Entry.Title() }

// ScheduledJobs are refreshed every interval.
func (i *Instance) ScheduledJobs() []coordinator.Coordinator { return i.scheduled }

// ManualJobs are only refreshed on demand.
func (i *Instance) ManualJobs() []coordinator.Coordinator { return i.manual }

func (i *Instance) Sensors() []*sensor.Sensor { return i.sensors }

// Close releases the instance's backend client.
func (i *Instance) Close() error {
	if i.client == nil {
		return nil
	}
	return i.client.Close()
}

// Setup builds the instance for entry and runs the first refresh of each of
// its jobs. It fails, releasing everything it created, when a required job
// gets no payload.
func Setup(ctx context.Context, entry Entry, deps Deps) (*Instance, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("entry", entry.ID())

	inst := &Instance{Entry: entry}
	jobOpts := []coordinator.Option{coordinator.WithInterval(deps.Interval), coordinator.WithLogger(logger)}

	var err error
	switch entry.Integration {
	case KindStats:
		err = setupStats(ctx, inst, deps, logger, jobOpts)
	case KindPrice:
		err = setupPrice(ctx, inst, deps, logger, jobOpts)
	case KindWallet:
		err = setupWallet(ctx, inst, deps, logger, jobOpts)
	default:
		err = fmt.Errorf("unsupported integration %q", entry.Integration)
	}
	if err != nil {
		if cerr := inst.Close(); cerr != nil {
			logger.Warn("close backend client", "error", cerr)
		}
		return nil, fmt.Errorf("setup %s: %w", entry.ID(), err)
	}

	logger.Info("entry set up",
		"jobs", len(inst.scheduled)+len(inst.manual),
		"sensors", len(inst.sensors),
	)
	return inst, nil
}

func newBackendClient(deps Deps, logger *slog.Logger) (*backend.Client, error) {
	if deps.Backend == nil {
		return nil, errors.New("no backend requester configured")
	}
	opts := []backend.Option{backend.WithLogger(logger)}
	if deps.CacheTTL > 0 {
		opts = append(opts, backend.WithTTL(deps.CacheTTL))
	}
	if deps.NewStore != nil {
		store, err := deps.NewStore()
		if err != nil {
			return nil, fmt.Errorf("cache store: %w", err)
		}
		opts = append(opts, backend.WithStore(store))
	}
	return backend.New(deps.Backend, deps.BackendKey, opts...), nil
}

func setupStats(ctx context.Context, inst *Instance, deps Deps, logger *slog.Logger, opts []coordinator.Option) error {
	client, err := newBackendClient(deps, logger)
	if err != nil {
		return err
	}
	inst.client = client

	job := coordinator.NewStatsJob(client, opts...)
	if err := coordinator.FirstRefresh(ctx, job); err != nil {
		return err
	}
	inst.scheduled = append(inst.scheduled, job)
	inst.sensors = append(inst.sensors, sensor.StatsSensors(job, logger)...)
	return nil
}

func setupPrice(ctx context.Context, inst *Instance, deps Deps, logger *slog.Logger, opts []coordinator.Option) error {
	if deps.Prices == nil {
		return errors.New("no price requester configured")
	}
	job := coordinator.NewPriceJob(deps.Prices, deps.Currency, opts...)
	if err := coordinator.FirstRefresh(ctx, job); err != nil {
		return err
	}
	inst.scheduled = append(inst.scheduled, job)
	inst.sensors = append(inst.sensors, sensor.PriceSensors(job, coordinator.TokenIDs, job.Currency(), logger)...)
	return nil
}

// setupWallet requires the wallet balance. Hotspot rewards are skipped when
// their first refresh fails; staking rewards are best-effort and never
// scheduled.
func setupWallet(ctx context.Context, inst *Instance, deps Deps, logger *slog.Logger, opts []coordinator.Option) error {
	client, err := newBackendClient(deps, logger)
	if err != nil {
		return err
	}
	inst.client = client
	address := inst.Entry.Wallet

	wallet := coordinator.NewWalletJob(client, address, opts...)
	if err := coordinator.FirstRefresh(ctx, wallet); err != nil {
		return err
	}
	inst.scheduled = append(inst.scheduled, wallet)
	inst.sensors = append(inst.sensors, sensor.WalletSensors(wallet, address, logger)...)

	hotspot := coordinator.NewHotspotJob(client, address, opts...)
	if err := coordinator.FirstRefresh(ctx, hotspot); err != nil {
		logger.Warn("hotspot rewards unavailable, skipping hotspot sensors", "error", err)
	} else {
		inst.scheduled = append(inst.scheduled, hotspot)
		inst.sensors = append(inst.sensors, sensor.HotspotSensors(hotspot, address, hotspot.LastPayload(), logger)...)
	}

	staking := coordinator.NewStakingJob(client, address, opts...)
	switch err := coordinator.FirstRefresh(ctx, staking); {
	case err != nil:
		logger.Warn("staking rewards unavailable, skipping staking sensors", "error", err)
	case staking.State() == coordinator.StateEmpty:
		logger.Debug("no staking positions")
	default:
		inst.manual = append(inst.manual, staking)
		inst.sensors = append(inst.sensors, sensor.StakingSensors(staking, address, staking.LastPayload(), logger)...)
	}
	return nil
}
