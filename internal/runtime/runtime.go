// Package runtime wires the bus, scheduler, router, transform
// pipeline, delivery stage, module registry, logger manager and HTTP
// surface into the single running process described in §4: the
// runtime is the only component that knows about all the others.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/orgloop/orgloop/internal/bus"
	"github.com/orgloop/orgloop/internal/checkpoint"
	"github.com/orgloop/orgloop/internal/clock"
	"github.com/orgloop/orgloop/internal/config"
	"github.com/orgloop/orgloop/internal/httpapi"
	"github.com/orgloop/orgloop/internal/metrics"
	"github.com/orgloop/orgloop/internal/module"
	"github.com/orgloop/orgloop/internal/obslog"
	"github.com/orgloop/orgloop/internal/plugin"
	"github.com/orgloop/orgloop/internal/schedule"
)

const defaultPollInterval = 60 * time.Second

// DeliveryEvent is published on the delivery observer channel (§4.10)
// after every delivery attempt, success or failure.
type DeliveryEvent struct {
	Module    string
	Route     string
	EventID   string
	Success   bool
	Error     string
	Timestamp time.Time
}

// Options configures a Runtime.
type Options struct {
	HTTPAddr        string // loopback address for webhooks + control API
	Metrics         *metrics.Metrics
	CheckpointStore checkpoint.Store // defaults to checkpoint.NewMemory() per module if nil
	Logger          *slog.Logger
}

// Runtime owns every loaded module and the shared infrastructure
// (bus, scheduler, HTTP surface, logger fan-out) they run against.
type Runtime struct {
	mu       sync.RWMutex
	registry *module.Registry
	bus      bus.Bus
	sched    *schedule.Scheduler
	loggers  *obslog.Manager
	http     *httpapi.Server
	metrics  *metrics.Metrics
	log      *slog.Logger

	checkpointStore checkpoint.Store

	// resources saved per module name so ReloadModule can rebuild the
	// instance without the caller re-supplying connector instances.
	resources map[string]module.Resources

	watchers map[string]*module.ScriptWatcher

	observers   []chan DeliveryEvent
	observersMu sync.Mutex

	startedAt time.Time
	stopOnce  sync.Once
	stopped   chan struct{}
}

// New builds a Runtime. The bus defaults to an in-memory store; callers
// that want WAL durability pass one in via WithBus after construction,
// before Start.
func New(opts Options) *Runtime {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := &Runtime{
		registry:        module.NewRegistry(),
		bus:             bus.NewMemoryBus(),
		sched:           schedule.New(),
		loggers:         obslog.NewManager(),
		metrics:         opts.Metrics,
		log:             opts.Logger,
		checkpointStore: opts.CheckpointStore,
		resources:       make(map[string]module.Resources),
		watchers:        make(map[string]*module.ScriptWatcher),
		stopped:         make(chan struct{}),
	}
	r.http = httpapi.New(opts.HTTPAddr, r.injectWebhookEvent, r)
	return r
}

// WithBus replaces the runtime's event bus. Must be called before Start.
func (r *Runtime) WithBus(b bus.Bus) { r.bus = b }

// Start begins scheduling polling sources for every already-loaded
// module and starts the HTTP surface (webhooks + control API).
func (r *Runtime) Start(ctx context.Context) error {
	r.startedAt = time.Now().UTC()
	r.sched.Start(r.onScheduledTick)
	r.logEntry(plugin.Entry{Phase: plugin.PhaseRuntimeStart, Timestamp: nowRFC3339()})
	r.logEntry(plugin.Entry{Phase: plugin.PhaseSystemStart, Timestamp: nowRFC3339()})
	if err := r.http.Start(); err != nil {
		return fmt.Errorf("runtime: start http surface: %w", err)
	}
	return nil
}

// Stop shuts down every active module, the scheduler, and the HTTP
// surface.
func (r *Runtime) Stop(ctx context.Context) error {
	var stopErr error
	r.stopOnce.Do(func() {
		r.logEntry(plugin.Entry{Phase: plugin.PhaseSystemStop, Timestamp: nowRFC3339()})
		r.logEntry(plugin.Entry{Phase: plugin.PhaseRuntimeStop, Timestamp: nowRFC3339()})
		r.sched.Stop()

		r.mu.RLock()
		instances := r.registry.List()
		r.mu.RUnlock()

		for _, inst := range instances {
			if err := inst.Shutdown(ctx); err != nil {
				r.log.Error("module shutdown error", "module", inst.Name(), "error", err)
			}
		}

		r.loggers.Shutdown(ctx)
		if err := r.http.Shutdown(ctx); err != nil {
			stopErr = err
		}
		if err := r.bus.Close(); err != nil && stopErr == nil {
			stopErr = err
		}
		close(r.stopped)
	})
	return stopErr
}

// Done returns a channel closed once Stop has completed.
func (r *Runtime) Done() <-chan struct{} { return r.stopped }

// Subscribe returns a channel of delivery outcomes. The channel is
// buffered and dropped sends are swallowed rather than blocking
// delivery — a slow subscriber must not stall the pipeline.
func (r *Runtime) Subscribe() <-chan DeliveryEvent {
	ch := make(chan DeliveryEvent, 64)
	r.observersMu.Lock()
	r.observers = append(r.observers, ch)
	r.observersMu.Unlock()
	return ch
}

func (r *Runtime) publishDelivery(ev DeliveryEvent) {
	r.observersMu.Lock()
	defer r.observersMu.Unlock()
	for _, ch := range r.observers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (r *Runtime) checkpointsFor(name string) checkpoint.Store {
	if r.checkpointStore != nil {
		return r.checkpointStore
	}
	return checkpoint.NewMemory()
}

func (r *Runtime) logEntry(e plugin.Entry) {
	r.loggers.Log(context.Background(), e)
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func pollIntervalFor(src config.SourceInstance, defaults *config.Defaults) (time.Duration, error) {
	raw := ""
	if src.Poll != nil && src.Poll.Interval != "" {
		raw = src.Poll.Interval
	} else if defaults != nil && defaults.PollInterval != "" {
		raw = defaults.PollInterval
	}
	if raw == "" {
		return defaultPollInterval, nil
	}
	return clock.ParseDuration(raw)
}
