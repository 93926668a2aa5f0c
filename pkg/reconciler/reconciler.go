package reconciler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/envgate/pkg/config"
	"github.com/cuemby/envgate/pkg/events"
	"github.com/cuemby/envgate/pkg/log"
	"github.com/cuemby/envgate/pkg/membership"
	"github.com/cuemby/envgate/pkg/metrics"
	"github.com/cuemby/envgate/pkg/tracing"
	"github.com/cuemby/envgate/pkg/types"
	"github.com/rs/zerolog"
)

// Reconciliation triggers
const (
	TriggerStartup = "startup"
	TriggerEvent   = "event"
	TriggerResync  = "resync"
	TriggerManual  = "manual"
)

// DefaultResyncInterval is used when no interval is configured
const DefaultResyncInterval = 30 * time.Second

// ConfigSource provides the current configuration snapshot
type ConfigSource interface {
	Current() *config.Snapshot
}

// RosterSource provides the registered agents
type RosterSource interface {
	List() []*types.Agent
}

// Subscriber delivers change events
type Subscriber interface {
	Subscribe() *events.Subscription
	Unsubscribe(sub *events.Subscription)
}

// Reconciler keeps the membership index in sync with configuration and
// agent self-reports
type Reconciler struct {
	config  ConfigSource
	roster  RosterSource
	broker  Subscriber
	resync  time.Duration
	current atomic.Pointer[membership.Index]

	// mu serializes builds so published generations never go backwards
	mu         sync.Mutex
	generation uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	logger zerolog.Logger
	now    func() time.Time
}

// NewReconciler creates a reconciler. broker may be nil, in which case the
// index is rebuilt only on resync and explicit Reconcile calls.
func NewReconciler(cfg ConfigSource, roster RosterSource, broker Subscriber, resync time.Duration) *Reconciler {
	if resync <= 0 {
		resync = DefaultResyncInterval
	}
	r := &Reconciler{
		config: cfg,
		roster: roster,
		broker: broker,
		resync: resync,
		stopCh: make(chan struct{}),
		logger: log.WithComponent("reconciler"),
		now:    time.Now,
	}
	r.current.Store(membership.Empty())
	metrics.RegisterComponent(metrics.ComponentReconciler, false, "not started")
	return r
}

// Current returns the latest published index. It never blocks.
func (r *Reconciler) Current() *membership.Index {
	return r.current.Load()
}

// Reconcile rebuilds the index from the current inputs and publishes it
func (r *Reconciler) Reconcile(trigger string) *membership.Index {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.WithLabelValues(trigger).Inc()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	_, span := tracing.Start(context.Background(), "membership.reconcile", tracing.AttrTrigger.String(trigger))
	defer span.End()

	snap := r.config.Current()
	agents := r.roster.List()

	prev := r.current.Load()
	r.generation++
	idx := membership.Build(snap.Environments(), agents, membership.Options{
		Generation: r.generation,
		ConfigHash: snap.Hash(),
		BuiltAt:    r.now(),
	})
	r.current.Store(idx)
	span.SetAttributes(tracing.AttrGeneration.Int64(int64(idx.Generation())))

	r.record(prev, idx, trigger)
	return idx
}

func (r *Reconciler) record(prev, idx *membership.Index, trigger string) {
	names := idx.EnvironmentNames()
	metrics.EnvironmentsTotal.Set(float64(len(names)))
	metrics.IndexGeneration.Set(float64(idx.Generation()))
	metrics.EnvironmentAgents.Reset()
	for _, name := range names {
		metrics.EnvironmentAgents.WithLabelValues(name).Set(float64(len(idx.AgentsOf(name))))
	}

	skipped := idx.Skipped()
	metrics.SelfReportSkipped.Set(float64(len(skipped)))
	for _, s := range newlySkipped(prev.Skipped(), skipped) {
		agentLog := log.WithAgentID(s.AgentID)
		agentLog.Warn().
			Str("environment", s.Environment).
			Str("reason", s.Reason).
			Msg("Ignoring self-reported environment")
	}

	metrics.UpdateComponent(metrics.ComponentReconciler, true,
		fmt.Sprintf("generation %d", idx.Generation()))

	r.logger.Debug().
		Str("trigger", trigger).
		Uint64("generation", idx.Generation()).
		Str("config_hash", idx.ConfigHash()).
		Int("environments", len(names)).
		Msg("Membership index rebuilt")
}

// Start builds the initial index and begins reacting to change events and
// the resync ticker
func (r *Reconciler) Start(ctx context.Context) {
	var sub *events.Subscription
	if r.broker != nil {
		// Subscribe before the first build so no change is missed
		sub = r.broker.Subscribe()
	}
	r.Reconcile(TriggerStartup)

	r.wg.Add(1)
	go r.run(ctx, sub)
}

// Stop stops the loop and waits for it to exit
func (r *Reconciler) Stop() {
	r.once.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}

func (r *Reconciler) run(ctx context.Context, sub *events.Subscription) {
	defer r.wg.Done()
	if sub != nil {
		defer r.broker.Unsubscribe(sub)
	}

	ticker := time.NewTicker(r.resync)
	defer ticker.Stop()

	var eventCh <-chan *events.Event
	if sub != nil {
		eventCh = sub.C
	}

	for {
		select {
		case event, ok := <-eventCh:
			if !ok {
				eventCh = nil
				continue
			}
			if !r.affectsMembership(event) {
				continue
			}
			pending := 1 + drain(eventCh)
			r.logger.Debug().
				Str("event", string(event.Type)).
				Int("coalesced", pending).
				Msg("Change observed")
			r.Reconcile(TriggerEvent)
		case <-ticker.C:
			r.Reconcile(TriggerResync)
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		}
	}
}

// affectsMembership reports whether an event can change the index inputs. A
// config repository removal matters only once the repository is gone; a
// repository re-added since then is picked up by its own change event.
func (r *Reconciler) affectsMembership(event *events.Event) bool {
	switch event.Type {
	case events.EventJobAssigned:
		return false
	case events.EventConfigRepoRemoved:
		return !r.config.Current().HasConfigRepo(event.Metadata[events.MetaConfigRepo])
	}
	return true
}

// newlySkipped returns the entries of next that prev did not already skip
func newlySkipped(prev, next []membership.Skipped) []membership.Skipped {
	if len(next) == 0 {
		return nil
	}
	seen := make(map[membership.Skipped]bool, len(prev))
	for _, s := range prev {
		seen[s] = true
	}
	var fresh []membership.Skipped
	for _, s := range next {
		if !seen[s] {
			fresh = append(fresh, s)
		}
	}
	return fresh
}

// drain consumes already queued events so a burst costs one rebuild
func drain(ch <-chan *events.Event) int {
	n := 0
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}
