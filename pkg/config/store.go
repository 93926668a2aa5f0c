package config

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cuemby/envgate/pkg/events"
	"github.com/cuemby/envgate/pkg/log"
	"github.com/cuemby/envgate/pkg/metrics"
	"github.com/cuemby/envgate/pkg/storage"
	"github.com/cuemby/envgate/pkg/tracing"
	"github.com/cuemby/envgate/pkg/types"
	"github.com/rs/zerolog"
)

// Command is one structural change to one environment
type Command interface {
	// Name is the operation name used in logs and metrics
	Name() string

	// Target is the name of the environment the command changes
	Target() string

	// IsValid reports why the command cannot be applied to snap. It must
	// not modify snap.
	IsValid(snap *Snapshot) error

	// Update applies the change. It is only called after IsValid succeeded
	// against the snapshot the working copy was opened from.
	Update(wc *WorkingCopy) error

	// Event describes the committed change for subscribers
	Event(snap *Snapshot) *events.Event
}

// Publisher receives change notifications after successful commits
type Publisher interface {
	Publish(event *events.Event)
}

// Store holds the current configuration snapshot and serializes changes to it
type Store struct {
	mu        sync.Mutex
	current   atomic.Pointer[Snapshot]
	persist   storage.Store
	publisher Publisher
	logger    zerolog.Logger
}

// NewStore loads the persisted configuration, or starts from an empty
// snapshot when nothing was saved yet. publisher may be nil.
func NewStore(persist storage.Store, publisher Publisher) (*Store, error) {
	s := &Store{
		persist:   persist,
		publisher: publisher,
		logger:    log.WithComponent("config"),
	}

	rec, err := persist.LoadConfig()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.current.Store(Empty())
	case err != nil:
		metrics.UpdateComponent(metrics.ComponentStorage, false, err.Error())
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	default:
		snap := FromRecord(rec)
		if snap.Hash() != rec.Hash {
			s.logger.Warn().
				Str("stored_hash", rec.Hash).
				Str("computed_hash", snap.Hash()).
				Msg("Stored configuration hash does not match its content")
		}
		s.current.Store(snap)
	}

	metrics.RegisterComponent(metrics.ComponentStorage, true, "")
	metrics.RegisterComponent(metrics.ComponentConfig, true, "")
	return s, nil
}

// Current returns the latest committed snapshot
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// IsEmpty reports whether no pipelines or environments were ever committed
func (s *Store) IsEmpty() bool {
	snap := s.Current()
	return len(snap.pipelines) == 0 && len(snap.local) == 0 && len(snap.repos) == 0
}

// Commit validates cmd against the current snapshot, applies it to a
// working copy, persists the result and publishes it. On any failure the
// current snapshot is left untouched.
func (s *Store) Commit(cmd Command) (*Snapshot, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.CommandDuration, cmd.Name())

	logger := s.logger.With().Str("operation", cmd.Name()).Str("environment", cmd.Target()).Logger()

	_, span := tracing.Start(context.Background(), "config.commit",
		tracing.AttrOperation.String(cmd.Name()),
		tracing.AttrEnvironment.String(cmd.Target()))
	next, err := s.commit(cmd)
	tracing.End(span, err)
	if err != nil {
		kind := KindOf(err)
		metrics.CommandsTotal.WithLabelValues(cmd.Name(), string(kind)).Inc()
		logger.Warn().Err(err).Str("kind", string(kind)).Msg("Command rejected")
		return nil, err
	}

	metrics.CommandsTotal.WithLabelValues(cmd.Name(), "success").Inc()
	logger.Info().Str("config_hash", next.Hash()).Msg("Command committed")
	return next, nil
}

func (s *Store) commit(cmd Command) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Current()
	if err := cmd.IsValid(cur); err != nil {
		return nil, err
	}

	wc := cur.Edit()
	if err := applyCommand(cmd, wc); err != nil {
		return nil, err
	}
	next := wc.Freeze()

	if err := s.publish(next, cmd.Event(next)); err != nil {
		return nil, err
	}
	return next, nil
}

// applyCommand turns a panic inside Update into an apply failure so the
// working copy is discarded like on any other error
func applyCommand(cmd Command, wc *WorkingCopy) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewApplyError(fmt.Sprintf("Failed to apply %s to environment '%s'", cmd.Name(), cmd.Target()),
				fmt.Errorf("%v", r))
		}
	}()
	if err := cmd.Update(wc); err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) {
			return err
		}
		return NewApplyError(fmt.Sprintf("Failed to apply %s to environment '%s'", cmd.Name(), cmd.Target()), err)
	}
	return nil
}

// publish persists next, makes it current and notifies subscribers. Callers
// hold s.mu, so events are published in commit order.
func (s *Store) publish(next *Snapshot, event *events.Event) error {
	if err := s.persist.SaveConfig(next.Record()); err != nil {
		metrics.UpdateComponent(metrics.ComponentStorage, false, err.Error())
		return NewApplyError("Failed to persist configuration", err)
	}
	metrics.UpdateComponent(metrics.ComponentStorage, true, "")

	s.current.Store(next)

	if s.publisher != nil && event != nil {
		if event.Metadata == nil {
			event.Metadata = make(map[string]string)
		}
		event.Metadata[events.MetaConfigHash] = next.Hash()
		s.publisher.Publish(event)
	}
	return nil
}

// Replace installs a complete configuration, typically from a settings
// file on first start. The result must pass Validate.
func (s *Store) Replace(pipelines []string, environments []*types.Environment) (*Snapshot, error) {
	return s.change(func(wc *WorkingCopy) error {
		wc.SetPipelines(pipelines)
		wc.local = nil
		for _, env := range environments {
			wc.AddEnvironment(env)
		}
		return nil
	}, events.NewEvent(events.EventConfigChanged, "Configuration replaced", nil))
}

// UpsertConfigRepo replaces the environment parts contributed by a config
// repository. Pipelines defined by the repository are registered as known.
func (s *Store) UpsertConfigRepo(id string, pipelines []string, parts []*types.Environment) (*Snapshot, error) {
	_, span := tracing.Start(context.Background(), "config.repo.upsert", tracing.AttrConfigRepo.String(id))
	next, err := s.change(func(wc *WorkingCopy) error {
		for _, p := range pipelines {
			wc.AddPipeline(p)
		}
		wc.SetConfigRepo(id, parts)
		return nil
	}, events.NewEvent(events.EventConfigChanged, fmt.Sprintf("Config repository '%s' updated", id),
		map[string]string{events.MetaConfigRepo: id}))
	tracing.End(span, err)
	return next, err
}

// RemoveConfigRepo drops every environment part contributed by a config repository
func (s *Store) RemoveConfigRepo(id string) (*Snapshot, error) {
	_, span := tracing.Start(context.Background(), "config.repo.remove", tracing.AttrConfigRepo.String(id))
	next, err := s.change(func(wc *WorkingCopy) error {
		if !wc.RemoveConfigRepo(id) {
			return NewNotFoundError(fmt.Sprintf("Config repository '%s' not found.", id))
		}
		return nil
	}, events.NewEvent(events.EventConfigRepoRemoved, fmt.Sprintf("Config repository '%s' removed", id),
		map[string]string{events.MetaConfigRepo: id}))
	tracing.End(span, err)
	return next, err
}

func (s *Store) change(apply func(*WorkingCopy) error, event *events.Event) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wc := s.Current().Edit()
	if err := apply(wc); err != nil {
		return nil, err
	}
	next := wc.Freeze()
	if err := Validate(next); err != nil {
		return nil, err
	}
	if err := s.publish(next, event); err != nil {
		return nil, err
	}
	s.logger.Info().Str("config_hash", next.Hash()).Str("event", string(event.Type)).Msg("Configuration changed")
	return next, nil
}
