package manager

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cuemby/envgate/pkg/command"
	"github.com/cuemby/envgate/pkg/config"
	"github.com/cuemby/envgate/pkg/events"
	"github.com/cuemby/envgate/pkg/log"
	"github.com/cuemby/envgate/pkg/membership"
	"github.com/cuemby/envgate/pkg/reconciler"
	"github.com/cuemby/envgate/pkg/roster"
	"github.com/cuemby/envgate/pkg/routing"
	"github.com/cuemby/envgate/pkg/scheduler"
	"github.com/cuemby/envgate/pkg/settings"
	"github.com/cuemby/envgate/pkg/storage"
	"github.com/cuemby/envgate/pkg/types"
	"github.com/rs/zerolog"
)

// Manager wires storage, configuration, the agent roster, the reconciler
// and the routing service of one envgate server
type Manager struct {
	dataDir string

	store       storage.Store
	eventBroker *events.Broker
	config      *config.Store
	roster      *roster.Roster
	reconciler  *reconciler.Reconciler
	routing     *routing.Service
	scheduler   *scheduler.Scheduler
	logger      zerolog.Logger
}

// Config holds configuration for creating a Manager
type Config struct {
	DataDir          string
	ResyncInterval   time.Duration
	ScheduleInterval time.Duration
}

// NewManager opens the data directory and builds every component. The
// reconciler is not running until Start is called.
func NewManager(cfg *Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	m, err := NewWithStore(store, cfg.ResyncInterval, cfg.ScheduleInterval)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	m.dataDir = cfg.DataDir
	return m, nil
}

// NewWithStore builds a manager over an already opened store
func NewWithStore(store storage.Store, resync, schedule time.Duration) (*Manager, error) {
	eventBroker := events.NewBroker()
	eventBroker.Start()

	cfgStore, err := config.NewStore(store, eventBroker)
	if err != nil {
		eventBroker.Stop()
		return nil, err
	}

	agents, err := roster.NewRoster(store, eventBroker)
	if err != nil {
		eventBroker.Stop()
		return nil, err
	}

	rec := reconciler.NewReconciler(cfgStore, agents, eventBroker, resync)
	router := routing.NewService(rec, agents)

	m := &Manager{
		store:       store,
		eventBroker: eventBroker,
		config:      cfgStore,
		roster:      agents,
		reconciler:  rec,
		routing:     router,
		logger:      log.WithComponent("manager"),
	}
	m.scheduler = scheduler.NewScheduler(router, m.publishAssignment, schedule)
	return m, nil
}

func (m *Manager) publishAssignment(a scheduler.Assignment) {
	m.eventBroker.Publish(events.NewEvent(events.EventJobAssigned,
		fmt.Sprintf("Job %s/%s/%s assigned to agent %s", a.Job.PipelineName, a.Job.StageName, a.Job.JobName, a.AgentID),
		map[string]string{
			events.MetaAgentID:  a.AgentID,
			events.MetaJobID:    fmt.Sprintf("%d", a.Job.ID),
			events.MetaPipeline: a.Job.PipelineName,
		}))
}

// Start builds the initial membership index and keeps it current until ctx
// is cancelled or Close is called
func (m *Manager) Start(ctx context.Context) {
	m.reconciler.Start(ctx)
	m.scheduler.Start()
	m.logger.Info().
		Str("config_hash", m.config.Current().Hash()).
		Int("environments", len(m.config.Current().Environments())).
		Int("agents", len(m.roster.List())).
		Msg("Manager started")
}

// Close stops background work and closes the store
func (m *Manager) Close() error {
	m.scheduler.Stop()
	m.reconciler.Stop()
	m.eventBroker.Stop()
	return m.store.Close()
}

// Seed loads the declarative configuration. Unless force is set it only
// applies when nothing was committed before.
func (m *Manager) Seed(seed settings.Seed, force bool) error {
	if seed.IsEmpty() {
		return nil
	}
	if !force && !m.config.IsEmpty() {
		m.logger.Info().Msg("Configuration already present, skipping seed")
		return nil
	}

	if _, err := m.config.Replace(seed.Pipelines, seed.Environments); err != nil {
		return fmt.Errorf("failed to seed environments: %w", err)
	}
	for _, repo := range seed.ConfigRepos {
		if _, err := m.config.UpsertConfigRepo(repo.ID, repo.Pipelines, repo.Environments); err != nil {
			return fmt.Errorf("failed to seed config repository %s: %w", repo.ID, err)
		}
	}
	for _, agent := range seed.Agents {
		if _, err := m.roster.Register(agent); err != nil {
			return fmt.Errorf("failed to seed agent: %w", err)
		}
	}

	m.logger.Info().
		Int("pipelines", len(seed.Pipelines)).
		Int("environments", len(seed.Environments)).
		Int("config_repos", len(seed.ConfigRepos)).
		Int("agents", len(seed.Agents)).
		Msg("Configuration seeded")
	return nil
}

// CreateEnvironment adds a new local environment
func (m *Manager) CreateEnvironment(env *types.Environment) OperationResult {
	if _, err := m.config.Commit(command.NewCreate(env)); err != nil {
		return failure(fmt.Sprintf("Failed to add environment '%s'.", env.Name), err)
	}
	return success(fmt.Sprintf("Added environment '%s'.", env.Name))
}

// UpdateEnvironment replaces the local part of an environment. hash is the
// environment hash the caller last read.
func (m *Manager) UpdateEnvironment(oldName string, env *types.Environment, hash string) OperationResult {
	if _, err := m.config.Commit(command.NewUpdate(oldName, env, hash)); err != nil {
		return failure(fmt.Sprintf("Failed to update environment '%s'.", oldName), err)
	}
	return success(fmt.Sprintf("Updated environment '%s'.", oldName))
}

// PatchEnvironment adds and removes associations of a local environment
func (m *Manager) PatchEnvironment(name string, req command.PatchRequest, hash string) OperationResult {
	if _, err := m.config.Commit(command.NewPatch(name, req, hash)); err != nil {
		return failure(fmt.Sprintf("Failed to update environment '%s'.", name), err)
	}
	return success(fmt.Sprintf("Updated environment '%s'.", name))
}

// DeleteEnvironment removes a local environment
func (m *Manager) DeleteEnvironment(name, hash string) OperationResult {
	if _, err := m.config.Commit(command.NewDelete(name, hash)); err != nil {
		return failure(fmt.Sprintf("Failed to delete environment '%s'.", name), err)
	}
	return success(fmt.Sprintf("Environment '%s' was deleted successfully.", name))
}

// UpsertConfigRepo records the environment parts parsed from a config repository
func (m *Manager) UpsertConfigRepo(id string, pipelines []string, parts []*types.Environment) error {
	_, err := m.config.UpsertConfigRepo(id, pipelines, parts)
	return err
}

// RemoveConfigRepo drops a config repository and its environment parts
func (m *Manager) RemoveConfigRepo(id string) error {
	_, err := m.config.RemoveConfigRepo(id)
	return err
}

// EnvironmentNames returns the names of all merged environments
func (m *Manager) EnvironmentNames() []string {
	return m.config.Current().EnvironmentNames()
}

// Environment returns a copy of the merged environment
func (m *Manager) Environment(name string) (*types.Environment, bool) {
	env, ok := m.config.Current().Environment(name)
	if !ok {
		return nil, false
	}
	return env.Clone(), true
}

// EnvironmentForEdit returns a private copy of the local part of an
// environment along with the hash to present when saving it
func (m *Manager) EnvironmentForEdit(name string) (*types.Environment, string, bool) {
	snap := m.config.Current()
	env, ok := snap.EnvironmentForEdit(name)
	if !ok {
		return nil, "", false
	}
	hash, _ := snap.EnvironmentHash(name)
	return env, hash, true
}

// ListMergedEnvironments returns copies of every merged environment
func (m *Manager) ListMergedEnvironments() []*types.Environment {
	merged := m.config.Current().Environments()
	envs := make([]*types.Environment, len(merged))
	for i, env := range merged {
		envs[i] = env.Clone()
	}
	return envs
}

// EnvironmentHash returns the current hash of the merged environment
func (m *Manager) EnvironmentHash(name string) (string, bool) {
	return m.config.Current().EnvironmentHash(name)
}

// RegisterAgent adds an agent to the roster
func (m *Manager) RegisterAgent(agent *types.Agent) (*types.Agent, error) {
	return m.roster.Register(agent)
}

// Heartbeat records an agent heartbeat with its self-reported environments
func (m *Manager) Heartbeat(agentID, environments string) error {
	return m.roster.Heartbeat(agentID, environments)
}

// DeleteAgent removes an agent from the roster
func (m *Manager) DeleteAgent(agentID string) error {
	if err := m.roster.Delete(agentID); err != nil {
		return err
	}
	m.scheduler.AgentGone(agentID)
	return nil
}

// ScheduleJobs queues jobs for assignment
func (m *Manager) ScheduleJobs(jobs ...*types.JobPlan) {
	m.scheduler.Enqueue(jobs...)
}

// RequestWork marks a registered agent as waiting for a job
func (m *Manager) RequestWork(agentID string) error {
	if _, ok := m.roster.Get(agentID); !ok {
		return fmt.Errorf("agent %s %w", agentID, storage.ErrNotFound)
	}
	m.scheduler.AgentIdle(agentID)
	return nil
}

// Scheduler returns the job scheduler
func (m *Manager) Scheduler() *scheduler.Scheduler {
	return m.scheduler
}

// ListAgents returns every registered agent
func (m *Manager) ListAgents() []*types.Agent {
	return m.roster.List()
}

// Reconcile rebuilds the membership index immediately
func (m *Manager) Reconcile() *membership.Index {
	return m.reconciler.Reconcile(reconciler.TriggerManual)
}

// Index returns the current membership index
func (m *Manager) Index() *membership.Index {
	return m.reconciler.Current()
}

// Routing returns the routing service
func (m *Manager) Routing() *routing.Service {
	return m.routing
}

// GetEventBroker returns the event broker
func (m *Manager) GetEventBroker() *events.Broker {
	return m.eventBroker
}

// Ready reports whether the store answers and an index has been built
func (m *Manager) Ready() error {
	if _, err := m.store.ListAgents(); err != nil {
		return fmt.Errorf("storage not accessible: %w", err)
	}
	if m.reconciler.Current().Generation() == 0 {
		return fmt.Errorf("membership index not built")
	}
	return nil
}
