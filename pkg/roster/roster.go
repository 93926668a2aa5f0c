package roster

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/envgate/pkg/events"
	"github.com/cuemby/envgate/pkg/log"
	"github.com/cuemby/envgate/pkg/metrics"
	"github.com/cuemby/envgate/pkg/storage"
	"github.com/cuemby/envgate/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Publisher receives roster change notifications
type Publisher interface {
	Publish(event *events.Event)
}

// Roster tracks the agents known to the server and their self-reported
// environment lists
type Roster struct {
	mu        sync.RWMutex
	agents    map[string]*types.Agent
	store     storage.Store
	publisher Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewRoster loads the persisted agents. publisher may be nil.
func NewRoster(store storage.Store, publisher Publisher) (*Roster, error) {
	agents, err := store.ListAgents()
	if err != nil {
		return nil, fmt.Errorf("failed to load agents: %w", err)
	}

	r := &Roster{
		agents:    make(map[string]*types.Agent, len(agents)),
		store:     store,
		publisher: publisher,
		logger:    log.WithComponent("roster"),
		now:       time.Now,
	}
	for _, agent := range agents {
		r.agents[agent.ID] = agent
	}
	metrics.AgentsTotal.Set(float64(len(r.agents)))
	return r, nil
}

// Register adds or re-registers an agent. Agents without an id are assigned one.
func (r *Roster) Register(agent *types.Agent) (*types.Agent, error) {
	registered, err := r.register(agent)
	if err != nil {
		return nil, err
	}

	r.logger.Info().
		Str("agent_id", registered.ID).
		Str("hostname", registered.Hostname).
		Str("environments", registered.Environments).
		Msg("Agent registered")
	r.notify(events.EventAgentRegistered, registered.ID, "Agent registered")
	return registered, nil
}

func (r *Roster) register(agent *types.Agent) (*types.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	registered := *agent
	if registered.ID == "" {
		registered.ID = uuid.New().String()
	}
	now := r.now()
	if existing, ok := r.agents[registered.ID]; ok {
		registered.RegisteredAt = existing.RegisteredAt
	} else {
		registered.RegisteredAt = now
	}
	registered.LastHeartbeat = now

	if err := r.store.CreateAgent(&registered); err != nil {
		return nil, fmt.Errorf("failed to store agent %s: %w", registered.ID, err)
	}
	r.agents[registered.ID] = &registered
	metrics.AgentsTotal.Set(float64(len(r.agents)))

	result := registered
	return &result, nil
}

// Heartbeat records that the agent is alive and updates its self-reported
// environment list
func (r *Roster) Heartbeat(id, environments string) error {
	changed, err := r.heartbeat(id, environments)
	if err != nil {
		return err
	}
	if changed {
		agentLog := log.WithAgentID(id)
		agentLog.Info().Str("environments", environments).Msg("Agent environments changed")
	}
	r.notify(events.EventAgentHeartbeat, id, "Agent heartbeat")
	return nil
}

func (r *Roster) heartbeat(id, environments string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.agents[id]
	if !ok {
		return false, fmt.Errorf("agent %s %w", id, storage.ErrNotFound)
	}

	updated := *existing
	updated.Environments = environments
	updated.LastHeartbeat = r.now()

	changed := updated.Environments != existing.Environments
	if changed {
		if err := r.store.UpdateAgent(&updated); err != nil {
			return false, fmt.Errorf("failed to store agent %s: %w", id, err)
		}
	}
	r.agents[id] = &updated
	return changed, nil
}

// Delete removes an agent from the roster
func (r *Roster) Delete(id string) error {
	if err := r.remove(id); err != nil {
		return err
	}
	r.logger.Info().Str("agent_id", id).Msg("Agent deleted")
	r.notify(events.EventAgentDeleted, id, "Agent deleted")
	return nil
}

func (r *Roster) remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[id]; !ok {
		return fmt.Errorf("agent %s %w", id, storage.ErrNotFound)
	}
	if err := r.store.DeleteAgent(id); err != nil {
		return fmt.Errorf("failed to delete agent %s: %w", id, err)
	}
	delete(r.agents, id)
	metrics.AgentsTotal.Set(float64(len(r.agents)))
	return nil
}

// Get returns a copy of the agent
func (r *Roster) Get(id string) (*types.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[id]
	if !ok {
		return nil, false
	}
	copied := *agent
	return &copied, true
}

// List returns copies of all agents sorted by id
func (r *Roster) List() []*types.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]*types.Agent, 0, len(r.agents))
	for _, agent := range r.agents {
		copied := *agent
		agents = append(agents, &copied)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents
}

func (r *Roster) notify(t events.EventType, agentID, message string) {
	if r.publisher == nil {
		return
	}
	r.publisher.Publish(events.NewEvent(t, message, map[string]string{events.MetaAgentID: agentID}))
}
