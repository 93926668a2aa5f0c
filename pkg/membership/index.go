package membership

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/cuemby/envgate/pkg/types"
)

// ErrEnvironmentNotFound is returned for lookups of undeclared environments
var ErrEnvironmentNotFound = errors.New("environment not found")

// Source records why an agent is a member of an environment
type Source uint8

const (
	// SourceDeclared: the environment configuration lists the agent
	SourceDeclared Source = 1 << iota
	// SourceSelfReported: the agent lists the environment about itself
	SourceSelfReported
)

// Declared reports whether the configuration grants the membership
func (s Source) Declared() bool { return s&SourceDeclared != 0 }

// SelfReported reports whether the agent claims the membership
func (s Source) SelfReported() bool { return s&SourceSelfReported != 0 }

func (s Source) String() string {
	switch {
	case s.Declared() && s.SelfReported():
		return "declared+self-reported"
	case s.Declared():
		return "declared"
	case s.SelfReported():
		return "self-reported"
	default:
		return "none"
	}
}

// Skip reasons for self-reported names
const (
	SkipMalformed  = "malformed"
	SkipUndeclared = "undeclared"
)

// Skipped is a self-reported environment name that did not produce membership
type Skipped struct {
	AgentID     string
	Environment string
	Reason      string
}

type environment struct {
	name      string
	pipelines []string
	agents    map[string]Source
	agentList []string
}

// Index is an immutable snapshot of environment membership. All methods are
// safe for concurrent use and return copies.
type Index struct {
	generation uint64
	configHash string
	builtAt    time.Time

	envs          map[string]*environment
	names         []string
	pipelineOwner map[string]*environment
	agentEnvs     map[string][]string
	skipped       []Skipped
}

// Options carries bookkeeping recorded on a built index
type Options struct {
	Generation uint64
	ConfigHash string
	BuiltAt    time.Time
}

// Empty returns an index without environments. Every pipeline is
// unassigned and every agent is environment-free.
func Empty() *Index {
	return Build(nil, nil, Options{})
}

// Build derives the index from declared environments and the agent roster.
// An agent is a member of an environment when the environment lists it or
// when the agent's self-reported list names the environment. Self-reported
// names that are malformed or not declared are recorded in Skipped and
// otherwise ignored. Build does not modify its inputs.
func Build(envs []*types.Environment, agents []*types.Agent, opts Options) *Index {
	idx := &Index{
		generation:    opts.Generation,
		configHash:    opts.ConfigHash,
		builtAt:       opts.BuiltAt,
		envs:          make(map[string]*environment, len(envs)),
		pipelineOwner: make(map[string]*environment),
		agentEnvs:     make(map[string][]string),
	}

	// Declared membership is the baseline
	for _, env := range envs {
		key := types.NameKey(env.Name)
		e, ok := idx.envs[key]
		if !ok {
			e = &environment{name: env.Name, agents: make(map[string]Source)}
			idx.envs[key] = e
			idx.names = append(idx.names, env.Name)
		}
		for _, p := range env.Pipelines {
			pkey := types.NameKey(p)
			if _, owned := idx.pipelineOwner[pkey]; owned {
				// Exclusive ownership is enforced by config validation
				continue
			}
			idx.pipelineOwner[pkey] = e
			e.pipelines = append(e.pipelines, p)
		}
		for _, id := range env.Agents {
			e.agents[id] |= SourceDeclared
		}
	}

	// Self-reported membership is added on top, never subtracted
	for _, agent := range agents {
		for _, name := range agent.EnvironmentList() {
			if !types.ValidName(name) {
				idx.skipped = append(idx.skipped, Skipped{AgentID: agent.ID, Environment: name, Reason: SkipMalformed})
				continue
			}
			e, ok := idx.envs[types.NameKey(name)]
			if !ok {
				idx.skipped = append(idx.skipped, Skipped{AgentID: agent.ID, Environment: name, Reason: SkipUndeclared})
				continue
			}
			e.agents[agent.ID] |= SourceSelfReported
		}
	}

	sort.Slice(idx.names, func(i, j int) bool { return types.NameKey(idx.names[i]) < types.NameKey(idx.names[j]) })
	for _, name := range idx.names {
		e := idx.envs[types.NameKey(name)]
		e.agentList = make([]string, 0, len(e.agents))
		for id := range e.agents {
			e.agentList = append(e.agentList, id)
			idx.agentEnvs[id] = append(idx.agentEnvs[id], e.name)
		}
		sort.Strings(e.agentList)
	}

	return idx
}

// Generation returns the sequence number assigned by the reconciler
func (idx *Index) Generation() uint64 { return idx.generation }

// ConfigHash returns the hash of the configuration the index was built from
func (idx *Index) ConfigHash() string { return idx.configHash }

// BuiltAt returns the build time
func (idx *Index) BuiltAt() time.Time { return idx.builtAt }

// EnvironmentNames returns all environment names sorted
func (idx *Index) EnvironmentNames() []string {
	return slices.Clone(idx.names)
}

// HasEnvironment reports whether the environment is declared
func (idx *Index) HasEnvironment(name string) bool {
	_, ok := idx.envs[types.NameKey(name)]
	return ok
}

// EnvironmentsContainingAgent returns the environments the agent belongs to
func (idx *Index) EnvironmentsContainingAgent(agentID string) []string {
	return slices.Clone(idx.agentEnvs[agentID])
}

// IsAgentUnderEnvironment reports whether the agent belongs to any environment
func (idx *Index) IsAgentUnderEnvironment(agentID string) bool {
	return len(idx.agentEnvs[agentID]) > 0
}

// EnvironmentOwningPipeline returns the environment that owns the pipeline
func (idx *Index) EnvironmentOwningPipeline(pipeline string) (string, bool) {
	e, ok := idx.pipelineOwner[types.NameKey(pipeline)]
	if !ok {
		return "", false
	}
	return e.name, true
}

// PipelinesOf returns the pipelines of an environment in declaration order
func (idx *Index) PipelinesOf(name string) ([]string, error) {
	e, ok := idx.envs[types.NameKey(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEnvironmentNotFound, name)
	}
	return slices.Clone(e.pipelines), nil
}

// AgentsOf returns the sorted member agent ids of an environment. Unknown
// environments have no agents.
func (idx *Index) AgentsOf(name string) []string {
	e, ok := idx.envs[types.NameKey(name)]
	if !ok {
		return nil
	}
	return slices.Clone(e.agentList)
}

// MembershipOf returns how the agent came to be a member of the environment
func (idx *Index) MembershipOf(name, agentID string) (Source, bool) {
	e, ok := idx.envs[types.NameKey(name)]
	if !ok {
		return 0, false
	}
	src, ok := e.agents[agentID]
	return src, ok
}

// Skipped returns the self-reported names ignored while building
func (idx *Index) Skipped() []Skipped {
	return slices.Clone(idx.skipped)
}

// Matcher returns a matcher bound to this index
func (idx *Index) Matcher() Matcher {
	return Matcher{idx: idx}
}

// Matcher answers routing questions against a single index snapshot
type Matcher struct {
	idx *Index
}

// Match reports whether jobs of the pipeline may run on the agent. A
// pipeline owned by an environment runs only on that environment's agents;
// an unassigned pipeline runs only on agents that belong to no environment.
func (m Matcher) Match(pipeline, agentID string) bool {
	owner, ok := m.idx.pipelineOwner[types.NameKey(pipeline)]
	if !ok {
		return !m.idx.IsAgentUnderEnvironment(agentID)
	}
	_, member := owner.agents[agentID]
	return member
}

// Index returns the snapshot the matcher is bound to
func (m Matcher) Index() *Index {
	return m.idx
}
