package routing

import (
	"github.com/cuemby/envgate/pkg/membership"
	"github.com/cuemby/envgate/pkg/metrics"
	"github.com/cuemby/envgate/pkg/types"
)

// Filter outcomes recorded in metrics
const (
	resultEligible = "eligible"
	resultFiltered = "filtered"
)

// IndexSource provides the current membership index
type IndexSource interface {
	Current() *membership.Index
}

// AgentLister lists the registered agents
type AgentLister interface {
	List() []*types.Agent
}

// Service answers job routing and membership queries. Every call reads a
// single index snapshot, so one answer is never assembled from two builds.
type Service struct {
	source IndexSource
	agents AgentLister
}

// NewService creates a routing service over the index source. agents may be
// nil; AgentsForPipeline then only answers for owned pipelines.
func NewService(source IndexSource, agents AgentLister) *Service {
	return &Service{source: source, agents: agents}
}

// FilterJobsEligibleForAgent returns the jobs the agent may run, in their
// original order
func (s *Service) FilterJobsEligibleForAgent(jobs []*types.JobPlan, agentID string) []*types.JobPlan {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RoutingFilterDuration)

	matcher := s.source.Current().Matcher()
	eligible := make([]*types.JobPlan, 0, len(jobs))
	for _, job := range jobs {
		if matcher.Match(job.PipelineName, agentID) {
			eligible = append(eligible, job)
		}
	}

	metrics.JobsFilteredTotal.WithLabelValues(resultEligible).Add(float64(len(eligible)))
	metrics.JobsFilteredTotal.WithLabelValues(resultFiltered).Add(float64(len(jobs) - len(eligible)))
	return eligible
}

// CanRun reports whether a single pipeline's jobs may run on the agent
func (s *Service) CanRun(pipeline, agentID string) bool {
	return s.source.Current().Matcher().Match(pipeline, agentID)
}

// OwningEnvironmentName returns the environment that owns the pipeline
func (s *Service) OwningEnvironmentName(pipeline string) (string, bool) {
	return s.source.Current().EnvironmentOwningPipeline(pipeline)
}

// AgentsForPipeline returns the agents that may run jobs of the pipeline:
// the members of its environment, or every registered agent outside all
// environments when the pipeline is unassigned
func (s *Service) AgentsForPipeline(pipeline string) []string {
	idx := s.source.Current()
	if env, ok := idx.EnvironmentOwningPipeline(pipeline); ok {
		return idx.AgentsOf(env)
	}
	if s.agents == nil {
		return nil
	}

	var free []string
	for _, agent := range s.agents.List() {
		if !idx.IsAgentUnderEnvironment(agent.ID) {
			free = append(free, agent.ID)
		}
	}
	return free
}

// EnvironmentsForAgent returns the environments the agent belongs to
func (s *Service) EnvironmentsForAgent(agentID string) []string {
	return s.source.Current().EnvironmentsContainingAgent(agentID)
}

// IsAgentUnderEnvironment reports whether the agent belongs to any environment
func (s *Service) IsAgentUnderEnvironment(agentID string) bool {
	return s.source.Current().IsAgentUnderEnvironment(agentID)
}

// PipelinesFor returns the pipelines owned by the environment
func (s *Service) PipelinesFor(environment string) ([]string, error) {
	return s.source.Current().PipelinesOf(environment)
}

// EnvironmentNames returns every declared environment name
func (s *Service) EnvironmentNames() []string {
	return s.source.Current().EnvironmentNames()
}
