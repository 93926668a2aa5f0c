package routing

import (
	"errors"
	"testing"

	"github.com/cuemby/envgate/pkg/membership"
	"github.com/cuemby/envgate/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	idx *membership.Index
}

func (s staticSource) Current() *membership.Index { return s.idx }

type staticAgents []*types.Agent

func (s staticAgents) List() []*types.Agent { return s }

// uat owns P1 and has A1; P2 is unassigned; A2 belongs to no environment
func newService() *Service {
	agents := staticAgents{{ID: "A1"}, {ID: "A2"}}
	idx := membership.Build(
		[]*types.Environment{{Name: "uat", Pipelines: []string{"P1"}, Agents: []string{"A1"}}},
		agents,
		membership.Options{Generation: 1},
	)
	return NewService(staticSource{idx: idx}, agents)
}

func jobs(pipelines ...string) []*types.JobPlan {
	out := make([]*types.JobPlan, len(pipelines))
	for i, p := range pipelines {
		out[i] = &types.JobPlan{ID: int64(i + 1), PipelineName: p, StageName: "s", JobName: "j"}
	}
	return out
}

func pipelinesOf(plans []*types.JobPlan) []string {
	out := make([]string, 0, len(plans))
	for _, p := range plans {
		out = append(out, p.PipelineName)
	}
	return out
}

func TestFilterJobsEligibleForAgent(t *testing.T) {
	svc := newService()

	tests := []struct {
		name  string
		jobs  []*types.JobPlan
		agent string
		want  []string
	}{
		{name: "owned pipeline on member", jobs: jobs("P1"), agent: "A1", want: []string{"P1"}},
		{name: "owned pipeline on outsider", jobs: jobs("P1"), agent: "A2", want: []string{}},
		{name: "unassigned pipeline on free agent", jobs: jobs("P2"), agent: "A2", want: []string{"P2"}},
		{name: "unassigned pipeline on environment agent", jobs: jobs("P2"), agent: "A1", want: []string{}},
		{name: "mixed keeps order", jobs: jobs("P2", "P1", "P3", "P1"), agent: "A1", want: []string{"P1", "P1"}},
		{name: "no jobs", jobs: nil, agent: "A1", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.FilterJobsEligibleForAgent(tt.jobs, tt.agent)
			assert.Equal(t, tt.want, pipelinesOf(got))
		})
	}
}

func TestFilterKeepsJobIdentity(t *testing.T) {
	svc := newService()
	in := jobs("P1", "P2")

	out := svc.FilterJobsEligibleForAgent(in, "A1")
	require.Len(t, out, 1)
	assert.Same(t, in[0], out[0])
}

func TestQueries(t *testing.T) {
	svc := newService()

	owner, ok := svc.OwningEnvironmentName("P1")
	assert.True(t, ok)
	assert.Equal(t, "uat", owner)

	owner, ok = svc.OwningEnvironmentName("P2")
	assert.False(t, ok)
	assert.Empty(t, owner)

	assert.Equal(t, []string{"A1"}, svc.AgentsForPipeline("P1"))
	assert.Equal(t, []string{"A2"}, svc.AgentsForPipeline("P2"))
	assert.Equal(t, []string{"uat"}, svc.EnvironmentsForAgent("A1"))
	assert.Empty(t, svc.EnvironmentsForAgent("A2"))
	assert.True(t, svc.IsAgentUnderEnvironment("A1"))
	assert.True(t, svc.CanRun("P2", "A2"))
	assert.Equal(t, []string{"uat"}, svc.EnvironmentNames())

	pipelines, err := svc.PipelinesFor("uat")
	require.NoError(t, err)
	assert.Equal(t, []string{"P1"}, pipelines)

	_, err = svc.PipelinesFor("missing")
	assert.True(t, errors.Is(err, membership.ErrEnvironmentNotFound))
}

func TestAgentsForUnassignedPipelineWithoutRoster(t *testing.T) {
	svc := NewService(staticSource{idx: membership.Empty()}, nil)
	assert.Nil(t, svc.AgentsForPipeline("P1"))
}
