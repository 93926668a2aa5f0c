package main

import (
	"bytes"
	"testing"

	"github.com/cuemby/envgate/pkg/membership"
	"github.com/cuemby/envgate/pkg/routing"
	"github.com/cuemby/envgate/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestPrintRoutes(t *testing.T) {
	idx := membership.Build(
		[]*types.Environment{{Name: "uat", Pipelines: []string{"P1"}, Agents: []string{"A1"}}},
		nil,
		membership.Options{Generation: 1},
	)
	svc := routing.NewService(staticIndex{idx: idx}, nil)
	jobs := []*types.JobPlan{
		{ID: 1, PipelineName: "P1", StageName: "build", JobName: "compile"},
		{ID: 2, PipelineName: "P2", StageName: "build", JobName: "compile"},
	}

	tests := []struct {
		name     string
		agentID  string
		eligible int
		lines    []string
	}{
		{
			name:     "member",
			agentID:  "A1",
			eligible: 1,
			lines: []string{
				"  ✓ 1 P1/build/compile (environment uat)",
				"  ✗ 2 P2/build/compile (environment -)",
			},
		},
		{
			name:     "environment-free agent",
			agentID:  "A2",
			eligible: 1,
			lines: []string{
				"  ✗ 1 P1/build/compile (environment uat)",
				"  ✓ 2 P2/build/compile (environment -)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Equal(t, tt.eligible, printRoutes(&out, svc, tt.agentID, jobs))
			for _, line := range tt.lines {
				assert.Contains(t, out.String(), line+"\n")
			}
		})
	}
}
