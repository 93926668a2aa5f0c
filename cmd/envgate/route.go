package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cuemby/envgate/pkg/membership"
	"github.com/cuemby/envgate/pkg/routing"
	"github.com/cuemby/envgate/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var routeCmd = &cobra.Command{
	Use:   "route --agent ID [PIPELINE...]",
	Short: "Show which jobs an agent may pick up",
	Long: `Build membership from the seed of a settings file and print, for
each job, whether an agent is eligible for it. Jobs are read from --jobs, a YAML list of
{id, pipeline, stage, job}, or one job per PIPELINE argument.`,
	Example: `  envgate route -c envgate.yaml --agent A1 build deploy
  envgate route -c envgate.yaml --agent A1 --jobs jobs.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		agentID, _ := cmd.Flags().GetString("agent")
		if agentID == "" {
			return fmt.Errorf("--agent is required")
		}
		jobsFile, _ := cmd.Flags().GetString("jobs")

		jobs, err := loadJobs(jobsFile, args)
		if err != nil {
			return err
		}

		idx, err := s.Seed.Index()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		svc := routing.NewService(staticIndex{idx: idx}, nil)

		envs := svc.EnvironmentsForAgent(agentID)
		if len(envs) == 0 {
			fmt.Printf("Agent %s belongs to no environment\n", agentID)
		} else {
			fmt.Printf("Agent %s environments: %s\n", agentID, orNone(envs))
		}

		eligible := printRoutes(os.Stdout, svc, agentID, jobs)
		fmt.Printf("%d of %d jobs eligible\n", eligible, len(jobs))
		return nil
	},
}

// printRoutes writes one line per job marking whether the agent may run it
// and returns the number of eligible jobs
func printRoutes(w io.Writer, svc *routing.Service, agentID string, jobs []*types.JobPlan) int {
	eligible := 0
	for _, job := range jobs {
		env, ok := svc.OwningEnvironmentName(job.PipelineName)
		if !ok {
			env = "-"
		}
		mark := "✗"
		if svc.CanRun(job.PipelineName, agentID) {
			mark = "✓"
			eligible++
		}
		fmt.Fprintf(w, "  %s %d %s/%s/%s (environment %s)\n", mark, job.ID, job.PipelineName, job.StageName, job.JobName, env)
	}
	return eligible
}

func init() {
	routeCmd.Flags().String("agent", "", "Agent id to route jobs for")
	routeCmd.Flags().String("jobs", "", "YAML file with the scheduled jobs")
}

// staticIndex serves one prebuilt index to the routing service
type staticIndex struct {
	idx *membership.Index
}

func (s staticIndex) Current() *membership.Index { return s.idx }

func loadJobs(path string, pipelines []string) ([]*types.JobPlan, error) {
	if path == "" {
		if len(pipelines) == 0 {
			return nil, fmt.Errorf("either --jobs or at least one pipeline is required")
		}
		jobs := make([]*types.JobPlan, len(pipelines))
		for i, p := range pipelines {
			jobs[i] = &types.JobPlan{ID: int64(i + 1), PipelineName: p, StageName: "default", JobName: "default"}
		}
		return jobs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs: %w", err)
	}
	var jobs []*types.JobPlan
	if err := yaml.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("failed to parse jobs: %w", err)
	}
	return jobs, nil
}
