package scheduler

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cuemby/envgate/pkg/log"
	"github.com/cuemby/envgate/pkg/metrics"
	"github.com/cuemby/envgate/pkg/tracing"
	"github.com/cuemby/envgate/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultInterval is the time between scheduling cycles
const DefaultInterval = 5 * time.Second

// Router selects the jobs an agent is eligible for
type Router interface {
	FilterJobsEligibleForAgent(jobs []*types.JobPlan, agentID string) []*types.JobPlan
}

// Assignment is a job handed to an agent
type Assignment struct {
	Job        *types.JobPlan
	AgentID    string
	AssignedAt time.Time
}

// Scheduler matches pending jobs with agents waiting for work
type Scheduler struct {
	router   Router
	handler  func(Assignment)
	interval time.Duration

	mu      sync.Mutex
	pending []*types.JobPlan
	idle    []string

	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	logger zerolog.Logger
	now    func() time.Time
}

// NewScheduler creates a scheduler. handler receives every assignment and
// may be nil.
func NewScheduler(router Router, handler func(Assignment), interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		router:   router,
		handler:  handler,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   log.WithComponent("scheduler"),
		now:      time.Now,
	}
}

// Start begins the scheduler loop
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop stops the scheduler loop and waits for it to exit
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Schedule()
		case <-s.stopCh:
			return
		}
	}
}

// Enqueue adds jobs to the back of the pending queue. Nil jobs are ignored.
func (s *Scheduler) Enqueue(jobs ...*types.JobPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range jobs {
		if j != nil {
			s.pending = append(s.pending, j)
		}
	}
	metrics.JobsPending.Set(float64(len(s.pending)))
}

// Cancel removes a pending job and reports whether it was queued
func (s *Scheduler) Cancel(jobID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.pending)
	s.pending = slices.DeleteFunc(s.pending, func(j *types.JobPlan) bool { return j.ID == jobID })
	metrics.JobsPending.Set(float64(len(s.pending)))
	return len(s.pending) != n
}

// AgentIdle records that the agent is asking for work. Agents are served
// in the order they became idle.
func (s *Scheduler) AgentIdle(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !slices.Contains(s.idle, agentID) {
		s.idle = append(s.idle, agentID)
	}
}

// AgentGone forgets an agent that stopped asking for work
func (s *Scheduler) AgentGone(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.idle = slices.DeleteFunc(s.idle, func(id string) bool { return id == agentID })
}

// Pending returns the queued jobs in order
func (s *Scheduler) Pending() []*types.JobPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.pending)
}

// IdleAgents returns the agents waiting for work in order
func (s *Scheduler) IdleAgents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.idle)
}

// Schedule runs one cycle: every idle agent, in order, receives the oldest
// pending job it is eligible for. Agents with no eligible job stay idle.
func (s *Scheduler) Schedule() []Assignment {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulingCycleDuration)

	_, span := tracing.Start(context.Background(), "scheduler.cycle")
	defer span.End()

	assignments := s.assign()
	span.SetAttributes(tracing.AttrJobs.Int(len(assignments)))

	for _, a := range assignments {
		metrics.JobsAssignedTotal.Inc()
		tracing.AddEvent(span, "job.assigned",
			tracing.AttrAgentID.String(a.AgentID),
			tracing.AttrPipeline.String(a.Job.PipelineName))
		s.logger.Info().
			Int64("job_id", a.Job.ID).
			Str("pipeline", a.Job.PipelineName).
			Str("stage", a.Job.StageName).
			Str("job", a.Job.JobName).
			Str("agent_id", a.AgentID).
			Msg("Job assigned")
		if s.handler != nil {
			s.handler(a)
		}
	}
	return assignments
}

func (s *Scheduler) assign() []Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 || len(s.idle) == 0 {
		return nil
	}

	var assignments []Assignment
	stillIdle := s.idle[:0:0]
	for _, agentID := range s.idle {
		if len(s.pending) == 0 {
			stillIdle = append(stillIdle, agentID)
			continue
		}

		eligible := s.router.FilterJobsEligibleForAgent(s.pending, agentID)
		if len(eligible) == 0 {
			stillIdle = append(stillIdle, agentID)
			continue
		}

		job := eligible[0]
		s.pending = slices.DeleteFunc(s.pending, func(j *types.JobPlan) bool { return j == job })
		assignments = append(assignments, Assignment{Job: job, AgentID: agentID, AssignedAt: s.now()})
	}
	s.idle = stillIdle
	metrics.JobsPending.Set(float64(len(s.pending)))
	return assignments
}
