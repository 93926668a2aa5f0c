/*
Package scheduler hands pending jobs to agents that ask for work.

Each cycle walks the idle agents in the order they asked and gives each one
the oldest pending job the routing service says it may run. A job owned by
an environment therefore waits until a member of that environment is idle,
and jobs of unassigned pipelines only go to agents outside every
environment. Agents without an eligible job keep their place in line for
the next cycle.

	sched := scheduler.NewScheduler(routingService, notify, 5*time.Second)
	sched.Enqueue(jobs...)
	sched.AgentIdle("agent-1")
	sched.Start()
	defer sched.Stop()
*/
package scheduler
