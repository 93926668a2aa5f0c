/*
Package manager assembles an envgate server.

A Manager owns the bbolt store, the event broker, the configuration store,
the agent roster, the reconciler, the routing service and the job
scheduler, and exposes the environment operations used by API handlers.
Each operation returns an OperationResult carrying a user-facing message and
the HTTP status that matches the failure kind:

	result := mgr.UpdateEnvironment("prod", env, hash)
	if !result.IsSuccessful() {
		// 409 when hash is stale, 422 on validation errors, 404 when missing
	}

Jobs handed to ScheduleJobs wait until an agent calls RequestWork and is
eligible for them. Every assignment is published on the event broker as a
job.assigned event; the reconciler ignores those.

A Manager also satisfies configrepo.Sink, so a configrepo.Watcher can feed
config repository files straight into it.
*/
package manager
