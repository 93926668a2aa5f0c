/*
Package metrics provides Prometheus metrics and component health for envgate.

All collectors are package-level variables registered with the default
registry in init(). Handler exposes them for scraping.

# Metrics Catalog

Membership:
  - envgate_environments_total (gauge): environments in the published index
  - envgate_agents_total (gauge): agents in the roster
  - envgate_environment_agents{environment} (gauge): member agents per environment
  - envgate_index_generation (gauge): generation of the published index

Reconciler:
  - envgate_reconciliation_duration_seconds (histogram)
  - envgate_reconciliation_cycles_total{trigger} (counter): trigger is
    startup, event, resync or manual
  - envgate_self_report_skipped (gauge): malformed or undeclared
    self-reported environment names ignored by the current index

Commands:
  - envgate_config_commands_total{operation, outcome} (counter): outcome is
    success, validation, conflict, not_found or failure
  - envgate_config_command_duration_seconds{operation} (histogram)

Routing:
  - envgate_routing_filter_duration_seconds (histogram)
  - envgate_routing_jobs_total{result} (counter): eligible or filtered

Scheduler:
  - envgate_scheduler_jobs_pending (gauge)
  - envgate_scheduler_jobs_assigned_total (counter)
  - envgate_scheduler_cycle_duration_seconds (histogram)

Config repositories:
  - envgate_configrepo_syncs_total{result} (counter): applied, unchanged,
    removed or failed

# Timer Helper

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.ReconciliationDuration)
	timer.ObserveDurationVec(metrics.CommandDuration, "create")

# Component Health

Components report their state with RegisterComponent and UpdateComponent.
GetHealth is unhealthy when a critical component fails and degraded when
only another component (such as configrepo) does; GetReadiness
requires the storage, config and reconciler components to be registered and
healthy. HealthHandler, ReadyHandler and LivenessHandler serve these as JSON.
*/
package metrics
