package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Membership metrics
	EnvironmentsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "envgate_environments_total",
			Help: "Number of environments in the published membership index",
		},
	)

	AgentsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "envgate_agents_total",
			Help: "Number of agents in the roster",
		},
	)

	EnvironmentAgents = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "envgate_environment_agents",
			Help: "Number of member agents per environment",
		},
		[]string{"environment"},
	)

	IndexGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "envgate_index_generation",
			Help: "Generation number of the published membership index",
		},
	)

	// Reconciler metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "envgate_reconciliation_duration_seconds",
			Help:    "Time taken to rebuild and publish the membership index",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envgate_reconciliation_cycles_total",
			Help: "Total number of reconciliation cycles by trigger",
		},
		[]string{"trigger"},
	)

	SelfReportSkipped = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "envgate_self_report_skipped",
			Help: "Self-reported environment names ignored by the current index because they are malformed or undeclared",
		},
	)

	// Command metrics
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envgate_config_commands_total",
			Help: "Total number of environment commands by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "envgate_config_command_duration_seconds",
			Help:    "Environment command commit duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Routing metrics
	RoutingFilterDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "envgate_routing_filter_duration_seconds",
			Help:    "Time taken to filter job plans for an agent",
			Buckets: prometheus.DefBuckets,
		},
	)

	JobsFilteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envgate_routing_jobs_total",
			Help: "Job plans evaluated by the routing filter by result",
		},
		[]string{"result"},
	)

	// Scheduler metrics
	JobsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "envgate_scheduler_jobs_pending",
			Help: "Jobs waiting for an eligible agent",
		},
	)

	JobsAssignedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "envgate_scheduler_jobs_assigned_total",
			Help: "Total number of jobs assigned to agents",
		},
	)

	SchedulingCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "envgate_scheduler_cycle_duration_seconds",
			Help:    "Time taken for one scheduling cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Config repository metrics
	ConfigRepoSyncsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envgate_configrepo_syncs_total",
			Help: "Config repository file loads by result (applied, unchanged, removed, failed)",
		},
		[]string{"result"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(EnvironmentsTotal)
	prometheus.MustRegister(AgentsTotal)
	prometheus.MustRegister(EnvironmentAgents)
	prometheus.MustRegister(IndexGeneration)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(SelfReportSkipped)
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(CommandDuration)
	prometheus.MustRegister(RoutingFilterDuration)
	prometheus.MustRegister(JobsFilteredTotal)
	prometheus.MustRegister(JobsPending)
	prometheus.MustRegister(JobsAssignedTotal)
	prometheus.MustRegister(SchedulingCycleDuration)
	prometheus.MustRegister(ConfigRepoSyncsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
