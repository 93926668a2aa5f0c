/*
Package tracing wires OpenTelemetry spans for envgate.

Init installs a global tracer provider from the server settings:

	server:
	  tracing:
	    enabled: true
	    exporter: otlp          # none, stdout or otlp
	    endpoint: localhost:4317
	    insecure: true
	    sampling_rate: 0.25

With tracing disabled the OpenTelemetry no-op provider stays installed and
Start returns spans that record nothing, so instrumented code never checks
whether tracing is on. Spans are emitted for configuration commits
(config.commit), index rebuilds (membership.reconcile) and scheduling cycles
(scheduler.cycle).
*/
package tracing
