/*
Package api serves the envgate operational HTTP endpoints.

	/health      process is alive, with version
	/ready       manager ready and every critical component healthy
	/live        liveness probe
	/components  per-component health registry
	/metrics     Prometheus metrics

Readiness fails until the storage, config and reconciler components have
registered as healthy and the manager has published a membership index.
*/
package api
