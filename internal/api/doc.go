// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/outcomes and /v1/seeds to enqueue work for the pipeline.
//   - GET /v1/entities/{kind}/{id} to inspect an entity's lifecycle state.
package api
