// Package health serves and probes the proxy's liveness endpoint.
//
// # Endpoint
//
// GET /health always answers 200 {"ok":true}. It is registered ahead of
// the admission pipeline so it is never allowlisted or rate limited.
//
// # Probing
//
// The healthcheck subcommand uses Check, suitable for container or systemd
// health checks:
//
//	result := health.Check(ctx, nil, "http://127.0.0.1:3001/health")
//	if result.Status != health.StatusHealthy {
//	    // result.Err explains why
//	}
package health
