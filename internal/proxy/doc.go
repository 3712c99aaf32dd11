// Package proxy provides an allowlisting HTTP proxy for an algod node.
//
// The proxy sits on a loopback address behind a TLS-terminating reverse
// proxy. It forwards only allowlisted endpoints and injects the node's API
// token so callers never hold it.
//
// # Pipeline
//
// Every request passes the same stages, in order:
//
//  1. CORS: permissive headers on every response; OPTIONS answered 200
//  2. Rate limit: submission endpoint only, per client identity (429)
//  3. Allowlist: path shape, then method (403)
//  4. Forward: token injected, bodies streamed, status mirrored (502 on
//     transport failure)
//
// GET /health answers {"ok":true} after the CORS stage and skips the rest.
//
// # Configuration
//
//	cfg := &proxy.Config{
//	    UpstreamURL: "http://127.0.0.1:8082",
//	    Token:       token,
//	    Limiter:     ratelimit.New(ratelimit.NewMemoryStore(10*time.Second), 100),
//	    AuditLogPath: "/var/log/algod-proxy/audit.jsonl",
//	}
//
// # Running the Proxy
//
//	srv, err := proxy.NewServer(cfg, "127.0.0.1:3001")
//	if err != nil {
//	    return err
//	}
//	defer srv.Close()
//	return srv.Run(ctx) // Blocks until ctx is cancelled
//
// # Audit Log
//
// When AuditLogPath is set, one JSON object per request is appended,
// recording the client identity, matched rule and outcome. The file is
// rotated by size, keeping three old generations.
package proxy
