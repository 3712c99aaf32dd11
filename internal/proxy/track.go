package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/firefly-engineering/algod-proxy/internal/audit"
)

// Outcome records how the pipeline disposed of a request.
type Outcome string

const (
	OutcomeForwarded          Outcome = "forwarded"
	OutcomePreflight          Outcome = "preflight"
	OutcomeHealth             Outcome = "health"
	OutcomeRateLimited        Outcome = "rate_limited"
	OutcomeEndpointNotAllowed Outcome = "endpoint_not_allowed"
	OutcomeMethodNotAllowed   Outcome = "method_not_allowed"
	OutcomeUpstreamError      Outcome = "upstream_error"
	OutcomeClientGone         Outcome = "client_gone"
)

// requestRecord travels with the request so each stage can note what it did.
type requestRecord struct {
	ID      string
	Client  string
	Rule    string
	Outcome Outcome
}

type recordKey struct{}

func recordFrom(ctx context.Context) *requestRecord {
	if rec, ok := ctx.Value(recordKey{}).(*requestRecord); ok {
		return rec
	}
	return &requestRecord{}
}

// track attaches a requestRecord, resolves the client identity once and
// writes the audit entry after the response completes.
func (p *Proxy) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		rec := &requestRecord{
			ID:     uuid.NewString(),
			Client: p.identity.Identify(r),
		}

		lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lw, r.WithContext(context.WithValue(r.Context(), recordKey{}, rec)))

		if p.auditLog != nil {
			p.auditLog.Log(audit.Entry{
				ID:           rec.ID,
				Timestamp:    startTime,
				Duration:     time.Since(startTime),
				Client:       rec.Client,
				Method:       r.Method,
				Path:         r.URL.EscapedPath(),
				Rule:         rec.Rule,
				Outcome:      string(rec.Outcome),
				StatusCode:   lw.statusCode,
				RequestSize:  r.ContentLength,
				ResponseSize: lw.bytesWritten,
				RemoteAddr:   r.RemoteAddr,
			})
		}
	})
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code
// and response size
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.statusCode = code
	lw.ResponseWriter.WriteHeader(code)
}

func (lw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lw.ResponseWriter.Write(b)
	lw.bytesWritten += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer's Flush.
func (lw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lw.ResponseWriter
}
