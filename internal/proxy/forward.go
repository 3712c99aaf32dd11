package proxy

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultContentType is sent upstream with a request body when the client
// did not declare one. algod accepts signed transactions as msgpack.
const DefaultContentType = "application/msgpack"

const copyBufferSize = 32 * 1024

// forwarder issues admitted requests to the upstream node and streams the
// response back.
type forwarder struct {
	base        string
	client      *http.Client
	transport   *http.Transport
	tokenHeader string
	token       func() string
	logger      *slog.Logger
}

func newForwarder(target *url.URL, cfg *Config, token func() string) *forwarder {
	f := &forwarder{
		base:        strings.TrimRight(target.String(), "/"),
		tokenHeader: cfg.TokenHeader,
		token:       token,
		logger:      cfg.Logger,
	}

	rt := cfg.Transport
	if rt == nil {
		// Compression stays off so upstream bytes reach the client as sent.
		f.transport = &http.Transport{
			Proxy: nil,
			DialContext: (&net.Dialer{
				Timeout:   cfg.DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   100,
			IdleConnTimeout:       90 * time.Second,
			DisableCompression:    true,
		}
		rt = f.transport
	}

	f.client = &http.Client{
		Transport: rt,
		// Redirects are the client's business; pass them through untouched.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return f
}

// target joins the upstream base with the request's path and query exactly
// as received.
func (f *forwarder) target(r *http.Request) string {
	u := f.base + r.URL.EscapedPath()
	if r.URL.RawQuery != "" || r.URL.ForceQuery {
		u += "?" + r.URL.RawQuery
	}
	return u
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// serve forwards r and writes the upstream response to w. The request body
// and the response body are streamed, never buffered whole. The upstream
// call is bound to the request context, so a client disconnect abandons it.
func (f *forwarder) serve(w http.ResponseWriter, r *http.Request) Outcome {
	target := f.target(r)

	var body io.Reader
	if hasBody(r.Method) && r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0 {
		body = r.Body
	}

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
	if err != nil {
		f.logger.Error("failed to build upstream request", "error", err, "path", r.URL.EscapedPath())
		writeError(w, http.StatusBadGateway, msgProxyError, err.Error())
		return OutcomeUpstreamError
	}
	if body != nil {
		out.ContentLength = r.ContentLength
	}

	out.Header = make(http.Header)
	out.Header.Set(f.tokenHeader, f.token())
	if hasBody(r.Method) {
		ct := r.Header.Get("Content-Type")
		if ct == "" {
			ct = DefaultContentType
		}
		out.Header.Set("Content-Type", ct)
	}

	resp, err := f.client.Do(out)
	if err != nil {
		if r.Context().Err() != nil {
			f.logger.Debug("client went away before upstream responded", "path", r.URL.EscapedPath())
			return OutcomeClientGone
		}
		f.logger.Error("proxy error", "error", err, "path", r.URL.EscapedPath())
		writeError(w, http.StatusBadGateway, msgProxyError, err.Error())
		return OutcomeUpstreamError
	}
	defer resp.Body.Close()

	// Upstream headers are not forwarded. A nil Content-Type stops net/http
	// from sniffing one.
	w.Header()["Content-Type"] = nil
	w.WriteHeader(resp.StatusCode)
	if err := http.NewResponseController(w).Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		f.logger.Debug("client went away before response body", "path", r.URL.EscapedPath(), "error", err)
		return OutcomeClientGone
	}

	if err := streamBody(w, resp.Body); err != nil {
		if r.Context().Err() != nil || errors.Is(err, errClientWrite) {
			f.logger.Debug("client went away mid-response", "path", r.URL.EscapedPath(), "error", err)
			return OutcomeClientGone
		}
		f.logger.Warn("upstream response interrupted", "path", r.URL.EscapedPath(), "error", err)
	}
	return OutcomeForwarded
}

var errClientWrite = errors.New("write to client failed")

// streamBody copies src to w chunk by chunk, flushing after each chunk so
// long-polling and large responses reach the client as they arrive.
func streamBody(w http.ResponseWriter, src io.Reader) error {
	rc := http.NewResponseController(w)
	buf := make([]byte, copyBufferSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return errors.Join(errClientWrite, werr)
			}
			if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
				return errors.Join(errClientWrite, ferr)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

func (f *forwarder) close() {
	if f.transport != nil {
		f.transport.CloseIdleConnections()
	}
}
