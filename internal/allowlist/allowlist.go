package allowlist

import (
	"errors"
	"net/http"
	"slices"
	"strings"
)

// Lengths of the base32 identifiers accepted in paths. An account address
// is 58 characters, a transaction id 52; both use the alphabet A-Z and 2-7.
const (
	AddressLength = 58
	TxIDLength    = 52
)

var (
	// ErrEndpointNotAllowed is returned when no rule matches the path.
	ErrEndpointNotAllowed = errors.New("endpoint not allowed")
	// ErrMethodNotAllowed is returned when a rule matches the path but not the method.
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// SegmentKind classifies one path segment of a rule.
type SegmentKind int

const (
	// Literal matches its text case-insensitively.
	Literal SegmentKind = iota
	// Digits matches one or more ASCII digits.
	Digits
	// Address matches an AddressLength base32 account address.
	Address
	// TxID matches a TxIDLength base32 transaction id.
	TxID
)

// Segment is one element of a rule's path shape.
type Segment struct {
	Kind SegmentKind
	Text string
}

func lit(s string) Segment { return Segment{Kind: Literal, Text: s} }

var (
	digits  = Segment{Kind: Digits}
	address = Segment{Kind: Address}
	txid    = Segment{Kind: TxID}
)

func (s Segment) match(v string) bool {
	switch s.Kind {
	case Literal:
		return strings.EqualFold(s.Text, v)
	case Digits:
		return v != "" && strings.IndexFunc(v, func(r rune) bool { return r < '0' || r > '9' }) < 0
	case Address:
		return len(v) == AddressLength && isBase32(v)
	case TxID:
		return len(v) == TxIDLength && isBase32(v)
	}
	return false
}

// isBase32 reports whether v uses only the RFC 4648 alphabet, either case.
func isBase32(v string) bool {
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '2' && c <= '7':
		default:
			return false
		}
	}
	return true
}

func (s Segment) String() string {
	switch s.Kind {
	case Digits:
		return "{number}"
	case Address:
		return "{address}"
	case TxID:
		return "{txid}"
	}
	return s.Text
}

func (s Segment) example() string {
	switch s.Kind {
	case Digits:
		return "1"
	case Address:
		return strings.Repeat("A", AddressLength)
	case TxID:
		return strings.Repeat("A", TxIDLength)
	}
	return s.Text
}

// Rule is one allowlisted endpoint shape.
type Rule struct {
	Name     string
	Segments []Segment
	Methods  []string
	// RateLimited marks endpoints guarded by the per-client submission limiter.
	RateLimited bool
}

// Pattern renders the rule as a path template, e.g. /v2/blocks/{number}.
func (r *Rule) Pattern() string {
	var b strings.Builder
	for _, s := range r.Segments {
		b.WriteByte('/')
		b.WriteString(s.String())
	}
	return b.String()
}

// ExamplePath returns a concrete path that matches the rule.
func (r *Rule) ExamplePath() string {
	var b strings.Builder
	for _, s := range r.Segments {
		b.WriteByte('/')
		b.WriteString(s.example())
	}
	return b.String()
}

// Allows reports whether method may be used on this endpoint.
func (r *Rule) Allows(method string) bool {
	for _, m := range r.Methods {
		if m == method {
			return true
		}
	}
	return false
}

func (r *Rule) matches(parts []string) bool {
	if len(parts) != len(r.Segments) {
		return false
	}
	for i, s := range r.Segments {
		if !s.match(parts[i]) {
			return false
		}
	}
	return true
}

// DefaultRules is the allowlist for the algod v2 API: read-only lookups,
// transaction simulation and transaction submission.
var DefaultRules = []Rule{
	{Name: "status", Segments: []Segment{lit("v2"), lit("status")}, Methods: []string{http.MethodGet}},
	{Name: "wait-for-block-after", Segments: []Segment{lit("v2"), lit("status"), lit("wait-for-block-after"), digits}, Methods: []string{http.MethodGet}},
	{Name: "transaction-params", Segments: []Segment{lit("v2"), lit("transactions"), lit("params")}, Methods: []string{http.MethodGet}},
	{Name: "account", Segments: []Segment{lit("v2"), lit("accounts"), address}, Methods: []string{http.MethodGet}},
	{Name: "block", Segments: []Segment{lit("v2"), lit("blocks"), digits}, Methods: []string{http.MethodGet}},
	{Name: "account-asset", Segments: []Segment{lit("v2"), lit("accounts"), address, lit("assets"), digits}, Methods: []string{http.MethodGet}},
	{Name: "simulate", Segments: []Segment{lit("v2"), lit("transactions"), lit("simulate")}, Methods: []string{http.MethodPost}},
	{Name: "submit", Segments: []Segment{lit("v2"), lit("transactions")}, Methods: []string{http.MethodPost}, RateLimited: true},
	{Name: "pending-transaction", Segments: []Segment{lit("v2"), lit("transactions"), lit("pending"), txid}, Methods: []string{http.MethodGet}},
	{Name: "application", Segments: []Segment{lit("v2"), lit("applications"), digits}, Methods: []string{http.MethodGet}},
}

// Registry is an ordered, immutable set of rules. It holds no mutable
// state and is safe for concurrent use.
type Registry struct {
	rules []Rule
}

// New creates a registry from rules. The slice is copied.
func New(rules []Rule) *Registry {
	return &Registry{rules: cloneRules(rules)}
}

// Default returns a registry of DefaultRules.
func Default() *Registry {
	return New(DefaultRules)
}

// Rules returns a copy of the registry's rules in match order.
func (r *Registry) Rules() []Rule {
	return cloneRules(r.rules)
}

func cloneRules(rules []Rule) []Rule {
	out := make([]Rule, len(rules))
	for i, rule := range rules {
		rule.Segments = slices.Clone(rule.Segments)
		rule.Methods = slices.Clone(rule.Methods)
		out[i] = rule
	}
	return out
}

// Match returns the first rule whose shape matches path. The path must not
// contain a query string.
func (r *Registry) Match(path string) (*Rule, bool) {
	if !strings.HasPrefix(path, "/") {
		return nil, false
	}
	parts := strings.Split(path[1:], "/")
	for i := range r.rules {
		if r.rules[i].matches(parts) {
			return &r.rules[i], true
		}
	}
	return nil, false
}

// Check applies the path allowlist and then the method policy.
func (r *Registry) Check(method, path string) (*Rule, error) {
	rule, ok := r.Match(path)
	if !ok {
		return nil, ErrEndpointNotAllowed
	}
	if !rule.Allows(method) {
		return rule, ErrMethodNotAllowed
	}
	return rule, nil
}
