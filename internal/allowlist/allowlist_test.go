package allowlist

import (
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testAddr = "7ZUECA7HFLZTXENRV24SHLU4AVPUTMTTDUFUBNBD64C73F3UHRTHAIOF6Q"
	testTxID = "JTOMSRVLTI7OOAOHK5XZTW2X5WM5JTAXKRDRBJIPAEAFJPANDJWQ"
)

func TestIdentifierFixtures(t *testing.T) {
	require.Len(t, testAddr, AddressLength)
	require.Len(t, testTxID, TxIDLength)
}

func TestMatch_AllowedPaths(t *testing.T) {
	reg := Default()

	tests := []struct {
		path string
		rule string
	}{
		{"/v2/status", "status"},
		{"/V2/STATUS", "status"},
		{"/v2/status/wait-for-block-after/12345", "wait-for-block-after"},
		{"/v2/transactions/params", "transaction-params"},
		{"/v2/accounts/" + testAddr, "account"},
		{"/v2/accounts/" + strings.ToLower(testAddr), "account"},
		{"/v2/blocks/1", "block"},
		{"/v2/accounts/" + testAddr + "/assets/31566704", "account-asset"},
		{"/v2/accounts/" + testAddr + "/assets/0", "account-asset"},
		{"/v2/transactions/simulate", "simulate"},
		{"/v2/transactions", "submit"},
		{"/v2/Transactions", "submit"},
		{"/v2/transactions/pending/" + testTxID, "pending-transaction"},
		{"/v2/applications/1284326447", "application"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rule, ok := reg.Match(tt.path)
			require.True(t, ok, "expected %s to match", tt.path)
			assert.Equal(t, tt.rule, rule.Name)
		})
	}
}

func TestMatch_RejectedPaths(t *testing.T) {
	reg := Default()

	paths := []string{
		"",
		"/",
		"v2/status",
		"/v2",
		"/v2/",
		"/v2/status/",
		"/v2//status",
		"/v1/status",
		"/v2/status/extra",
		"/v2/ledger/supply",
		"/v2/participation",
		"/v2/catchup/ABC",
		"/v2/shutdown",
		"/v2/blocks/",
		"/v2/blocks/abc",
		"/v2/blocks/-1",
		"/v2/blocks/1.5",
		"/v2/status/wait-for-block-after/",
		"/v2/applications/1/box",
		"/v2/accounts/" + testAddr[:AddressLength-1],
		"/v2/accounts/" + testAddr + "A",
		"/v2/accounts/" + strings.Repeat("1", AddressLength),
		"/v2/accounts/" + strings.Repeat("8", AddressLength),
		"/v2/accounts/" + strings.Repeat("A", AddressLength-2) + "=" + "A",
		"/v2/accounts/" + testAddr + "/assets/",
		"/v2/accounts/" + testAddr + "/assets/x",
		"/v2/accounts/" + testAddr + "/apps/1",
		"/v2/transactions/pending/" + testTxID[:TxIDLength-1],
		"/v2/transactions/pending/" + testTxID + "A",
		"/v2/transactions/pending/" + testAddr,
		"/v2/transactions/pending",
		"/v2/transactions/pending/" + testTxID + "?format=msgpack",
		"/v2/accounts/%37" + testAddr[1:],
		"/health",
	}

	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			_, ok := reg.Match(p)
			assert.False(t, ok, "expected %q not to match", p)
		})
	}
}

func TestCheck_MethodPolicy(t *testing.T) {
	reg := Default()

	tests := []struct {
		method string
		path   string
		want   error
	}{
		{http.MethodGet, "/v2/status", nil},
		{http.MethodGet, "/v2/transactions/params", nil},
		{http.MethodGet, "/v2/blocks/7", nil},
		{http.MethodPost, "/v2/status", ErrMethodNotAllowed},
		{http.MethodPut, "/v2/blocks/7", ErrMethodNotAllowed},
		{http.MethodDelete, "/v2/accounts/" + testAddr, ErrMethodNotAllowed},
		{http.MethodHead, "/v2/status", ErrMethodNotAllowed},
		{http.MethodPost, "/v2/transactions/simulate", nil},
		{http.MethodGet, "/v2/transactions/simulate", ErrMethodNotAllowed},
		{http.MethodPost, "/v2/transactions", nil},
		{http.MethodGet, "/v2/transactions", ErrMethodNotAllowed},
		{http.MethodPut, "/v2/transactions", ErrMethodNotAllowed},
		{http.MethodGet, "/v2/nope", ErrEndpointNotAllowed},
		{http.MethodPost, "/v2/nope", ErrEndpointNotAllowed},
		{http.MethodDelete, "/v2/nope", ErrEndpointNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rule, err := reg.Check(tt.method, tt.path)
			if tt.want == nil {
				require.NoError(t, err)
				require.NotNil(t, rule)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			if tt.want == ErrEndpointNotAllowed {
				assert.Nil(t, rule)
			}
		})
	}
}

func TestDefaultRules_OnlySubmitIsRateLimited(t *testing.T) {
	for _, r := range Default().Rules() {
		if r.Name == "submit" {
			assert.True(t, r.RateLimited)
		} else {
			assert.False(t, r.RateLimited, r.Name)
		}
	}
}

func TestRule_PatternAndExample(t *testing.T) {
	reg := Default()

	for _, r := range reg.Rules() {
		r := r
		t.Run(r.Name, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(r.Pattern(), "/v2"))

			matched, ok := reg.Match(r.ExamplePath())
			require.True(t, ok, "example path %s must match", r.ExamplePath())
			assert.Equal(t, r.Name, matched.Name)
		})
	}

	rule, ok := reg.Match("/v2/accounts/" + testAddr + "/assets/5")
	require.True(t, ok)
	assert.Equal(t, "/v2/accounts/{address}/assets/{number}", rule.Pattern())
}

func TestNew_CopiesRules(t *testing.T) {
	rules := []Rule{{Name: "only", Segments: []Segment{lit("ping")}, Methods: []string{http.MethodGet}}}
	reg := New(rules)
	rules[0].Name = "mutated"

	rule, ok := reg.Match("/ping")
	require.True(t, ok)
	assert.Equal(t, "only", rule.Name)

	rules[0].Segments[0] = lit("pong")
	rules[0].Methods[0] = http.MethodPost
	_, err := reg.Check(http.MethodGet, "/ping")
	assert.NoError(t, err, "caller slices must not alias the registry")
}

func TestRules_ReturnsDeepCopy(t *testing.T) {
	reg := Default()

	leaked := reg.Rules()
	for i := range leaked {
		for j := range leaked[i].Segments {
			leaked[i].Segments[j] = lit("x")
		}
		for j := range leaked[i].Methods {
			leaked[i].Methods[j] = http.MethodDelete
		}
	}

	rule, err := reg.Check(http.MethodGet, "/v2/status")
	require.NoError(t, err)
	assert.Equal(t, "/v2/status", rule.Pattern())
	_, err = reg.Check(http.MethodPost, "/v2/transactions")
	assert.NoError(t, err)
}

func TestRegistry_ConcurrentMatch(t *testing.T) {
	reg := Default()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, err := reg.Check(http.MethodGet, "/v2/accounts/"+testAddr)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}
