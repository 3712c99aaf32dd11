// Package clientip derives the identity used to key per-client state.
package clientip

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/seancfoley/ipaddress-go/ipaddr"
)

// Unknown is the shared identity for requests whose peer address cannot be
// determined. Every such request lands in the same rate-limit bucket.
const Unknown = "unknown"

// Resolver maps a request to a client identity.
//
// By default the identity is the connection's peer address. When trusted
// proxies are configured and the peer is one of them, the right-most
// X-Forwarded-For hop that is not itself trusted is used instead.
type Resolver struct {
	trustedV4 *ipaddr.IPv4AddressTrie
	trustedV6 *ipaddr.IPv6AddressTrie
	trusted   int
}

// New creates a resolver. trusted holds addresses or CIDR blocks.
func New(trusted []string) (*Resolver, error) {
	r := &Resolver{
		trustedV4: &ipaddr.IPv4AddressTrie{},
		trustedV6: &ipaddr.IPv6AddressTrie{},
	}
	for _, s := range trusted {
		addr, err := ipaddr.NewIPAddressString(strings.TrimSpace(s)).ToAddress()
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", s, err)
		}
		block := addr.ToPrefixBlock()
		switch {
		case block.IsIPv4():
			r.trustedV4.Add(block.ToIPv4())
		case block.IsIPv6():
			r.trustedV6.Add(block.ToIPv6())
		default:
			return nil, fmt.Errorf("invalid trusted proxy %q", s)
		}
		r.trusted++
	}
	return r, nil
}

// Identify returns the client identity for req, or Unknown.
func (r *Resolver) Identify(req *http.Request) string {
	peer, ok := parseHost(req.RemoteAddr)
	if !ok {
		return Unknown
	}
	if r.trusted == 0 || !r.isTrusted(peer) {
		return peer.String()
	}

	hops := forwardedHops(req.Header)
	for i := len(hops) - 1; i >= 0; i-- {
		hop, ok := parseAddr(hops[i])
		if !ok {
			break
		}
		if !r.isTrusted(hop) {
			return hop.String()
		}
	}
	return peer.String()
}

func (r *Resolver) isTrusted(a netip.Addr) bool {
	addr, err := ipaddr.NewIPAddressString(a.String()).ToAddress()
	if err != nil {
		return false
	}
	if addr.IsIPv4() {
		return r.trustedV4.ElementContains(addr.ToIPv4())
	}
	if addr.IsIPv6() {
		return r.trustedV6.ElementContains(addr.ToIPv6())
	}
	return false
}

func forwardedHops(h http.Header) []string {
	var hops []string
	for _, v := range h.Values("X-Forwarded-For") {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				hops = append(hops, p)
			}
		}
	}
	return hops
}

// parseHost extracts the address from a host:port pair (or a bare host).
func parseHost(remoteAddr string) (netip.Addr, bool) {
	if remoteAddr == "" {
		return netip.Addr{}, false
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return parseAddr(host)
}

// parseAddr normalizes an address: zones dropped, IPv4-mapped IPv6
// collapsed to IPv4, so one client never has two identities.
func parseAddr(s string) (netip.Addr, bool) {
	a, err := netip.ParseAddr(strings.Trim(s, "[]"))
	if err != nil {
		return netip.Addr{}, false
	}
	return a.WithZone("").Unmap(), true
}
