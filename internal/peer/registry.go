package peer

import (
	"fmt"
	"net"
	"strings"
)

// Registry resolves configured client/server host names to address sets at
// startup and answers reverse lookups from an inbound source address back
// to the configured peer, per spec §4.3. Resolved sets are captured once
// and never refreshed.
type Registry struct {
	Clients   []*Client
	Upstreams []*Upstream
}

// ResolveHost resolves host to its full set of addresses, exactly once.
// Loopback/literal IPs resolve to themselves.
func ResolveHost(host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	addrs, err := net.LookupHost(host)
	if err != nil {
		return nil, fmt.Errorf("peer: resolving %q: %w", host, err)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		ip := net.ParseIP(a)
		if ip == nil {
			continue
		}
		ips = append(ips, ip)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("peer: %q resolved to no usable addresses", host)
	}
	return ips, nil
}

// normalizeIP compares an IPv4-mapped IPv6 address as its IPv4 form, per
// spec §4.3.
func normalizeIP(ip net.IP) net.IP {
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	return ip
}

func addrMatchesSet(addr net.IP, set []net.IP) bool {
	a := normalizeIP(addr)
	for _, ip := range set {
		if normalizeIP(ip).Equal(a) {
			return true
		}
	}
	return false
}

// ClientByAddr returns the first configured client whose resolved address
// set contains addr, first-match order as configured.
func (r *Registry) ClientByAddr(addr net.IP) (*Client, bool) {
	for _, c := range r.Clients {
		if addrMatchesSet(addr, c.Addrs) {
			return c, true
		}
	}
	return nil, false
}

// ClientByName looks up a configured client by its block name
// (case-insensitive).
func (r *Registry) ClientByName(name string) (*Client, bool) {
	for _, c := range r.Clients {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return nil, false
}

// UpstreamByName looks up a configured upstream by its block name
// (case-insensitive).
func (r *Registry) UpstreamByName(name string) (*Upstream, bool) {
	for _, u := range r.Upstreams {
		if strings.EqualFold(u.Name, name) {
			return u, true
		}
	}
	return nil, false
}
