package secpipe

import (
	"net"

	"github.com/pkg/errors"
)

// allowList holds the parsed admin-path allow-list. Loopback addresses
// are always allowed so a local operator cannot lock themselves out.
type allowList struct {
	nets  []*net.IPNet
	hosts []net.IP
}

// newAllowList parses CIDR ranges and bare host addresses. A malformed
// entry is a configuration error.
func newAllowList(entries []string) (*allowList, error) {
	a := &allowList{}

	for _, entry := range entries {
		if _, network, err := net.ParseCIDR(entry); err == nil {
			a.nets = append(a.nets, network)
			continue
		}

		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, errors.Errorf("allow-list entry %q is neither a CIDR range nor an IP address", entry)
		}

		a.hosts = append(a.hosts, ip)
	}

	return a, nil
}

func (a *allowList) empty() bool {
	return len(a.nets) == 0 && len(a.hosts) == 0
}

func (a *allowList) contains(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}

	if ip.IsLoopback() {
		return true
	}

	for _, host := range a.hosts {
		if host.Equal(ip) {
			return true
		}
	}

	for _, network := range a.nets {
		if network.Contains(ip) {
			return true
		}
	}

	return false
}
