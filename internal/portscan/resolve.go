package portscan

import (
	"net"

	"github.com/recondor/recondor/internal/errors"
	"github.com/recondor/recondor/internal/logging"
)

// ResolveTarget resolves a hostname or IP literal to a single IP address
// string. An IP literal is returned unchanged without touching the network.
// For hostnames the first resolved address wins, preferring IPv4 so probe
// addresses stay stable across runs. Resolution failure is the one fatal
// condition that aborts a scan before any probing starts.
func ResolveTarget(target string) (string, error) {
	return resolveWith(net.LookupIP, target)
}

// resolveWith lets tests supply a lookup function in place of the system
// resolver.
func resolveWith(lookup func(string) ([]net.IP, error), target string) (string, error) {
	if ip := net.ParseIP(target); ip != nil {
		return ip.String(), nil
	}

	ips, err := lookup(target)
	if err != nil {
		return "", errors.ErrResolution(target, err)
	}
	if len(ips) == 0 {
		return "", errors.ErrResolution(target, nil)
	}

	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			logging.Debug("resolved target", "target", target, "ip", v4.String())
			return v4.String(), nil
		}
	}
	return ips[0].String(), nil
}
