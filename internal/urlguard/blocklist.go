package urlguard

import (
	"net"
	"strings"
)

// blockedCIDRs is the authoritative SSRF blocklist.
var blockedCIDRs = mustParseCIDRs([]string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"0.0.0.0/8",
	"100.64.0.0/10",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"255.255.255.255/32",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
	"ff00::/8",
})

// blockedHostnames is the hard-coded hostname blocklist: localhost variants,
// cloud metadata endpoints, and common cluster service names.
var blockedHostnames = map[string]bool{
	"localhost":                  true,
	"localhost.localdomain":      true,
	"metadata.google.internal":   true,
	"metadata.goog":              true,
	"169.254.169.254":            true,
	"kubernetes.default":         true,
	"kubernetes.default.svc":     true,
	"kubernetes.default.svc.cluster.local": true,
	"instance-data":              true,
	"consul":                     true,
	"vault":                      true,
}

func mustParseCIDRs(cidrs []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic("urlguard: invalid hard-coded CIDR " + c + ": " + err.Error())
		}
		nets = append(nets, n)
	}
	return nets
}

// isBlockedIP reports whether ip (or its IPv4-mapped-IPv6 unwrapping) falls
// in any blocked range.
func isBlockedIP(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	for _, n := range blockedCIDRs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// isBlockedHostname reports whether host matches the hard-coded blocklist,
// case-insensitively.
func isBlockedHostname(host string) bool {
	return blockedHostnames[strings.ToLower(host)]
}
