package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the normalized client address from a request:
//  1. X-Forwarded-For (first entry of the comma-separated list)
//  2. RemoteAddr (direct connection), with any port stripped
//
// IPv6-mapped IPv4 addresses ("::ffff:203.0.113.7") are reduced to their
// IPv4 form so the attacker-state key is stable across transports.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return normalize(strings.TrimSpace(parts[0]))
	}

	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return normalize(addr)
}

func normalize(ip string) string {
	return strings.TrimPrefix(ip, "::ffff:")
}
