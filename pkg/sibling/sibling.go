// Package sibling addresses the dashboard that runs next to this service on
// the same host under a different port.
package sibling

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

const (
	DefaultScheme = "https"
	DefaultPort   = 5000
)

// URL builds the address of the sibling service for host. The sandbox proxy
// exposes ports as a "<port>-" prefix on the hostname.
func URL(scheme string, port int, host string) string {
	if scheme == "" {
		scheme = DefaultScheme
	}
	return fmt.Sprintf("%s://%d-%s", scheme, port, host)
}

// Hostname returns what the browser would report as window.location.hostname
// for r: the forwarded or requested host without its port.
func Hostname(r *http.Request) string {
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		// may be a list when there are several proxies; the first is the client's
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return StripPort(host)
}

// StripPort removes a trailing :port and IPv6 brackets from host.
func StripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
}
