package pkg

import (
	"net/http"
	"strings"
)

// ReadUserIP reads the client address, preferring the proxy-set headers
// over the raw remote address.
func ReadUserIP(r *http.Request) string {
	ipAddr := r.Header.Get("X-Real-Ip")
	if ipAddr == "" {
		ipAddr = r.Header.Get("X-Forwarded-For")
	}
	if ipAddr == "" {
		ipAddr = r.RemoteAddr
	}

	if host, _, found := strings.Cut(ipAddr, ":"); found {
		return host
	}
	return ipAddr
}
