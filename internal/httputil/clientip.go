package httputil

import (
	"net"
	"net/http"
	"strings"
)

// proxyHeaders are consulted in order when the server trusts the proxy in
// front of it.
var proxyHeaders = []string{"X-Forwarded-For", "X-Real-IP"}

// ClientIP returns the address the stream limiter and request logs should
// attribute a request to. With trustProxy set, proxy headers are checked
// first; a value that does not parse as an IP is skipped, so a forged
// header cannot mint arbitrary limiter keys. Falls back to RemoteAddr with
// the port stripped. Only set trustProxy when a trusted reverse proxy is
// the sole path to the server.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, name := range proxyHeaders {
			// X-Forwarded-For may carry a chain; the leftmost entry is
			// the originating client.
			v := r.Header.Get(name)
			if i := strings.IndexByte(v, ','); i >= 0 {
				v = v[:i]
			}
			v = strings.TrimSpace(v)
			if net.ParseIP(v) != nil {
				return v
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
