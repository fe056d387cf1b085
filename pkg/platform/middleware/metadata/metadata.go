// Package metadata resolves the client address behind trusted proxies.
package metadata

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"nexuscred/pkg/requestcontext"
)

// MaxForwardedHeaderLength bounds X-Forwarded-For and X-Real-IP values.
const MaxForwardedHeaderLength = 500

// Config lists the proxy networks allowed to set forwarding headers. With
// no trusted proxies the forwarding headers are ignored.
type Config struct {
	TrustedProxies []netip.Prefix
}

// ParseTrustedProxies parses CIDR strings. A bare address is taken as a
// single-host prefix.
func ParseTrustedProxies(raw []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if !strings.Contains(r, "/") {
			addr, err := netip.ParseAddr(r)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", r, err)
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(r)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", r, err)
		}
		out = append(out, prefix.Masked())
	}
	return out, nil
}

type Middleware struct {
	trusted []netip.Prefix
}

func NewMiddleware(cfg Config) *Middleware {
	return &Middleware{trusted: cfg.TrustedProxies}
}

// Handler stores the resolved client address in the request context,
// replacing the socket peer recorded by request.RequestID.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientIP(r.Context(), m.clientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) clientIP(r *http.Request) string {
	remote := peerAddr(r.RemoteAddr)
	if remote == "" {
		return "unknown"
	}
	if !m.isTrusted(remote) {
		return remote
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" && len(xff) <= MaxForwardedHeaderLength {
		first, _, _ := strings.Cut(xff, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
		return remote
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" && len(xri) <= MaxForwardedHeaderLength {
		if addr, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
			return addr.String()
		}
	}
	return remote
}

func (m *Middleware) isTrusted(ip string) bool {
	if len(m.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range m.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func peerAddr(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return strings.Trim(remoteAddr, "[]")
	}
	return host
}
