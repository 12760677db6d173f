package metadata

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"medgate/pkg/requestcontext"
)

// ClientResolver derives the client address of a request. Forwarding headers
// are honoured only when the direct peer is a trusted proxy.
type ClientResolver struct {
	trusted []netip.Prefix
}

// NewClientResolver parses trusted proxy CIDRs. Bare addresses are accepted
// as single-host prefixes. With no entries only the socket peer is used.
func NewClientResolver(trustedProxies []string) (*ClientResolver, error) {
	res := &ClientResolver{}
	for _, raw := range trustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			addr, addrErr := netip.ParseAddr(raw)
			if addrErr != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			prefix = netip.PrefixFrom(addr, addr.BitLen())
		}
		res.trusted = append(res.trusted, prefix.Masked())
	}
	return res, nil
}

// Middleware adds the client IP and User-Agent to the request context.
// Apply early in the chain.
func (c *ClientResolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), c.ClientIP(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the socket peer unless it is a trusted proxy. Behind a
// trusted proxy it walks X-Forwarded-For from the right and returns the first
// hop that is not itself trusted, falling back to X-Real-IP.
func (c *ClientResolver) ClientIP(r *http.Request) string {
	peer := peerAddress(r.RemoteAddr)
	if !c.isTrusted(peer) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			addr, err := netip.ParseAddr(hop)
			if err != nil {
				// Anything left of a malformed hop is client-controlled.
				return peer
			}
			if !c.isTrustedAddr(addr) {
				return addr.Unmap().String()
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.Unmap().String()
		}
	}
	return peer
}

func (c *ClientResolver) isTrusted(peer string) bool {
	if len(c.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil {
		return false
	}
	return c.isTrustedAddr(addr)
}

func (c *ClientResolver) isTrustedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func peerAddress(remoteAddr string) string {
	if remoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// ClientMetadata records the socket peer and User-Agent without trusting
// any forwarding header.
func ClientMetadata(next http.Handler) http.Handler {
	return (&ClientResolver{}).Middleware(next)
}

// GetClientIP retrieves the client IP address from the context.
func GetClientIP(ctx context.Context) string {
	return requestcontext.ClientIP(ctx)
}

// GetUserAgent retrieves the User-Agent from the context.
func GetUserAgent(ctx context.Context) string {
	return requestcontext.UserAgent(ctx)
}
