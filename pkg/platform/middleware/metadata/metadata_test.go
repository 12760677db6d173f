package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	behindProxy, err := NewClientResolver([]string{"10.0.0.0/8", "192.168.1.1"})
	require.NoError(t, err)
	direct, err := NewClientResolver(nil)
	require.NoError(t, err)

	tests := []struct {
		name       string
		resolver   *ClientResolver
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"untrusted peer ignores forwarded for", direct, "192.0.2.1:1234", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "192.0.2.1"},
		{"untrusted peer ignores real ip", direct, "192.0.2.1:1234", map[string]string{"X-Real-IP": "198.51.100.4"}, "192.0.2.1"},
		{"trusted peer takes right-most untrusted hop", behindProxy, "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "198.51.100.9, 203.0.113.7, 10.0.0.2"}, "203.0.113.7"},
		{"spoofed left hops are ignored", behindProxy, "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.7"}, "203.0.113.7"},
		{"single host trusted entry", behindProxy, "192.168.1.1:80", map[string]string{"X-Forwarded-For": " 203.0.113.8 "}, "203.0.113.8"},
		{"malformed hop falls back to peer", behindProxy, "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "203.0.113.7, not-an-ip"}, "10.0.0.1"},
		{"trusted peer real ip", behindProxy, "10.0.0.1:1234", map[string]string{"X-Real-IP": "198.51.100.4"}, "198.51.100.4"},
		{"trusted peer without headers", behindProxy, "10.0.0.1:1234", nil, "10.0.0.1"},
		{"ipv4 remote addr", direct, "192.0.2.1:5555", nil, "192.0.2.1"},
		{"ipv6 remote addr", direct, "[::1]:5555", nil, "::1"},
		{"remote addr without port", direct, "192.0.2.9", nil, "192.0.2.9"},
		{"empty remote addr", direct, "", nil, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, tt.resolver.ClientIP(r))
		})
	}
}

func TestNewClientResolverRejectsGarbage(t *testing.T) {
	_, err := NewClientResolver([]string{"10.0.0.0/8", "proxy.internal"})
	require.Error(t, err)
}

func TestClientMetadata(t *testing.T) {
	var ip, ua string
	h := ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = GetClientIP(r.Context())
		ua = GetUserAgent(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:80"
	r.Header.Set("User-Agent", "curl/8.0")
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "192.0.2.1", ip)
	assert.Equal(t, "curl/8.0", ua)
}
