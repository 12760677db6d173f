package failsafe

import (
	"net/http"
	"strings"

	"medgate/pkg/platform/middleware/request"
	"medgate/pkg/requestcontext"
)

// Redacted replaces every sensitive value.
const Redacted = "[REDACTED]"

const maxSanitizeDepth = 16

// Normalized (lowercase, no separators) keys that are always redacted.
var sensitiveKeys = map[string]struct{}{
	"ssn":                  {},
	"socialsecuritynumber": {},
	"authorization":        {},
	"proxyauthorization":   {},
	"cookie":               {},
	"setcookie":            {},
}

// Normalized fragments that mark a key sensitive wherever they appear.
var sensitiveFragments = []string{"password", "passwd", "secret", "token", "apikey"}

// IsSensitiveKey reports whether values under key must be redacted.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	k = strings.NewReplacer("-", "", "_", "", " ", "").Replace(k)
	if _, ok := sensitiveKeys[k]; ok {
		return true
	}
	for _, f := range sensitiveFragments {
		if strings.Contains(k, f) {
			return true
		}
	}
	return false
}

// Sanitize returns a deep copy of v with sensitive values replaced by
// Redacted. Keys are kept. Sanitize(Sanitize(v)) equals Sanitize(v).
func Sanitize(v any) any {
	return sanitizeValue(v, 0)
}

func sanitizeValue(v any, depth int) any {
	if depth > maxSanitizeDepth {
		return Redacted
	}
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if IsSensitiveKey(k) {
				out[k] = Redacted
				continue
			}
			out[k] = sanitizeValue(child, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = sanitizeValue(child, depth+1)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if IsSensitiveKey(k) {
				out[k] = Redacted
				continue
			}
			out[k] = child
		}
		return out
	default:
		return v
	}
}

// SanitizeHeaders flattens and redacts request headers.
func SanitizeHeaders(h http.Header) map[string]any {
	out := make(map[string]any, len(h))
	for k, values := range h {
		if IsSensitiveKey(k) {
			out[k] = Redacted
			continue
		}
		out[k] = strings.Join(values, ", ")
	}
	return out
}

// Snapshot captures the sanitized request state stored with an error record.
func Snapshot(r *http.Request) map[string]any {
	ctx := r.Context()
	snap := map[string]any{
		"method":     r.Method,
		"path":       r.URL.Path,
		"headers":    SanitizeHeaders(r.Header),
		"request_id": request.GetRequestID(ctx),
	}
	if len(r.URL.Query()) > 0 {
		query := make(map[string]any, len(r.URL.Query()))
		for k, v := range r.URL.Query() {
			query[k] = strings.Join(v, ",")
		}
		snap["query"] = Sanitize(query)
	}
	if body := requestcontext.Body(ctx); body != nil {
		snap["body"] = Sanitize(body)
	}
	return snap
}
