// Package body captures JSON object request bodies once so the request
// classifier and the error sanitizer can inspect them without consuming the
// stream the business handler reads.
package body

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"medgate/pkg/requestcontext"
)

// DefaultMaxBytes bounds how much of a body is buffered for inspection.
const DefaultMaxBytes int64 = 1 << 20

// Capture buffers up to maxBytes of a JSON body, restores it for downstream
// handlers, and stores the decoded top-level object in the request context.
// Oversized, non-JSON or non-object bodies pass through uncaptured.
func Capture(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.ContentLength == 0 || !isJSON(r.Header.Get("Content-Type")) {
				next.ServeHTTP(w, r)
				return
			}

			buf, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
			rest := r.Body
			r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(buf), rest), Closer: rest}
			if err != nil || int64(len(buf)) > maxBytes {
				next.ServeHTTP(w, r)
				return
			}

			var decoded map[string]any
			if json.Unmarshal(buf, &decoded) != nil || decoded == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithBody(r.Context(), decoded)))
		})
	}
}

type readCloser struct {
	io.Reader
	io.Closer
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}
