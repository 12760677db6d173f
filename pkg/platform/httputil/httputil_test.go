package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError(t *testing.T) {
	t.Run("forbidden includes required permission", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, http.StatusForbidden, "Insufficient permissions", "claims:read")

		if w.Code != http.StatusForbidden {
			t.Fatalf("expected status %d, got %d", http.StatusForbidden, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("expected json content type, got %q", ct)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "Insufficient permissions" {
			t.Fatalf("unexpected error message %q", body["error"])
		}
		if body["required"] != "claims:read" {
			t.Fatalf("expected required to be returned, got %q", body["required"])
		}
	})

	t.Run("unauthorized omits required", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, http.StatusUnauthorized, "Authentication required", "")

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if _, ok := body["required"]; ok {
			t.Fatalf("expected required to be omitted")
		}
	})
}
