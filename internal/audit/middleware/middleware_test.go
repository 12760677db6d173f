package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medgate/internal/audit/recorder"
	id "medgate/pkg/domain"
	audit "medgate/pkg/platform/audit"
	"medgate/pkg/platform/middleware/body"
	"medgate/pkg/requestcontext"
)

type captureRecorder struct {
	entries []recorder.Entry
}

func (c *captureRecorder) Record(_ context.Context, e recorder.Entry) {
	c.entries = append(c.entries, e)
}

func TestAudit(t *testing.T) {
	t.Run("captures status and inner outcome", func(t *testing.T) {
		rec := &captureRecorder{}
		who := id.IdentityID(uuid.New())
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			o := requestcontext.OutcomeFrom(r.Context())
			o.SetIdentity(who)
			o.SetTag(audit.TagPermissionDenied)
			w.WriteHeader(http.StatusForbidden)
		})

		h := Audit(rec)(inner)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/claims/7", nil))

		require.Len(t, rec.entries, 1)
		e := rec.entries[0]
		assert.Equal(t, http.StatusForbidden, e.Status)
		assert.Equal(t, who, e.PrincipalID)
		assert.Equal(t, audit.TagPermissionDenied, e.Tag)
		assert.Equal(t, audit.ResourceClaim, e.Classification.ResourceType)
		assert.Equal(t, "7", e.Classification.ResourceID)
	})

	t.Run("default status is 200", func(t *testing.T) {
		rec := &captureRecorder{}
		h := Audit(rec)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/providers", nil))
		require.Len(t, rec.entries, 1)
		assert.Equal(t, http.StatusOK, rec.entries[0].Status)
	})

	t.Run("body shape from captured body", func(t *testing.T) {
		rec := &captureRecorder{}
		h := body.Capture(1 << 16)(Audit(rec)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})))
		req := httptest.NewRequest(http.MethodPost, "/api/members", strings.NewReader(`{"ssn":"123-45-6789"}`))
		req.Header.Set("Content-Type", "application/json")
		h.ServeHTTP(httptest.NewRecorder(), req)

		require.Len(t, rec.entries, 1)
		assert.Contains(t, rec.entries[0].Classification.PHIElements, audit.PHISSN)
	})
}
