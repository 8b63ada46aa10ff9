package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnforceOrganizationScope(t *testing.T) {
	orgA := uuid.New()
	orgB := uuid.New()

	require.ErrorIs(t, EnforceOrganizationScope(context.Background(), uuid.Nil), ErrOrganizationRequired)
	require.NoError(t, EnforceOrganizationScope(context.Background(), orgA))

	scoped := ContextWithOrganizationID(context.Background(), orgA)
	require.NoError(t, EnforceOrganizationScope(scoped, orgA))
	require.ErrorIs(t, EnforceOrganizationScope(scoped, orgB), ErrScopeMismatch)

	_, ok := OrganizationIDFromContext(ContextWithOrganizationID(context.Background(), uuid.Nil))
	assert.False(t, ok)
}

func TestMiddleware(t *testing.T) {
	org := uuid.New()
	var seen uuid.UUID
	var scoped bool
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, scoped = OrganizationIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/imports", nil)
	req.Header.Set(OrganizationHeader, org.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, scoped)
	assert.Equal(t, org, seen)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, scoped)

	req = httptest.NewRequest(http.MethodGet, "/imports", nil)
	req.Header.Set(OrganizationHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
