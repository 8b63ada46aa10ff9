// Package auth carries the organization scope of a request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrOrganizationRequired is returned when a request names no organization.
	ErrOrganizationRequired = errors.New("organizationId is required")
	// ErrScopeMismatch is returned when a request reaches outside its authenticated organization.
	ErrScopeMismatch = errors.New("organization does not match authenticated scope")
)

type contextKey string

const organizationIDKey contextKey = "organizationID"

// ContextWithOrganizationID returns a new context that carries the authenticated organization scope.
func ContextWithOrganizationID(ctx context.Context, id uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, organizationIDKey, id)
}

// OrganizationIDFromContext retrieves the authenticated organization scope from the context, if any.
func OrganizationIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	value := ctx.Value(organizationIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	if !ok {
		return uuid.Nil, false
	}
	if id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// EnforceOrganizationScope ensures the provided organization matches the authenticated scope when present.
func EnforceOrganizationScope(ctx context.Context, organizationID uuid.UUID) error {
	if organizationID == uuid.Nil {
		return ErrOrganizationRequired
	}
	scopedID, ok := OrganizationIDFromContext(ctx)
	if !ok {
		return nil
	}
	if scopedID != organizationID {
		return fmt.Errorf("%w: organizationId %s", ErrScopeMismatch, organizationID)
	}
	return nil
}

// OrganizationHeader carries the caller's organization scope on HTTP requests.
const OrganizationHeader = "X-Organization-ID"

// Middleware scopes each request to the organization named in OrganizationHeader.
// Requests without the header pass through unscoped.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(OrganizationHeader))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			http.Error(w, "invalid "+OrganizationHeader+" header", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithOrganizationID(r.Context(), id)))
	})
}
