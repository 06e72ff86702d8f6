package api

import (
	"context"
	"net/http"
	"strings"
)

// OrgContextKey is the key for storing the organization id in a request context
type OrgContextKey struct{}

// orgHeader carries the caller's organization. Reports are always scoped to it.
const orgHeader = "X-Org-ID"

// orgContext resolves the organization and stores it on the request context.
// Priority: 1. X-Org-ID header, 2. org_id query param, 3. configured default
func (h *Handlers) orgContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		org := strings.TrimSpace(r.Header.Get(orgHeader))
		if org == "" {
			org = strings.TrimSpace(r.URL.Query().Get("org_id"))
		}
		if org == "" {
			org = h.defaultOrg
		}
		if org == "" {
			respondError(w, http.StatusUnauthorized, "organization context required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), OrgContextKey{}, org)))
	})
}

// GetOrgIDFromContext retrieves the organization id from context
func GetOrgIDFromContext(ctx context.Context) string {
	org, _ := ctx.Value(OrgContextKey{}).(string)
	return org
}

func orgID(r *http.Request) string {
	return GetOrgIDFromContext(r.Context())
}
