package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"vibebiz.dev/internal/audit"
	"vibebiz.dev/internal/auth"
	"vibebiz.dev/internal/obs"
)

const orgHeader = "X-Organization-ID"

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// withAuth resolves the bearer token into a Principal. Missing, malformed,
// expired and revoked tokens all produce the same 401.
func (a *API) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			a.rejectUnauthenticated(w, r, "missing bearer token")
			return
		}
		principal, err := a.sessions.ValidateToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrStoreTimeout) {
				writeDomainError(w, r, err)
				return
			}
			a.rejectUnauthenticated(w, r, "invalid token")
			return
		}
		next(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
	}
}

// withTenant runs the full gate: authenticate, require the organization
// header, then authorize membership at minRole. Header validation precedes
// any membership lookup.
func (a *API) withTenant(next http.HandlerFunc, minRole auth.Role) http.HandlerFunc {
	return a.withAuth(func(w http.ResponseWriter, r *http.Request) {
		principal, _ := auth.PrincipalFromContext(r.Context())

		orgID := strings.TrimSpace(r.Header.Get(orgHeader))
		if orgID == "" {
			a.rejectGate(w, r, audit.Entry{
				UserID:  principal.UserID,
				Action:  "access.denied",
				Changes: map[string]any{"reason": "missing_organization_header"},
			}, "missing_organization")
			writeError(w, r, http.StatusBadRequest, "missing_organization", orgHeader+" header is required")
			return
		}

		member, err := a.authz.Authorize(r.Context(), principal.UserID, orgID, minRole)
		if err != nil {
			if errors.Is(err, auth.ErrStoreTimeout) {
				writeDomainError(w, r, err)
				return
			}
			kind := "authorization_failed"
			if ae, ok := auth.AsAuthzError(err); ok {
				kind = string(ae.Kind)
			}
			a.rejectGate(w, r, audit.Entry{
				OrganizationID: orgID,
				UserID:         principal.UserID,
				Action:         "access.denied",
				Changes:        map[string]any{"reason": kind},
			}, kind)
			writeError(w, r, http.StatusForbidden, "forbidden", "you do not have access to this organization")
			return
		}

		tc := auth.TenantContext{
			UserID:         principal.UserID,
			OrganizationID: orgID,
			Role:           member.Role,
		}
		next(w, r.WithContext(auth.ContextWithTenant(r.Context(), tc)))
	})
}

func (a *API) rejectUnauthenticated(w http.ResponseWriter, r *http.Request, reason string) {
	obs.CountRejection("unauthenticated")
	a.auditor.Record(r.Context(), audit.Entry{
		Action:       "access.denied",
		ResourceType: "route",
		ResourceID:   r.URL.Path,
		Changes:      map[string]any{"reason": reason},
		IPAddress:    clientIP(r),
		UserAgent:    r.UserAgent(),
	})
	writeError(w, r, http.StatusUnauthorized, "authentication_required", "authentication required")
}

func (a *API) rejectGate(w http.ResponseWriter, r *http.Request, entry audit.Entry, kind string) {
	obs.CountRejection(kind)
	entry.ResourceType = "route"
	entry.ResourceID = r.URL.Path
	entry.IPAddress = clientIP(r)
	entry.UserAgent = r.UserAgent()
	a.auditor.Record(r.Context(), entry)
}
