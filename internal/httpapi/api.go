// Package httpapi exposes the authorization core over HTTP. Tenant-scoped
// routes sit behind a three-stage gate: bearer authentication, organization
// declaration, membership authorization.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"vibebiz.dev/internal/audit"
	"vibebiz.dev/internal/auth"
	"vibebiz.dev/internal/docs"
	"vibebiz.dev/internal/obs"
)

// ReadyProbe reports readiness (for example a database ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps carries the services the API serves.
type Deps struct {
	Sessions *auth.SessionManager
	Accounts *auth.AccountService
	Invites  *auth.InvitationService
	Authz    *auth.Authorizer
	Auditor  *audit.Logger
	Docs     *docs.Service

	// StoreTimeout bounds each request's store work; overruns surface as
	// 503, never as silent grants.
	StoreTimeout time.Duration
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	sessions *auth.SessionManager
	accounts *auth.AccountService
	invites  *auth.InvitationService
	authz    *auth.Authorizer
	auditor  *audit.Logger
	docs     *docs.Service

	storeTimeout time.Duration
}

func New(rp ReadyProbe, version string, deps Deps) *API {
	a := &API{
		mux:          http.NewServeMux(),
		readyProbe:   rp,
		version:      version,
		sessions:     deps.Sessions,
		accounts:     deps.Accounts,
		invites:      deps.Invites,
		authz:        deps.Authz,
		auditor:      deps.Auditor,
		docs:         deps.Docs,
		storeTimeout: deps.StoreTimeout,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// account lifecycle
	a.mux.HandleFunc("/v1/auth/signup", a.handleSignup)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/verify-email", a.handleVerifyEmail)
	a.mux.HandleFunc("/v1/auth/logout", a.withAuth(a.handleLogout))
	a.mux.HandleFunc("/v1/me/organizations", a.withAuth(a.handleMyOrganizations))

	// invitation acceptance needs authentication but no organization yet
	a.mux.HandleFunc("/v1/invitations/accept", a.withAuth(a.handleAcceptInvitation))

	// tenant-scoped surface
	a.mux.HandleFunc("/v1/members", a.withTenant(a.handleMembers, 0))
	a.mux.HandleFunc("/v1/members/", a.withTenant(a.handleMemberByID, 0))
	a.mux.HandleFunc("/v1/invitations", a.withTenant(a.handleInvitations, 0))
	a.mux.HandleFunc("/v1/invitations/", a.withTenant(a.handleInvitationByID, auth.RoleAdmin))
	a.mux.HandleFunc("/v1/documents", a.withTenant(a.handleDocuments, 0))
	a.mux.HandleFunc("/v1/documents/", a.withTenant(a.handleDocumentByID, 0))
	a.mux.HandleFunc("/v1/dashboard", a.withTenant(a.handleDashboard, 0))
	a.mux.HandleFunc("/v1/reports", a.withTenant(a.handleReports, auth.RoleMember))
	a.mux.HandleFunc("/v1/reports/", a.withTenant(a.handleReportByID, auth.RoleMember))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the mux wrapped in the shared middleware chain.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	if a.storeTimeout > 0 {
		h = a.withDeadline(h)
	}
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// withDeadline bounds the request context so a stalled store surfaces as a
// timeout instead of an open-ended hang.
func (a *API) withDeadline(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), a.storeTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "vibebiz-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "vibebiz-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
