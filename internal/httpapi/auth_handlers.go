package httpapi

import (
	"net/http"
	"strings"

	"vibebiz.dev/internal/audit"
	"vibebiz.dev/internal/auth"
)

type signupRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FullName         string `json:"full_name"`
	OrganizationName string `json:"organization_name"`
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	result, err := a.accounts.Signup(r.Context(), req.Email, req.Password, req.FullName, req.OrganizationName)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.auditor.Record(r.Context(), audit.Entry{
		OrganizationID: result.Organization.ID,
		UserID:         result.User.ID,
		Action:         "auth.signup",
		ResourceType:   "user",
		ResourceID:     result.User.ID,
		IPAddress:      clientIP(r),
		UserAgent:      r.UserAgent(),
	})

	payload := map[string]any{
		"user":         result.User,
		"organization": result.Organization,
	}
	if result.VerifyToken != "" {
		// delivered out-of-band in production; returned here until a
		// mailer is wired up
		payload["verify_token"] = result.VerifyToken
	}
	writeJSON(w, http.StatusCreated, payload)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	pair, user, err := a.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.auditor.Record(r.Context(), audit.Entry{
			Action:    "auth.login.failed",
			Changes:   map[string]any{"email": strings.ToLower(strings.TrimSpace(req.Email))},
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		})
		writeDomainError(w, r, err)
		return
	}
	a.auditor.Record(r.Context(), audit.Entry{
		UserID:       user.ID,
		Action:       "auth.login",
		ResourceType: "session",
		ResourceID:   pair.SessionID,
		IPAddress:    clientIP(r),
		UserAgent:    r.UserAgent(),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.ExpiresAt,
		"user":          user,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	pair, err := a.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.auditor.Record(r.Context(), audit.Entry{
		Action:       "auth.refresh",
		ResourceType: "session",
		ResourceID:   pair.SessionID,
		IPAddress:    clientIP(r),
		UserAgent:    r.UserAgent(),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.ExpiresAt,
	})
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

func (a *API) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req verifyEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if err := a.accounts.VerifyEmail(r.Context(), req.Token); err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.auditor.Record(r.Context(), audit.Entry{
		Action:    "auth.email_verified",
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "verified"})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	if err := a.sessions.Revoke(r.Context(), principal.SessionID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.auditor.Record(r.Context(), audit.Entry{
		UserID:       principal.UserID,
		Action:       "auth.logout",
		ResourceType: "session",
		ResourceID:   principal.SessionID,
		IPAddress:    clientIP(r),
		UserAgent:    r.UserAgent(),
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handleMyOrganizations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	orgs, err := a.accounts.ListOrganizations(r.Context(), principal.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if orgs == nil {
		orgs = []auth.Organization{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

type acceptInvitationRequest struct {
	Token string `json:"token"`
}

func (a *API) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	var req acceptInvitationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	member, err := a.invites.Redeem(r.Context(), req.Token, principal.UserID)
	if err != nil {
		a.auditor.Record(r.Context(), audit.Entry{
			UserID:    principal.UserID,
			Action:    "invitation.accept.failed",
			Changes:   map[string]any{"reason": err.Error()},
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		})
		writeDomainError(w, r, err)
		return
	}
	a.auditor.Record(r.Context(), audit.Entry{
		OrganizationID: member.OrganizationID,
		UserID:         principal.UserID,
		Action:         "invitation.accepted",
		ResourceType:   "member",
		ResourceID:     member.ID,
		Changes:        map[string]any{"role": member.Role.String()},
		IPAddress:      clientIP(r),
		UserAgent:      r.UserAgent(),
	})
	writeJSON(w, http.StatusOK, map[string]any{"member": member})
}
