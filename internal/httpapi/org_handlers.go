package httpapi

import (
	"net/http"
	"strings"

	"vibebiz.dev/internal/audit"
	"vibebiz.dev/internal/auth"
)

func pathSuffix(r *http.Request, prefix string) string {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	return strings.Trim(rest, "/")
}

func (a *API) handleMembers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	tc, _ := auth.TenantFromContext(r.Context())
	members, err := a.accounts.ListMembers(r.Context(), tc.OrganizationID, tc.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if members == nil {
		members = []auth.Member{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (a *API) handleMemberByID(w http.ResponseWriter, r *http.Request) {
	userID := pathSuffix(r, "/v1/members/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
		return
	}
	tc, _ := auth.TenantFromContext(r.Context())

	switch r.Method {
	case http.MethodPatch:
		var req changeRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		role, err := auth.ParseRole(req.Role)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "validation_error", "unknown role")
			return
		}
		member, err := a.accounts.ChangeMemberRole(r.Context(), tc.OrganizationID, tc.UserID, userID, role)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		a.auditor.Record(r.Context(), audit.Entry{
			OrganizationID: tc.OrganizationID,
			UserID:         tc.UserID,
			Action:         "member.role_changed",
			ResourceType:   "member",
			ResourceID:     member.ID,
			Changes:        map[string]any{"user_id": userID, "role": role.String()},
			IPAddress:      clientIP(r),
			UserAgent:      r.UserAgent(),
		})
		writeJSON(w, http.StatusOK, map[string]any{"member": member})

	case http.MethodDelete:
		if err := a.accounts.RemoveMember(r.Context(), tc.OrganizationID, tc.UserID, userID); err != nil {
			writeDomainError(w, r, err)
			return
		}
		a.auditor.Record(r.Context(), audit.Entry{
			OrganizationID: tc.OrganizationID,
			UserID:         tc.UserID,
			Action:         "member.removed",
			ResourceType:   "member",
			ResourceID:     userID,
			IPAddress:      clientIP(r),
			UserAgent:      r.UserAgent(),
		})
		writeJSON(w, http.StatusOK, map[string]any{"status": "removed"})

	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}

type createInvitationRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (a *API) handleInvitations(w http.ResponseWriter, r *http.Request) {
	tc, _ := auth.TenantFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		invites, err := a.invites.List(r.Context(), tc.OrganizationID, tc.UserID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if invites == nil {
			invites = []auth.Invitation{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"invitations": invites})

	case http.MethodPost:
		var req createInvitationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		role, err := auth.ParseRole(req.Role)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "validation_error", "unknown role")
			return
		}
		inv, token, err := a.invites.Create(r.Context(), tc.OrganizationID, tc.UserID, req.Email, role)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		a.auditor.Record(r.Context(), audit.Entry{
			OrganizationID: tc.OrganizationID,
			UserID:         tc.UserID,
			Action:         "invitation.created",
			ResourceType:   "invitation",
			ResourceID:     inv.ID,
			Changes:        map[string]any{"email": inv.Email, "role": inv.Role.String()},
			IPAddress:      clientIP(r),
			UserAgent:      r.UserAgent(),
		})
		// the token appears exactly once, here; only its digest persists
		writeJSON(w, http.StatusCreated, map[string]any{
			"invitation": inv,
			"token":      token,
		})

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleInvitationByID(w http.ResponseWriter, r *http.Request) {
	inviteID := pathSuffix(r, "/v1/invitations/")
	if inviteID == "" || strings.Contains(inviteID, "/") {
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	tc, _ := auth.TenantFromContext(r.Context())
	if err := a.invites.Revoke(r.Context(), tc.OrganizationID, tc.UserID, inviteID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.auditor.Record(r.Context(), audit.Entry{
		OrganizationID: tc.OrganizationID,
		UserID:         tc.UserID,
		Action:         "invitation.revoked",
		ResourceType:   "invitation",
		ResourceID:     inviteID,
		IPAddress:      clientIP(r),
		UserAgent:      r.UserAgent(),
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "revoked"})
}
