package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"vibebiz.dev/internal/audit"
	"vibebiz.dev/internal/auth"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the uniform error body: a stable machine code plus a
// human message. Bodies never distinguish "does not exist" from "not
// yours".
func writeError(w http.ResponseWriter, r *http.Request, code int, errCode, msg string) {
	payload := map[string]any{
		"error":   errCode,
		"message": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// writeDomainError maps service errors to HTTP responses. Invitation expiry
// collapses into not-found so probing a token reveals nothing about whether
// it ever existed.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var authzErr *auth.AuthzError
	switch {
	case errors.Is(err, auth.ErrStoreTimeout):
		writeError(w, r, http.StatusServiceUnavailable, "service_unavailable", "storage unavailable, try again")
	case errors.As(err, &authzErr):
		writeError(w, r, http.StatusForbidden, "forbidden", "you do not have access to this organization")
	case errors.Is(err, auth.ErrRoleEscalation):
		writeError(w, r, http.StatusForbidden, "forbidden", "cannot grant a role above your own")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "authentication_required", "invalid or expired token")
	case errors.Is(err, auth.ErrInviteNotFound), errors.Is(err, auth.ErrInviteExpired):
		writeError(w, r, http.StatusNotFound, "invitation_not_found", "invitation not found")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, auth.ErrLastOwner):
		writeError(w, r, http.StatusConflict, "last_owner", "an organization must retain at least one active owner")
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, "conflict", "resource already exists")
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
