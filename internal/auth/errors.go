package auth

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("resource conflict")

	// ErrInvalidToken covers every session credential failure: unknown,
	// expired and revoked tokens are deliberately indistinguishable.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidCredentials covers every login failure: unknown email, bad
	// password and non-active account look the same to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInviteNotFound covers unknown and already-consumed invitation
	// tokens; ErrInviteExpired is kept distinct internally for audit detail
	// and collapsed at the HTTP boundary.
	ErrInviteNotFound = errors.New("invitation not found")
	ErrInviteExpired  = errors.New("invitation expired")

	// ErrLastOwner rejects a role change or removal that would leave an
	// organization without an active owner.
	ErrLastOwner = errors.New("organization must retain an active owner")

	// ErrRoleEscalation rejects an invitation granting a role above the
	// inviter's own.
	ErrRoleEscalation = errors.New("invitation role exceeds inviter role")

	// ErrStoreTimeout marks a store operation that exceeded its deadline.
	// Callers retry; the core never does, to avoid duplicate side effects.
	ErrStoreTimeout = errors.New("store timeout")
)

// AuthzKind identifies why an authorization check failed. The kind is
// recorded in the audit trail but never exposed to the caller.
type AuthzKind string

const (
	KindNotMember        AuthzKind = "not_member"
	KindInsufficientRole AuthzKind = "insufficient_role"
)

// AuthzError is returned by the membership authorizer.
type AuthzError struct {
	Kind           AuthzKind
	UserID         string
	OrganizationID string
}

func (e *AuthzError) Error() string {
	return fmt.Sprintf("authorization failed (%s) for user %s in organization %s",
		e.Kind, e.UserID, e.OrganizationID)
}

// AsAuthzError unwraps err into an *AuthzError if it is one.
func AsAuthzError(err error) (*AuthzError, bool) {
	var ae *AuthzError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
