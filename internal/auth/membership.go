package auth

import (
	"context"
	"errors"
	"strings"
)

// Authorizer is the single source of truth for tenant-membership decisions.
// It is read-only: membership rows change only through signup, the
// invitation redemption path and the member-management operations.
type Authorizer struct {
	store Store
}

// NewAuthorizer constructs an Authorizer.
func NewAuthorizer(store Store) *Authorizer {
	return &Authorizer{store: store}
}

// Authorize resolves the caller's membership in the declared organization.
// minRole of zero skips the rank check. An inactive membership is
// indistinguishable from no membership. The organization id is always
// explicit; callers that cannot name a tenant must be rejected upstream
// before this point.
func (a *Authorizer) Authorize(ctx context.Context, userID, orgID string, minRole Role) (Member, error) {
	userID = strings.TrimSpace(userID)
	orgID = strings.TrimSpace(orgID)
	if userID == "" || orgID == "" {
		return Member{}, ErrInvalidInput
	}
	m, err := a.store.GetMember(ctx, orgID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Member{}, &AuthzError{Kind: KindNotMember, UserID: userID, OrganizationID: orgID}
		}
		return Member{}, err
	}
	if m.Status != MemberStatusActive {
		return Member{}, &AuthzError{Kind: KindNotMember, UserID: userID, OrganizationID: orgID}
	}
	if minRole != 0 && !m.Role.AtLeast(minRole) {
		return Member{}, &AuthzError{Kind: KindInsufficientRole, UserID: userID, OrganizationID: orgID}
	}
	return m, nil
}
