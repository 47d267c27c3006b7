package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"vibebiz.dev/internal/ids"
)

// AccountService handles signup, email verification and member management.
type AccountService struct {
	store    Store
	authz    *Authorizer
	verifier *Verifier
	now      func() time.Time
}

// NewAccountService constructs an AccountService. The verifier may be nil,
// in which case signup creates active users with no verification step.
func NewAccountService(store Store, authz *Authorizer, verifier *Verifier) *AccountService {
	return &AccountService{
		store:    store,
		authz:    authz,
		verifier: verifier,
		now:      time.Now,
	}
}

// SignupResult is returned by Signup. VerifyToken is empty when email
// verification is disabled.
type SignupResult struct {
	User         User
	Organization Organization
	VerifyToken  string
}

// Signup creates the user, their organization and the owner membership in
// one transaction. The user starts pending until email verification unless
// verification is disabled.
func (s *AccountService) Signup(ctx context.Context, email, password, fullName, orgName string) (SignupResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return SignupResult{}, errors.Join(ErrInvalidInput, errors.New("valid email is required"))
	}
	if len(strings.TrimSpace(password)) < 8 {
		return SignupResult{}, errors.Join(ErrInvalidInput, errors.New("password must be at least 8 characters"))
	}
	orgName = strings.TrimSpace(orgName)
	if orgName == "" {
		return SignupResult{}, errors.Join(ErrInvalidInput, errors.New("organization name is required"))
	}
	slug := Slugify(orgName)
	if slug == "" {
		return SignupResult{}, errors.Join(ErrInvalidInput, errors.New("organization name yields an empty slug"))
	}

	hash, err := HashPassword(password)
	if err != nil {
		return SignupResult{}, err
	}

	now := s.now().UTC()
	status := UserStatusActive
	if s.verifier != nil {
		status = UserStatusPending
	}
	user := &User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(fullName),
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	org := &Organization{
		ID:        ids.New(),
		Name:      orgName,
		Slug:      slug,
		Status:    OrgStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	member := &Member{
		ID:             ids.New(),
		OrganizationID: org.ID,
		UserID:         user.ID,
		Role:           RoleOwner,
		Status:         MemberStatusActive,
		JoinedAt:       now,
	}
	if err := s.store.CreateUserWithOrganization(ctx, user, org, member); err != nil {
		return SignupResult{}, err
	}

	result := SignupResult{User: *user, Organization: *org}
	if s.verifier != nil {
		token, err := s.verifier.IssueToken(user.ID, user.Email)
		if err != nil {
			return SignupResult{}, err
		}
		result.VerifyToken = token
	}
	return result, nil
}

// VerifyEmail consumes a verification token, moving the user from pending to
// active. Verifying an already-active user succeeds (idempotent).
func (s *AccountService) VerifyEmail(ctx context.Context, token string) error {
	if s.verifier == nil {
		return ErrInvalidToken
	}
	userID, _, err := s.verifier.ParseToken(token)
	if err != nil {
		return err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	switch user.Status {
	case UserStatusActive:
		return nil
	case UserStatusPending:
		return s.store.ActivateUser(ctx, userID)
	default:
		// inactive and deleted accounts never reactivate via verification
		return ErrInvalidToken
	}
}

// ListOrganizations returns the organizations the user actively belongs to.
func (s *AccountService) ListOrganizations(ctx context.Context, userID string) ([]Organization, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.store.ListOrganizationsForUser(ctx, userID)
}

// ListMembers returns the organization's memberships. Any active member may
// list them.
func (s *AccountService) ListMembers(ctx context.Context, orgID, actorID string) ([]Member, error) {
	if _, err := s.authz.Authorize(ctx, actorID, orgID, 0); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, orgID)
}

// ChangeMemberRole updates a member's role. The actor must hold admin or
// above and may not assign a role above their own. Demoting the last active
// owner fails with ErrLastOwner.
func (s *AccountService) ChangeMemberRole(ctx context.Context, orgID, actorID, targetUserID string, role Role) (Member, error) {
	if !role.Valid() {
		return Member{}, ErrInvalidInput
	}
	actor, err := s.authz.Authorize(ctx, actorID, orgID, RoleAdmin)
	if err != nil {
		return Member{}, err
	}
	if role > actor.Role {
		return Member{}, ErrRoleEscalation
	}
	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" {
		return Member{}, ErrInvalidInput
	}
	return s.store.UpdateMemberRole(ctx, orgID, targetUserID, role)
}

// RemoveMember deactivates a membership. Admins and above may remove anyone;
// any member may remove themselves. Removing the last active owner fails
// with ErrLastOwner.
func (s *AccountService) RemoveMember(ctx context.Context, orgID, actorID, targetUserID string) error {
	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" {
		return ErrInvalidInput
	}
	minRole := Role(0)
	if actorID != targetUserID {
		minRole = RoleAdmin
	}
	if _, err := s.authz.Authorize(ctx, actorID, orgID, minRole); err != nil {
		return err
	}
	return s.store.DeactivateMember(ctx, orgID, targetUserID)
}
