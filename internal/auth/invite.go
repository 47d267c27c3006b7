package auth

import (
	"context"
	"strings"
	"time"

	"vibebiz.dev/internal/ids"
)

const defaultInviteTTL = 7 * 24 * time.Hour

// InvitationService creates, redeems and revokes organization invitations.
// An invitation is consumed at most once; consumption converts it into a
// membership.
type InvitationService struct {
	store Store
	authz *Authorizer
	now   func() time.Time
	ttl   time.Duration
}

// InviteOption configures InvitationService behavior.
type InviteOption func(*InvitationService)

// WithInviteTTL configures the invitation lifetime.
func WithInviteTTL(ttl time.Duration) InviteOption {
	return func(s *InvitationService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithInviteClock overrides the time source (useful for tests).
func WithInviteClock(fn func() time.Time) InviteOption {
	return func(s *InvitationService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewInvitationService constructs an InvitationService.
func NewInvitationService(store Store, authz *Authorizer, opts ...InviteOption) *InvitationService {
	s := &InvitationService{
		store: store,
		authz: authz,
		now:   time.Now,
		ttl:   defaultInviteTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create issues an invitation. The inviter must hold admin or above in the
// organization and may not grant a role above their own. The returned token
// is the only copy; the store keeps its digest.
func (s *InvitationService) Create(ctx context.Context, orgID, inviterID, email string, role Role) (Invitation, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return Invitation{}, "", ErrInvalidInput
	}
	if !role.Valid() {
		return Invitation{}, "", ErrInvalidInput
	}
	inviter, err := s.authz.Authorize(ctx, inviterID, orgID, RoleAdmin)
	if err != nil {
		return Invitation{}, "", err
	}
	if role > inviter.Role {
		return Invitation{}, "", ErrRoleEscalation
	}

	secret, digest, err := newTokenSecret()
	if err != nil {
		return Invitation{}, "", err
	}
	now := s.now().UTC()
	inv := &Invitation{
		ID:             ids.New(),
		OrganizationID: orgID,
		Email:          email,
		Role:           role,
		TokenHash:      digest,
		ExpiresAt:      now.Add(s.ttl),
		InvitedBy:      inviter.UserID,
		CreatedAt:      now,
	}
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return Invitation{}, "", err
	}
	return *inv, secret, nil
}

// Redeem consumes the invitation and grants membership. Unknown and
// already-consumed tokens return ErrInviteNotFound; expired tokens return
// ErrInviteExpired. Under concurrent redemption exactly one caller wins.
func (s *InvitationService) Redeem(ctx context.Context, token, userID string) (Member, error) {
	token = strings.TrimSpace(token)
	userID = strings.TrimSpace(userID)
	if token == "" || userID == "" {
		return Member{}, ErrInvalidInput
	}
	return s.store.RedeemInvitation(ctx, digestSecret(token), userID, s.now().UTC())
}

// Revoke deletes a pending invitation. Requires admin or above.
func (s *InvitationService) Revoke(ctx context.Context, orgID, actorID, inviteID string) error {
	if _, err := s.authz.Authorize(ctx, actorID, orgID, RoleAdmin); err != nil {
		return err
	}
	inviteID = strings.TrimSpace(inviteID)
	if inviteID == "" {
		return ErrInvalidInput
	}
	return s.store.DeleteInvitation(ctx, orgID, inviteID)
}

// List returns pending invitations for the organization. Requires admin or
// above; invitations carry token digests only, never plaintext tokens.
func (s *InvitationService) List(ctx context.Context, orgID, actorID string) ([]Invitation, error) {
	if _, err := s.authz.Authorize(ctx, actorID, orgID, RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.ListInvitations(ctx, orgID)
}
