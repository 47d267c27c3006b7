package auth

import (
	"context"
	"time"
)

// Store describes persistence required by the authorization core. It is the
// only shared mutable state; every operation honors the caller's context
// deadline and maps a deadline overrun to ErrStoreTimeout.
//
// Operations with an exactly-once contract (session rotation, invitation
// redemption, the last-owner guarantee) are single atomic transactions in
// the implementation: concurrent racers resolve to one winner.
type Store interface {
	// CreateUserWithOrganization runs signup as one transaction: the user,
	// the organization and the active owner membership all exist or none do.
	CreateUserWithOrganization(ctx context.Context, u *User, org *Organization, m *Member) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	// ActivateUser flips a pending user to active and marks the email
	// verified. Activating an already-active user is a no-op.
	ActivateUser(ctx context.Context, userID string) error

	GetOrganization(ctx context.Context, id string) (Organization, error)
	ListOrganizationsForUser(ctx context.Context, userID string) ([]Organization, error)

	GetMember(ctx context.Context, orgID, userID string) (Member, error)
	ListMembers(ctx context.Context, orgID string) ([]Member, error)
	// UpdateMemberRole changes a member's role; demoting the last active
	// owner fails with ErrLastOwner.
	UpdateMemberRole(ctx context.Context, orgID, userID string, role Role) (Member, error)
	// DeactivateMember soft-removes a membership (the row is retained and
	// may be reactivated by a later invitation). Removing the last active
	// owner fails with ErrLastOwner.
	DeactivateMember(ctx context.Context, orgID, userID string) error

	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	// RevokeSession sets revoked_at; revoking twice is not an error.
	RevokeSession(ctx context.Context, id string) error
	// RotateSession revokes the old session and creates the next one
	// atomically. It fails with ErrInvalidToken when the old session was
	// already revoked, so a concurrent revoke-and-refresh race has exactly
	// one outcome.
	RotateSession(ctx context.Context, oldID string, next *Session) error

	CreateInvitation(ctx context.Context, inv *Invitation) error
	ListInvitations(ctx context.Context, orgID string) ([]Invitation, error)
	DeleteInvitation(ctx context.Context, orgID, inviteID string) error
	// RedeemInvitation consumes the invitation identified by tokenHash and
	// creates or reactivates the membership, all in one transaction.
	// Consumption deletes the row, so concurrent redeemers and replays get
	// ErrInviteNotFound; a past-expiry token gets ErrInviteExpired.
	RedeemInvitation(ctx context.Context, tokenHash, userID string, now time.Time) (Member, error)
}
