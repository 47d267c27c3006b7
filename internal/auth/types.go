package auth

import "time"

const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusPending  = "pending"
	UserStatusDeleted  = "deleted"
)

const (
	OrgStatusActive  = "active"
	OrgStatusDeleted = "deleted"
)

const (
	MemberStatusActive   = "active"
	MemberStatusInactive = "inactive"
)

// User is a human account. The password hash never leaves the core.
type User struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	PasswordHash  string         `json:"-"`
	FullName      string         `json:"full_name,omitempty"`
	Status        string         `json:"status"`
	EmailVerified bool           `json:"email_verified"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Organization is the unit of tenant isolation.
type Organization struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Slug      string         `json:"slug"`
	Settings  map[string]any `json:"settings,omitempty"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Member binds a user to an organization with a role. (organization, user)
// is unique; inactive memberships behave exactly like absent ones.
type Member struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id"`
	Role           Role      `json:"role"`
	Status         string    `json:"status"`
	JoinedAt       time.Time `json:"joined_at"`
}

// Session is a revocable proof of authentication. Only digests of the opaque
// tokens are stored; expiry is immutable after creation — refresh issues a
// new session instead of extending this one.
type Session struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	TokenHash        string     `json:"-"`
	RefreshTokenHash string     `json:"-"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Revoked reports whether the session was explicitly revoked.
func (s Session) Revoked() bool { return s.RevokedAt != nil }

// Invitation admits a new member once, before its expiry. Consumption
// removes the row, so a replayed token reads as never issued.
type Invitation struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	TokenHash      string    `json:"-"`
	ExpiresAt      time.Time `json:"expires_at"`
	InvitedBy      string    `json:"invited_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// Principal is the authenticated caller resolved from a session token.
type Principal struct {
	UserID    string
	SessionID string
}

// TenantContext is the outcome of a successful gate pass: the caller, the
// declared organization and the caller's role inside it.
type TenantContext struct {
	UserID         string
	OrganizationID string
	Role           Role
}
