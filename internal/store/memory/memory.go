// Package memory provides an in-memory Store used by tests and DSN-less
// development runs. A single mutex guards all state, which makes the
// conditional writes (session rotation, invitation redemption) atomic.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"vibebiz.dev/internal/audit"
	"vibebiz.dev/internal/auth"
	"vibebiz.dev/internal/ids"
)

// Store implements auth.Store and audit.Store in memory.
type Store struct {
	mu sync.Mutex

	users        map[string]auth.User
	usersByEmail map[string]string

	orgs     map[string]auth.Organization
	orgSlugs map[string]string

	members map[string]auth.Member // key orgID + "\x00" + userID

	sessions map[string]auth.Session

	invitations   map[string]auth.Invitation
	invitesByHash map[string]string

	auditLog []audit.Entry
}

var (
	_ auth.Store  = (*Store)(nil)
	_ audit.Store = (*Store)(nil)
)

// New constructs an empty Store.
func New() *Store {
	return &Store{
		users:         make(map[string]auth.User),
		usersByEmail:  make(map[string]string),
		orgs:          make(map[string]auth.Organization),
		orgSlugs:      make(map[string]string),
		members:       make(map[string]auth.Member),
		sessions:      make(map[string]auth.Session),
		invitations:   make(map[string]auth.Invitation),
		invitesByHash: make(map[string]string),
	}
}

func memberKey(orgID, userID string) string { return orgID + "\x00" + userID }

func ctxErr(ctx context.Context) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return auth.ErrStoreTimeout
	default:
		return err
	}
}

// --- users ----------------------------------------------------------------

func (s *Store) CreateUserWithOrganization(ctx context.Context, u *auth.User, org *auth.Organization, m *auth.Member) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, exists := s.usersByEmail[email]; exists {
		return auth.ErrConflict
	}
	if _, exists := s.orgSlugs[org.Slug]; exists {
		return auth.ErrConflict
	}
	s.users[u.ID] = *u
	s.usersByEmail[email] = u.ID
	s.orgs[org.ID] = *org
	s.orgSlugs[org.Slug] = org.ID
	s.members[memberKey(m.OrganizationID, m.UserID)] = *m
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (auth.User, error) {
	if err := ctxErr(ctx); err != nil {
		return auth.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (auth.User, error) {
	if err := ctxErr(ctx); err != nil {
		return auth.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) ActivateUser(ctx context.Context, userID string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	if u.Status != auth.UserStatusPending && u.Status != auth.UserStatusActive {
		return auth.ErrNotFound
	}
	u.Status = auth.UserStatusActive
	u.EmailVerified = true
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return nil
}

// --- organizations --------------------------------------------------------

func (s *Store) GetOrganization(ctx context.Context, id string) (auth.Organization, error) {
	if err := ctxErr(ctx); err != nil {
		return auth.Organization{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[id]
	if !ok {
		return auth.Organization{}, auth.ErrNotFound
	}
	return org, nil
}

func (s *Store) ListOrganizationsForUser(ctx context.Context, userID string) ([]auth.Organization, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []auth.Organization
	for _, m := range s.members {
		if m.UserID != userID || m.Status != auth.MemberStatusActive {
			continue
		}
		org, ok := s.orgs[m.OrganizationID]
		if !ok || org.Status != auth.OrgStatusActive {
			continue
		}
		result = append(result, org)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// --- members --------------------------------------------------------------

func (s *Store) GetMember(ctx context.Context, orgID, userID string) (auth.Member, error) {
	if err := ctxErr(ctx); err != nil {
		return auth.Member{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberKey(orgID, userID)]
	if !ok {
		return auth.Member{}, auth.ErrNotFound
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context, orgID string) ([]auth.Member, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []auth.Member
	for _, m := range s.members {
		if m.OrganizationID == orgID {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].JoinedAt.Before(result[j].JoinedAt) })
	return result, nil
}

func (s *Store) UpdateMemberRole(ctx context.Context, orgID, userID string, role auth.Role) (auth.Member, error) {
	if err := ctxErr(ctx); err != nil {
		return auth.Member{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey(orgID, userID)
	m, ok := s.members[key]
	if !ok || m.Status != auth.MemberStatusActive {
		return auth.Member{}, auth.ErrNotFound
	}
	if m.Role == auth.RoleOwner && role != auth.RoleOwner && s.activeOwnersLocked(orgID) <= 1 {
		return auth.Member{}, auth.ErrLastOwner
	}
	m.Role = role
	s.members[key] = m
	return m, nil
}

func (s *Store) DeactivateMember(ctx context.Context, orgID, userID string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey(orgID, userID)
	m, ok := s.members[key]
	if !ok || m.Status != auth.MemberStatusActive {
		return auth.ErrNotFound
	}
	if m.Role == auth.RoleOwner && s.activeOwnersLocked(orgID) <= 1 {
		return auth.ErrLastOwner
	}
	m.Status = auth.MemberStatusInactive
	s.members[key] = m
	return nil
}

func (s *Store) activeOwnersLocked(orgID string) int {
	count := 0
	for _, m := range s.members {
		if m.OrganizationID == orgID && m.Role == auth.RoleOwner && m.Status == auth.MemberStatusActive {
			count++
		}
	}
	return count
}

// --- sessions -------------------------------------------------------------

func (s *Store) CreateSession(ctx context.Context, session *auth.Session) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (auth.Session, error) {
	if err := ctxErr(ctx); err != nil {
		return auth.Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return auth.Session{}, auth.ErrNotFound
	}
	return session, nil
}

func (s *Store) RevokeSession(ctx context.Context, id string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return auth.ErrNotFound
	}
	if session.RevokedAt == nil {
		now := time.Now().UTC()
		session.RevokedAt = &now
		s.sessions[id] = session
	}
	return nil
}

func (s *Store) RotateSession(ctx context.Context, oldID string, next *auth.Session) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.sessions[oldID]
	if !ok || old.RevokedAt != nil {
		return auth.ErrInvalidToken
	}
	now := time.Now().UTC()
	old.RevokedAt = &now
	s.sessions[oldID] = old
	s.sessions[next.ID] = *next
	return nil
}

// --- invitations ----------------------------------------------------------

func (s *Store) CreateInvitation(ctx context.Context, inv *auth.Invitation) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.invitesByHash[inv.TokenHash]; exists {
		return auth.ErrConflict
	}
	s.invitations[inv.ID] = *inv
	s.invitesByHash[inv.TokenHash] = inv.ID
	return nil
}

func (s *Store) ListInvitations(ctx context.Context, orgID string) ([]auth.Invitation, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []auth.Invitation
	for _, inv := range s.invitations {
		if inv.OrganizationID == orgID {
			result = append(result, inv)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) DeleteInvitation(ctx context.Context, orgID, inviteID string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[inviteID]
	if !ok || inv.OrganizationID != orgID {
		return auth.ErrNotFound
	}
	delete(s.invitations, inviteID)
	delete(s.invitesByHash, inv.TokenHash)
	return nil
}

func (s *Store) RedeemInvitation(ctx context.Context, tokenHash, userID string, now time.Time) (auth.Member, error) {
	if err := ctxErr(ctx); err != nil {
		return auth.Member{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	invID, ok := s.invitesByHash[tokenHash]
	if !ok {
		return auth.Member{}, auth.ErrInviteNotFound
	}
	inv := s.invitations[invID]
	if now.After(inv.ExpiresAt) {
		return auth.Member{}, auth.ErrInviteExpired
	}

	// Consume: the row disappears, so replays read as never issued.
	delete(s.invitations, invID)
	delete(s.invitesByHash, tokenHash)

	key := memberKey(inv.OrganizationID, userID)
	if m, exists := s.members[key]; exists {
		if m.Status == auth.MemberStatusActive {
			return m, nil
		}
		m.Status = auth.MemberStatusActive
		m.Role = inv.Role
		m.JoinedAt = now
		s.members[key] = m
		return m, nil
	}
	m := auth.Member{
		ID:             ids.New(),
		OrganizationID: inv.OrganizationID,
		UserID:         userID,
		Role:           inv.Role,
		Status:         auth.MemberStatusActive,
		JoinedAt:       now,
	}
	s.members[key] = m
	return m, nil
}

// --- audit ----------------------------------------------------------------

func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLog = append(s.auditLog, *entry)
	return nil
}

// AuditEntries returns a copy of the recorded audit trail, oldest first.
func (s *Store) AuditEntries() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Entry, len(s.auditLog))
	copy(out, s.auditLog)
	return out
}
