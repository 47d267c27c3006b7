package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vibebiz.dev/internal/audit"
	"vibebiz.dev/internal/auth"
	"vibebiz.dev/internal/ids"
)

func seed(t *testing.T) (*Store, auth.User, auth.Organization) {
	t.Helper()
	s := New()
	now := time.Now().UTC()
	user := &auth.User{ID: ids.New(), Email: "owner@example.com", PasswordHash: "x", Status: auth.UserStatusActive, CreatedAt: now, UpdatedAt: now}
	org := &auth.Organization{ID: ids.New(), Name: "Org", Slug: "org", Status: auth.OrgStatusActive, CreatedAt: now, UpdatedAt: now}
	member := &auth.Member{ID: ids.New(), OrganizationID: org.ID, UserID: user.ID, Role: auth.RoleOwner, Status: auth.MemberStatusActive, JoinedAt: now}
	if err := s.CreateUserWithOrganization(context.Background(), user, org, member); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s, *user, *org
}

func newSession(userID string) *auth.Session {
	now := time.Now().UTC()
	return &auth.Session{
		ID:               ids.New(),
		UserID:           userID,
		TokenHash:        "th-" + ids.New(),
		RefreshTokenHash: "rh-" + ids.New(),
		ExpiresAt:        now.Add(time.Hour),
		CreatedAt:        now,
	}
}

func TestRotateSessionSingleWinner(t *testing.T) {
	s, user, _ := seed(t)
	old := newSession(user.ID)
	if err := s.CreateSession(context.Background(), old); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.RotateSession(context.Background(), old.ID, newSession(user.ID))
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, auth.ErrInvalidToken):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one rotation winner, got %d", wins)
	}

	got, err := s.GetSession(context.Background(), old.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !got.Revoked() {
		t.Fatal("old session must be revoked after rotation")
	}
}

func TestRotateRevokedSessionFails(t *testing.T) {
	s, user, _ := seed(t)
	old := newSession(user.ID)
	if err := s.CreateSession(context.Background(), old); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := s.RevokeSession(context.Background(), old.ID); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if err := s.RotateSession(context.Background(), old.ID, newSession(user.ID)); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("rotate after revoke: got %v, want ErrInvalidToken", err)
	}
}

func TestDuplicateEmailAndSlug(t *testing.T) {
	s, _, _ := seed(t)
	now := time.Now().UTC()
	u := &auth.User{ID: ids.New(), Email: "OWNER@example.com", Status: auth.UserStatusActive, CreatedAt: now, UpdatedAt: now}
	o := &auth.Organization{ID: ids.New(), Name: "Other", Slug: "other", Status: auth.OrgStatusActive, CreatedAt: now, UpdatedAt: now}
	m := &auth.Member{ID: ids.New(), OrganizationID: o.ID, UserID: u.ID, Role: auth.RoleOwner, Status: auth.MemberStatusActive, JoinedAt: now}
	if err := s.CreateUserWithOrganization(context.Background(), u, o, m); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("duplicate email: got %v, want ErrConflict", err)
	}

	u2 := &auth.User{ID: ids.New(), Email: "fresh@example.com", Status: auth.UserStatusActive, CreatedAt: now, UpdatedAt: now}
	o2 := &auth.Organization{ID: ids.New(), Name: "Org", Slug: "org", Status: auth.OrgStatusActive, CreatedAt: now, UpdatedAt: now}
	m2 := &auth.Member{ID: ids.New(), OrganizationID: o2.ID, UserID: u2.ID, Role: auth.RoleOwner, Status: auth.MemberStatusActive, JoinedAt: now}
	if err := s.CreateUserWithOrganization(context.Background(), u2, o2, m2); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("duplicate slug: got %v, want ErrConflict", err)
	}
}

func TestDeadlineMapsToStoreTimeout(t *testing.T) {
	s, user, _ := seed(t)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	if _, err := s.GetUser(ctx, user.ID); !errors.Is(err, auth.ErrStoreTimeout) {
		t.Fatalf("got %v, want ErrStoreTimeout", err)
	}
}

func TestLastOwnerGuard(t *testing.T) {
	s, user, org := seed(t)
	if _, err := s.UpdateMemberRole(context.Background(), org.ID, user.ID, auth.RoleAdmin); !errors.Is(err, auth.ErrLastOwner) {
		t.Fatalf("demote sole owner: got %v, want ErrLastOwner", err)
	}
	if err := s.DeactivateMember(context.Background(), org.ID, user.ID); !errors.Is(err, auth.ErrLastOwner) {
		t.Fatalf("deactivate sole owner: got %v, want ErrLastOwner", err)
	}
}

func TestRedeemInvitationConsumesRow(t *testing.T) {
	s, user, org := seed(t)
	now := time.Now().UTC()
	inv := &auth.Invitation{
		ID:             ids.New(),
		OrganizationID: org.ID,
		Email:          "joiner@example.com",
		Role:           auth.RoleMember,
		TokenHash:      "invite-hash",
		ExpiresAt:      now.Add(time.Hour),
		InvitedBy:      user.ID,
		CreatedAt:      now,
	}
	if err := s.CreateInvitation(context.Background(), inv); err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}

	joinerID := ids.New()
	member, err := s.RedeemInvitation(context.Background(), "invite-hash", joinerID, now)
	if err != nil {
		t.Fatalf("RedeemInvitation: %v", err)
	}
	if member.UserID != joinerID || member.Role != auth.RoleMember {
		t.Fatalf("unexpected member: %+v", member)
	}
	if _, err := s.RedeemInvitation(context.Background(), "invite-hash", joinerID, now); !errors.Is(err, auth.ErrInviteNotFound) {
		t.Fatalf("replay: got %v, want ErrInviteNotFound", err)
	}
	list, err := s.ListInvitations(context.Background(), org.ID)
	if err != nil || len(list) != 0 {
		t.Fatalf("invitation row should be gone: %v (%d)", err, len(list))
	}
}

func TestAuditAppendIsOrdered(t *testing.T) {
	s, _, _ := seed(t)
	for _, action := range []string{"first", "second", "third"} {
		entry := &audit.Entry{ID: ids.New(), Action: action, CreatedAt: time.Now().UTC()}
		if err := s.Append(context.Background(), entry); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	entries := s.AuditEntries()
	if len(entries) != 3 || entries[0].Action != "first" || entries[2].Action != "third" {
		t.Fatalf("unexpected trail: %+v", entries)
	}
}
