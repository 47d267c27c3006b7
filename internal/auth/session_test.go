package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"vibebiz.dev/internal/auth"
	"vibebiz.dev/internal/ids"
	"vibebiz.dev/internal/store/memory"
)

func seedUser(t *testing.T, store *memory.Store, email, password string) auth.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	user := &auth.User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		Status:       auth.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	org := &auth.Organization{
		ID:        ids.New(),
		Name:      "Org for " + email,
		Slug:      auth.Slugify("org-" + user.ID),
		Status:    auth.OrgStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	member := &auth.Member{
		ID:             ids.New(),
		OrganizationID: org.ID,
		UserID:         user.ID,
		Role:           auth.RoleOwner,
		Status:         auth.MemberStatusActive,
		JoinedAt:       now,
	}
	if err := store.CreateUserWithOrganization(context.Background(), user, org, member); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return *user
}

func TestIssueAndValidate(t *testing.T) {
	store := memory.New()
	mgr := auth.NewSessionManager(store)
	user := seedUser(t, store, "alice@example.com", "correct horse")

	pair, err := mgr.IssueSession(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	principal, err := mgr.ValidateToken(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if principal.UserID != user.ID || principal.SessionID != pair.SessionID {
		t.Fatalf("unexpected principal: %+v", principal)
	}

	// refresh token is not an access token
	if _, err := mgr.ValidateToken(context.Background(), pair.RefreshToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
}

func TestValidateFailuresAreUniform(t *testing.T) {
	store := memory.New()
	now := time.Now().UTC()
	clock := &now
	mgr := auth.NewSessionManager(store,
		auth.WithAccessTTL(time.Hour),
		auth.WithSessionClock(func() time.Time { return *clock }),
	)
	user := seedUser(t, store, "bob@example.com", "hunter2hunter2")

	pair, err := mgr.IssueSession(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	cases := map[string]func() string{
		"garbage": func() string { return "not-a-token" },
		"unknown session": func() string {
			return "01HXXXXXXXXXXXXXXXXXXXXXXX." + pair.AccessToken[len(pair.SessionID)+1:]
		},
		"wrong secret": func() string { return pair.SessionID + ".AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA" },
	}
	for name, tok := range cases {
		if _, err := mgr.ValidateToken(context.Background(), tok()); !errors.Is(err, auth.ErrInvalidToken) {
			t.Fatalf("%s: got %v, want ErrInvalidToken", name, err)
		}
	}

	// expired
	later := now.Add(2 * time.Hour)
	clock = &later
	if _, err := mgr.ValidateToken(context.Background(), pair.AccessToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expired: got %v, want ErrInvalidToken", err)
	}

	// revoked reads the same as expired
	clock = &now
	if err := mgr.Revoke(context.Background(), pair.SessionID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := mgr.ValidateToken(context.Background(), pair.AccessToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("revoked: got %v, want ErrInvalidToken", err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	store := memory.New()
	mgr := auth.NewSessionManager(store)
	user := seedUser(t, store, "carol@example.com", "s3cret-passw0rd")

	pair, err := mgr.IssueSession(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if err := mgr.Revoke(context.Background(), pair.SessionID); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := mgr.Revoke(context.Background(), pair.SessionID); err != nil {
		t.Fatalf("second revoke must succeed: %v", err)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	store := memory.New()
	mgr := auth.NewSessionManager(store)
	user := seedUser(t, store, "dave@example.com", "pass-pass-pass")

	pair, err := mgr.IssueSession(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	next, err := mgr.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.SessionID == pair.SessionID {
		t.Fatal("refresh must issue a new session")
	}

	// old credentials are dead
	if _, err := mgr.ValidateToken(context.Background(), pair.AccessToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("old access token still valid: %v", err)
	}
	if _, err := mgr.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("rotated refresh token replayed: %v", err)
	}

	// new credentials work
	if _, err := mgr.ValidateToken(context.Background(), next.AccessToken); err != nil {
		t.Fatalf("new access token rejected: %v", err)
	}
}

func TestRefreshWindowExpires(t *testing.T) {
	store := memory.New()
	now := time.Now().UTC()
	clock := &now
	mgr := auth.NewSessionManager(store,
		auth.WithRefreshTTL(24*time.Hour),
		auth.WithSessionClock(func() time.Time { return *clock }),
	)
	user := seedUser(t, store, "erin@example.com", "open sesame 123")

	pair, err := mgr.IssueSession(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	later := now.Add(25 * time.Hour)
	clock = &later
	if _, err := mgr.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("stale refresh: got %v, want ErrInvalidToken", err)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	store := memory.New()
	mgr := auth.NewSessionManager(store)
	seedUser(t, store, "frank@example.com", "correct-password")

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@example.com", "correct-password"},
		{"wrong password", "frank@example.com", "wrong-password"},
		{"empty password", "frank@example.com", ""},
	}
	for _, tc := range cases {
		if _, _, err := mgr.Login(context.Background(), tc.email, tc.password); !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Fatalf("%s: got %v, want ErrInvalidCredentials", tc.name, err)
		}
	}

	pair, user, err := mgr.Login(context.Background(), "Frank@Example.com", "correct-password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Email != "frank@example.com" || pair.AccessToken == "" {
		t.Fatalf("unexpected login result: %+v", user)
	}
}

func TestLoginInactiveUser(t *testing.T) {
	store := memory.New()
	mgr := auth.NewSessionManager(store)
	seedUser(t, store, "grace@example.com", "some-password-1")

	// inactive users are indistinguishable from bad credentials
	hash, _ := auth.HashPassword("some-password-2")
	now := time.Now().UTC()
	inactive := &auth.User{
		ID:           ids.New(),
		Email:        "inactive@example.com",
		PasswordHash: hash,
		Status:       auth.UserStatusInactive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	org := &auth.Organization{ID: ids.New(), Name: "n", Slug: "inactive-org", Status: auth.OrgStatusActive, CreatedAt: now, UpdatedAt: now}
	member := &auth.Member{ID: ids.New(), OrganizationID: org.ID, UserID: inactive.ID, Role: auth.RoleOwner, Status: auth.MemberStatusActive, JoinedAt: now}
	if err := store.CreateUserWithOrganization(context.Background(), inactive, org, member); err != nil {
		t.Fatalf("seed inactive: %v", err)
	}

	if _, _, err := mgr.Login(context.Background(), "inactive@example.com", "some-password-2"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("inactive login: got %v, want ErrInvalidCredentials", err)
	}
}
