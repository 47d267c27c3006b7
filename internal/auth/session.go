package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"vibebiz.dev/internal/ids"
)

const (
	defaultAccessTTL  = 24 * time.Hour
	defaultRefreshTTL = 30 * 24 * time.Hour
)

// SessionManager issues, validates, refreshes and revokes sessions. It never
// sees a stored plaintext token: rows hold digests only.
type SessionManager struct {
	store      Store
	now        func() time.Time
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// SessionOption configures SessionManager behavior.
type SessionOption func(*SessionManager)

// WithAccessTTL configures the access token lifetime.
func WithAccessTTL(ttl time.Duration) SessionOption {
	return func(m *SessionManager) {
		if ttl > 0 {
			m.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures how long after creation a session may be refreshed.
func WithRefreshTTL(ttl time.Duration) SessionOption {
	return func(m *SessionManager) {
		if ttl > 0 {
			m.refreshTTL = ttl
		}
	}
}

// WithSessionClock overrides the time source (useful for tests).
func WithSessionClock(fn func() time.Time) SessionOption {
	return func(m *SessionManager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(store Store, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		store:      store,
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TokenPair is the caller-visible result of authentication.
type TokenPair struct {
	SessionID    string    `json:"session_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Login verifies credentials and issues a fresh session. Unknown email, bad
// password and non-active account all return ErrInvalidCredentials.
func (m *SessionManager) Login(ctx context.Context, email, password string) (TokenPair, User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, User{}, ErrInvalidCredentials
	}
	user, err := m.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, User{}, ErrInvalidCredentials
		}
		return TokenPair{}, User{}, err
	}
	if user.Status != UserStatusActive {
		return TokenPair{}, User{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, User{}, ErrInvalidCredentials
	}
	pair, err := m.IssueSession(ctx, user.ID)
	if err != nil {
		return TokenPair{}, User{}, err
	}
	return pair, user, nil
}

// IssueSession creates a session for the user and returns the plaintext
// token pair. The tokens are delivered once and never recoverable.
func (m *SessionManager) IssueSession(ctx context.Context, userID string) (TokenPair, error) {
	session, pair, err := m.buildSession(userID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// ValidateToken resolves the principal bound to an access token. Unknown,
// expired and revoked sessions are indistinguishable to the caller.
func (m *SessionManager) ValidateToken(ctx context.Context, token string) (Principal, error) {
	sessionID, secret, err := splitToken(token)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	if !matchSecret(session.TokenHash, secret) {
		return Principal{}, ErrInvalidToken
	}
	if session.Revoked() || m.now().After(session.ExpiresAt) {
		return Principal{}, ErrInvalidToken
	}
	return Principal{UserID: session.UserID, SessionID: session.ID}, nil
}

// Refresh rotates the session: the old one is revoked and a new one issued
// in a single atomic step, so a rotated refresh token can never be replayed.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	sessionID, secret, err := splitToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	if session.RefreshTokenHash == "" || !matchSecret(session.RefreshTokenHash, secret) {
		return TokenPair{}, ErrInvalidToken
	}
	now := m.now()
	if session.Revoked() || now.After(session.CreatedAt.Add(m.refreshTTL)) {
		return TokenPair{}, ErrInvalidToken
	}

	next, pair, err := m.buildSession(session.UserID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := m.store.RotateSession(ctx, session.ID, next); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Revoke marks the session unusable. Idempotent: revoking twice succeeds.
func (m *SessionManager) Revoke(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrInvalidInput
	}
	return m.store.RevokeSession(ctx, sessionID)
}

func (m *SessionManager) buildSession(userID string) (*Session, TokenPair, error) {
	accessSecret, accessDigest, err := newTokenSecret()
	if err != nil {
		return nil, TokenPair{}, err
	}
	refreshSecret, refreshDigest, err := newTokenSecret()
	if err != nil {
		return nil, TokenPair{}, err
	}
	now := m.now().UTC()
	session := &Session{
		ID:               ids.New(),
		UserID:           userID,
		TokenHash:        accessDigest,
		RefreshTokenHash: refreshDigest,
		ExpiresAt:        now.Add(m.accessTTL),
		CreatedAt:        now,
	}
	pair := TokenPair{
		SessionID:    session.ID,
		AccessToken:  session.ID + "." + accessSecret,
		RefreshToken: session.ID + "." + refreshSecret,
		ExpiresAt:    session.ExpiresAt,
	}
	return session, pair, nil
}
