package pg

import (
	"context"
	"database/sql"
	"errors"

	"vibebiz.dev/internal/auth"
)

func (s *Store) CreateSession(ctx context.Context, session *auth.Session) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_sessions(id, user_id, token_hash, refresh_token_hash, expires_at, revoked_at, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, session.ID, session.UserID, session.TokenHash, session.RefreshTokenHash,
		session.ExpiresAt, session.RevokedAt, session.CreatedAt)
	return mapErr(err)
}

func (s *Store) GetSession(ctx context.Context, id string) (auth.Session, error) {
	var session auth.Session
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, token_hash, refresh_token_hash, expires_at, revoked_at, created_at
		from user_sessions where id=$1
	`, id).Scan(&session.ID, &session.UserID, &session.TokenHash, &session.RefreshTokenHash,
		&session.ExpiresAt, &session.RevokedAt, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Session{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Session{}, mapErr(err)
	}
	return session, nil
}

func (s *Store) RevokeSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update user_sessions set revoked_at = coalesce(revoked_at, now())
		where id=$1
	`, id)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *Store) RotateSession(ctx context.Context, oldID string, next *auth.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	// Conditional revoke doubles as the race arbiter: a second refresher
	// finds revoked_at already set and loses.
	res, err := tx.ExecContext(ctx, `
		update user_sessions set revoked_at = now()
		where id=$1 and revoked_at is null
	`, oldID)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return auth.ErrInvalidToken
	}
	if _, err := tx.ExecContext(ctx, `
		insert into user_sessions(id, user_id, token_hash, refresh_token_hash, expires_at, revoked_at, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, next.ID, next.UserID, next.TokenHash, next.RefreshTokenHash,
		next.ExpiresAt, next.RevokedAt, next.CreatedAt); err != nil {
		return mapErr(err)
	}
	return mapErr(tx.Commit())
}
