package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vibebiz.dev/internal/auth"
	"vibebiz.dev/internal/ids"
)

const inviteColumns = `id, organization_id, email, role, token_hash, expires_at, invited_by, created_at`

func scanInvitation(row rowScanner) (auth.Invitation, error) {
	var inv auth.Invitation
	var role string
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.Email, &role, &inv.TokenHash,
		&inv.ExpiresAt, &inv.InvitedBy, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Invitation{}, auth.ErrInviteNotFound
	}
	if err != nil {
		return auth.Invitation{}, mapErr(err)
	}
	parsed, err := auth.ParseRole(role)
	if err != nil {
		return auth.Invitation{}, fmt.Errorf("invitation %s: %w", inv.ID, err)
	}
	inv.Role = parsed
	return inv, nil
}

func (s *Store) CreateInvitation(ctx context.Context, inv *auth.Invitation) error {
	_, err := s.db.ExecContext(ctx, `
		insert into organization_invitations(id, organization_id, email, role, token_hash, expires_at, invited_by, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, inv.ID, inv.OrganizationID, inv.Email, inv.Role.String(), inv.TokenHash,
		inv.ExpiresAt, inv.InvitedBy, inv.CreatedAt)
	return mapErr(err)
}

func (s *Store) ListInvitations(ctx context.Context, orgID string) ([]auth.Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+inviteColumns+` from organization_invitations
		where organization_id=$1
		order by created_at
	`, orgID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []auth.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) DeleteInvitation(ctx context.Context, orgID, inviteID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from organization_invitations
		where id=$1 and organization_id=$2
	`, inviteID, orgID)
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

func (s *Store) RedeemInvitation(ctx context.Context, tokenHash, userID string, now time.Time) (auth.Member, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.Member{}, mapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	// The row lock serializes concurrent redeemers; the winner deletes the
	// row and later arrivals see no invitation at all.
	inv, err := scanInvitation(tx.QueryRowContext(ctx, `
		select `+inviteColumns+` from organization_invitations
		where token_hash=$1
		for update
	`, tokenHash))
	if err != nil {
		return auth.Member{}, err
	}
	if now.After(inv.ExpiresAt) {
		return auth.Member{}, auth.ErrInviteExpired
	}
	if _, err := tx.ExecContext(ctx, `
		delete from organization_invitations where id=$1
	`, inv.ID); err != nil {
		return auth.Member{}, mapErr(err)
	}

	m, err := scanMember(tx.QueryRowContext(ctx, `
		select `+memberColumns+` from organization_members
		where organization_id=$1 and user_id=$2
		for update
	`, inv.OrganizationID, userID))
	switch {
	case err == nil && m.Status == auth.MemberStatusActive:
		// already a member; the invitation is still consumed
	case err == nil:
		m.Status = auth.MemberStatusActive
		m.Role = inv.Role
		m.JoinedAt = now
		if _, err := tx.ExecContext(ctx, `
			update organization_members set status='active', role=$1, joined_at=$2
			where id=$3
		`, m.Role.String(), m.JoinedAt, m.ID); err != nil {
			return auth.Member{}, mapErr(err)
		}
	case errors.Is(err, auth.ErrNotFound):
		m = auth.Member{
			ID:             ids.New(),
			OrganizationID: inv.OrganizationID,
			UserID:         userID,
			Role:           inv.Role,
			Status:         auth.MemberStatusActive,
			JoinedAt:       now,
		}
		if _, err := tx.ExecContext(ctx, `
			insert into organization_members(id, organization_id, user_id, role, status, joined_at)
			values ($1,$2,$3,$4,$5,$6)
		`, m.ID, m.OrganizationID, m.UserID, m.Role.String(), m.Status, m.JoinedAt); err != nil {
			return auth.Member{}, mapErr(err)
		}
	default:
		return auth.Member{}, err
	}

	if err := tx.Commit(); err != nil {
		return auth.Member{}, mapErr(err)
	}
	return m, nil
}
