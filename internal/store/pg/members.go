package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vibebiz.dev/internal/auth"
)

const memberColumns = `id, organization_id, user_id, role, status, joined_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (auth.Member, error) {
	var m auth.Member
	var role string
	err := row.Scan(&m.ID, &m.OrganizationID, &m.UserID, &role, &m.Status, &m.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Member{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Member{}, mapErr(err)
	}
	parsed, err := auth.ParseRole(role)
	if err != nil {
		return auth.Member{}, fmt.Errorf("member %s: %w", m.ID, err)
	}
	m.Role = parsed
	return m, nil
}

func (s *Store) GetMember(ctx context.Context, orgID, userID string) (auth.Member, error) {
	return scanMember(s.db.QueryRowContext(ctx, `
		select `+memberColumns+` from organization_members
		where organization_id=$1 and user_id=$2
	`, orgID, userID))
}

func (s *Store) ListMembers(ctx context.Context, orgID string) ([]auth.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+memberColumns+` from organization_members
		where organization_id=$1
		order by joined_at
	`, orgID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []auth.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, mapErr(rows.Err())
}

// lockActiveOwners locks the organization's active owner rows and returns
// their count. Callers hold the lock until commit, so two concurrent
// demotions of the final owner serialize and the loser sees the shrunken
// count.
func lockActiveOwners(ctx context.Context, tx *sql.Tx, orgID string) (int, error) {
	rows, err := tx.QueryContext(ctx, `
		select id from organization_members
		where organization_id=$1 and role='owner' and status='active'
		for update
	`, orgID)
	if err != nil {
		return 0, mapErr(err)
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, mapErr(err)
		}
		count++
	}
	return count, mapErr(rows.Err())
}

func (s *Store) UpdateMemberRole(ctx context.Context, orgID, userID string, role auth.Role) (auth.Member, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.Member{}, mapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	m, err := scanMember(tx.QueryRowContext(ctx, `
		select `+memberColumns+` from organization_members
		where organization_id=$1 and user_id=$2
		for update
	`, orgID, userID))
	if err != nil {
		return auth.Member{}, err
	}
	if m.Status != auth.MemberStatusActive {
		return auth.Member{}, auth.ErrNotFound
	}
	if m.Role == auth.RoleOwner && role != auth.RoleOwner {
		owners, err := lockActiveOwners(ctx, tx, orgID)
		if err != nil {
			return auth.Member{}, err
		}
		if owners <= 1 {
			return auth.Member{}, auth.ErrLastOwner
		}
	}
	if _, err := tx.ExecContext(ctx, `
		update organization_members set role=$1
		where organization_id=$2 and user_id=$3
	`, role.String(), orgID, userID); err != nil {
		return auth.Member{}, mapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return auth.Member{}, mapErr(err)
	}
	m.Role = role
	return m, nil
}

func (s *Store) DeactivateMember(ctx context.Context, orgID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	m, err := scanMember(tx.QueryRowContext(ctx, `
		select `+memberColumns+` from organization_members
		where organization_id=$1 and user_id=$2
		for update
	`, orgID, userID))
	if err != nil {
		return err
	}
	if m.Status != auth.MemberStatusActive {
		return auth.ErrNotFound
	}
	if m.Role == auth.RoleOwner {
		owners, err := lockActiveOwners(ctx, tx, orgID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return auth.ErrLastOwner
		}
	}
	if _, err := tx.ExecContext(ctx, `
		update organization_members set status='inactive'
		where organization_id=$1 and user_id=$2
	`, orgID, userID); err != nil {
		return mapErr(err)
	}
	return mapErr(tx.Commit())
}
