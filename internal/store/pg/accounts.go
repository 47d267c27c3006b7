package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"vibebiz.dev/internal/auth"
)

// jsonbValue renders an attribute map for a jsonb column; empty maps persist
// as NULL.
func jsonbValue(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func scanJSONB(raw []byte, dst *map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func (s *Store) CreateUserWithOrganization(ctx context.Context, u *auth.User, org *auth.Organization, m *auth.Member) error {
	metadata, err := jsonbValue(u.Metadata)
	if err != nil {
		return err
	}
	settings, err := jsonbValue(org.Settings)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into users(id, email, password_hash, full_name, status, email_verified, metadata, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, u.ID, strings.ToLower(u.Email), u.PasswordHash, u.FullName, u.Status, u.EmailVerified, metadata, u.CreatedAt, u.UpdatedAt); err != nil {
		return mapErr(err)
	}
	if _, err := tx.ExecContext(ctx, `
		insert into organizations(id, name, slug, settings, status, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, org.ID, org.Name, org.Slug, settings, org.Status, org.CreatedAt, org.UpdatedAt); err != nil {
		return mapErr(err)
	}
	if _, err := tx.ExecContext(ctx, `
		insert into organization_members(id, organization_id, user_id, role, status, joined_at)
		values ($1,$2,$3,$4,$5,$6)
	`, m.ID, m.OrganizationID, m.UserID, m.Role.String(), m.Status, m.JoinedAt); err != nil {
		return mapErr(err)
	}
	return mapErr(tx.Commit())
}

const userColumns = `id, email, password_hash, coalesce(full_name,''), status, email_verified, metadata, created_at, updated_at`

func scanUser(row *sql.Row) (auth.User, error) {
	var u auth.User
	var metadata []byte
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Status, &u.EmailVerified, &metadata, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, mapErr(err)
	}
	if err := scanJSONB(metadata, &u.Metadata); err != nil {
		return auth.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (auth.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (auth.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where email=$1`, strings.ToLower(email)))
}

func (s *Store) ActivateUser(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		update users
		set status='active', email_verified=true, updated_at=now()
		where id=$1 and status in ('pending','active')
	`, userID)
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

func (s *Store) GetOrganization(ctx context.Context, id string) (auth.Organization, error) {
	var org auth.Organization
	var settings []byte
	err := s.db.QueryRowContext(ctx, `
		select id, name, slug, settings, status, created_at, updated_at
		from organizations where id=$1
	`, id).Scan(&org.ID, &org.Name, &org.Slug, &settings, &org.Status, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Organization{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Organization{}, mapErr(err)
	}
	if err := scanJSONB(settings, &org.Settings); err != nil {
		return auth.Organization{}, err
	}
	return org, nil
}

func (s *Store) ListOrganizationsForUser(ctx context.Context, userID string) ([]auth.Organization, error) {
	rows, err := s.db.QueryContext(ctx, `
		select o.id, o.name, o.slug, o.settings, o.status, o.created_at, o.updated_at
		from organizations o
		join organization_members m on m.organization_id = o.id
		where m.user_id=$1 and m.status='active' and o.status='active'
		order by o.created_at
	`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []auth.Organization
	for rows.Next() {
		var org auth.Organization
		var settings []byte
		if err := rows.Scan(&org.ID, &org.Name, &org.Slug, &settings, &org.Status, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, mapErr(err)
		}
		if err := scanJSONB(settings, &org.Settings); err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, mapErr(rows.Err())
}
