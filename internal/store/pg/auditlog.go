package pg

import (
	"context"
	"database/sql"
	"encoding/json"

	"vibebiz.dev/internal/audit"
)

func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	var changes any
	if len(entry.Changes) > 0 {
		b, err := json.Marshal(entry.Changes)
		if err != nil {
			return err
		}
		changes = b
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_logs(id, organization_id, user_id, action, resource_type, resource_id, changes, request_id, ip_address, user_agent, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, entry.ID, nullable(entry.OrganizationID), nullable(entry.UserID), entry.Action,
		nullable(entry.ResourceType), nullable(entry.ResourceID), changes,
		nullable(entry.RequestID), nullable(entry.IPAddress), nullable(entry.UserAgent),
		entry.CreatedAt)
	return mapErr(err)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
