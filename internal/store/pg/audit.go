package pg

import (
	"context"
	"database/sql"

	"tallo.app/internal/audit"
)

var _ audit.Store = (*AuditStore)(nil)

// AuditStore appends immutable audit rows.
type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(ctx context.Context, entry *audit.Entry) error {
	var resourceID any
	if entry.ResourceID != "" {
		resourceID = entry.ResourceID
	}
	var details any
	if len(entry.Details) > 0 {
		details = []byte(entry.Details)
	}
	_, err := s.db.ExecContext(ctx,
		`insert into audit_logs(id, user_id, organization_id, action, resource_type, resource_id, details, ip_address, user_agent, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		entry.ID, entry.UserID, entry.OrganizationID, string(entry.Action),
		entry.ResourceType, resourceID, details, entry.IPAddress, entry.UserAgent, entry.CreatedAt,
	)
	return err
}
