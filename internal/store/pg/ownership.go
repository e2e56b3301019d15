package pg

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"tallo.app/internal/tenant"
)

var _ tenant.OwnershipStore = (*OwnershipStore)(nil)

// identifier guards the interpolated table name. Table names reach this
// store only through the tenant package's allowlist, so a mismatch is a
// programming error.
var identifier = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// OwnershipStore answers tenant-scoped existence checks for arbitrary
// registered tables.
type OwnershipStore struct {
	db *sql.DB
}

func NewOwnershipStore(db *sql.DB) *OwnershipStore {
	return &OwnershipStore{db: db}
}

func (s *OwnershipStore) Owned(ctx context.Context, table, id, orgID string) (bool, error) {
	if !identifier.MatchString(table) {
		return false, fmt.Errorf("pg: invalid table name %q", table)
	}
	query := fmt.Sprintf(`select exists(select 1 from %s where id=$1 and organization_id=$2)`, table)
	var owned bool
	if err := s.db.QueryRowContext(ctx, query, id, orgID).Scan(&owned); err != nil {
		return false, err
	}
	return owned, nil
}
