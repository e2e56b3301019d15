// Package pg implements the auth, tenant and audit store contracts on
// PostgreSQL through database/sql and the pgx stdlib driver.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tallo.app/internal/auth"
)

// Open dials PostgreSQL with the pool settings the service runs with.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

var _ auth.Store = (*Store)(nil)

// Store bundles the per-entity stores over one connection pool.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Organizations() auth.OrganizationStore { return &orgStore{db: s.db} }
func (s *Store) Users() auth.UserStore                 { return &userStore{db: s.db} }
func (s *Store) RefreshTokens() auth.RefreshTokenStore { return &refreshTokenStore{db: s.db} }

// RegisterTenant inserts the organization and its first user in one
// transaction so a duplicate email cannot leave an orphaned organization.
func (s *Store) RegisterTenant(ctx context.Context, org *auth.Organization, user *auth.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`insert into organizations(id, name, plan, created_at) values($1,$2,$3,$4)`,
		org.ID, org.Name, org.Plan, org.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrOrganizationExists
		}
		return err
	}

	_, err = tx.ExecContext(ctx,
		`insert into users(id, organization_id, name, email, password_hash, role, is_active, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		user.ID, user.OrganizationID, user.Name, user.Email, user.PasswordHash,
		user.Role.String(), user.IsActive, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrEmailExists
		}
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
