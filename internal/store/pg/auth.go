package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tallo.app/internal/auth"
)

// Organization store -------------------------------------------------------

type orgStore struct{ db *sql.DB }

func (s *orgStore) Create(ctx context.Context, org *auth.Organization) error {
	_, err := s.db.ExecContext(ctx,
		`insert into organizations(id, name, plan, created_at) values($1,$2,$3,$4)`,
		org.ID, org.Name, org.Plan, org.CreatedAt,
	)
	if isUniqueViolation(err) {
		return auth.ErrOrganizationExists
	}
	return err
}

func (s *orgStore) FindByName(ctx context.Context, name string) (*auth.Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, plan, created_at from organizations where name=$1`, name)
	var org auth.Organization
	if err := row.Scan(&org.ID, &org.Name, &org.Plan, &org.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (s *orgStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from organizations where id=$1)`, id).Scan(&exists)
	return exists, err
}

// User store ---------------------------------------------------------------

type userStore struct{ db *sql.DB }

func (s *userStore) Create(ctx context.Context, u *auth.User) error {
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, organization_id, name, email, password_hash, role, is_active, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.OrganizationID, u.Name, u.Email, u.PasswordHash, u.Role.String(), u.IsActive, u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return auth.ErrEmailExists
	}
	return err
}

func (s *userStore) FindActive(ctx context.Context, id string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, organization_id, name, email, password_hash, role, is_active, created_at
		 from users where id=$1 and is_active=true`, id)
	return scanUser(row)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, organization_id, name, email, password_hash, role, is_active, created_at
		 from users where email=$1`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*auth.User, error) {
	var (
		u    auth.User
		role string
	)
	err := row.Scan(&u.ID, &u.OrganizationID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	parsed, err := auth.ParseRole(role)
	if err != nil {
		return nil, err
	}
	u.Role = parsed
	return &u, nil
}

// Refresh token store ------------------------------------------------------

type refreshTokenStore struct{ db *sql.DB }

func (s *refreshTokenStore) Create(ctx context.Context, tok *auth.RefreshToken) error {
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_tokens(id, user_id, token, expires_at, created_at) values($1,$2,$3,$4,$5)`,
		tok.ID, tok.UserID, tok.Token, tok.ExpiresAt, tok.CreatedAt,
	)
	return err
}

// Consume deletes the row matching the presented token and returns it in
// the same statement. Two concurrent presentations race on the delete, so
// at most one caller sees the row.
func (s *refreshTokenStore) Consume(ctx context.Context, token string) (*auth.RefreshToken, error) {
	row := s.db.QueryRowContext(ctx,
		`delete from refresh_tokens where token=$1
		 returning id, user_id, token, expires_at, created_at`, token)
	var tok auth.RefreshToken
	if err := row.Scan(&tok.ID, &tok.UserID, &tok.Token, &tok.ExpiresAt, &tok.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return &tok, nil
}

func (s *refreshTokenStore) DeleteByToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `delete from refresh_tokens where token=$1`, token)
	return err
}

func (s *refreshTokenStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `delete from refresh_tokens where user_id=$1`, userID)
	return err
}

func (s *refreshTokenStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from refresh_tokens where expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
