package pg

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"tallo.app/internal/audit"
	"tallo.app/internal/auth"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	return New(db), mock
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505"}
}

func TestConsumeReturnsAndDeletesRow(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`delete from refresh_tokens where token=$1`)).
		WithArgs("tok-abc").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "created_at"}).
			AddRow("rt-1", "u-1", "tok-abc", now.Add(time.Hour), now))

	tok, err := store.RefreshTokens().Consume(context.Background(), "tok-abc")
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if tok.ID != "rt-1" || tok.UserID != "u-1" || tok.Token != "tok-abc" {
		t.Errorf("unexpected row: %+v", tok)
	}
}

func TestConsumeMissingRow(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`delete from refresh_tokens where token=$1`)).
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "created_at"}))

	if _, err := store.RefreshTokens().Consume(context.Background(), "gone"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegisterTenantCommits(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()
	org := &auth.Organization{ID: "o-1", Name: "Acme", Plan: "free", CreatedAt: now}
	user := &auth.User{
		ID: "u-1", OrganizationID: "o-1", Name: "Ada", Email: "a@acme.com",
		PasswordHash: "hash", Role: auth.RoleAdmin, IsActive: true, CreatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`insert into organizations`)).
		WithArgs("o-1", "Acme", "free", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`insert into users`)).
		WithArgs("u-1", "o-1", "Ada", "a@acme.com", "hash", "admin", true, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.RegisterTenant(context.Background(), org, user); err != nil {
		t.Fatalf("RegisterTenant: %v", err)
	}
}

func TestRegisterTenantDuplicateOrganization(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`insert into organizations`)).
		WillReturnError(uniqueViolation())
	mock.ExpectRollback()

	err := store.RegisterTenant(context.Background(),
		&auth.Organization{ID: "o-1", Name: "Acme", CreatedAt: now},
		&auth.User{ID: "u-1", CreatedAt: now})
	if !errors.Is(err, auth.ErrOrganizationExists) {
		t.Fatalf("expected ErrOrganizationExists, got %v", err)
	}
}

func TestRegisterTenantDuplicateEmail(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`insert into organizations`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`insert into users`)).
		WillReturnError(uniqueViolation())
	mock.ExpectRollback()

	err := store.RegisterTenant(context.Background(),
		&auth.Organization{ID: "o-1", Name: "Acme", CreatedAt: now},
		&auth.User{ID: "u-1", Email: "a@acme.com", CreatedAt: now})
	if !errors.Is(err, auth.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestFindActiveFiltersInactive(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`from users where id=$1 and is_active=true`)).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name", "email", "password_hash", "role", "is_active", "created_at"}))

	if _, err := store.Users().FindActive(context.Background(), "u-1"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindByEmailParsesRole(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`from users where email=$1`)).
		WithArgs("a@acme.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name", "email", "password_hash", "role", "is_active", "created_at"}).
			AddRow("u-1", "o-1", "Ada", "a@acme.com", "hash", "manager", true, now))

	user, err := store.Users().FindByEmail(context.Background(), "a@acme.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if user.Role != auth.RoleManager {
		t.Errorf("role = %s", user.Role)
	}
}

func TestFindByEmailRejectsUnknownRole(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`from users where email=$1`)).
		WithArgs("a@acme.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name", "email", "password_hash", "role", "is_active", "created_at"}).
			AddRow("u-1", "o-1", "Ada", "a@acme.com", "hash", "owner", true, now))

	if _, err := store.Users().FindByEmail(context.Background(), "a@acme.com"); err == nil {
		t.Fatal("expected role parse error")
	}
}

func TestDeleteExpired(t *testing.T) {
	store, mock := newMock(t)
	cutoff := time.Now()

	mock.ExpectExec(regexp.QuoteMeta(`delete from refresh_tokens where expires_at < $1`)).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.RefreshTokens().DeleteExpired(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 3 {
		t.Fatalf("deleted %d, want 3", n)
	}
}

func TestAuditAppendNullableColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewAuditStore(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta(`insert into audit_logs`)).
		WithArgs("a-1", "u-1", "o-1", "CREATE", "documents", nil, nil, "203.0.113.7", "ua", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &audit.Entry{
		ID: "a-1", UserID: "u-1", OrganizationID: "o-1",
		Action: audit.ActionCreate, ResourceType: "documents",
		IPAddress: "203.0.113.7", UserAgent: "ua", CreatedAt: now,
	}
	if err := store.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append: %v", err)
	}

	details := json.RawMessage(`{"method":"POST"}`)
	mock.ExpectExec(regexp.QuoteMeta(`insert into audit_logs`)).
		WithArgs("a-2", "u-1", "o-1", "UPDATE", "documents", "doc-1", []byte(details), "203.0.113.7", "ua", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry = &audit.Entry{
		ID: "a-2", UserID: "u-1", OrganizationID: "o-1",
		Action: audit.ActionUpdate, ResourceType: "documents", ResourceID: "doc-1",
		Details: details, IPAddress: "203.0.113.7", UserAgent: "ua", CreatedAt: now,
	}
	if err := store.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append with details: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestOwned(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewOwnershipStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(`select exists(select 1 from documents where id=$1 and organization_id=$2)`)).
		WithArgs("doc-1", "o-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	owned, err := store.Owned(context.Background(), "documents", "doc-1", "o-1")
	if err != nil {
		t.Fatalf("Owned: %v", err)
	}
	if !owned {
		t.Fatal("expected owned")
	}

	if _, err := store.Owned(context.Background(), `documents; drop table users`, "doc-1", "o-1"); err == nil {
		t.Fatal("expected invalid table name error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
