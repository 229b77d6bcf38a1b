package postgres

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/budgetgate/budgetcore/internal/identity"
)

// TestCreateUserAndGetUser drives Store against a mocked driver connection
// so the query shape (placeholders, column order) is checked without a live
// database.
func TestCreateUserAndGetUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := New(db)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "owner@example.com", "hash", string(identity.RoleNormal), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	user, err := store.CreateUser(ctx, "owner@example.com", "hash", identity.RoleNormal)
	require.NoError(t, err)
	require.Equal(t, "owner@example.com", user.Email)

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "is_active", "created_at_ms"}).
		AddRow(user.ID, user.Email, user.PasswordHash, string(user.Role), true, user.CreatedAtMs)
	mock.ExpectQuery("SELECT id, email, password_hash, role, is_active, created_at_ms FROM users WHERE id").
		WithArgs(user.ID).
		WillReturnRows(rows)

	got, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.Equal(t, user.Email, got.Email)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestCreateUserPropagatesDriverError confirms a driver-level failure (e.g.
// a unique-constraint violation) surfaces as an error rather than being
// swallowed.
func TestCreateUserPropagatesDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := New(db)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "dup@example.com", "hash", string(identity.RoleNormal), sqlmock.AnyArg()).
		WillReturnError(driver.ErrBadConn)

	_, err = store.CreateUser(ctx, "dup@example.com", "hash", identity.RoleNormal)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
