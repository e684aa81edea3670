package users

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"
)

func openBareSQLite(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBunStoreCreatesTableOnFirstUse(t *testing.T) {
	ctx := context.Background()
	store := NewBunStore(openBareSQLite(t))

	list, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = store.CreateUser(ctx, &CreateUserRequest{})
	require.NoError(t, err)
}

func TestBunStoreRetriesTableCreationAfterOutage(t *testing.T) {
	ctx := context.Background()
	store := NewBunStore(openBareSQLite(t))

	attempts := 0
	store.createSchema = func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
		}
		return store.createTable(ctx)
	}

	alice := "Alice"
	_, err := store.CreateUser(ctx, &CreateUserRequest{Name: &alice})
	require.Error(t, err)
	assert.True(t, IsStoreUnavailable(err), "got %v", err)

	created, err := store.CreateUser(ctx, &CreateUserRequest{Name: &alice})
	require.NoError(t, err)

	list, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	// created once, not on every call
	assert.Equal(t, 2, attempts)
}
