// Package storetest opens throwaway SQLite databases with the portal schema.
package storetest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"classportal/internal/store"
)

var seq atomic.Int64

// NewDB returns a migrated in-memory database closed when t finishes.
func NewDB(t testing.TB) *store.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:portal_test_%d?mode=memory&cache=shared&_foreign_keys=on", seq.Add(1))
	db, err := store.NewDB("sqlite3", dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	return db
}
