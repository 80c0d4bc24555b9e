package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classportal/internal/store"
	"classportal/internal/store/storetest"
)

func TestMigrateIsRepeatable(t *testing.T) {
	db := storetest.NewDB(t)
	require.NoError(t, db.Migrate(context.Background()))
	assert.True(t, db.Healthy(context.Background()))
	assert.Equal(t, "sqlite3", db.Driver)
}

func TestStringListRoundTripsThroughTextColumn(t *testing.T) {
	db := storetest.NewDB(t)
	ctx := context.Background()

	in := store.StringList{"Define recursion", "Explain big-O"}
	_, err := db.Client.ExecContext(ctx, db.Client.Rebind(
		`INSERT INTO assignments (id, course_code, questions, created_at) VALUES (?, ?, ?, ?)`),
		"a1", "CSC201", in, time.Now().UTC())
	require.NoError(t, err)

	var out store.StringList
	require.NoError(t, db.Client.GetContext(ctx, &out, `SELECT questions FROM assignments WHERE id = ?`, "a1"))
	assert.Equal(t, in, out)
}

func TestStringListScanNil(t *testing.T) {
	var l store.StringList
	require.NoError(t, l.Scan(nil))
	assert.Equal(t, store.StringList{}, l)

	v, err := store.StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestIsUniqueViolation(t *testing.T) {
	db := storetest.NewDB(t)
	ctx := context.Background()
	q := db.Client.Rebind(`INSERT INTO chats (id, participant_a, participant_b, created_at) VALUES (?, ?, ?, ?)`)
	_, err := db.Client.ExecContext(ctx, q, "c1", "u1", "u2", time.Now().UTC())
	require.NoError(t, err)
	_, err = db.Client.ExecContext(ctx, q, "c2", "u1", "u2", time.Now().UTC())
	require.Error(t, err)
	assert.True(t, store.IsUniqueViolation(err))
	assert.True(t, store.IsUniqueViolation(errors.Wrap(err, "insert chat")))
	assert.False(t, store.IsUniqueViolation(nil))

	pk := db.Client.Rebind(`INSERT INTO courses (id, course_code, unit, created_at) VALUES (?, ?, ?, ?)`)
	_, err = db.Client.ExecContext(ctx, pk, "k1", "CSC201", 3, time.Now().UTC())
	require.NoError(t, err)
	_, err = db.Client.ExecContext(ctx, pk, "k1", "CSC202", 3, time.Now().UTC())
	assert.True(t, store.IsUniqueViolation(err), "primary key clash")

	_, err = db.Client.ExecContext(ctx, `INSERT INTO courses (id) VALUES (?)`, "k2")
	require.Error(t, err)
	assert.False(t, store.IsUniqueViolation(err), "not null is a different constraint")

	// message text alone is not enough
	assert.False(t, store.IsUniqueViolation(errors.New("UNIQUE constraint failed: chats.id")))
	assert.True(t, store.IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, store.IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
}
