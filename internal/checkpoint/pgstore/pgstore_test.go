package pgstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	pos int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.pos
	return nil
}

type fakeDB struct {
	row     fakeRow
	execErr error
	execs   []string
	args    [][]any
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	f.args = append(f.args, args)
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.row
}

func TestStore_GetNotFound(t *testing.T) {
	s := New(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}})

	_, found, err := s.Get(context.Background(), "g", 0)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_GetFound(t *testing.T) {
	s := New(&fakeDB{row: fakeRow{pos: 42}})

	pos, found, err := s.Get(context.Background(), "g", 0)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(42), pos)
}

func TestStore_Errors(t *testing.T) {
	boom := errors.New("connection reset")
	s := New(&fakeDB{row: fakeRow{err: boom}, execErr: boom})

	_, _, err := s.Get(context.Background(), "g", 0)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.Put(context.Background(), "g", 0, 1), boom)
	assert.ErrorIs(t, s.EnsureSchema(context.Background()), boom)
}

func TestStore_PutArgs(t *testing.T) {
	db := &fakeDB{}
	s := New(db)

	require.NoError(t, s.Put(context.Background(), "$Default", 3, 99))
	require.Len(t, db.args, 1)
	assert.Equal(t, []any{"$Default", 3, int64(99)}, db.args[0])
	assert.Contains(t, db.execs[0], "stream_checkpoints.position < EXCLUDED.position")
}

// TestStore_Postgres runs against a real database when
// TRADE_EVENTS_TEST_POSTGRES_DSN is set.
func TestStore_Postgres(t *testing.T) {
	dsn := os.Getenv("TRADE_EVENTS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TRADE_EVENTS_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	s := New(pool)
	require.NoError(t, s.EnsureSchema(ctx))

	group := "test-" + uuid.NewString()
	require.NoError(t, s.Put(ctx, group, 0, 10))
	require.NoError(t, s.Put(ctx, group, 0, 5))

	pos, found, err := s.Get(ctx, group, 0)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(10), pos, "regressions are ignored")
}
