package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	ID    string `json:"id"`
	Cents int64  `json:"cents"`
}

func stores(t *testing.T) map[string]KV {
	t.Helper()

	fileStore, err := NewFileStore(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		sqliteStore.Close()
	})

	kvs := map[string]KV{
		"memory": NewMemoryStore(),
		"file":   fileStore,
		"sqlite": sqliteStore,
	}

	// Redis joins the matrix only when a test server is available.
	if addr := os.Getenv("DIVIDI_TEST_REDIS_ADDR"); addr != "" {
		redisStore, err := NewRedisStore(context.Background(), RedisConfig{
			Addr:   addr,
			Prefix: fmt.Sprintf("dividi-test:%d:", time.Now().UnixNano()),
		})
		require.NoError(t, err)
		t.Cleanup(func() {
			redisStore.Close()
		})
		kvs["redis"] = redisStore
	}
	return kvs
}

func TestRedisStoreDefaults(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	s := NewRedisStoreWithClient(client, "")
	assert.Equal(t, DefaultRedisPrefix, s.prefix)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisStore(ctx, RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestKVRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, kv := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, kv.Ping(ctx))

			var got []doc
			found, err := kv.Load(ctx, KeyExpenses, &got)
			require.NoError(t, err)
			assert.False(t, found)
			assert.Nil(t, got)

			want := []doc{{ID: "a", Cents: 100}, {ID: "b", Cents: -5}}
			require.NoError(t, kv.Save(ctx, KeyExpenses, want))

			found, err = kv.Load(ctx, KeyExpenses, &got)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, want, got)

			// overwrite replaces the whole document
			require.NoError(t, kv.Save(ctx, KeyExpenses, want[:1]))
			got = nil
			_, err = kv.Load(ctx, KeyExpenses, &got)
			require.NoError(t, err)
			assert.Equal(t, want[:1], got)

			// keys are independent
			found, err = kv.Load(ctx, KeyParticipants, &got)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestLoadOr(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()

	got, err := LoadOr(ctx, kv, KeyParticipants, []doc{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	require.NoError(t, kv.Save(ctx, KeyParticipants, []doc{{ID: "x"}}))
	got, err = LoadOr(ctx, kv, KeyParticipants, []doc{})
	require.NoError(t, err)
	assert.Equal(t, []doc{{ID: "x"}}, got)
}

func TestFileStoreCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, KeyExpenses+".json"), []byte("{not json"), 0o644))

	var got []doc
	_, err = kv.Load(context.Background(), KeyExpenses, &got)
	assert.Error(t, err)
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s1, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Save(ctx, KeyParticipants, []doc{{ID: "p1"}}))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := LoadOr(ctx, s2, KeyParticipants, []doc(nil))
	require.NoError(t, err)
	assert.Equal(t, []doc{{ID: "p1"}}, got)
}

func TestRunMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.db")

	v, err := RunMigrations(path)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)

	v, err = RunMigrations(path)
	require.NoError(t, err, "a second run is a no-op")
	assert.Equal(t, SchemaVersion, v)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE schema_migrations SET dirty = 1`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = RunMigrations(path)
	assert.ErrorIs(t, err, ErrDirtySchema)

	_, err = NewSQLiteStore(path)
	assert.ErrorIs(t, err, ErrDirtySchema)
}
