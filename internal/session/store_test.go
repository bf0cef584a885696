package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/storefront-dev/storefront/internal/models"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a second connection would see a fresh in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return NewSQLStore(db)
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, "test:session:"), mr
}

func TestStores_RoundTrip(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store { return newSQLiteStore(t) },
		"redis": func(t *testing.T) Store {
			s, _ := newRedisStore(t)
			return s
		},
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)

			now := time.Now().UTC().Truncate(time.Second)
			st := NewState("01J0000000000000000000TEST", now, time.Hour)
			st.Login(NamespaceAdmin, RawProfile{ID: "a1", Email: "boss@shop.test", IsAdmin: true})
			st.SetCredential(NamespaceAdmin, "connect.sid=xyz")

			require.NoError(t, store.Put(ctx, st))

			got, err := store.Get(ctx, st.ID)
			require.NoError(t, err)
			assert.Equal(t, st.Record(NamespaceAdmin), got.Record(NamespaceAdmin))
			assert.Equal(t, st.Record(NamespaceUser), got.Record(NamespaceUser))
			assert.Equal(t, "connect.sid=xyz", got.Credential(NamespaceAdmin))
			assert.True(t, st.ExpiresAt.Equal(got.ExpiresAt))

			// overwrite in place
			st.Logout(NamespaceAdmin)
			require.NoError(t, store.Put(ctx, st))
			got, err = store.Get(ctx, st.ID)
			require.NoError(t, err)
			assert.False(t, got.Record(NamespaceAdmin).IsAuthenticated)

			require.NoError(t, store.Delete(ctx, st.ID))
			_, err = store.Get(ctx, st.ID)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSQLStore_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	now := time.Now().UTC()
	stale := NewState("01J00000000000000000STALE0", now.Add(-2*time.Hour), time.Hour)
	fresh := NewState("01J00000000000000000FRESH0", now, time.Hour)
	require.NoError(t, store.Put(ctx, stale))
	require.NoError(t, store.Put(ctx, fresh))

	removed, err := store.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = store.Get(ctx, stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestRedisStore_TTLFollowsExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	st := NewState("01J00000000000000000REDIS0", time.Now().UTC(), 10*time.Minute)
	require.NoError(t, store.Put(ctx, st))

	ttl := mr.TTL("test:session:" + st.ID)
	assert.Greater(t, ttl, 9*time.Minute)
	assert.LessOrEqual(t, ttl, 10*time.Minute)

	mr.FastForward(11 * time.Minute)
	_, err := store.Get(ctx, st.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_PutExpiredDeletes(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	st := NewState("01J00000000000000000REDIS1", time.Now().UTC().Add(-time.Hour), time.Minute)
	require.NoError(t, mr.Set("test:session:"+st.ID, "{}"))

	require.NoError(t, store.Put(ctx, st))
	assert.False(t, mr.Exists("test:session:"+st.ID))
}
