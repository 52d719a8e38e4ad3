package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/livestream/internal/errs"
	"github.com/aura-webinar/livestream/internal/models"
	"github.com/aura-webinar/livestream/pkg/database"
)

func record(id, name string) *models.Webinar {
	return &models.Webinar{
		ID:        id,
		Name:      name,
		Date:      "2025-05-12",
		Time:      "02:30",
		Period:    models.PeriodPM,
		CTAType:   models.CTABuy,
		CreatedAt: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func ids(list []models.Webinar) []string {
	out := make([]string, 0, len(list))
	for _, w := range list {
		out = append(out, w.ID)
	}
	return out
}

// exerciseRepository checks the behaviour every backend shares.
func exerciseRepository(t *testing.T, repo Repository) {
	ctx := context.Background()

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, repo.Put(ctx, record("a", "First")))
	require.NoError(t, repo.Put(ctx, record("b", "Second")))
	require.NoError(t, repo.Put(ctx, record("c", "Third")))

	list, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(list), "newest first")

	replaced := record("b", "Second, renamed")
	replaced.StreamCallID = "b"
	replaced.StreamToken = "tok"
	require.NoError(t, repo.Put(ctx, replaced))

	list, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(list), "overwrite keeps position")

	got, err := repo.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "Second, renamed", got.Name)
	assert.Equal(t, "tok", got.StreamToken)
	assert.True(t, got.HasStream())
	assert.Equal(t, models.PeriodPM, got.Period)
	assert.True(t, replaced.CreatedAt.Equal(got.CreatedAt))

	assert.True(t, errs.IsValidation(repo.Put(ctx, &models.Webinar{})))
}

func exerciseConcurrentPuts(t *testing.T, repo Repository) {
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, repo.Put(ctx, record(fmt.Sprintf("w-%d", i), "Concurrent")))
		}(i)
	}
	wg.Wait()

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 10)
}

func TestMemoryRepository(t *testing.T) {
	exerciseRepository(t, NewMemoryRepository())
	exerciseConcurrentPuts(t, NewMemoryRepository())
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Put(ctx, record("a", "Original")))

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Original", again.Name)
}

func openSQLite(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "webinars.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	exerciseRepository(t, openSQLite(t))
	exerciseConcurrentPuts(t, openSQLite(t))
}

func TestSQLiteRepositoryPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webinars.db")
	repo, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, repo.Put(context.Background(), record("a", "Kept")))
	require.NoError(t, repo.Close())

	repo, err = OpenSQLite(path)
	require.NoError(t, err)
	defer repo.Close()
	got, err := repo.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "Kept", got.Name)
}

func TestRedisRepository(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })

	for _, run := range []func(*testing.T, Repository){exerciseRepository, exerciseConcurrentPuts} {
		key := "webinars-test-" + uuid.NewString()
		t.Cleanup(func() { rdb.Del(context.Background(), key) })
		run(t, NewRedisRepository(rdb, key, nil))
	}
}

func TestRedisRepositoryRejectsCorruptValue(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })
	key := "webinars-test-" + uuid.NewString()
	t.Cleanup(func() { rdb.Del(ctx, key) })
	require.NoError(t, rdb.Set(ctx, key, "not json", 0).Err())

	_, err := NewRedisRepository(rdb, key, nil).List(ctx)
	assert.Error(t, err)
}

func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	_, err = database.Migrate(ctx, pool)
	require.NoError(t, err)

	for _, run := range []func(*testing.T, Repository){exerciseRepository, exerciseConcurrentPuts} {
		_, err = pool.Exec(ctx, `TRUNCATE webinars`)
		require.NoError(t, err)
		run(t, NewPostgresRepository(pool))
	}
}
