package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/querypad/pkg/models"
	"github.com/ekaya-inc/querypad/pkg/repositories"
)

func seedResult(t *testing.T, repo repositories.ResultCacheRepository, exporter ResultExporter, key string, expiration time.Time) {
	t.Helper()
	require.NoError(t, repo.Save(context.Background(), &models.ResultCacheEntry{
		CacheKey:   key,
		QueryName:  key,
		Expiration: expiration,
		CreatedAt:  expiration.Add(-8 * time.Hour),
		ModifiedAt: expiration.Add(-8 * time.Hour),
	}))
	exporter.WriteAll(key, sampleResult())
}

func exportFilesExist(t *testing.T, dir, key string) []bool {
	t.Helper()
	var exist []bool
	for _, format := range ExportFormats {
		_, err := os.Stat(filepath.Join(dir, key+"."+format))
		exist = append(exist, err == nil)
	}
	return exist
}

func TestResultCacheSweeper_Sweep(t *testing.T) {
	for name, newRepo := range map[string]func(t *testing.T) repositories.ResultCacheRepository{
		"memory": func(t *testing.T) repositories.ResultCacheRepository {
			return repositories.NewMemoryResultCacheRepository()
		},
		"redis": func(t *testing.T) repositories.ResultCacheRepository {
			return repositories.NewRedisResultCacheRepository(newTestRedis(t))
		},
	} {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			dir := t.TempDir()
			logger := zaptest.NewLogger(t)
			exporter, err := NewResultExporter(dir, logger)
			require.NoError(t, err)
			repo := newRepo(t)
			ctx := context.Background()

			seedResult(t, repo, exporter, "old", clock.Now().Add(-time.Minute))
			seedResult(t, repo, exporter, "fresh", clock.Now().Add(time.Hour))

			sweeper := NewResultCacheSweeper(repo, exporter, newManualScheduler(), time.Minute, clock.Now, logger)
			assert.Equal(t, 1, sweeper.Sweep(ctx))

			old, err := repo.Get(ctx, "old")
			require.NoError(t, err)
			assert.Nil(t, old)
			assert.Equal(t, []bool{false, false, false}, exportFilesExist(t, dir, "old"))

			fresh, err := repo.Get(ctx, "fresh")
			require.NoError(t, err)
			assert.NotNil(t, fresh)
			assert.Equal(t, []bool{true, true, true}, exportFilesExist(t, dir, "fresh"))

			clock.Advance(2 * time.Hour)
			assert.Equal(t, 1, sweeper.Sweep(ctx))
			assert.Equal(t, []bool{false, false, false}, exportFilesExist(t, dir, "fresh"))
		})
	}
}

func TestResultCacheSweeper_EntryWithoutFiles(t *testing.T) {
	clock := newFakeClock()
	logger := zaptest.NewLogger(t)
	exporter, err := NewResultExporter(t.TempDir(), logger)
	require.NoError(t, err)
	repo := repositories.NewMemoryResultCacheRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &models.ResultCacheEntry{CacheKey: "nofiles", Expiration: clock.Now().Add(-time.Second)}))

	sweeper := NewResultCacheSweeper(repo, exporter, newManualScheduler(), 0, clock.Now, logger)
	assert.Equal(t, 1, sweeper.Sweep(ctx))
}

func TestResultCacheSweeper_StartStop(t *testing.T) {
	// The sweep goroutine may still be logging when the test returns.
	logger := zap.NewNop()
	exporter, err := NewResultExporter(t.TempDir(), logger)
	require.NoError(t, err)
	repo := repositories.NewMemoryResultCacheRepository()
	ctx := context.Background()

	sweeper := NewResultCacheSweeper(repo, exporter, NewScheduler(), 10*time.Millisecond, time.Now, logger)
	sweeper.Start()
	sweeper.Start()
	t.Cleanup(sweeper.Stop)

	require.NoError(t, repo.Save(ctx, &models.ResultCacheEntry{CacheKey: "k", Expiration: time.Now().Add(-time.Second)}))

	require.Eventually(t, func() bool {
		entry, err := repo.Get(ctx, "k")
		return err == nil && entry == nil
	}, 2*time.Second, 5*time.Millisecond)

	sweeper.Stop()
	sweeper.Stop()
}
