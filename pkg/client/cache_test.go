package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) *CacheManager {
	t.Helper()
	return NewCacheManager(t.TempDir(), zap.NewNop())
}

func testVerdict(cacheUntil time.Time) *Verdict {
	until := cacheUntil
	return &Verdict{
		Valid:       true,
		LicenseType: "limited",
		CacheUntil:  &until,
		Features:    []string{"export", "sync"},
	}
}

func TestCacheSaveLoadRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	until := time.Now().UTC().Add(24 * time.Hour)

	cache.Save("KEY-1", "device-a", testVerdict(until))

	loaded := cache.Load("KEY-1")
	require.NotNil(t, loaded)
	assert.True(t, loaded.Valid)
	assert.Equal(t, "limited", loaded.LicenseType)
	assert.Equal(t, []string{"export", "sync"}, loaded.Features)
	require.NotNil(t, loaded.CacheUntil)
	assert.WithinDuration(t, until, *loaded.CacheUntil, time.Second)
}

func TestCacheLoadMismatchedKeyReturnsNil(t *testing.T) {
	cache := newTestCache(t)
	cache.Save("KEY-1", "device-a", testVerdict(time.Now().Add(time.Hour)))

	assert.Nil(t, cache.Load("KEY-2"))
	assert.False(t, cache.IsValid("KEY-2"))
}

func TestCacheLoadStaleEntryReturnsNil(t *testing.T) {
	cache := newTestCache(t)
	cache.Save("KEY-1", "device-a", testVerdict(time.Now().Add(time.Hour)))

	cache.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	assert.Nil(t, cache.Load("KEY-1"))
	// CacheExpiry still reads the raw slot even when it is stale.
	assert.NotNil(t, cache.CacheExpiry())
}

func TestCacheSecondSaveOverwritesSlot(t *testing.T) {
	cache := newTestCache(t)
	cache.Save("KEY-1", "device-a", testVerdict(time.Now().Add(time.Hour)))
	cache.Save("KEY-2", "device-a", testVerdict(time.Now().Add(time.Hour)))

	assert.Nil(t, cache.Load("KEY-1"))
	assert.NotNil(t, cache.Load("KEY-2"))
}

func TestCacheCorruptFileIsAMiss(t *testing.T) {
	dir := t.TempDir()
	cache := NewCacheManager(dir, zap.NewNop())
	require.NoError(t, os.WriteFile(filepath.Join(dir, cacheFileName), []byte("{not json"), 0o600))

	assert.Nil(t, cache.Load("KEY-1"))
}

func TestCacheClearMissingFileIsNotAnError(t *testing.T) {
	cache := newTestCache(t)
	require.NoError(t, cache.Clear())

	cache.Save("KEY-1", "device-a", testVerdict(time.Now().Add(time.Hour)))
	require.NoError(t, cache.Clear())
	assert.Nil(t, cache.Load("KEY-1"))
}

func TestCacheSaveWithoutCacheUntilIsIgnored(t *testing.T) {
	cache := newTestCache(t)
	cache.Save("KEY-1", "device-a", &Verdict{Valid: true})

	assert.Nil(t, cache.Load("KEY-1"))
	assert.Nil(t, cache.CacheExpiry())
}
