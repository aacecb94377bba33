package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const cacheFileName = "license_cache.json"

// cacheEntry is the single slot persisted to disk. The verdict is only
// replayed when the stored key matches and CacheUntil has not passed.
type cacheEntry struct {
	LicenseKey string    `json:"license_key"`
	DeviceID   string    `json:"device_id"`
	CachedAt   time.Time `json:"cached_at"`
	CacheUntil time.Time `json:"cache_until"`
	Verdict    *Verdict  `json:"verdict"`
}

// CacheManager persists the last good verdict so the application keeps
// working through server outages, up to cache_until. All failure modes
// degrade to a cache miss; cache trouble never breaks validation.
type CacheManager struct {
	path   string
	now    func() time.Time
	logger *zap.Logger
}

func NewCacheManager(dir string, logger *zap.Logger) *CacheManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheManager{
		path:   filepath.Join(dir, cacheFileName),
		now:    time.Now,
		logger: logger.Named("CacheManager"),
	}
}

// Save stores the verdict. The write is atomic (temp file + rename) so a
// crash mid-write can never leave a truncated cache. Errors are logged and
// swallowed.
func (m *CacheManager) Save(licenseKey, deviceID string, verdict *Verdict) {
	if verdict == nil || verdict.CacheUntil == nil {
		return
	}

	entry := cacheEntry{
		LicenseKey: licenseKey,
		DeviceID:   deviceID,
		CachedAt:   m.now().UTC(),
		CacheUntil: verdict.CacheUntil.UTC(),
		Verdict:    verdict,
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		m.logger.Warn("Failed to marshal cache entry", zap.Error(err))
		return
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		m.logger.Warn("Failed to create cache directory", zap.Error(err))
		return
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), cacheFileName+".tmp-*")
	if err != nil {
		m.logger.Warn("Failed to create temp cache file", zap.Error(err))
		return
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		m.logger.Warn("Failed to write cache file", zap.Error(err))
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		m.logger.Warn("Failed to close cache file", zap.Error(err))
		return
	}

	if err := os.Rename(tmpName, m.path); err != nil {
		os.Remove(tmpName)
		m.logger.Warn("Failed to move cache file into place", zap.Error(err))
		return
	}

	m.logger.Debug("Cached verdict saved", zap.Time("cache_until", entry.CacheUntil))
}

// Load returns the cached verdict for licenseKey, or nil if the slot is
// empty, unreadable, written for another key, or past cache_until.
func (m *CacheManager) Load(licenseKey string) *Verdict {
	entry := m.read()
	if entry == nil {
		return nil
	}

	if entry.LicenseKey != licenseKey {
		m.logger.Debug("Cache belongs to a different license key")
		return nil
	}
	if entry.Verdict == nil || m.now().UTC().After(entry.CacheUntil) {
		m.logger.Debug("Cache entry is stale", zap.Time("cache_until", entry.CacheUntil))
		return nil
	}

	return entry.Verdict
}

// IsValid reports whether a fresh, matching entry exists without returning it.
func (m *CacheManager) IsValid(licenseKey string) bool {
	return m.Load(licenseKey) != nil
}

// CacheExpiry returns the cache_until of the stored entry regardless of
// freshness, or nil if no entry exists.
func (m *CacheManager) CacheExpiry() *time.Time {
	entry := m.read()
	if entry == nil {
		return nil
	}
	t := entry.CacheUntil
	return &t
}

// Clear removes the cache slot. A missing file is not an error.
func (m *CacheManager) Clear() error {
	err := os.Remove(m.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (m *CacheManager) read() *cacheEntry {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("Failed to read cache file", zap.Error(err))
		}
		return nil
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		m.logger.Warn("Cache file is corrupt, ignoring", zap.Error(err))
		return nil
	}

	return &entry
}
