package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(t *testing.T, apiURL string) *Validator {
	t.Helper()
	v, err := NewValidator(&Config{
		APIURL:     apiURL,
		LicenseKey: "TEST-KEY",
		AppVersion: "1.2.3",
		CacheDir:   t.TempDir(),
		Timeout:    2 * time.Second,
	})
	require.NoError(t, err)
	return v
}

func serveVerdict(t *testing.T, verdict Verdict) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/licenses/validate", r.URL.Path)

		var req validateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "TEST-KEY", req.LicenseKey)
		require.NotEmpty(t, req.DeviceID)

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(verdict))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func validServerVerdict() Verdict {
	until := time.Now().UTC().Add(12 * time.Hour)
	return Verdict{
		Valid:       true,
		LicenseType: "limited",
		CacheUntil:  &until,
		Features:    []string{"export"},
		Product:     &ProductInfo{Name: "Awesome App", Slug: "awesome-app"},
	}
}

func TestValidateSuccessCachesVerdict(t *testing.T) {
	srv := serveVerdict(t, validServerVerdict())
	v := newTestValidator(t, srv.URL)

	verdict, err := v.Validate(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, verdict.Valid)
	assert.False(t, verdict.FromCache)
	assert.Equal(t, []string{"export"}, verdict.Features)

	assert.True(t, v.cache.IsValid("TEST-KEY"), "successful validation must populate the cache")
	assert.NotNil(t, v.LastValidation())
	assert.True(t, v.HasFeature("export"))
	assert.Equal(t, "awesome-app", v.Product().Slug)
}

func TestValidateDenialMapsToKind(t *testing.T) {
	tests := []struct {
		reason string
		want   ErrorKind
	}{
		{"invalid_key", KindInvalidKey},
		{"license_expired", KindExpired},
		{"license_revoked", KindRevoked},
		{"device_blocked", KindDeviceBlocked},
		{"device_limit_exceeded", KindDeviceLimitExceeded},
		{"something_new", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			srv := serveVerdict(t, Verdict{Valid: false, Reason: tt.reason})
			v := newTestValidator(t, srv.URL)

			_, err := v.Validate(context.Background(), false)
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.want, verr.Kind)
		})
	}
}

func TestValidateDenialNeverFallsBackToCache(t *testing.T) {
	okSrv := serveVerdict(t, validServerVerdict())
	v := newTestValidator(t, okSrv.URL)

	_, err := v.Validate(context.Background(), false)
	require.NoError(t, err)
	require.True(t, v.cache.IsValid("TEST-KEY"))

	denySrv := serveVerdict(t, Verdict{Valid: false, Reason: "license_revoked"})
	v.cfg.APIURL = denySrv.URL

	_, err = v.Validate(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRevoked), "warm cache must not mask an explicit denial")
}

func TestValidateNetworkFailureFallsBackToCache(t *testing.T) {
	srv := serveVerdict(t, validServerVerdict())
	v := newTestValidator(t, srv.URL)

	_, err := v.Validate(context.Background(), false)
	require.NoError(t, err)

	srv.Close()

	verdict, err := v.Validate(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, verdict.Valid)
	assert.True(t, verdict.FromCache)
	require.NotNil(t, verdict.CacheExpiresAt)
	assert.True(t, verdict.CacheExpiresAt.After(time.Now()))
}

func TestValidateNetworkFailureWithoutCache(t *testing.T) {
	srv := serveVerdict(t, validServerVerdict())
	v := newTestValidator(t, srv.URL)
	srv.Close()

	_, err := v.Validate(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCacheUnavailable))
	// The underlying network error stays reachable for diagnostics.
	assert.True(t, errors.Is(err, ErrNetwork))
}

func TestValidateForceOnlineSkipsCache(t *testing.T) {
	srv := serveVerdict(t, validServerVerdict())
	v := newTestValidator(t, srv.URL)

	_, err := v.Validate(context.Background(), false)
	require.NoError(t, err)

	srv.Close()

	_, err = v.Validate(context.Background(), true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))

	// The cache slot survives a failed forced check.
	assert.True(t, v.cache.IsValid("TEST-KEY"))
}

func TestValidateRateLimitIsNetworkClass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)
	v := newTestValidator(t, srv.URL)

	_, err := v.Validate(context.Background(), false)
	require.Error(t, err)

	// No cache yet, so the 429 surfaces as cache-unavailable wrapping a
	// rate-limited network error.
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindCacheUnavailable, verr.Kind)

	var netErr *ValidationError
	require.True(t, errors.As(verr.Err, &netErr))
	assert.Equal(t, KindNetwork, netErr.Kind)
	assert.True(t, netErr.RateLimit)
}

func TestValidateMalformedBodyIsNetworkClass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway error</html>"))
	}))
	t.Cleanup(srv.Close)
	v := newTestValidator(t, srv.URL)

	_, err := v.Validate(context.Background(), true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))
}

func TestIsValidSwallowsErrors(t *testing.T) {
	denySrv := serveVerdict(t, Verdict{Valid: false, Reason: "invalid_key"})
	v := newTestValidator(t, denySrv.URL)
	assert.False(t, v.IsValid(context.Background()))

	okSrv := serveVerdict(t, validServerVerdict())
	v.cfg.APIURL = okSrv.URL
	assert.True(t, v.IsValid(context.Background()))
}

func TestBackgroundCheckRunsAndStops(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(validServerVerdict())
	}))
	t.Cleanup(srv.Close)
	v := newTestValidator(t, srv.URL)

	v.StartBackgroundCheck(20 * time.Millisecond)
	// Starting twice must not spawn a second loop.
	v.StartBackgroundCheck(20 * time.Millisecond)

	assert.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	v.StopBackgroundCheck()
	settled := calls.Load()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, calls.Load(), "no validations may run after stop")

	// Stopping again is a no-op.
	v.StopBackgroundCheck()
}

func TestNewValidatorRequiresConfig(t *testing.T) {
	_, err := NewValidator(&Config{LicenseKey: "K"})
	require.Error(t, err)

	_, err = NewValidator(&Config{APIURL: "http://localhost"})
	require.Error(t, err)

	v, err := NewValidator(&Config{APIURL: "http://localhost/api/v1/", LicenseKey: "K", CacheDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/api/v1", v.cfg.APIURL)
	assert.Equal(t, defaultTimeout, v.cfg.Timeout)
}
