package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/licensify/licensify/internal/domain/device"
	"github.com/licensify/licensify/internal/domain/license"
	"github.com/licensify/licensify/internal/domain/product"
	"github.com/licensify/licensify/internal/handler/dto"
	"github.com/licensify/licensify/internal/storage/memstorage"
)

type validationFixture struct {
	store *memstorage.Store
	svc   *ValidationService
	clock time.Time
}

func newValidationFixture(t *testing.T) *validationFixture {
	t.Helper()

	store := memstorage.NewStore()
	svc := NewValidationService(store, store.Licenses(), store.Devices(), store.Products(), 30, zap.NewNop())

	f := &validationFixture{
		store: store,
		svc:   svc,
		clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	svc.now = func() time.Time { return f.clock }
	return f
}

func (f *validationFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *validationFixture) seedLicense(t *testing.T, lic *license.License) *license.License {
	t.Helper()
	if lic.Status == "" {
		lic.Status = license.StatusActive
	}
	if lic.Type == "" {
		lic.Type = license.TypeUnlimited
	}
	id, err := f.store.Licenses().Create(context.Background(), lic)
	require.NoError(t, err)
	lic.ID = id
	return lic
}

func (f *validationFixture) validate(t *testing.T, key, deviceID string) *dto.ValidateLicenseResponse {
	t.Helper()
	resp, err := f.svc.Validate(context.Background(), &dto.ValidateLicenseRequest{
		LicenseKey: key,
		DeviceID:   deviceID,
		DeviceName: "test-host",
		OSInfo:     "linux/amd64",
		AppVersion: "1.0.0",
	}, "127.0.0.1")
	require.NoError(t, err)
	return resp
}

func nullUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: true}
}

func TestValidateUnknownKey(t *testing.T) {
	f := newValidationFixture(t)

	resp := f.validate(t, "NO-SUCH-KEY", "dev-1")

	assert.False(t, resp.Valid)
	assert.Equal(t, ReasonInvalidKey, resp.Reason)
}

func TestValidateRevokedLicenseRegistersNoDevice(t *testing.T) {
	f := newValidationFixture(t)
	f.seedLicense(t, &license.License{
		LicenseKey: "K2",
		Status:     license.StatusRevoked,
		MaxDevices: 5,
	})

	resp := f.validate(t, "K2", "dev-1")

	assert.False(t, resp.Valid)
	assert.Equal(t, ReasonLicenseRevoked, resp.Reason)

	lic, err := f.store.Licenses().FindByKey(context.Background(), "K2")
	require.NoError(t, err)
	devices, err := f.store.Devices().ListByLicense(context.Background(), lic.ID)
	require.NoError(t, err)
	assert.Empty(t, devices, "a revoked license must not accrete device rows")
}

func TestValidateLazyExpiry(t *testing.T) {
	f := newValidationFixture(t)
	f.seedLicense(t, &license.License{
		LicenseKey: "K-EXP",
		Type:       license.TypeLimited,
		MaxDevices: 1,
		ExpiresAt:  sql.NullTime{Time: f.clock.Add(-time.Hour), Valid: true},
	})

	// Stored status is still "active"; expiry is decided at validation time.
	resp := f.validate(t, "K-EXP", "dev-1")

	assert.False(t, resp.Valid)
	assert.Equal(t, ReasonLicenseExpired, resp.Reason)
	require.NotNil(t, resp.ExpiresAt)
}

func TestValidateSuccessAndCacheUntilRule(t *testing.T) {
	f := newValidationFixture(t)

	t.Run("far expiry caps at thirty days", func(t *testing.T) {
		f.seedLicense(t, &license.License{
			LicenseKey: "K-FAR",
			Type:       license.TypeLimited,
			MaxDevices: 3,
			ExpiresAt:  sql.NullTime{Time: f.clock.Add(365 * 24 * time.Hour), Valid: true},
		})

		resp := f.validate(t, "K-FAR", "dev-1")

		require.True(t, resp.Valid)
		require.NotNil(t, resp.CacheUntil)
		assert.Equal(t, f.clock.Add(30*24*time.Hour), *resp.CacheUntil)
	})

	t.Run("near expiry caps at expires_at", func(t *testing.T) {
		expiry := f.clock.Add(48 * time.Hour)
		f.seedLicense(t, &license.License{
			LicenseKey: "K-NEAR",
			Type:       license.TypeLimited,
			MaxDevices: 3,
			ExpiresAt:  sql.NullTime{Time: expiry, Valid: true},
		})

		resp := f.validate(t, "K-NEAR", "dev-1")

		require.True(t, resp.Valid)
		require.NotNil(t, resp.CacheUntil)
		assert.Equal(t, expiry, *resp.CacheUntil)
	})

	t.Run("no expiry caps at thirty days", func(t *testing.T) {
		f.seedLicense(t, &license.License{
			LicenseKey: "K-UNL",
			MaxDevices: 0,
		})

		resp := f.validate(t, "K-UNL", "dev-1")

		require.True(t, resp.Valid)
		assert.Nil(t, resp.ExpiresAt)
		assert.Nil(t, resp.DaysRemaining)
		require.NotNil(t, resp.CacheUntil)
		assert.Equal(t, f.clock.Add(30*24*time.Hour), *resp.CacheUntil)
	})
}

func TestValidateUpsertIsIdempotent(t *testing.T) {
	f := newValidationFixture(t)
	lic := f.seedLicense(t, &license.License{
		LicenseKey: "K-IDEM",
		MaxDevices: 5,
	})

	for i := 0; i < 3; i++ {
		resp := f.validate(t, "K-IDEM", "same-device")
		require.True(t, resp.Valid)
		require.NotNil(t, resp.CurrentDevices)
		assert.Equal(t, 1, *resp.CurrentDevices)
		f.advance(time.Minute)
	}

	devices, err := f.store.Devices().ListByLicense(context.Background(), lic.ID)
	require.NoError(t, err)
	require.Len(t, devices, 1, "repeat validations from one device must share a row")
	assert.True(t, devices[0].LastSeen.After(devices[0].FirstSeen))
}

func TestValidateOldestWinsDeviceCap(t *testing.T) {
	f := newValidationFixture(t)
	f.seedLicense(t, &license.License{
		LicenseKey: "K-CAP",
		MaxDevices: 2,
	})

	// A and B register first and hold the two slots.
	require.True(t, f.validate(t, "K-CAP", "device-A").Valid)
	f.advance(time.Minute)
	require.True(t, f.validate(t, "K-CAP", "device-B").Valid)
	f.advance(time.Minute)

	// C is over the cap: denied, but A and B keep validating.
	respC := f.validate(t, "K-CAP", "device-C")
	assert.False(t, respC.Valid)
	assert.Equal(t, ReasonDeviceLimitExceeded, respC.Reason)
	require.NotNil(t, respC.MaxDevices)
	assert.Equal(t, 2, *respC.MaxDevices)
	require.NotNil(t, respC.CurrentDevices)
	assert.Equal(t, 3, *respC.CurrentDevices)

	f.advance(time.Minute)
	assert.True(t, f.validate(t, "K-CAP", "device-A").Valid)
	assert.True(t, f.validate(t, "K-CAP", "device-B").Valid)

	// C stays denied on retry; its row already exists, so the count holds.
	assert.False(t, f.validate(t, "K-CAP", "device-C").Valid)
}

func TestValidateSingleDeviceLicense(t *testing.T) {
	f := newValidationFixture(t)
	f.seedLicense(t, &license.License{
		LicenseKey: "K1",
		MaxDevices: 1,
	})

	require.True(t, f.validate(t, "K1", "D1").Valid)
	f.advance(time.Minute)

	respD2 := f.validate(t, "K1", "D2")
	assert.False(t, respD2.Valid)
	assert.Equal(t, ReasonDeviceLimitExceeded, respD2.Reason)

	// D1 keeps its slot.
	assert.True(t, f.validate(t, "K1", "D1").Valid)
}

func TestValidateFreedSlotRestoresNewerDevice(t *testing.T) {
	f := newValidationFixture(t)
	lic := f.seedLicense(t, &license.License{
		LicenseKey: "K-FREE",
		MaxDevices: 1,
	})

	require.True(t, f.validate(t, "K-FREE", "old-device").Valid)
	f.advance(time.Minute)
	require.False(t, f.validate(t, "K-FREE", "new-device").Valid)

	// Blocking the older device frees its slot for the newer one.
	devices, err := f.store.Devices().ListActiveByLicense(context.Background(), lic.ID)
	require.NoError(t, err)
	require.NoError(t, f.store.Devices().UpdateStatus(context.Background(), devices[0].ID, device.StatusBlocked))

	f.advance(time.Minute)
	assert.True(t, f.validate(t, "K-FREE", "new-device").Valid)
}

func TestValidateBlockedDevice(t *testing.T) {
	f := newValidationFixture(t)
	lic := f.seedLicense(t, &license.License{
		LicenseKey: "K-BLK",
		MaxDevices: 5,
	})

	require.True(t, f.validate(t, "K-BLK", "dev-1").Valid)

	devices, err := f.store.Devices().ListByLicense(context.Background(), lic.ID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.NoError(t, f.store.Devices().UpdateStatus(context.Background(), devices[0].ID, device.StatusBlocked))

	resp := f.validate(t, "K-BLK", "dev-1")
	assert.False(t, resp.Valid)
	assert.Equal(t, ReasonDeviceBlocked, resp.Reason)
}

func TestValidateActivityLog(t *testing.T) {
	f := newValidationFixture(t)
	lic := f.seedLicense(t, &license.License{
		LicenseKey: "K-LOG",
		MaxDevices: 5,
	})

	f.validate(t, "K-LOG", "dev-1")
	f.advance(time.Minute)
	f.validate(t, "K-LOG", "dev-1")

	devices, err := f.store.Devices().ListByLicense(context.Background(), lic.ID)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	registered, err := f.store.Devices().CountActivities(context.Background(), devices[0].ID, device.ActionRegistered)
	require.NoError(t, err)
	assert.Equal(t, int64(1), registered, "registration is logged exactly once")

	validated, err := f.store.Devices().CountActivities(context.Background(), devices[0].ID, device.ActionValidated)
	require.NoError(t, err)
	assert.Equal(t, int64(2), validated)
}

func TestValidateFeaturesFallBackToProductDefaults(t *testing.T) {
	f := newValidationFixture(t)

	productID, err := f.store.Products().Create(context.Background(), &product.Product{
		Name:              "Awesome App",
		Slug:              "awesome-app",
		AvailableFeatures: product.FeatureSet{"export", "sync"},
		IsActive:          true,
	})
	require.NoError(t, err)

	t.Run("license features win when set", func(t *testing.T) {
		f.seedLicense(t, &license.License{
			LicenseKey: "K-FEAT",
			ProductID:  nullUUID(productID),
			Features:   product.FeatureSet{"export"},
		})

		resp := f.validate(t, "K-FEAT", "dev-1")
		require.True(t, resp.Valid)
		assert.Equal(t, []string{"export"}, resp.Features)
		require.NotNil(t, resp.Product)
		assert.Equal(t, "awesome-app", resp.Product.Slug)
	})

	t.Run("empty license features fall back to product", func(t *testing.T) {
		f.seedLicense(t, &license.License{
			LicenseKey: "K-DEF",
			ProductID:  nullUUID(productID),
		})

		resp := f.validate(t, "K-DEF", "dev-1")
		require.True(t, resp.Valid)
		assert.ElementsMatch(t, []string{"export", "sync"}, resp.Features)
	})
}
