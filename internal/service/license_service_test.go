package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/licensify/licensify/internal/domain/license"
	"github.com/licensify/licensify/internal/domain/product"
	"github.com/licensify/licensify/internal/handler/dto"
	"github.com/licensify/licensify/internal/storage/memstorage"
)

func newLicenseService(t *testing.T) (*LicenseService, *memstorage.Store) {
	t.Helper()
	store := memstorage.NewStore()
	svc := NewLicenseService(store.Licenses(), store.Devices(), store.Products(), 0, zap.NewNop())
	return svc, store
}

func TestCreateLicenseUnlimited(t *testing.T) {
	svc, _ := newLicenseService(t)

	lic, err := svc.CreateLicense(context.Background(), &dto.CreateLicenseRequest{
		Type: license.TypeUnlimited,
	})
	require.NoError(t, err)

	assert.Len(t, lic.LicenseKey, license.KeyLength)
	assert.Equal(t, license.StatusActive, lic.Status)
	assert.False(t, lic.ExpiresAt.Valid)
	assert.Equal(t, 1, lic.MaxDevices)
	assert.True(t, lic.IssuedAt.Valid)
}

func TestCreateLicenseTrialDefaultsToFourteenDays(t *testing.T) {
	svc, _ := newLicenseService(t)

	lic, err := svc.CreateLicense(context.Background(), &dto.CreateLicenseRequest{
		Type: license.TypeTrial,
	})
	require.NoError(t, err)

	require.True(t, lic.ExpiresAt.Valid)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 14), lic.ExpiresAt.Time, time.Minute)
}

func TestCreateLicenseLimitedRequiresExpiry(t *testing.T) {
	svc, _ := newLicenseService(t)

	_, err := svc.CreateLicense(context.Background(), &dto.CreateLicenseRequest{
		Type: license.TypeLimited,
	})
	require.Error(t, err)

	days := 90
	lic, err := svc.CreateLicense(context.Background(), &dto.CreateLicenseRequest{
		Type:         license.TypeLimited,
		DurationDays: &days,
	})
	require.NoError(t, err)
	require.True(t, lic.ExpiresAt.Valid)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 90), lic.ExpiresAt.Time, time.Minute)
}

func TestCreateLicenseInheritsProductDeviceCap(t *testing.T) {
	svc, store := newLicenseService(t)

	productID, err := store.Products().Create(context.Background(), &product.Product{
		Name:              "Awesome App",
		Slug:              "awesome-app",
		DefaultMaxDevices: 7,
		IsActive:          true,
	})
	require.NoError(t, err)

	lic, err := svc.CreateLicense(context.Background(), &dto.CreateLicenseRequest{
		Type:      license.TypeUnlimited,
		ProductID: &productID,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, lic.MaxDevices)

	// An explicit cap beats the product default.
	three := 3
	lic, err = svc.CreateLicense(context.Background(), &dto.CreateLicenseRequest{
		Type:       license.TypeUnlimited,
		ProductID:  &productID,
		MaxDevices: &three,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, lic.MaxDevices)
}

func TestExtendLicenseReactivates(t *testing.T) {
	svc, store := newLicenseService(t)

	days := 1
	lic, err := svc.CreateLicense(context.Background(), &dto.CreateLicenseRequest{
		Type:         license.TypeLimited,
		DurationDays: &days,
	})
	require.NoError(t, err)
	require.NoError(t, store.Licenses().UpdateStatus(context.Background(), lic.ID, license.StatusExpired))

	extendBy := 30
	extended, err := svc.ExtendLicense(context.Background(), lic.ID, &dto.ExtendLicenseRequest{
		DurationDays: &extendBy,
	})
	require.NoError(t, err)

	assert.Equal(t, license.StatusActive, extended.Status)
	require.True(t, extended.ExpiresAt.Valid)
	assert.True(t, extended.ExpiresAt.Time.After(time.Now().UTC().AddDate(0, 0, 29)))
}

func TestRevokeLicense(t *testing.T) {
	svc, store := newLicenseService(t)

	lic, err := svc.CreateLicense(context.Background(), &dto.CreateLicenseRequest{
		Type: license.TypeUnlimited,
	})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeLicense(context.Background(), lic.ID))

	stored, err := store.Licenses().FindByID(context.Background(), lic.ID)
	require.NoError(t, err)
	assert.Equal(t, license.StatusRevoked, stored.Status)
}
