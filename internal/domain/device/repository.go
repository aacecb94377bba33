package device

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("device not found")

// UpsertParams carries the per-validation metadata refresh. Empty optional
// fields leave the stored value untouched.
type UpsertParams struct {
	LicenseID  uuid.UUID
	DeviceID   string
	DeviceName string
	OS         string
	IPAddress  string
	Now        time.Time
}

type Repository interface {
	// Upsert inserts the device on first sight or refreshes
	// last_seen/name/os/ip on subsequent sightings. The second return value
	// reports whether a new row was created. Concurrent first registrations
	// are resolved by the (license_id, device_id) unique constraint: the
	// loser's insert lands as an update.
	Upsert(ctx context.Context, params UpsertParams) (*Device, bool, error)

	FindByID(ctx context.Context, id uuid.UUID) (*Device, error)

	// ListActiveByLicense returns active devices ordered by first_seen
	// ascending. The ordering is load-bearing: device-limit enforcement
	// admits only the oldest max_devices entries.
	ListActiveByLicense(ctx context.Context, licenseID uuid.UUID) ([]*Device, error)

	ListByLicense(ctx context.Context, licenseID uuid.UUID) ([]*Device, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status DeviceStatus) error

	LogActivity(ctx context.Context, activity *Activity) error
	ListActivities(ctx context.Context, deviceID uuid.UUID, limit, offset int) ([]*Activity, error)
	CountActivities(ctx context.Context, deviceID uuid.UUID, action ActivityAction) (int64, error)
}
