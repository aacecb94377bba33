package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/licensify/licensify/internal/domain/device"
	"go.uber.org/zap"
)

const deviceColumns = `
        id, license_id, device_id, device_name, os, ip_address, status,
        first_seen, last_seen
`

type DeviceRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewDeviceRepository(db *pgxpool.Pool, logger *zap.Logger) *DeviceRepository {
	return &DeviceRepository{
		db:     db,
		logger: logger.Named("DeviceRepository"),
	}
}

var _ device.Repository = (*DeviceRepository)(nil)

// Upsert relies on the uq_devices_license_device constraint: two concurrent
// first sightings of the same fingerprint race on the insert and the loser
// falls through to the DO UPDATE branch. `(xmax = 0)` distinguishes a fresh
// insert from a refresh without a second round trip.
func (r *DeviceRepository) Upsert(ctx context.Context, params device.UpsertParams) (*device.Device, bool, error) {
	query := `
        INSERT INTO devices (license_id, device_id, device_name, os, ip_address, first_seen, last_seen)
        VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $6)
        ON CONFLICT ON CONSTRAINT uq_devices_license_device DO UPDATE SET
            last_seen   = EXCLUDED.last_seen,
            device_name = COALESCE(EXCLUDED.device_name, devices.device_name),
            os          = COALESCE(EXCLUDED.os, devices.os),
            ip_address  = COALESCE(EXCLUDED.ip_address, devices.ip_address)
        RETURNING ` + deviceColumns + `, (xmax = 0) AS inserted
    `

	var dev device.Device
	var inserted bool
	err := querierFrom(ctx, r.db).QueryRow(ctx, query,
		params.LicenseID,
		params.DeviceID,
		params.DeviceName,
		params.OS,
		params.IPAddress,
		params.Now,
	).Scan(
		&dev.ID,
		&dev.LicenseID,
		&dev.DeviceID,
		&dev.DeviceName,
		&dev.OS,
		&dev.IPAddress,
		&dev.Status,
		&dev.FirstSeen,
		&dev.LastSeen,
		&inserted,
	)
	if err != nil {
		r.logger.Error("Failed to upsert device",
			zap.String("license_id", params.LicenseID.String()),
			zap.Error(err),
		)
		return nil, false, fmt.Errorf("database error on upsert device: %w", err)
	}

	return &dev, inserted, nil
}

func (r *DeviceRepository) FindByID(ctx context.Context, id uuid.UUID) (*device.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`

	row := querierFrom(ctx, r.db).QueryRow(ctx, query, id)
	return r.scanDevice(row)
}

func (r *DeviceRepository) ListActiveByLicense(ctx context.Context, licenseID uuid.UUID) ([]*device.Device, error) {
	// first_seen ASC ordering decides which devices keep access when a
	// license is over its device cap.
	query := `SELECT ` + deviceColumns + ` FROM devices
        WHERE license_id = $1 AND status = 'active'
        ORDER BY first_seen ASC`

	return r.queryDevices(ctx, query, licenseID)
}

func (r *DeviceRepository) ListByLicense(ctx context.Context, licenseID uuid.UUID) ([]*device.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices
        WHERE license_id = $1
        ORDER BY last_seen DESC`

	return r.queryDevices(ctx, query, licenseID)
}

func (r *DeviceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status device.DeviceStatus) error {
	cmdTag, err := querierFrom(ctx, r.db).Exec(ctx,
		`UPDATE devices SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		r.logger.Error("Failed to update device status", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("database error on update device status: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return device.ErrNotFound
	}

	return nil
}

func (r *DeviceRepository) LogActivity(ctx context.Context, activity *device.Activity) error {
	query := `
        INSERT INTO device_activity (device_id, action, ip_address, metadata, timestamp)
        VALUES ($1, $2, $3, $4, $5)
    `

	_, err := querierFrom(ctx, r.db).Exec(ctx, query,
		activity.DeviceID,
		activity.Action,
		activity.IPAddress,
		activity.Metadata,
		activity.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to insert device activity",
			zap.String("device_id", activity.DeviceID.String()),
			zap.String("action", string(activity.Action)),
			zap.Error(err),
		)
		return fmt.Errorf("database error on log activity: %w", err)
	}

	return nil
}

func (r *DeviceRepository) ListActivities(ctx context.Context, deviceID uuid.UUID, limit, offset int) ([]*device.Activity, error) {
	query := `
        SELECT id, device_id, action, ip_address, metadata, timestamp
        FROM device_activity
        WHERE device_id = $1
        ORDER BY timestamp DESC
        LIMIT $2 OFFSET $3
    `

	rows, err := querierFrom(ctx, r.db).Query(ctx, query, deviceID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to query device activities", zap.Error(err))
		return nil, fmt.Errorf("database error on list activities: %w", err)
	}
	defer rows.Close()

	activities := make([]*device.Activity, 0)
	for rows.Next() {
		var a device.Activity
		if err := rows.Scan(&a.ID, &a.DeviceID, &a.Action, &a.IPAddress, &a.Metadata, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("database scan error on list activities: %w", err)
		}
		activities = append(activities, &a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("database iteration error on list activities: %w", err)
	}

	return activities, nil
}

func (r *DeviceRepository) CountActivities(ctx context.Context, deviceID uuid.UUID, action device.ActivityAction) (int64, error) {
	var count int64
	err := querierFrom(ctx, r.db).QueryRow(ctx,
		`SELECT COUNT(*) FROM device_activity WHERE device_id = $1 AND action = $2`,
		deviceID, action,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("database error on count activities: %w", err)
	}
	return count, nil
}

func (r *DeviceRepository) queryDevices(ctx context.Context, query string, args ...any) ([]*device.Device, error) {
	rows, err := querierFrom(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query devices", zap.Error(err))
		return nil, fmt.Errorf("database error on list devices: %w", err)
	}
	defer rows.Close()

	devices := make([]*device.Device, 0)
	for rows.Next() {
		dev, err := r.scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("database iteration error on list devices: %w", err)
	}

	return devices, nil
}

func (r *DeviceRepository) scanDevice(row pgx.Row) (*device.Device, error) {
	var dev device.Device
	err := row.Scan(
		&dev.ID,
		&dev.LicenseID,
		&dev.DeviceID,
		&dev.DeviceName,
		&dev.OS,
		&dev.IPAddress,
		&dev.Status,
		&dev.FirstSeen,
		&dev.LastSeen,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, device.ErrNotFound
		}

		r.logger.Error("Failed to scan device row", zap.Error(err))
		return nil, fmt.Errorf("database scan error: %w", err)
	}

	return &dev, nil
}
