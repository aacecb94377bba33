package device

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type DeviceStatus string

const (
	StatusActive  DeviceStatus = "active"
	StatusBlocked DeviceStatus = "blocked"
)

// Device binds a hardware fingerprint to a license. At most one row exists
// per (license_id, device_id); the unique constraint is the idempotence
// boundary for concurrent registrations.
type Device struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	LicenseID  uuid.UUID      `db:"license_id" json:"license_id"`
	DeviceID   string         `db:"device_id" json:"device_id"`
	DeviceName sql.NullString `db:"device_name" json:"device_name,omitempty"`
	OS         sql.NullString `db:"os" json:"os,omitempty"`
	IPAddress  sql.NullString `db:"ip_address" json:"ip_address,omitempty"`
	Status     DeviceStatus   `db:"status" json:"status"`
	FirstSeen  time.Time      `db:"first_seen" json:"first_seen"`
	LastSeen   time.Time      `db:"last_seen" json:"last_seen"`
}

type ActivityAction string

const (
	ActionRegistered ActivityAction = "registered"
	ActionValidated  ActivityAction = "validated"
)

// Activity is an append-only audit record. Rows are never mutated and never
// drive control flow.
type Activity struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	DeviceID  uuid.UUID       `db:"device_id" json:"device_id"`
	Action    ActivityAction  `db:"action" json:"action"`
	IPAddress sql.NullString  `db:"ip_address" json:"ip_address,omitempty"`
	Metadata  json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	Timestamp time.Time       `db:"timestamp" json:"timestamp"`
}
