package product

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID                uuid.UUID      `db:"id" json:"id"`
	Name              string         `db:"name" json:"name"`
	Slug              string         `db:"slug" json:"slug"`
	Description       sql.NullString `db:"description" json:"description,omitempty"`
	Version           sql.NullString `db:"version" json:"version,omitempty"`
	AvailableFeatures FeatureSet     `db:"available_features" json:"available_features"`
	DefaultMaxDevices int            `db:"default_max_devices" json:"default_max_devices"`
	IsActive          bool           `db:"is_active" json:"is_active"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}
