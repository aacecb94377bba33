package license

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/licensify/licensify/internal/domain/product"
)

type LicenseStatus string

const (
	StatusActive  LicenseStatus = "active"
	StatusRevoked LicenseStatus = "revoked"
	StatusExpired LicenseStatus = "expired"
)

type LicenseType string

const (
	TypeUnlimited LicenseType = "unlimited"
	TypeTrial     LicenseType = "trial"
	TypeLimited   LicenseType = "limited"
)

// KeyLength is the length of generated license keys (Base62 alphabet).
const KeyLength = 32

type License struct {
	ID            uuid.UUID          `db:"id" json:"id"`
	LicenseKey    string             `db:"license_key" json:"license_key"`
	Status        LicenseStatus      `db:"status" json:"status"`
	Type          LicenseType        `db:"type" json:"type"`
	Name          sql.NullString     `db:"name" json:"name,omitempty"`
	CustomerName  sql.NullString     `db:"customer_name" json:"customer_name,omitempty"`
	CustomerEmail sql.NullString     `db:"customer_email" json:"customer_email,omitempty"`
	ProductID     uuid.NullUUID      `db:"product_id" json:"product_id,omitempty"`
	MaxDevices    int                `db:"max_devices" json:"max_devices"`
	Features      product.FeatureSet `db:"features" json:"features"`
	Metadata      json.RawMessage    `db:"metadata" json:"metadata,omitempty"`
	ExpiresAt     sql.NullTime       `db:"expires_at" json:"expires_at,omitempty"`
	IssuedAt      sql.NullTime       `db:"issued_at" json:"issued_at,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
}

// IsExpired reports whether the license is expired, either because the
// stored status says so or because expires_at has passed. Expiry is
// computed lazily at validation time; storage is only updated by the
// periodic sweep.
func (l *License) IsExpired(now time.Time) bool {
	if l.Status == StatusExpired {
		return true
	}
	return l.ExpiresAt.Valid && now.After(l.ExpiresAt.Time)
}

func (l *License) IsValid(now time.Time) bool {
	return l.Status == StatusActive && !l.IsExpired(now)
}

// DaysRemaining returns the whole days until expiry, or nil for licenses
// without an expiration date. Already-expired licenses report 0.
func (l *License) DaysRemaining(now time.Time) *int {
	if !l.ExpiresAt.Valid {
		return nil
	}
	days := int(l.ExpiresAt.Time.Sub(now).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}

func (l *License) SetMetadata(data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	l.Metadata = jsonData
	return nil
}
