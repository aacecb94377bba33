package license

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("license not found")
	ErrDuplicateKey = errors.New("license key already exists")
	ErrUpdateFailed = errors.New("license update failed")
)

type ListParams struct {
	Status        *LicenseStatus
	Type          *LicenseType
	CustomerEmail *string
	SortBy        string
	SortOrder     string
	Limit         int
	Offset        int
}

type Repository interface {
	Create(ctx context.Context, license *License) (uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (*License, error)
	FindByKey(ctx context.Context, key string) (*License, error)
	List(ctx context.Context, params ListParams) ([]*License, int64, error)
	Update(ctx context.Context, license *License) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status LicenseStatus) error
	ExtendExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	CountByStatus(ctx context.Context, status LicenseStatus) (int64, error)
}
