package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/licensify/licensify/internal/domain/device"
	"github.com/licensify/licensify/internal/domain/license"
	"github.com/licensify/licensify/internal/domain/product"
	"github.com/licensify/licensify/internal/handler/dto"
	"github.com/licensify/licensify/internal/ierr"
	"github.com/licensify/licensify/internal/util"
	"go.uber.org/zap"
)

const defaultTrialDays = 14

// LicenseService covers the issuance-side operations: creating licenses,
// revoking/extending them, and managing their device fleet.
type LicenseService struct {
	licenses  license.Repository
	devices   device.Repository
	products  product.Repository
	keyLength int
	logger    *zap.Logger
}

func NewLicenseService(
	licenses license.Repository,
	devices device.Repository,
	products product.Repository,
	keyLength int,
	logger *zap.Logger,
) *LicenseService {
	if keyLength <= 0 {
		keyLength = license.KeyLength
	}
	return &LicenseService{
		licenses:  licenses,
		devices:   devices,
		products:  products,
		keyLength: keyLength,
		logger:    logger.Named("LicenseService"),
	}
}

func (s *LicenseService) CreateLicense(ctx context.Context, req *dto.CreateLicenseRequest) (*license.License, error) {
	s.logger.Info("Attempting to create a new license", zap.String("type", string(req.Type)))

	licenseKey, err := util.GenerateLicenseKey(s.keyLength)
	if err != nil {
		return nil, fmt.Errorf("license key generation failed: %w", err)
	}

	now := time.Now().UTC()
	newLicense := &license.License{
		LicenseKey: licenseKey,
		Status:     license.StatusActive,
		Type:       req.Type,
		MaxDevices: 1,
		Features:   product.FeatureSet(req.Features),
		Metadata:   req.Metadata,
		IssuedAt:   sql.NullTime{Time: now, Valid: true},
	}

	if req.Name != nil {
		newLicense.Name = sql.NullString{String: *req.Name, Valid: true}
	}
	if req.CustomerName != nil {
		newLicense.CustomerName = sql.NullString{String: *req.CustomerName, Valid: true}
	}
	if req.CustomerEmail != nil {
		newLicense.CustomerEmail = sql.NullString{String: *req.CustomerEmail, Valid: true}
	}
	if req.MaxDevices != nil {
		newLicense.MaxDevices = *req.MaxDevices
	}

	if req.ProductID != nil {
		prod, err := s.products.FindByID(ctx, *req.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return nil, fmt.Errorf("%w: product %s", ierr.ErrValidation, *req.ProductID)
			}
			return nil, fmt.Errorf("product lookup during license creation: %w", err)
		}
		newLicense.ProductID = uuid.NullUUID{UUID: prod.ID, Valid: true}
		if req.MaxDevices == nil {
			newLicense.MaxDevices = prod.DefaultMaxDevices
		}
	}

	expiresAt, err := expiryFor(req, now)
	if err != nil {
		return nil, err
	}
	if expiresAt != nil {
		newLicense.ExpiresAt = sql.NullTime{Time: *expiresAt, Valid: true}
	}

	insertedID, err := s.licenses.Create(ctx, newLicense)
	if err != nil {
		s.logger.Error("Failed to create license via repository", zap.Error(err))
		return nil, fmt.Errorf("repository error during license creation: %w", err)
	}

	createdLicense, err := s.licenses.FindByID(ctx, insertedID)
	if err != nil {
		s.logger.Error("Failed to find newly created license by ID", zap.String("id", insertedID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve created license (id: %s): %w", insertedID, err)
	}

	s.logger.Info("License created successfully", zap.String("id", createdLicense.ID.String()))
	return createdLicense, nil
}

// expiryFor applies the type-specific expiry rules: trials default to 14
// days, limited licenses require either an explicit date or a duration,
// unlimited licenses never expire.
func expiryFor(req *dto.CreateLicenseRequest, now time.Time) (*time.Time, error) {
	switch req.Type {
	case license.TypeUnlimited:
		return nil, nil
	case license.TypeTrial:
		days := defaultTrialDays
		if req.TrialDurationDays != nil {
			days = *req.TrialDurationDays
		}
		t := now.AddDate(0, 0, days)
		return &t, nil
	case license.TypeLimited:
		if req.DurationDays != nil {
			t := now.AddDate(0, 0, *req.DurationDays)
			return &t, nil
		}
		if req.ExpiresAt != nil {
			return req.ExpiresAt, nil
		}
		return nil, fmt.Errorf("%w: limited licenses require expires_at or duration_days", ierr.ErrValidation)
	default:
		return nil, fmt.Errorf("%w: unknown license type %q", ierr.ErrValidation, req.Type)
	}
}

func (s *LicenseService) GetLicenseByID(ctx context.Context, id uuid.UUID) (*license.License, error) {
	return s.licenses.FindByID(ctx, id)
}

func (s *LicenseService) ListLicenses(ctx context.Context, req *dto.ListLicensesRequest) ([]*license.License, int64, error) {
	params := license.ListParams{
		Status:        req.Status,
		Type:          req.Type,
		CustomerEmail: req.Email,
		SortBy:        req.SortBy,
		SortOrder:     req.SortOrder,
		Limit:         req.Limit,
		Offset:        req.Offset,
	}
	return s.licenses.List(ctx, params)
}

func (s *LicenseService) UpdateLicenseStatus(ctx context.Context, id uuid.UUID, status license.LicenseStatus) error {
	s.logger.Info("Updating license status", zap.String("id", id.String()), zap.String("status", string(status)))
	return s.licenses.UpdateStatus(ctx, id, status)
}

// RevokeLicense is terminal: revoked licenses fail validation permanently
// and devices remain attached for audit.
func (s *LicenseService) RevokeLicense(ctx context.Context, id uuid.UUID) error {
	s.logger.Info("Revoking license", zap.String("id", id.String()))
	return s.licenses.UpdateStatus(ctx, id, license.StatusRevoked)
}

func (s *LicenseService) ExtendLicense(ctx context.Context, id uuid.UUID, req *dto.ExtendLicenseRequest) (*license.License, error) {
	lic, err := s.licenses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var newExpiry time.Time
	switch {
	case req.ExpiresAt != nil:
		newExpiry = req.ExpiresAt.UTC()
	case req.DurationDays != nil:
		base := time.Now().UTC()
		if lic.ExpiresAt.Valid && lic.ExpiresAt.Time.After(base) {
			base = lic.ExpiresAt.Time
		}
		newExpiry = base.AddDate(0, 0, *req.DurationDays)
	default:
		return nil, fmt.Errorf("%w: expires_at or duration_days required", ierr.ErrValidation)
	}

	if err := s.licenses.ExtendExpiry(ctx, id, newExpiry); err != nil {
		return nil, err
	}

	s.logger.Info("License extended", zap.String("id", id.String()), zap.Time("expires_at", newExpiry))
	return s.licenses.FindByID(ctx, id)
}

func (s *LicenseService) ListDevices(ctx context.Context, licenseID uuid.UUID) ([]*device.Device, error) {
	if _, err := s.licenses.FindByID(ctx, licenseID); err != nil {
		return nil, err
	}
	return s.devices.ListByLicense(ctx, licenseID)
}

func (s *LicenseService) BlockDevice(ctx context.Context, deviceID uuid.UUID) error {
	s.logger.Info("Blocking device", zap.String("device", deviceID.String()))
	return s.devices.UpdateStatus(ctx, deviceID, device.StatusBlocked)
}

func (s *LicenseService) UnblockDevice(ctx context.Context, deviceID uuid.UUID) error {
	s.logger.Info("Unblocking device", zap.String("device", deviceID.String()))
	return s.devices.UpdateStatus(ctx, deviceID, device.StatusActive)
}

func (s *LicenseService) ListDeviceActivities(ctx context.Context, deviceID uuid.UUID, limit, offset int) ([]*device.Activity, error) {
	return s.devices.ListActivities(ctx, deviceID, limit, offset)
}

// DashboardSummary aggregates license counts by status for the admin UI.
func (s *LicenseService) DashboardSummary(ctx context.Context) (map[string]int64, error) {
	summary := make(map[string]int64, 3)
	for _, status := range []license.LicenseStatus{license.StatusActive, license.StatusRevoked, license.StatusExpired} {
		count, err := s.licenses.CountByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		summary[string(status)] = count
	}
	return summary, nil
}
