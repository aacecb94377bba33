package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/licensify/licensify/internal/domain/device"
	"github.com/licensify/licensify/internal/domain/license"
	"github.com/licensify/licensify/internal/domain/product"
	"github.com/licensify/licensify/internal/handler/dto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Denial reasons returned in the validation verdict. These are wire
// contract; clients switch on them.
const (
	ReasonInvalidKey          = "invalid_key"
	ReasonLicenseExpired      = "license_expired"
	ReasonLicenseRevoked      = "license_revoked"
	ReasonDeviceBlocked       = "device_blocked"
	ReasonDeviceLimitExceeded = "device_limit_exceeded"
)

var validationVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "licensify_validation_verdicts_total",
	Help: "License validation verdicts by outcome.",
}, []string{"outcome"})

// TxRunner scopes a callback to a single storage transaction. Each
// validation request runs exactly one.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ValidationService resolves license and device state for validation
// requests: the license state machine, device registration, the
// oldest-wins device cap and the activity log.
type ValidationService struct {
	tx       TxRunner
	licenses license.Repository
	devices  device.Repository
	products product.Repository
	cacheTTL time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewValidationService(
	tx TxRunner,
	licenses license.Repository,
	devices device.Repository,
	products product.Repository,
	cacheDays int,
	logger *zap.Logger,
) *ValidationService {
	return &ValidationService{
		tx:       tx,
		licenses: licenses,
		devices:  devices,
		products: products,
		cacheTTL: time.Duration(cacheDays) * 24 * time.Hour,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.Named("ValidationService"),
	}
}

// Validate runs the whole validation flow inside one transaction and
// returns a verdict. Verdicts are data, not errors: only storage failures
// surface as an error.
func (s *ValidationService) Validate(ctx context.Context, req *dto.ValidateLicenseRequest, clientIP string) (*dto.ValidateLicenseResponse, error) {
	var resp *dto.ValidateLicenseResponse

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var txErr error
		resp, txErr = s.validate(ctx, req, clientIP)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	outcome := "valid"
	if !resp.Valid {
		outcome = resp.Reason
	}
	validationVerdicts.WithLabelValues(outcome).Inc()

	return resp, nil
}

func (s *ValidationService) validate(ctx context.Context, req *dto.ValidateLicenseRequest, clientIP string) (*dto.ValidateLicenseResponse, error) {
	now := s.now()

	lic, err := s.licenses.FindByKey(ctx, req.LicenseKey)
	if err != nil {
		if errors.Is(err, license.ErrNotFound) {
			s.logger.Info("Validation against unknown license key")
			return &dto.ValidateLicenseResponse{Valid: false, Reason: ReasonInvalidKey}, nil
		}
		return nil, fmt.Errorf("license lookup failed: %w", err)
	}

	// Revocation and expiry are checked before any device write so a dead
	// license never accretes device rows.
	if lic.Status == license.StatusRevoked {
		s.logger.Info("Validation against revoked license", zap.String("license_id", lic.ID.String()))
		return &dto.ValidateLicenseResponse{Valid: false, Reason: ReasonLicenseRevoked}, nil
	}

	if lic.IsExpired(now) {
		resp := &dto.ValidateLicenseResponse{Valid: false, Reason: ReasonLicenseExpired}
		if lic.ExpiresAt.Valid {
			resp.ExpiresAt = &lic.ExpiresAt.Time
		}
		return resp, nil
	}

	dev, created, err := s.devices.Upsert(ctx, device.UpsertParams{
		LicenseID:  lic.ID,
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		OS:         req.OSInfo,
		IPAddress:  clientIP,
		Now:        now,
	})
	if err != nil {
		return nil, fmt.Errorf("device resolution failed: %w", err)
	}

	if created {
		if err := s.logActivity(ctx, dev, device.ActionRegistered, clientIP, ""); err != nil {
			return nil, err
		}
		s.logger.Info("Registered new device",
			zap.String("license_id", lic.ID.String()),
			zap.String("device", dev.ID.String()),
		)
	}

	if dev.Status == device.StatusBlocked {
		return &dto.ValidateLicenseResponse{Valid: false, Reason: ReasonDeviceBlocked}, nil
	}

	activeDevices, err := s.devices.ListActiveByLicense(ctx, lic.ID)
	if err != nil {
		return nil, fmt.Errorf("active device listing failed: %w", err)
	}

	currentDevices := len(activeDevices)

	// Oldest-wins enforcement: when the fleet exceeds the cap, only the
	// first max_devices devices by first_seen keep access. Newer devices
	// are denied but their rows remain, so freeing a slot restores them.
	if lic.MaxDevices > 0 && currentDevices > lic.MaxDevices {
		if !deviceWithinCap(activeDevices, dev.ID, lic.MaxDevices) {
			maxDevices := lic.MaxDevices
			return &dto.ValidateLicenseResponse{
				Valid:          false,
				Reason:         ReasonDeviceLimitExceeded,
				MaxDevices:     &maxDevices,
				CurrentDevices: &currentDevices,
			}, nil
		}
	}

	if err := s.logActivity(ctx, dev, device.ActionValidated, clientIP, req.AppVersion); err != nil {
		return nil, err
	}

	cacheUntil := now.Add(s.cacheTTL)
	if lic.ExpiresAt.Valid && lic.ExpiresAt.Time.Before(cacheUntil) {
		cacheUntil = lic.ExpiresAt.Time
	}

	features, productInfo, err := s.resolveFeatures(ctx, lic)
	if err != nil {
		return nil, err
	}

	maxDevices := lic.MaxDevices
	resp := &dto.ValidateLicenseResponse{
		Valid:          true,
		LicenseType:    string(lic.Type),
		DaysRemaining:  lic.DaysRemaining(now),
		MaxDevices:     &maxDevices,
		CurrentDevices: &currentDevices,
		CacheUntil:     &cacheUntil,
		Features:       features,
		Product:        productInfo,
	}
	if lic.ExpiresAt.Valid {
		resp.ExpiresAt = &lic.ExpiresAt.Time
	}

	return resp, nil
}

// resolveFeatures returns license-level features, falling back to the
// product's defaults when the license has none set.
func (s *ValidationService) resolveFeatures(ctx context.Context, lic *license.License) ([]string, *dto.ProductInfo, error) {
	features := []string(lic.Features)

	if !lic.ProductID.Valid {
		if features == nil {
			features = []string{}
		}
		return features, nil, nil
	}

	prod, err := s.products.FindByID(ctx, lic.ProductID.UUID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			s.logger.Warn("License references missing product",
				zap.String("license_id", lic.ID.String()),
				zap.String("product_id", lic.ProductID.UUID.String()),
			)
			if features == nil {
				features = []string{}
			}
			return features, nil, nil
		}
		return nil, nil, fmt.Errorf("product lookup failed: %w", err)
	}

	if len(features) == 0 {
		features = []string(prod.AvailableFeatures)
	}
	if features == nil {
		features = []string{}
	}

	info := &dto.ProductInfo{
		ID:   prod.ID,
		Name: prod.Name,
		Slug: prod.Slug,
	}
	if prod.Version.Valid {
		info.Version = prod.Version.String
	}

	return features, info, nil
}

func (s *ValidationService) logActivity(ctx context.Context, dev *device.Device, action device.ActivityAction, clientIP, appVersion string) error {
	activity := &device.Activity{
		DeviceID:  dev.ID,
		Action:    action,
		Timestamp: s.now(),
	}
	if clientIP != "" {
		activity.IPAddress.String = clientIP
		activity.IPAddress.Valid = true
	}
	if appVersion != "" {
		meta, err := json.Marshal(map[string]string{"app_version": appVersion})
		if err == nil {
			activity.Metadata = meta
		}
	}

	if err := s.devices.LogActivity(ctx, activity); err != nil {
		return fmt.Errorf("activity logging failed: %w", err)
	}
	return nil
}

func deviceWithinCap(activeDevices []*device.Device, id uuid.UUID, maxDevices int) bool {
	for i, d := range activeDevices {
		if i >= maxDevices {
			return false
		}
		if d.ID == id {
			return true
		}
	}
	return false
}
