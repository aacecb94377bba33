package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/licensify/licensify/internal/domain/license"
)

type CreateLicenseRequest struct {
	Type              license.LicenseType `json:"type" binding:"required,oneof=unlimited trial limited"`
	Name              *string             `json:"name"`
	CustomerName      *string             `json:"customer_name"`
	CustomerEmail     *string             `json:"customer_email" binding:"omitempty,email"`
	ProductID         *uuid.UUID          `json:"product_id"`
	MaxDevices        *int                `json:"max_devices" binding:"omitempty,gte=0"`
	Features          []string            `json:"features"`
	Metadata          json.RawMessage     `json:"metadata"`
	ExpiresAt         *time.Time          `json:"expires_at"`
	DurationDays      *int                `json:"duration_days" binding:"omitempty,gt=0"`
	TrialDurationDays *int                `json:"trial_duration_days" binding:"omitempty,gt=0"`
}

type LicenseResponse struct {
	ID            uuid.UUID             `json:"id"`
	LicenseKey    string                `json:"license_key"`
	Status        license.LicenseStatus `json:"status"`
	Type          license.LicenseType   `json:"type"`
	Name          *string               `json:"name,omitempty"`
	CustomerName  *string               `json:"customer_name,omitempty"`
	CustomerEmail *string               `json:"customer_email,omitempty"`
	ProductID     *uuid.UUID            `json:"product_id,omitempty"`
	MaxDevices    int                   `json:"max_devices"`
	Features      []string              `json:"features"`
	Metadata      json.RawMessage       `json:"metadata,omitempty"`
	ExpiresAt     *time.Time            `json:"expires_at,omitempty"`
	IssuedAt      *time.Time            `json:"issued_at,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

func NewLicenseResponse(lic *license.License) *LicenseResponse {
	resp := &LicenseResponse{
		ID:         lic.ID,
		LicenseKey: lic.LicenseKey,
		Status:     lic.Status,
		Type:       lic.Type,
		MaxDevices: lic.MaxDevices,
		Features:   lic.Features,
		Metadata:   lic.Metadata,
		CreatedAt:  lic.CreatedAt,
		UpdatedAt:  lic.UpdatedAt,
	}
	if resp.Features == nil {
		resp.Features = []string{}
	}
	if lic.Name.Valid {
		resp.Name = &lic.Name.String
	}
	if lic.CustomerName.Valid {
		resp.CustomerName = &lic.CustomerName.String
	}
	if lic.CustomerEmail.Valid {
		resp.CustomerEmail = &lic.CustomerEmail.String
	}
	if lic.ProductID.Valid {
		resp.ProductID = &lic.ProductID.UUID
	}
	if lic.ExpiresAt.Valid {
		resp.ExpiresAt = &lic.ExpiresAt.Time
	}
	if lic.IssuedAt.Valid {
		resp.IssuedAt = &lic.IssuedAt.Time
	}
	return resp
}

type ListLicensesRequest struct {
	Status    *license.LicenseStatus `form:"status" binding:"omitempty,oneof=active revoked expired"`
	Type      *license.LicenseType   `form:"type" binding:"omitempty,oneof=unlimited trial limited"`
	Email     *string                `form:"email" binding:"omitempty,email"`
	Limit     int                    `form:"limit,default=20" binding:"omitempty,gte=0"`
	Offset    int                    `form:"offset,default=0" binding:"omitempty,gte=0"`
	SortBy    string                 `form:"sort_by,default=created_at"`
	SortOrder string                 `form:"sort_order,default=DESC" binding:"omitempty,oneof=ASC DESC"`
}

type PaginatedLicenseResponse struct {
	Licenses   []*LicenseResponse `json:"licenses"`
	TotalCount int64              `json:"totalCount"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

type UpdateLicenseStatusRequest struct {
	Status *license.LicenseStatus `json:"status" binding:"required,oneof=active revoked expired"`
}

type ExtendLicenseRequest struct {
	ExpiresAt    *time.Time `json:"expires_at"`
	DurationDays *int       `json:"duration_days" binding:"omitempty,gt=0"`
}

type ValidateLicenseRequest struct {
	LicenseKey string `json:"license_key" binding:"required"`
	DeviceID   string `json:"device_id" binding:"required"`
	DeviceName string `json:"device_name,omitempty"`
	OSInfo     string `json:"os_info,omitempty"`
	AppVersion string `json:"app_version,omitempty"`
}

type ProductInfo struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Slug    string    `json:"slug"`
	Version string    `json:"version,omitempty"`
}

// ValidateLicenseResponse is the verdict returned to clients. Denials carry
// a reason and whatever context is known; successes carry the full license
// snapshot plus cache_until, the latest instant a client may trust this
// verdict offline.
type ValidateLicenseResponse struct {
	Valid          bool         `json:"valid"`
	Reason         string       `json:"reason,omitempty"`
	LicenseType    string       `json:"license_type,omitempty"`
	ExpiresAt      *time.Time   `json:"expires_at,omitempty"`
	DaysRemaining  *int         `json:"days_remaining,omitempty"`
	MaxDevices     *int         `json:"max_devices,omitempty"`
	CurrentDevices *int         `json:"current_devices,omitempty"`
	CacheUntil     *time.Time   `json:"cache_until,omitempty"`
	Features       []string     `json:"features,omitempty"`
	Product        *ProductInfo `json:"product,omitempty"`
}
