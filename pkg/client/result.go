package client

import (
	"fmt"
	"time"
)

// ErrorKind classifies a validation failure.
type ErrorKind string

const (
	KindInvalidKey          ErrorKind = "invalid_key"
	KindExpired             ErrorKind = "expired"
	KindRevoked             ErrorKind = "revoked"
	KindDeviceBlocked       ErrorKind = "device_blocked"
	KindDeviceLimitExceeded ErrorKind = "device_limit_exceeded"
	KindNetwork             ErrorKind = "network"
	KindCacheUnavailable    ErrorKind = "cache_unavailable"
	KindUnknown             ErrorKind = "unknown"
)

// ValidationError is the single error type returned by Validate. Use Kind
// (or errors.Is against the Kind* sentinels below) to branch on the cause.
type ValidationError struct {
	Kind      ErrorKind
	Message   string
	RateLimit bool // set for HTTP 429 responses; Kind is still KindNetwork
	Err       error
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("license validation failed (%s): %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("license validation failed (%s)", e.Kind)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, &ValidationError{Kind: KindExpired}) style checks
// match on kind alone.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinel targets for errors.Is.
var (
	ErrInvalidKey          = &ValidationError{Kind: KindInvalidKey}
	ErrExpired             = &ValidationError{Kind: KindExpired}
	ErrRevoked             = &ValidationError{Kind: KindRevoked}
	ErrDeviceBlocked       = &ValidationError{Kind: KindDeviceBlocked}
	ErrDeviceLimitExceeded = &ValidationError{Kind: KindDeviceLimitExceeded}
	ErrNetwork             = &ValidationError{Kind: KindNetwork}
	ErrCacheUnavailable    = &ValidationError{Kind: KindCacheUnavailable}
)

// kindForReason maps server denial reasons onto error kinds. Unrecognized
// reasons come back as KindUnknown rather than being treated as transport
// trouble, so they never trigger cache fallback.
func kindForReason(reason string) ErrorKind {
	switch reason {
	case "invalid_key":
		return KindInvalidKey
	case "license_expired":
		return KindExpired
	case "license_revoked":
		return KindRevoked
	case "device_blocked":
		return KindDeviceBlocked
	case "device_limit_exceeded":
		return KindDeviceLimitExceeded
	default:
		return KindUnknown
	}
}

// ProductInfo mirrors the product block of a server verdict.
type ProductInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Version string `json:"version,omitempty"`
}

// Verdict is a successful validation result, either fresh from the server
// or replayed from the offline cache.
type Verdict struct {
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

	// FromCache is true when the verdict was served from the offline cache
	// after a network failure. CacheExpiresAt then carries the instant the
	// cached verdict stops being trustworthy.
	FromCache      bool       `json:"-"`
	CacheExpiresAt *time.Time `json:"-"`
}

// HasFeature reports whether the verdict grants the named feature.
func (v *Verdict) HasFeature(slug string) bool {
	if v == nil {
		return false
	}
	for _, f := range v.Features {
		if f == slug {
			return true
		}
	}
	return false
}
