// Package client is the Go SDK for the licensify server. A Validator
// checks a license key online, falls back to a bounded offline cache when
// the server cannot be reached, and can revalidate periodically in the
// background.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

const stopJoinTimeout = 5 * time.Second

type validateRequest struct {
	LicenseKey string `json:"license_key"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name,omitempty"`
	OSInfo     string `json:"os_info,omitempty"`
	AppVersion string `json:"app_version,omitempty"`
}

// Validator validates one license key for the current device. It is safe
// for concurrent use.
type Validator struct {
	cfg        *Config
	httpClient *http.Client
	cache      *CacheManager
	deviceID   string
	deviceName string
	logger     *zap.Logger

	mu             sync.Mutex
	lastValidation *Verdict

	bgMu   sync.Mutex
	bgStop chan struct{}
	bgDone chan struct{}
}

// NewValidator builds a Validator from cfg. The device fingerprint is
// computed once, up front, so every validation this process makes reports
// the same device.
func NewValidator(cfg *Config) (*Validator, error) {
	resolved, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	httpClient := resolved.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if resolved.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		httpClient = &http.Client{
			Timeout:   resolved.Timeout,
			Transport: transport,
		}
	}

	hostname, _ := os.Hostname()

	return &Validator{
		cfg:        resolved,
		httpClient: httpClient,
		cache:      NewCacheManager(resolved.CacheDir, resolved.Logger),
		deviceID:   Fingerprint(),
		deviceName: hostname,
		logger:     resolved.Logger.Named("Validator"),
	}, nil
}

// DeviceID returns the fingerprint this validator reports to the server.
func (v *Validator) DeviceID() string {
	return v.deviceID
}

// Validate checks the license against the server. Network trouble of any
// shape (connect failure, timeout, non-200 status, malformed body) falls
// back to the offline cache unless forceOnline is set; logical denials
// never do. The returned error, if any, is always a *ValidationError.
func (v *Validator) Validate(ctx context.Context, forceOnline bool) (*Verdict, error) {
	verdict, err := v.validateOnline(ctx)
	if err == nil {
		verdict.FromCache = false
		v.cache.Save(v.cfg.LicenseKey, v.deviceID, verdict)
		v.setLastValidation(verdict)
		return verdict, nil
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		verr = &ValidationError{Kind: KindUnknown, Message: err.Error(), Err: err}
	}

	if verr.Kind != KindNetwork || forceOnline {
		return nil, verr
	}

	v.logger.Debug("Server unreachable, trying offline cache", zap.Error(verr))

	cached := v.cache.Load(v.cfg.LicenseKey)
	if cached == nil {
		return nil, &ValidationError{
			Kind:    KindCacheUnavailable,
			Message: "server unreachable and no usable cached validation",
			Err:     verr,
		}
	}

	out := *cached
	out.FromCache = true
	out.CacheExpiresAt = v.cache.CacheExpiry()
	v.setLastValidation(&out)
	return &out, nil
}

func (v *Validator) validateOnline(ctx context.Context) (*Verdict, error) {
	body, err := json.Marshal(validateRequest{
		LicenseKey: v.cfg.LicenseKey,
		DeviceID:   v.deviceID,
		DeviceName: v.deviceName,
		OSInfo:     OSInfo(),
		AppVersion: v.cfg.AppVersion,
	})
	if err != nil {
		return nil, &ValidationError{Kind: KindUnknown, Message: "failed to encode request", Err: err}
	}

	url := v.cfg.APIURL + "/licenses/validate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ValidationError{Kind: KindNetwork, Message: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if v.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", v.cfg.APIKey)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, &ValidationError{Kind: KindNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &ValidationError{
			Kind:      KindNetwork,
			Message:   "rate limited by server",
			RateLimit: true,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ValidationError{
			Kind:    KindNetwork,
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ValidationError{Kind: KindNetwork, Message: "failed to read response", Err: err}
	}

	var verdict Verdict
	if err := json.Unmarshal(data, &verdict); err != nil {
		// A garbled body is indistinguishable from a broken proxy, treat it
		// like any other transport failure.
		return nil, &ValidationError{Kind: KindNetwork, Message: "malformed response body", Err: err}
	}

	if !verdict.Valid {
		return nil, &ValidationError{
			Kind:    kindForReason(verdict.Reason),
			Message: verdict.Reason,
		}
	}

	return &verdict, nil
}

// IsValid collapses Validate into a bool, swallowing all error detail.
func (v *Validator) IsValid(ctx context.Context) bool {
	_, err := v.Validate(ctx, false)
	return err == nil
}

// LastValidation returns the most recent successful verdict this process
// has seen, or nil.
func (v *Validator) LastValidation() *Verdict {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastValidation
}

// Features returns the feature slugs from the last successful validation.
func (v *Validator) Features() []string {
	if last := v.LastValidation(); last != nil {
		return last.Features
	}
	return nil
}

// HasFeature reports whether the last successful validation granted the
// named feature.
func (v *Validator) HasFeature(slug string) bool {
	return v.LastValidation().HasFeature(slug)
}

// Product returns the product block from the last successful validation.
func (v *Validator) Product() *ProductInfo {
	if last := v.LastValidation(); last != nil {
		return last.Product
	}
	return nil
}

// ClearCache removes the offline cache slot.
func (v *Validator) ClearCache() error {
	return v.cache.Clear()
}

func (v *Validator) setLastValidation(verdict *Verdict) {
	v.mu.Lock()
	v.lastValidation = verdict
	v.mu.Unlock()
}

// StartBackgroundCheck launches a goroutine that revalidates every
// interval. Errors are logged and swallowed; the loop keeps going until
// StopBackgroundCheck. Calling it while a loop is already running is a
// no-op.
func (v *Validator) StartBackgroundCheck(interval time.Duration) {
	if interval <= 0 {
		return
	}

	v.bgMu.Lock()
	defer v.bgMu.Unlock()

	if v.bgStop != nil {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	v.bgStop = stop
	v.bgDone = done

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), v.cfg.Timeout)
				if _, err := v.Validate(ctx, false); err != nil {
					v.logger.Debug("Background validation failed", zap.Error(err))
				}
				cancel()
			}
		}
	}()

	v.logger.Debug("Background validation started", zap.Duration("interval", interval))
}

// StopBackgroundCheck signals the background loop to exit and waits for it,
// bounded to 5 seconds so shutdown can never hang on a stuck request.
func (v *Validator) StopBackgroundCheck() {
	v.bgMu.Lock()
	stop := v.bgStop
	done := v.bgDone
	v.bgStop = nil
	v.bgDone = nil
	v.bgMu.Unlock()

	if stop == nil {
		return
	}
	close(stop)

	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		v.logger.Warn("Background validation loop did not stop in time")
	}
}
