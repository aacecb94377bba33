package memstorage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/licensify/licensify/internal/domain/device"
	"github.com/licensify/licensify/internal/domain/license"
	"github.com/licensify/licensify/internal/domain/product"
)

// Store is an in-memory implementation of the license, device and product
// repositories. It backs the service tests and local development without
// Postgres; the semantics mirror the SQL implementations, including upsert
// idempotence and first_seen ordering.
type Store struct {
	mu         sync.RWMutex
	licenses   map[uuid.UUID]*license.License
	devices    map[uuid.UUID]*device.Device
	products   map[uuid.UUID]*product.Product
	activities []*device.Activity
}

func NewStore() *Store {
	return &Store{
		licenses: make(map[uuid.UUID]*license.License),
		devices:  make(map[uuid.UUID]*device.Device),
		products: make(map[uuid.UUID]*product.Product),
	}
}

func (s *Store) Licenses() *LicenseRepositoryMock { return &LicenseRepositoryMock{s} }
func (s *Store) Devices() *DeviceRepositoryMock   { return &DeviceRepositoryMock{s} }
func (s *Store) Products() *ProductRepositoryMock { return &ProductRepositoryMock{s} }

// InTx satisfies the transaction runner used by the validation service.
// The in-memory store has no transactions; the callback runs directly.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type LicenseRepositoryMock struct{ s *Store }

var _ license.Repository = (*LicenseRepositoryMock)(nil)

func (r *LicenseRepositoryMock) Create(ctx context.Context, lic *license.License) (uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.licenses {
		if existing.LicenseKey == lic.LicenseKey {
			return uuid.Nil, license.ErrDuplicateKey
		}
	}

	cp := *lic
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	r.s.licenses[cp.ID] = &cp
	return cp.ID, nil
}

func (r *LicenseRepositoryMock) FindByID(ctx context.Context, id uuid.UUID) (*license.License, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	lic, ok := r.s.licenses[id]
	if !ok {
		return nil, license.ErrNotFound
	}
	cp := *lic
	return &cp, nil
}

func (r *LicenseRepositoryMock) FindByKey(ctx context.Context, key string) (*license.License, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, lic := range r.s.licenses {
		if lic.LicenseKey == key {
			cp := *lic
			return &cp, nil
		}
	}
	return nil, license.ErrNotFound
}

func (r *LicenseRepositoryMock) List(ctx context.Context, params license.ListParams) ([]*license.License, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := make([]*license.License, 0)
	for _, lic := range r.s.licenses {
		if params.Status != nil && lic.Status != *params.Status {
			continue
		}
		if params.Type != nil && lic.Type != *params.Type {
			continue
		}
		cp := *lic
		matched = append(matched, &cp)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if params.Offset >= len(matched) {
		return []*license.License{}, total, nil
	}
	matched = matched[params.Offset:]
	if params.Limit > 0 && params.Limit < len(matched) {
		matched = matched[:params.Limit]
	}
	return matched, total, nil
}

func (r *LicenseRepositoryMock) Update(ctx context.Context, lic *license.License) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.licenses[lic.ID]; !ok {
		return license.ErrNotFound
	}
	cp := *lic
	cp.UpdatedAt = time.Now().UTC()
	r.s.licenses[lic.ID] = &cp
	return nil
}

func (r *LicenseRepositoryMock) UpdateStatus(ctx context.Context, id uuid.UUID, status license.LicenseStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	lic, ok := r.s.licenses[id]
	if !ok {
		return license.ErrNotFound
	}
	lic.Status = status
	lic.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *LicenseRepositoryMock) ExtendExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	lic, ok := r.s.licenses[id]
	if !ok {
		return license.ErrNotFound
	}
	lic.ExpiresAt.Time = expiresAt
	lic.ExpiresAt.Valid = true
	lic.Status = license.StatusActive
	lic.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *LicenseRepositoryMock) CountByStatus(ctx context.Context, status license.LicenseStatus) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var count int64
	for _, lic := range r.s.licenses {
		if lic.Status == status {
			count++
		}
	}
	return count, nil
}

type DeviceRepositoryMock struct{ s *Store }

var _ device.Repository = (*DeviceRepositoryMock)(nil)

func (r *DeviceRepositoryMock) Upsert(ctx context.Context, params device.UpsertParams) (*device.Device, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, dev := range r.s.devices {
		if dev.LicenseID == params.LicenseID && dev.DeviceID == params.DeviceID {
			dev.LastSeen = params.Now
			if params.DeviceName != "" {
				dev.DeviceName.String = params.DeviceName
				dev.DeviceName.Valid = true
			}
			if params.OS != "" {
				dev.OS.String = params.OS
				dev.OS.Valid = true
			}
			if params.IPAddress != "" {
				dev.IPAddress.String = params.IPAddress
				dev.IPAddress.Valid = true
			}
			cp := *dev
			return &cp, false, nil
		}
	}

	dev := &device.Device{
		ID:        uuid.New(),
		LicenseID: params.LicenseID,
		DeviceID:  params.DeviceID,
		Status:    device.StatusActive,
		FirstSeen: params.Now,
		LastSeen:  params.Now,
	}
	if params.DeviceName != "" {
		dev.DeviceName.String = params.DeviceName
		dev.DeviceName.Valid = true
	}
	if params.OS != "" {
		dev.OS.String = params.OS
		dev.OS.Valid = true
	}
	if params.IPAddress != "" {
		dev.IPAddress.String = params.IPAddress
		dev.IPAddress.Valid = true
	}
	r.s.devices[dev.ID] = dev
	cp := *dev
	return &cp, true, nil
}

func (r *DeviceRepositoryMock) FindByID(ctx context.Context, id uuid.UUID) (*device.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	dev, ok := r.s.devices[id]
	if !ok {
		return nil, device.ErrNotFound
	}
	cp := *dev
	return &cp, nil
}

func (r *DeviceRepositoryMock) ListActiveByLicense(ctx context.Context, licenseID uuid.UUID) ([]*device.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	devices := make([]*device.Device, 0)
	for _, dev := range r.s.devices {
		if dev.LicenseID == licenseID && dev.Status == device.StatusActive {
			cp := *dev
			devices = append(devices, &cp)
		}
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].FirstSeen.Before(devices[j].FirstSeen)
	})
	return devices, nil
}

func (r *DeviceRepositoryMock) ListByLicense(ctx context.Context, licenseID uuid.UUID) ([]*device.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	devices := make([]*device.Device, 0)
	for _, dev := range r.s.devices {
		if dev.LicenseID == licenseID {
			cp := *dev
			devices = append(devices, &cp)
		}
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].LastSeen.After(devices[j].LastSeen)
	})
	return devices, nil
}

func (r *DeviceRepositoryMock) UpdateStatus(ctx context.Context, id uuid.UUID, status device.DeviceStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	dev, ok := r.s.devices[id]
	if !ok {
		return device.ErrNotFound
	}
	dev.Status = status
	return nil
}

func (r *DeviceRepositoryMock) LogActivity(ctx context.Context, activity *device.Activity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *activity
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	r.s.activities = append(r.s.activities, &cp)
	return nil
}

func (r *DeviceRepositoryMock) ListActivities(ctx context.Context, deviceID uuid.UUID, limit, offset int) ([]*device.Activity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := make([]*device.Activity, 0)
	for _, a := range r.s.activities {
		if a.DeviceID == deviceID {
			cp := *a
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if offset >= len(matched) {
		return []*device.Activity{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *DeviceRepositoryMock) CountActivities(ctx context.Context, deviceID uuid.UUID, action device.ActivityAction) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var count int64
	for _, a := range r.s.activities {
		if a.DeviceID == deviceID && a.Action == action {
			count++
		}
	}
	return count, nil
}

type ProductRepositoryMock struct{ s *Store }

var _ product.Repository = (*ProductRepositoryMock)(nil)

func (r *ProductRepositoryMock) Create(ctx context.Context, p *product.Product) (uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *p
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	r.s.products[cp.ID] = &cp
	return cp.ID, nil
}

func (r *ProductRepositoryMock) FindByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *ProductRepositoryMock) FindBySlug(ctx context.Context, slug string) (*product.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.products {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, product.ErrNotFound
}

func (r *ProductRepositoryMock) List(ctx context.Context) ([]*product.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	products := make([]*product.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		cp := *p
		products = append(products, &cp)
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].Name < products[j].Name
	})
	return products, nil
}
