package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/licensify/licensify/internal/domain/license"
	"go.uber.org/zap"
)

// LicenseExpireHandler sweeps active licenses whose expiry has passed and
// flips them to expired. Validation already treats a lapsed expires_at as a
// denial on its own, so the sweep only keeps stored statuses honest for
// listings and dashboard counts.
type LicenseExpireHandler struct {
	repo   license.Repository
	logger *zap.Logger
}

func NewLicenseExpireHandler(repo license.Repository, logger *zap.Logger) *LicenseExpireHandler {
	return &LicenseExpireHandler{
		repo:   repo,
		logger: logger.Named("LicenseExpireHandler"),
	}
}

func (h *LicenseExpireHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeLicenseExpire {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	var p ExpireLicensePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.logger.Error("Failed to unmarshal payload for license expiration task", zap.Error(err), zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("invalid payload: %v", err)
	}

	h.logger.Info("Processing license expiration check task...")

	now := time.Now().UTC()
	params := license.ListParams{
		Status:    ptr(license.StatusActive),
		SortBy:    "expires_at",
		SortOrder: "ASC",
		Limit:     1000,
		Offset:    0,
	}

	updatedCount := 0
	processedCount := 0

	for {
		candidates, total, err := h.repo.List(ctx, params)
		if err != nil {
			h.logger.Error("Failed to list active licenses for expiration check", zap.Error(err))
			return fmt.Errorf("repository error listing active licenses: %w", err)
		}

		if len(candidates) == 0 {
			break
		}

		processedCount += len(candidates)

		for _, lic := range candidates {
			if !lic.ExpiresAt.Valid || !lic.ExpiresAt.Time.UTC().Before(now) {
				continue
			}

			h.logger.Info("Found expired license, updating status",
				zap.String("license_id", lic.ID.String()),
				zap.Time("expires_at", lic.ExpiresAt.Time),
			)

			if errUpdate := h.repo.UpdateStatus(ctx, lic.ID, license.StatusExpired); errUpdate != nil {
				h.logger.Error("Failed to update status for expired license",
					zap.String("license_id", lic.ID.String()),
					zap.Error(errUpdate),
				)
			} else {
				updatedCount++
			}
		}

		if len(candidates) < params.Limit {
			break
		}

		params.Offset += params.Limit
		if params.Offset > int(total) && total > 0 {
			h.logger.Warn("Offset exceeded total count during expiration check, breaking loop", zap.Int("offset", params.Offset), zap.Int64("total", total))
			break
		}
	}

	h.logger.Info("License expiration check task finished", zap.Int("processed_licenses", processedCount), zap.Int("updated_to_expired", updatedCount))
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
