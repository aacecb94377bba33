package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/licensify/licensify/internal/domain/apikey"
	"go.uber.org/zap"
)

type APIKeyRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewAPIKeyRepository(db *pgxpool.Pool, logger *zap.Logger) *APIKeyRepository {
	return &APIKeyRepository{
		db:     db,
		logger: logger.Named("APIKeyRepository"),
	}
}

var _ apikey.Repository = (*APIKeyRepository)(nil)

func (r *APIKeyRepository) FindByPrefix(ctx context.Context, prefix string) (*apikey.APIKey, error) {
	query := `
		SELECT id, key_hash, prefix, description, product_id, is_enabled, created_at, last_used_at
		FROM api_keys
		WHERE prefix = $1 AND is_enabled = TRUE
	`
	row := querierFrom(ctx, r.db).QueryRow(ctx, query, prefix)

	key, err := r.scanAPIKey(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("API key not found or disabled by prefix", zap.String("prefix", prefix))
			return nil, apikey.ErrAPIKeyNotFound
		}
		r.logger.Error("Failed to find api key by prefix", zap.String("prefix", prefix), zap.Error(err))
		return nil, fmt.Errorf("db error finding api key: %w", err)
	}

	return key, nil
}

func (r *APIKeyRepository) Create(ctx context.Context, key *apikey.APIKey) (uuid.UUID, error) {
	query := `
		INSERT INTO api_keys (key_hash, prefix, description, product_id, is_enabled)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var insertedID uuid.UUID

	err := querierFrom(ctx, r.db).QueryRow(ctx, query,
		key.KeyHash,
		key.Prefix,
		key.Description,
		key.ProductID,
		key.IsEnabled,
	).Scan(&insertedID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.logger.Warn("Failed to create API key due to unique constraint violation",
				zap.String("constraint", pgErr.ConstraintName),
				zap.String("prefix", key.Prefix),
			)
			return uuid.Nil, fmt.Errorf("api key constraint violation (%s)", pgErr.ConstraintName)
		}
		r.logger.Error("Failed to create api key in database", zap.Error(err))
		return uuid.Nil, fmt.Errorf("db error creating api key: %w", err)
	}

	r.logger.Info("API key created successfully", zap.String("id", insertedID.String()), zap.String("prefix", key.Prefix))
	return insertedID, nil
}

func (r *APIKeyRepository) List(ctx context.Context) ([]*apikey.APIKey, error) {
	query := `
		SELECT id, key_hash, prefix, description, product_id, is_enabled, created_at, last_used_at
		FROM api_keys
		ORDER BY created_at DESC
	`
	rows, err := querierFrom(ctx, r.db).Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query api keys", zap.Error(err))
		return nil, fmt.Errorf("db error listing api keys: %w", err)
	}
	defer rows.Close()

	keys := make([]*apikey.APIKey, 0)
	for rows.Next() {
		key, err := r.scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("db scan error listing api keys: %w", err)
		}
		keys = append(keys, key)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("db iteration error listing api keys: %w", err)
	}

	return keys, nil
}

func (r *APIKeyRepository) Disable(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := querierFrom(ctx, r.db).Exec(ctx,
		`UPDATE api_keys SET is_enabled = FALSE WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to disable api key", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("db error disabling api key: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apikey.ErrAPIKeyNotFound
	}
	return nil
}

func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, id uuid.UUID, lastUsed time.Time) error {
	query := `UPDATE api_keys SET last_used_at = $1 WHERE id = $2`
	cmdTag, err := querierFrom(ctx, r.db).Exec(ctx, query, lastUsed, id)
	if err != nil {
		r.logger.Error("Failed to update api key last_used_at", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("db error updating last used time: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.Warn("API key not found when updating last_used_at", zap.String("id", id.String()))
	}
	return nil
}

func (r *APIKeyRepository) scanAPIKey(row pgx.Row) (*apikey.APIKey, error) {
	var key apikey.APIKey
	var lastUsed sql.NullTime

	err := row.Scan(
		&key.ID,
		&key.KeyHash,
		&key.Prefix,
		&key.Description,
		&key.ProductID,
		&key.IsEnabled,
		&key.CreatedAt,
		&lastUsed,
	)
	if err != nil {
		return nil, err
	}

	if lastUsed.Valid {
		key.LastUsedAt = &lastUsed.Time
	}

	return &key, nil
}
