package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/licensify/licensify/internal/domain/license"
	"go.uber.org/zap"
)

const licenseColumns = `
        id, license_key, status, type, name, customer_name, customer_email,
        product_id, max_devices, features, metadata, expires_at, issued_at,
        created_at, updated_at
`

type LicenseRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewLicenseRepository(db *pgxpool.Pool, logger *zap.Logger) *LicenseRepository {
	return &LicenseRepository{
		db:     db,
		logger: logger.Named("LicenseRepository"),
	}
}

var _ license.Repository = (*LicenseRepository)(nil)

func (r *LicenseRepository) Create(ctx context.Context, lic *license.License) (uuid.UUID, error) {
	query := `
        INSERT INTO licenses (
            license_key, status, type, name, customer_name, customer_email,
            product_id, max_devices, features, metadata, expires_at, issued_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
        ) RETURNING id
    `
	var insertedID uuid.UUID

	err := querierFrom(ctx, r.db).QueryRow(ctx, query,
		lic.LicenseKey,
		lic.Status,
		lic.Type,
		lic.Name,
		lic.CustomerName,
		lic.CustomerEmail,
		lic.ProductID,
		lic.MaxDevices,
		lic.Features,
		lic.Metadata,
		lic.ExpiresAt,
		lic.IssuedAt,
	).Scan(&insertedID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.logger.Warn("Attempted to create license with duplicate key",
				zap.String("constraint", pgErr.ConstraintName),
			)
			return uuid.Nil, license.ErrDuplicateKey
		}

		r.logger.Error("Failed to create license in database", zap.Error(err))
		return uuid.Nil, fmt.Errorf("database error on create license: %w", err)
	}

	r.logger.Info("License created successfully", zap.String("id", insertedID.String()))
	return insertedID, nil
}

func (r *LicenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*license.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE id = $1`

	row := querierFrom(ctx, r.db).QueryRow(ctx, query, id)
	return r.scanLicense(row)
}

func (r *LicenseRepository) FindByKey(ctx context.Context, key string) (*license.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE license_key = $1`

	row := querierFrom(ctx, r.db).QueryRow(ctx, query, key)
	return r.scanLicense(row)
}

func (r *LicenseRepository) List(ctx context.Context, params license.ListParams) ([]*license.License, int64, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 5)

	if params.Status != nil {
		args = append(args, *params.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.Type != nil {
		args = append(args, *params.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if params.CustomerEmail != nil {
		args = append(args, *params.CustomerEmail)
		where = append(where, fmt.Sprintf("customer_email = $%d", len(args)))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM licenses` + whereClause
	if err := querierFrom(ctx, r.db).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count licenses", zap.Error(err))
		return nil, 0, fmt.Errorf("database error on count licenses: %w", err)
	}

	sortBy := sanitizeSortColumn(params.SortBy)
	sortOrder := "DESC"
	if strings.EqualFold(params.SortOrder, "ASC") {
		sortOrder = "ASC"
	}

	args = append(args, params.Limit)
	limitPos := len(args)
	args = append(args, params.Offset)
	offsetPos := len(args)

	query := fmt.Sprintf(`SELECT %s FROM licenses%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		licenseColumns, whereClause, sortBy, sortOrder, limitPos, offsetPos)

	rows, err := querierFrom(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query list of licenses", zap.Error(err))
		return nil, 0, fmt.Errorf("database error on list licenses: %w", err)
	}
	defer rows.Close()

	licenses := make([]*license.License, 0)
	for rows.Next() {
		lic, err := r.scanLicense(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("database scan error during list: %w", err)
		}
		licenses = append(licenses, lic)
	}

	if err = rows.Err(); err != nil {
		r.logger.Error("Error iterating license rows", zap.Error(err))
		return nil, 0, fmt.Errorf("database iteration error on list licenses: %w", err)
	}

	return licenses, total, nil
}

func (r *LicenseRepository) Update(ctx context.Context, lic *license.License) error {
	query := `
        UPDATE licenses SET
            status = $1,
            type = $2,
            name = $3,
            customer_name = $4,
            customer_email = $5,
            product_id = $6,
            max_devices = $7,
            features = $8,
            metadata = $9,
            expires_at = $10,
            updated_at = NOW()
        WHERE id = $11
    `

	cmdTag, err := querierFrom(ctx, r.db).Exec(ctx, query,
		lic.Status,
		lic.Type,
		lic.Name,
		lic.CustomerName,
		lic.CustomerEmail,
		lic.ProductID,
		lic.MaxDevices,
		lic.Features,
		lic.Metadata,
		lic.ExpiresAt,
		lic.ID,
	)

	if err != nil {
		r.logger.Error("Failed to update license in database", zap.String("id", lic.ID.String()), zap.Error(err))
		return fmt.Errorf("database error on update license: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return license.ErrNotFound
	}

	return nil
}

func (r *LicenseRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status license.LicenseStatus) error {
	query := `UPDATE licenses SET status = $1, updated_at = NOW() WHERE id = $2`

	cmdTag, err := querierFrom(ctx, r.db).Exec(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update license status", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("database error on update license status: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return license.ErrNotFound
	}

	return nil
}

func (r *LicenseRepository) ExtendExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	query := `UPDATE licenses SET expires_at = $1, status = 'active', updated_at = NOW() WHERE id = $2`

	cmdTag, err := querierFrom(ctx, r.db).Exec(ctx, query, expiresAt, id)
	if err != nil {
		r.logger.Error("Failed to extend license expiry", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("database error on extend license: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return license.ErrNotFound
	}

	return nil
}

func (r *LicenseRepository) CountByStatus(ctx context.Context, status license.LicenseStatus) (int64, error) {
	var count int64
	err := querierFrom(ctx, r.db).QueryRow(ctx, `SELECT COUNT(*) FROM licenses WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("database error on count licenses by status: %w", err)
	}
	return count, nil
}

func (r *LicenseRepository) scanLicense(row pgx.Row) (*license.License, error) {
	var lic license.License
	err := row.Scan(
		&lic.ID,
		&lic.LicenseKey,
		&lic.Status,
		&lic.Type,
		&lic.Name,
		&lic.CustomerName,
		&lic.CustomerEmail,
		&lic.ProductID,
		&lic.MaxDevices,
		&lic.Features,
		&lic.Metadata,
		&lic.ExpiresAt,
		&lic.IssuedAt,
		&lic.CreatedAt,
		&lic.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, license.ErrNotFound
		}

		r.logger.Error("Failed to scan license row", zap.Error(err))
		return nil, fmt.Errorf("database scan error: %w", err)
	}

	return &lic, nil
}

func sanitizeSortColumn(col string) string {
	switch col {
	case "expires_at", "updated_at", "status", "type":
		return col
	default:
		return "created_at"
	}
}
