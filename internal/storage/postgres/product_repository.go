package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/licensify/licensify/internal/domain/product"
	"go.uber.org/zap"
)

const productColumns = `
        id, name, slug, description, version, available_features,
        default_max_devices, is_active, created_at, updated_at
`

type ProductRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProductRepository(db *pgxpool.Pool, logger *zap.Logger) *ProductRepository {
	return &ProductRepository{
		db:     db,
		logger: logger.Named("ProductRepository"),
	}
}

var _ product.Repository = (*ProductRepository)(nil)

func (r *ProductRepository) Create(ctx context.Context, p *product.Product) (uuid.UUID, error) {
	query := `
        INSERT INTO products (name, slug, description, version, available_features, default_max_devices, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `

	var insertedID uuid.UUID
	err := querierFrom(ctx, r.db).QueryRow(ctx, query,
		p.Name,
		p.Slug,
		p.Description,
		p.Version,
		p.AvailableFeatures,
		p.DefaultMaxDevices,
		p.IsActive,
	).Scan(&insertedID)
	if err != nil {
		r.logger.Error("Failed to create product", zap.String("slug", p.Slug), zap.Error(err))
		return uuid.Nil, fmt.Errorf("database error on create product: %w", err)
	}

	return insertedID, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	row := querierFrom(ctx, r.db).QueryRow(ctx, query, id)
	return r.scanProduct(row)
}

func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (*product.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE slug = $1`

	row := querierFrom(ctx, r.db).QueryRow(ctx, query, slug)
	return r.scanProduct(row)
}

func (r *ProductRepository) List(ctx context.Context) ([]*product.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY name ASC`

	rows, err := querierFrom(ctx, r.db).Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query products", zap.Error(err))
		return nil, fmt.Errorf("database error on list products: %w", err)
	}
	defer rows.Close()

	products := make([]*product.Product, 0)
	for rows.Next() {
		p, err := r.scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("database iteration error on list products: %w", err)
	}

	return products, nil
}

func (r *ProductRepository) scanProduct(row pgx.Row) (*product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.Version,
		&p.AvailableFeatures,
		&p.DefaultMaxDevices,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}

		r.logger.Error("Failed to scan product row", zap.Error(err))
		return nil, fmt.Errorf("database scan error: %w", err)
	}

	return &p, nil
}
