package product

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("product not found")

type Repository interface {
	Create(ctx context.Context, p *Product) (uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	FindBySlug(ctx context.Context, slug string) (*Product, error)
	List(ctx context.Context) ([]*Product, error)
}
