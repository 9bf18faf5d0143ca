package pricingrepo

import (
	"context"
	"errors"

	"github.com/skyporter/luggage-api/internal/domain"
)

var (
	ErrNotFound  = errors.New("pricing region not found")
	ErrNameTaken = errors.New("pricing region name already in use")
	ErrInUse     = errors.New("pricing region is referenced by contracts")
)

// Repository stores pricing regions ordered by Name.
type Repository interface {
	Upsert(ctx context.Context, r domain.PricingRegion) error
	GetByID(ctx context.Context, id domain.PricingRegionID) (domain.PricingRegion, error)
	List(ctx context.Context, includeInactive bool) ([]domain.PricingRegion, error)
	Delete(ctx context.Context, id domain.PricingRegionID) error
}
