package locationrepo

import (
	"context"
	"errors"
	"time"

	"github.com/skyporter/luggage-api/internal/domain"
)

var ErrNotFound = errors.New("location not found")

// Repository stores GPS fixes. ListSince orders by (RecordedAt, ID).
type Repository interface {
	Append(ctx context.Context, p domain.LocationPoint) error
	ListSince(ctx context.Context, contract domain.ContractID, since time.Time) ([]domain.LocationPoint, error)
	Latest(ctx context.Context, contract domain.ContractID) (domain.LocationPoint, error)
}
