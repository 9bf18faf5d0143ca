package paymentrepo

import (
	"context"
	"errors"
	"time"

	"github.com/skyporter/luggage-api/internal/domain"
)

var ErrNotFound = errors.New("payment not found")

// Repository stores payments ordered by CreatedAt ascending.
type Repository interface {
	Create(ctx context.Context, p domain.Payment) error
	ListByContract(ctx context.Context, id domain.ContractID) ([]domain.Payment, error)
	// ListBetween returns payments created in [from, to).
	ListBetween(ctx context.Context, from, to time.Time) ([]domain.Payment, error)
}
