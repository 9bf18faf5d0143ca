package contractrepo

import (
	"context"
	"errors"
	"time"

	"github.com/skyporter/luggage-api/internal/domain"
)

var (
	ErrNotFound      = errors.New("contract not found")
	ErrAlreadyExists = errors.New("contract already exists")
	// ErrConflict is returned by Save when the stored status differs from expected.
	ErrConflict = errors.New("contract status changed concurrently")
)

// Filter narrows List results. Nil/zero fields mean "no filter".
type Filter struct {
	ContractorID *domain.ProfileID
	DeliveryID   *domain.ProfileID
	RegionID     *domain.PricingRegionID
	Statuses     []domain.ContractStatus
	// Unassigned restricts to contracts without a delivery person.
	Unassigned bool

	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// Repository persists contracts together with their luggage items.
//
// List ordering: ScheduledAt ascending, ties broken by ID.
type Repository interface {
	// Create inserts the contract and all of its luggage items atomically.
	Create(ctx context.Context, c domain.Contract) error

	GetByID(ctx context.Context, id domain.ContractID) (domain.Contract, error)
	List(ctx context.Context, f Filter) ([]domain.Contract, error)

	// Save updates mutable fields (status, delivery assignment, notes, updatedAt) when the
	// stored status equals expected. Luggage items are immutable after booking.
	Save(ctx context.Context, c domain.Contract, expected domain.ContractStatus) error
}
