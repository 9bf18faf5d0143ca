package profilerepo

import (
	"context"

	"github.com/skyporter/luggage-api/internal/domain"
)

// Filter narrows List results. Zero values mean "no filter".
type Filter struct {
	Role   domain.Role
	Status domain.ProfileStatus
	// Query is a tokenized, case-insensitive match against FullName, Email and CompanyName.
	Query string
}

// Repository provides access to persisted profiles.
//
// Result ordering expectations:
// - List returns results ordered by FullName ascending (case-insensitive), ties broken by ID.
type Repository interface {
	Create(ctx context.Context, p domain.Profile) error
	Update(ctx context.Context, p domain.Profile) error
	Delete(ctx context.Context, id domain.ProfileID) error

	GetByID(ctx context.Context, id domain.ProfileID) (domain.Profile, error)
	GetBySubject(ctx context.Context, subject domain.SubjectID) (domain.Profile, error)

	List(ctx context.Context, f Filter) ([]domain.Profile, error)
}
