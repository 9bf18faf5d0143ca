package contractrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/ports/out/contractrepo"
)

// Repo is an in-memory implementation of contractrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.ContractID]domain.Contract
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.ContractID]domain.Contract)}
}

func (r *Repo) Create(ctx context.Context, c domain.Contract) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[c.ID]; ok || c.ID == "" {
		return contractrepo.ErrAlreadyExists
	}
	r.byID[c.ID] = cloneContract(c)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.ContractID) (domain.Contract, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return domain.Contract{}, contractrepo.ErrNotFound
	}
	return cloneContract(c), nil
}

func (r *Repo) List(ctx context.Context, f contractrepo.Filter) ([]domain.Contract, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Contract, 0)
	for _, c := range r.byID {
		if matches(c, f) {
			out = append(out, cloneContract(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out, nil
}

func (r *Repo) Save(ctx context.Context, c domain.Contract, expected domain.ContractStatus) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[c.ID]
	if !ok {
		return contractrepo.ErrNotFound
	}
	if existing.Status != expected {
		return contractrepo.ErrConflict
	}
	existing.Status = c.Status
	existing.DeliveryID = cloneProfileIDPtr(c.DeliveryID)
	existing.Notes = cloneStringPtr(c.Notes)
	existing.UpdatedAt = c.UpdatedAt
	r.byID[c.ID] = existing
	return nil
}

func matches(c domain.Contract, f contractrepo.Filter) bool {
	if f.ContractorID != nil && c.ContractorID != *f.ContractorID {
		return false
	}
	if f.DeliveryID != nil && (c.DeliveryID == nil || *c.DeliveryID != *f.DeliveryID) {
		return false
	}
	if f.RegionID != nil && c.RegionID != *f.RegionID {
		return false
	}
	if f.Unassigned && c.DeliveryID != nil {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if c.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.CreatedFrom != nil && c.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && !c.CreatedAt.Before(*f.CreatedTo) {
		return false
	}
	return true
}

func cloneContract(c domain.Contract) domain.Contract {
	out := c
	out.DeliveryID = cloneProfileIDPtr(c.DeliveryID)
	out.PassengerPhone = cloneStringPtr(c.PassengerPhone)
	out.Notes = cloneStringPtr(c.Notes)
	if c.Pickup != nil {
		v := *c.Pickup
		out.Pickup = &v
	}
	if c.Dropoff != nil {
		v := *c.Dropoff
		out.Dropoff = &v
	}
	out.Luggage = append([]domain.LuggageItem(nil), c.Luggage...)
	return out
}

func cloneProfileIDPtr(p *domain.ProfileID) *domain.ProfileID {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
