package pricingrepo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/ports/out/pricingrepo"
)

// Repo is an in-memory implementation of pricingrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.PricingRegionID]domain.PricingRegion
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.PricingRegionID]domain.PricingRegion)}
}

func (r *Repo) Upsert(ctx context.Context, p domain.PricingRegion) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, existing := range r.byID {
		if id != p.ID && strings.EqualFold(existing.Name, p.Name) {
			return pricingrepo.ErrNameTaken
		}
	}
	r.byID[p.ID] = p
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.PricingRegionID) (domain.PricingRegion, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return domain.PricingRegion{}, pricingrepo.ErrNotFound
	}
	return p, nil
}

func (r *Repo) List(ctx context.Context, includeInactive bool) ([]domain.PricingRegion, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.PricingRegion, 0, len(r.byID))
	for _, p := range r.byID {
		if !includeInactive && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		ni, nj := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if ni == nj {
			return out[i].ID < out[j].ID
		}
		return ni < nj
	})
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, id domain.PricingRegionID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return pricingrepo.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}
