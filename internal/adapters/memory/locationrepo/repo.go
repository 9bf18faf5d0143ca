package locationrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/ports/out/locationrepo"
)

// Repo is an in-memory implementation of locationrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu         sync.RWMutex
	byContract map[domain.ContractID][]domain.LocationPoint
}

func NewRepo() *Repo {
	return &Repo{byContract: make(map[domain.ContractID][]domain.LocationPoint)}
}

func (r *Repo) Append(ctx context.Context, p domain.LocationPoint) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	pts := append(r.byContract[p.ContractID], p)
	sort.SliceStable(pts, func(i, j int) bool {
		if pts[i].RecordedAt.Equal(pts[j].RecordedAt) {
			return pts[i].ID < pts[j].ID
		}
		return pts[i].RecordedAt.Before(pts[j].RecordedAt)
	})
	r.byContract[p.ContractID] = pts
	return nil
}

func (r *Repo) ListSince(ctx context.Context, contract domain.ContractID, since time.Time) ([]domain.LocationPoint, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.LocationPoint, 0)
	for _, p := range r.byContract[contract] {
		if p.RecordedAt.After(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *Repo) Latest(ctx context.Context, contract domain.ContractID) (domain.LocationPoint, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	pts := r.byContract[contract]
	if len(pts) == 0 {
		return domain.LocationPoint{}, locationrepo.ErrNotFound
	}
	return pts[len(pts)-1], nil
}
