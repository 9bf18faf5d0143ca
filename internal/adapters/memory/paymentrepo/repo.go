package paymentrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/skyporter/luggage-api/internal/domain"
)

// Repo is an in-memory implementation of paymentrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu  sync.RWMutex
	all []domain.Payment
}

func NewRepo() *Repo {
	return &Repo{}
}

func (r *Repo) Create(ctx context.Context, p domain.Payment) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	r.all = append(r.all, clonePayment(p))
	sort.SliceStable(r.all, func(i, j int) bool {
		return r.all[i].CreatedAt.Before(r.all[j].CreatedAt)
	})
	return nil
}

func (r *Repo) ListByContract(ctx context.Context, id domain.ContractID) ([]domain.Payment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Payment, 0)
	for _, p := range r.all {
		if p.ContractID == id {
			out = append(out, clonePayment(p))
		}
	}
	return out, nil
}

func (r *Repo) ListBetween(ctx context.Context, from, to time.Time) ([]domain.Payment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Payment, 0)
	for _, p := range r.all {
		if p.CreatedAt.Before(from) || !p.CreatedAt.Before(to) {
			continue
		}
		out = append(out, clonePayment(p))
	}
	return out, nil
}

func clonePayment(p domain.Payment) domain.Payment {
	out := p
	if p.Reference != nil {
		v := *p.Reference
		out.Reference = &v
	}
	if p.PaidAt != nil {
		v := *p.PaidAt
		out.PaidAt = &v
	}
	return out
}
