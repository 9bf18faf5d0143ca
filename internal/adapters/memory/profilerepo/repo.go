package profilerepo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/ports/out/profilerepo"
)

// Repo is an in-memory implementation of profilerepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID    map[domain.ProfileID]domain.Profile
	idBySub map[domain.SubjectID]domain.ProfileID
}

func NewRepo() *Repo {
	return &Repo{
		byID:    make(map[domain.ProfileID]domain.Profile),
		idBySub: make(map[domain.SubjectID]domain.ProfileID),
	}
}

func (r *Repo) Create(ctx context.Context, p domain.Profile) error {
	_ = ctx
	if p.ID == "" {
		return profilerepo.ErrAlreadyExists // treat empty ID as invalid; the app layer assigns IDs
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[p.ID]; ok {
		return profilerepo.ErrAlreadyExists
	}
	if existingID, ok := r.idBySub[p.Subject]; ok && existingID != "" {
		return profilerepo.ErrSubjectAlreadyBound
	}
	if r.emailTakenLocked(p.Email, p.ID) {
		return profilerepo.ErrEmailTaken
	}

	r.byID[p.ID] = cloneProfile(p)
	r.idBySub[p.Subject] = p.ID
	return nil
}

func (r *Repo) Update(ctx context.Context, p domain.Profile) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[p.ID]
	if !ok {
		return profilerepo.ErrNotFound
	}
	// Subject binding is immutable.
	if existing.Subject != p.Subject {
		return profilerepo.ErrSubjectAlreadyBound
	}
	if r.emailTakenLocked(p.Email, p.ID) {
		return profilerepo.ErrEmailTaken
	}

	r.byID[p.ID] = cloneProfile(p)
	return nil
}

func (r *Repo) Delete(ctx context.Context, id domain.ProfileID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return profilerepo.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.idBySub, p.Subject)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.ProfileID) (domain.Profile, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.Profile{}, profilerepo.ErrNotFound
	}
	return cloneProfile(p), nil
}

func (r *Repo) GetBySubject(ctx context.Context, subject domain.SubjectID) (domain.Profile, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idBySub[subject]
	if !ok {
		return domain.Profile{}, profilerepo.ErrNotFound
	}
	p, ok := r.byID[id]
	if !ok {
		return domain.Profile{}, profilerepo.ErrNotFound
	}
	return cloneProfile(p), nil
}

func (r *Repo) List(ctx context.Context, f profilerepo.Filter) ([]domain.Profile, error) {
	_ = ctx
	qTokens := tokenize(f.Query)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Profile, 0, len(r.byID))
	for _, p := range r.byID {
		if f.Role != "" && p.Role != f.Role {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if len(qTokens) > 0 && !matchesAllTokens(searchText(p), qTokens) {
			continue
		}
		out = append(out, cloneProfile(p))
	}
	sortProfilesByFullName(out)
	return out, nil
}

func (r *Repo) emailTakenLocked(email string, self domain.ProfileID) bool {
	for id, p := range r.byID {
		if id != self && strings.EqualFold(p.Email, email) {
			return true
		}
	}
	return false
}

func cloneProfile(p domain.Profile) domain.Profile {
	out := p
	out.Phone = cloneStringPtr(p.Phone)
	out.CompanyName = cloneStringPtr(p.CompanyName)
	return out
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func sortProfilesByFullName(ps []domain.Profile) {
	sort.Slice(ps, func(i, j int) bool {
		di := strings.ToLower(ps[i].FullName)
		dj := strings.ToLower(ps[j].FullName)
		if di == dj {
			return string(ps[i].ID) < string(ps[j].ID)
		}
		return di < dj
	})
}

func searchText(p domain.Profile) string {
	s := p.FullName + " " + p.Email
	if p.CompanyName != nil {
		s += " " + *p.CompanyName
	}
	return strings.ToLower(s)
}

func tokenize(s string) []string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

func matchesAllTokens(hay string, tokens []string) bool {
	for _, t := range tokens {
		if !strings.Contains(hay, t) {
			return false
		}
	}
	return true
}
