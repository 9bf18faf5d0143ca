package messagerepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/ports/out/messagerepo"
)

// Repo is an in-memory implementation of messagerepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byConv map[domain.ConversationID][]domain.Message
	ids    map[domain.MessageID]struct{}
}

func NewRepo() *Repo {
	return &Repo{
		byConv: make(map[domain.ConversationID][]domain.Message),
		ids:    make(map[domain.MessageID]struct{}),
	}
}

func (r *Repo) Create(ctx context.Context, m domain.Message) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[m.ID]; ok || m.ID == "" {
		return messagerepo.ErrAlreadyExists
	}
	r.ids[m.ID] = struct{}{}
	msgs := append(r.byConv[m.ConversationID], cloneMessage(m))
	sortMessages(msgs)
	r.byConv[m.ConversationID] = msgs
	return nil
}

func (r *Repo) ListSince(ctx context.Context, conv domain.ConversationID, since time.Time, limit int) ([]domain.Message, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Message, 0)
	for _, m := range r.byConv[conv] {
		if !m.CreatedAt.After(since) {
			continue
		}
		out = append(out, cloneMessage(m))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *Repo) MarkRead(ctx context.Context, conv domain.ConversationID, readerIsAdmin bool, at time.Time) ([]domain.MessageID, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := make([]domain.MessageID, 0)
	msgs := r.byConv[conv]
	for i := range msgs {
		if msgs[i].ReadAt != nil || !sentByOtherSide(msgs[i], readerIsAdmin) {
			continue
		}
		t := at
		msgs[i].ReadAt = &t
		changed = append(changed, msgs[i].ID)
	}
	return changed, nil
}

func (r *Repo) CountUnread(ctx context.Context, conv domain.ConversationID, readerIsAdmin bool) (int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, m := range r.byConv[conv] {
		if m.ReadAt == nil && sentByOtherSide(m, readerIsAdmin) {
			n++
		}
	}
	return n, nil
}

func (r *Repo) Latest(ctx context.Context) (map[domain.ConversationID]domain.Message, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[domain.ConversationID]domain.Message, len(r.byConv))
	for conv, msgs := range r.byConv {
		if len(msgs) == 0 {
			continue
		}
		out[conv] = cloneMessage(msgs[len(msgs)-1])
	}
	return out, nil
}

func (r *Repo) DeleteConversation(ctx context.Context, conv domain.ConversationID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.byConv[conv] {
		delete(r.ids, m.ID)
	}
	delete(r.byConv, conv)
	return nil
}

func sentByOtherSide(m domain.Message, readerIsAdmin bool) bool {
	return (m.SenderRole == domain.RoleAdmin) != readerIsAdmin
}

func sortMessages(ms []domain.Message) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].ID < ms[j].ID
		}
		return ms[i].CreatedAt.Before(ms[j].CreatedAt)
	})
}

func cloneMessage(m domain.Message) domain.Message {
	out := m
	if m.ClientRef != nil {
		v := *m.ClientRef
		out.ClientRef = &v
	}
	if m.ReadAt != nil {
		v := *m.ReadAt
		out.ReadAt = &v
	}
	return out
}
