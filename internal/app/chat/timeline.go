package chat

import (
	"sort"
	"time"

	"github.com/skyporter/luggage-api/internal/domain"
)

// Timeline is a client-side view of one conversation that merges polled rows, pushed
// rows and optimistic placeholders. It is not safe for concurrent use.
type Timeline struct {
	confirmed []domain.Message
	ids       map[domain.MessageID]struct{}

	// pending holds optimistic placeholders in send order, keyed by clientRef.
	pending    []domain.Message
	pendingIdx map[string]int
}

func NewTimeline() *Timeline {
	return &Timeline{
		ids:        make(map[domain.MessageID]struct{}),
		pendingIdx: make(map[string]int),
	}
}

// AddPending appends an optimistic placeholder. The message must carry a ClientRef.
func (t *Timeline) AddPending(m domain.Message) bool {
	if m.ClientRef == nil || *m.ClientRef == "" {
		return false
	}
	if _, ok := t.pendingIdx[*m.ClientRef]; ok {
		return false
	}
	t.pendingIdx[*m.ClientRef] = len(t.pending)
	t.pending = append(t.pending, m)
	return true
}

// Merge adds server rows. Rows whose id is already present are skipped; a row whose
// clientRef matches a placeholder replaces it. Returns the number of rows added.
func (t *Timeline) Merge(rows ...domain.Message) int {
	added := 0
	for _, m := range rows {
		if m.ID == "" {
			continue
		}
		if _, ok := t.ids[m.ID]; ok {
			continue
		}
		if m.ClientRef != nil {
			t.removePending(*m.ClientRef)
		}
		t.ids[m.ID] = struct{}{}
		t.confirmed = append(t.confirmed, m)
		added++
	}
	if added > 0 {
		sort.SliceStable(t.confirmed, func(i, j int) bool {
			a, b := t.confirmed[i], t.confirmed[j]
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.ID < b.ID
			}
			return a.CreatedAt.Before(b.CreatedAt)
		})
	}
	return added
}

// Fail drops the placeholder for a send that did not reach the server.
func (t *Timeline) Fail(clientRef string) bool {
	return t.removePending(clientRef)
}

// Messages returns confirmed rows ordered by (CreatedAt, ID) followed by placeholders.
func (t *Timeline) Messages() []domain.Message {
	out := make([]domain.Message, 0, len(t.confirmed)+len(t.pending))
	out = append(out, t.confirmed...)
	out = append(out, t.pending...)
	return out
}

// Pending reports the number of unconfirmed placeholders.
func (t *Timeline) Pending() int { return len(t.pending) }

// LastSeen is the newest confirmed CreatedAt, the cursor for the next poll.
func (t *Timeline) LastSeen() time.Time {
	if len(t.confirmed) == 0 {
		return time.Time{}
	}
	return t.confirmed[len(t.confirmed)-1].CreatedAt
}

func (t *Timeline) removePending(ref string) bool {
	i, ok := t.pendingIdx[ref]
	if !ok {
		return false
	}
	t.pending = append(t.pending[:i], t.pending[i+1:]...)
	delete(t.pendingIdx, ref)
	for j := i; j < len(t.pending); j++ {
		t.pendingIdx[*t.pending[j].ClientRef] = j
	}
	return true
}
