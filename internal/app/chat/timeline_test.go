package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyporter/luggage-api/internal/domain"
)

func ref(s string) *string { return &s }

func msg(id string, sec int64, clientRef *string) domain.Message {
	return domain.Message{ID: domain.MessageID(id), ConversationID: "c1", Body: id, ClientRef: clientRef, CreatedAt: time.Unix(sec, 0).UTC()}
}

func ids(ms []domain.Message) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		if m.ID == "" {
			out = append(out, "pending:"+*m.ClientRef)
			continue
		}
		out = append(out, string(m.ID))
	}
	return out
}

func TestTimeline_MergeIsIdempotentAndOrdered(t *testing.T) {
	t.Parallel()

	tl := NewTimeline()
	assert.Equal(t, 2, tl.Merge(msg("b", 2, nil), msg("a", 1, nil)))
	assert.Equal(t, 0, tl.Merge(msg("a", 1, nil), msg("b", 2, nil)), "duplicates from poll+push")
	assert.Equal(t, 1, tl.Merge(msg("a2", 1, nil)))

	assert.Equal(t, []string{"a", "a2", "b"}, ids(tl.Messages()))
	assert.Equal(t, time.Unix(2, 0).UTC(), tl.LastSeen())
}

func TestTimeline_EchoReplacesPlaceholder(t *testing.T) {
	t.Parallel()

	tl := NewTimeline()
	tl.Merge(msg("a", 1, nil))
	require.True(t, tl.AddPending(domain.Message{ConversationID: "c1", Body: "hi", ClientRef: ref("tmp-1"), CreatedAt: time.Unix(9, 0)}))
	require.True(t, tl.AddPending(domain.Message{ConversationID: "c1", Body: "again", ClientRef: ref("tmp-2"), CreatedAt: time.Unix(9, 0)}))
	assert.False(t, tl.AddPending(domain.Message{ClientRef: ref("tmp-1")}), "duplicate clientRef")
	assert.Equal(t, []string{"a", "pending:tmp-1", "pending:tmp-2"}, ids(tl.Messages()))

	tl.Merge(msg("srv-1", 3, ref("tmp-1")))
	assert.Equal(t, []string{"a", "srv-1", "pending:tmp-2"}, ids(tl.Messages()))
	assert.Equal(t, 1, tl.Pending())

	// The same echo arriving over the other channel is a no-op.
	assert.Equal(t, 0, tl.Merge(msg("srv-1", 3, ref("tmp-1"))))
}

func TestTimeline_Fail(t *testing.T) {
	t.Parallel()

	tl := NewTimeline()
	tl.AddPending(domain.Message{ClientRef: ref("x")})
	tl.AddPending(domain.Message{ClientRef: ref("y")})

	assert.True(t, tl.Fail("x"))
	assert.False(t, tl.Fail("x"))
	assert.Equal(t, []string{"pending:y"}, ids(tl.Messages()))

	// Index bookkeeping survives removal.
	tl.Merge(msg("m", 1, ref("y")))
	assert.Equal(t, 0, tl.Pending())
}

func TestTimeline_AddPendingRequiresClientRef(t *testing.T) {
	t.Parallel()

	tl := NewTimeline()
	assert.False(t, tl.AddPending(domain.Message{Body: "no ref"}))
	assert.True(t, tl.LastSeen().IsZero())
}
