package messagerepo

import (
	"context"
	"errors"
	"time"

	"github.com/skyporter/luggage-api/internal/domain"
)

var (
	ErrNotFound      = errors.New("message not found")
	ErrAlreadyExists = errors.New("message already exists")
)

// Repository stores chat messages.
//
// ListSince returns rows with CreatedAt strictly after since, ordered by (CreatedAt, ID).
type Repository interface {
	Create(ctx context.Context, m domain.Message) error

	ListSince(ctx context.Context, conv domain.ConversationID, since time.Time, limit int) ([]domain.Message, error)

	// MarkRead sets ReadAt=at on unread messages in conv not sent by reader's side.
	// readerIsAdmin selects which side: admins read user messages and vice versa.
	// It returns the ids that changed.
	MarkRead(ctx context.Context, conv domain.ConversationID, readerIsAdmin bool, at time.Time) ([]domain.MessageID, error)

	// CountUnread counts unread messages in conv sent by the opposite side of readerIsAdmin.
	CountUnread(ctx context.Context, conv domain.ConversationID, readerIsAdmin bool) (int, error)

	// Latest returns the newest message for each conversation, keyed by conversation.
	Latest(ctx context.Context) (map[domain.ConversationID]domain.Message, error)

	DeleteConversation(ctx context.Context, conv domain.ConversationID) error
}
