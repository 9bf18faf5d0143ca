// Package chat implements the per-user support conversation between a user and the admins.
package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skyporter/luggage-api/internal/app/apperr"
	"github.com/skyporter/luggage-api/internal/domain"
	clockport "github.com/skyporter/luggage-api/internal/ports/out/clock"
	"github.com/skyporter/luggage-api/internal/ports/out/events"
	"github.com/skyporter/luggage-api/internal/ports/out/messagerepo"
	"github.com/skyporter/luggage-api/internal/ports/out/profilerepo"
)

const (
	MaxBodyRunes     = 4000
	DefaultPageLimit = 200
	MaxPageLimit     = 500
)

type SendInput struct {
	// ConversationID is required for admins and must match the caller otherwise.
	ConversationID domain.ConversationID
	Body           string
	ClientRef      *string
}

// ReadReceipt is the payload of a message.read event.
type ReadReceipt struct {
	ConversationID domain.ConversationID `json:"conversationId"`
	ReaderID       domain.ProfileID      `json:"readerId"`
	MessageIDs     []domain.MessageID    `json:"messageIds"`
	ReadAt         time.Time             `json:"readAt"`
}

type Service struct {
	messages messagerepo.Repository
	profiles profilerepo.Repository
	pub      events.Publisher
	clk      clockport.Clock
	log      zerolog.Logger

	newMessageID func() domain.MessageID
}

func NewService(messages messagerepo.Repository, profiles profilerepo.Repository, pub events.Publisher, clk clockport.Clock, log zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		messages: messages,
		profiles: profiles,
		pub:      pub,
		clk:      clk,
		log:      log,
		newMessageID: func() domain.MessageID {
			return domain.MessageID(uuid.NewString())
		},
	}
}

func (s *Service) SendMessage(ctx context.Context, caller domain.Profile, in SendInput) (domain.Message, error) {
	conv, err := s.conversationFor(ctx, caller, in.ConversationID)
	if err != nil {
		return domain.Message{}, err
	}
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return domain.Message{}, apperr.Validation("body", "must be non-empty")
	}
	if utf8.RuneCountInString(body) > MaxBodyRunes {
		return domain.Message{}, apperr.Validation("body", "must be at most 4000 characters")
	}
	var clientRef *string
	if in.ClientRef != nil && strings.TrimSpace(*in.ClientRef) != "" {
		v := strings.TrimSpace(*in.ClientRef)
		clientRef = &v
	}

	m := domain.Message{
		ID:             s.newMessageID(),
		ConversationID: conv,
		SenderID:       caller.ID,
		SenderRole:     caller.Role,
		Body:           body,
		ClientRef:      clientRef,
		CreatedAt:      s.clk.Now(),
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return domain.Message{}, err
	}
	s.publish(ctx, events.MessageCreated, conv, m)
	return m, nil
}

// GetMessages returns rows created strictly after since, oldest first.
func (s *Service) GetMessages(ctx context.Context, caller domain.Profile, conv domain.ConversationID, since time.Time, limit int) ([]domain.Message, error) {
	conv, err := s.conversationFor(ctx, caller, conv)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return s.messages.ListSince(ctx, conv, since, limit)
}

// MarkRead marks every message from the other side as read and returns how many changed.
func (s *Service) MarkRead(ctx context.Context, caller domain.Profile, conv domain.ConversationID) (int, error) {
	conv, err := s.conversationFor(ctx, caller, conv)
	if err != nil {
		return 0, err
	}
	now := s.clk.Now()
	changed, err := s.messages.MarkRead(ctx, conv, caller.Role == domain.RoleAdmin, now)
	if err != nil {
		return 0, err
	}
	if len(changed) > 0 {
		s.publish(ctx, events.MessageRead, conv, ReadReceipt{
			ConversationID: conv,
			ReaderID:       caller.ID,
			MessageIDs:     changed,
			ReadAt:         now,
		})
	}
	return len(changed), nil
}

// GetUnreadCount counts unread messages for the caller. Admins without a conversation
// get the total across every conversation.
func (s *Service) GetUnreadCount(ctx context.Context, caller domain.Profile, conv domain.ConversationID) (int, error) {
	isAdmin := caller.Role == domain.RoleAdmin
	if isAdmin && conv == "" {
		latest, err := s.messages.Latest(ctx)
		if err != nil {
			return 0, err
		}
		total := 0
		for c := range latest {
			n, err := s.messages.CountUnread(ctx, c, true)
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	}
	conv, err := s.conversationFor(ctx, caller, conv)
	if err != nil {
		return 0, err
	}
	return s.messages.CountUnread(ctx, conv, isAdmin)
}

// GetConversations lists the admin inbox, most recently active first.
func (s *Service) GetConversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	latest, err := s.messages.Latest(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ConversationSummary, 0, len(latest))
	for conv, last := range latest {
		owner, err := s.profiles.GetByID(ctx, domain.ProfileID(conv))
		if err != nil {
			if errors.Is(err, profilerepo.ErrNotFound) {
				continue
			}
			return nil, err
		}
		unread, err := s.messages.CountUnread(ctx, conv, true)
		if err != nil {
			return nil, err
		}
		lm := last
		out = append(out, domain.ConversationSummary{
			ConversationID: conv,
			Owner: domain.ProfileSummary{
				ID:          owner.ID,
				Role:        owner.Role,
				FullName:    owner.FullName,
				CompanyName: owner.CompanyName,
			},
			LastMessage: &lm,
			UnreadCount: unread,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastMessage.CreatedAt, out[j].LastMessage.CreatedAt
		if a.Equal(b) {
			return out[i].ConversationID < out[j].ConversationID
		}
		return a.After(b)
	})
	return out, nil
}

// Conversation resolves the thread a caller may watch. Non-admins always get their own.
func (s *Service) Conversation(ctx context.Context, caller domain.Profile, requested domain.ConversationID) (domain.ConversationID, error) {
	return s.conversationFor(ctx, caller, requested)
}

// conversationFor resolves which thread the caller may access.
func (s *Service) conversationFor(ctx context.Context, caller domain.Profile, requested domain.ConversationID) (domain.ConversationID, error) {
	if caller.Role != domain.RoleAdmin {
		own := caller.ConversationID()
		if requested != "" && requested != own {
			return "", apperr.Forbidden("cannot access another user's conversation")
		}
		return own, nil
	}
	if requested == "" {
		return "", apperr.Validation("conversationId", "required for admins")
	}
	owner, err := s.profiles.GetByID(ctx, domain.ProfileID(requested))
	if err != nil {
		if errors.Is(err, profilerepo.ErrNotFound) {
			return "", apperr.NotFound("conversation")
		}
		return "", err
	}
	if owner.Role == domain.RoleAdmin {
		return "", apperr.Validation("conversationId", "admins do not own conversations")
	}
	return requested, nil
}

func (s *Service) publish(ctx context.Context, typ events.Type, conv domain.ConversationID, payload any) {
	err := s.pub.Publish(ctx, events.Event{
		Type:       typ,
		Topic:      events.ConversationTopic(string(conv)),
		Payload:    payload,
		OccurredAt: s.clk.Now(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("event", string(typ)).Str("conversationId", string(conv)).Msg("realtime publish failed")
	}
}
