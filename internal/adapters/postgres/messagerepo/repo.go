package messagerepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/skyporter/luggage-api/internal/adapters/postgres"
	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/ports/out/messagerepo"
)

// Repo is a Postgres implementation of messagerepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const selectMessage = `
	SELECT id, conversation_id, sender_id, sender_role, body, client_ref, read_at, created_at
	FROM messages
`

// otherSide selects rows the reader did not send: admins read non-admin rows and vice versa.
const otherSide = ` AND ((sender_role = 'admin') <> $2) `

func (r *Repo) Create(ctx context.Context, m domain.Message) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(m.ID))
	if err != nil {
		return fmt.Errorf("invalid message id: %w", err)
	}
	convID, err := uuid.Parse(string(m.ConversationID))
	if err != nil {
		return fmt.Errorf("invalid conversation id: %w", err)
	}
	senderID, err := uuid.Parse(string(m.SenderID))
	if err != nil {
		return fmt.Errorf("invalid sender id: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, sender_role, body, client_ref, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		id,
		convID,
		senderID,
		string(m.SenderRole),
		m.Body,
		m.ClientRef,
		utcPtr(m.ReadAt),
		m.CreatedAt.UTC(),
	)
	if postgres.IsUniqueViolation(err, "messages_pkey") {
		return messagerepo.ErrAlreadyExists
	}
	return err
}

func (r *Repo) ListSince(ctx context.Context, conv domain.ConversationID, since time.Time, limit int) ([]domain.Message, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	cid, err := uuid.Parse(string(conv))
	if err != nil {
		return []domain.Message{}, nil
	}
	sql := selectMessage + ` WHERE conversation_id = $1 AND created_at > $2 ORDER BY created_at ASC, id ASC`
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := r.pool.Query(ctx, sql, cid, since.UTC())
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repo) MarkRead(ctx context.Context, conv domain.ConversationID, readerIsAdmin bool, at time.Time) ([]domain.MessageID, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	cid, err := uuid.Parse(string(conv))
	if err != nil {
		return []domain.MessageID{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		UPDATE messages
		SET read_at = $3
		WHERE conversation_id = $1 AND read_at IS NULL`+otherSide+`
		RETURNING id
	`, cid, readerIsAdmin, at.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.MessageID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, domain.MessageID(id.String()))
	}
	return out, rows.Err()
}

func (r *Repo) CountUnread(ctx context.Context, conv domain.ConversationID, readerIsAdmin bool) (int, error) {
	if r.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	cid, err := uuid.Parse(string(conv))
	if err != nil {
		return 0, nil
	}
	var n int
	err = r.pool.QueryRow(ctx, `
		SELECT count(*) FROM messages
		WHERE conversation_id = $1 AND read_at IS NULL`+otherSide,
		cid, readerIsAdmin,
	).Scan(&n)
	return n, err
}

func (r *Repo) Latest(ctx context.Context) (map[domain.ConversationID]domain.Message, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (conversation_id)
			id, conversation_id, sender_id, sender_role, body, client_ref, read_at, created_at
		FROM messages
		ORDER BY conversation_id, created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	msgs, err := collect(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.ConversationID]domain.Message, len(msgs))
	for _, m := range msgs {
		out[m.ConversationID] = m
	}
	return out, nil
}

func (r *Repo) DeleteConversation(ctx context.Context, conv domain.ConversationID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	cid, err := uuid.Parse(string(conv))
	if err != nil {
		return nil
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, cid)
	return err
}

// --- helpers ---

func collect(rows pgx.Rows) ([]domain.Message, error) {
	defer rows.Close()
	out := make([]domain.Message, 0)
	for rows.Next() {
		var (
			id, convID, senderID uuid.UUID
			senderRole, body     string
			clientRef            *string
			readAt               *time.Time
			createdAt            time.Time
		)
		if err := rows.Scan(&id, &convID, &senderID, &senderRole, &body, &clientRef, &readAt, &createdAt); err != nil {
			return nil, err
		}
		out = append(out, domain.Message{
			ID:             domain.MessageID(id.String()),
			ConversationID: domain.ConversationID(convID.String()),
			SenderID:       domain.ProfileID(senderID.String()),
			SenderRole:     domain.Role(senderRole),
			Body:           body,
			ClientRef:      clientRef,
			ReadAt:         utcPtr(readAt),
			CreatedAt:      createdAt.UTC(),
		})
	}
	return out, rows.Err()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
