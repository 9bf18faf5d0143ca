// Package idempotency stores replayable booking responses in the idempotency_keys table.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyporter/luggage-api/internal/ports/out/idempotency"
)

var errNilPool = errors.New("nil postgres pool")

// Store scopes subjects by the token issuer so two identity providers cannot collide.
type Store struct {
	pool   *pgxpool.Pool
	issuer string
}

func NewStore(pool *pgxpool.Pool, jwtIssuer string) *Store {
	return &Store{pool: pool, issuer: jwtIssuer}
}

const selectRecord = `
SELECT status_code, content_type, body, created_at
FROM idempotency_keys
WHERE (idempotency_key, subject_iss, subject_sub, method, route, body_hash) = ($1, $2, $3, $4, $5, $6)`

const upsertRecord = `
INSERT INTO idempotency_keys
	(idempotency_key, subject_iss, subject_sub, method, route, body_hash, status_code, content_type, body, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (idempotency_key, subject_iss, subject_sub, method, route, body_hash) DO UPDATE SET
	status_code  = EXCLUDED.status_code,
	content_type = EXCLUDED.content_type,
	body         = EXCLUDED.body,
	created_at   = EXCLUDED.created_at`

func (s *Store) key(fp idempotency.Fingerprint) []any {
	return []any{string(fp.Key), s.issuer, string(fp.Subject), fp.Method, fp.Route, fp.BodyHash}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	if s.pool == nil {
		return idempotency.Record{}, false, errNilPool
	}
	var rec idempotency.Record
	err := s.pool.QueryRow(ctx, selectRecord, s.key(fp)...).
		Scan(&rec.StatusCode, &rec.ContentType, &rec.Body, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return idempotency.Record{}, false, nil
	}
	if err != nil {
		return idempotency.Record{}, false, fmt.Errorf("idempotency get: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	if s.pool == nil {
		return errNilPool
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Body == nil {
		rec.Body = []byte{}
	}
	args := append(s.key(fp), rec.StatusCode, rec.ContentType, rec.Body, rec.CreatedAt.UTC())
	if _, err := s.pool.Exec(ctx, upsertRecord, args...); err != nil {
		return fmt.Errorf("idempotency put: %w", err)
	}
	return nil
}

func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	if s.pool == nil {
		return 0, errNilPool
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("idempotency purge: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
