package paymentrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyporter/luggage-api/internal/domain"
)

// Repo is a Postgres implementation of paymentrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const selectPayment = `
	SELECT id, contract_id, amount_cents, currency, method, status, reference, paid_at, created_at
	FROM payments
`

func (r *Repo) Create(ctx context.Context, p domain.Payment) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(p.ID))
	if err != nil {
		return fmt.Errorf("invalid payment id: %w", err)
	}
	contractID, err := uuid.Parse(string(p.ContractID))
	if err != nil {
		return fmt.Errorf("invalid contract id: %w", err)
	}
	var paidAt *time.Time
	if p.PaidAt != nil {
		v := p.PaidAt.UTC()
		paidAt = &v
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO payments (id, contract_id, amount_cents, currency, method, status, reference, paid_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, contractID, p.AmountCents, p.Currency, string(p.Method), string(p.Status), p.Reference, paidAt, p.CreatedAt.UTC())
	return err
}

func (r *Repo) ListByContract(ctx context.Context, id domain.ContractID) ([]domain.Payment, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return []domain.Payment{}, nil
	}
	rows, err := r.pool.Query(ctx, selectPayment+` WHERE contract_id = $1 ORDER BY created_at ASC, id ASC`, uid)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repo) ListBetween(ctx context.Context, from, to time.Time) ([]domain.Payment, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, selectPayment+` WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at ASC, id ASC`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]domain.Payment, error) {
	defer rows.Close()
	out := make([]domain.Payment, 0)
	for rows.Next() {
		var (
			id, contractID uuid.UUID
			method, status string
			paidAt         *time.Time
			createdAt      time.Time
			p              domain.Payment
		)
		if err := rows.Scan(&id, &contractID, &p.AmountCents, &p.Currency, &method, &status, &p.Reference, &paidAt, &createdAt); err != nil {
			return nil, err
		}
		p.ID = domain.PaymentID(id.String())
		p.ContractID = domain.ContractID(contractID.String())
		p.Method = domain.PaymentMethod(method)
		p.Status = domain.PaymentStatus(status)
		if paidAt != nil {
			v := paidAt.UTC()
			p.PaidAt = &v
		}
		p.CreatedAt = createdAt.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}
