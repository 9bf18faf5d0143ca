package pricingrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/skyporter/luggage-api/internal/adapters/postgres"
	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/ports/out/pricingrepo"
)

// Repo is a Postgres implementation of pricingrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const selectRegion = `
	SELECT id, name, base_fee_cents, per_bag_cents, per_kg_cents, currency, active
	FROM pricing_regions
`

func (r *Repo) Upsert(ctx context.Context, p domain.PricingRegion) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(p.ID))
	if err != nil {
		return fmt.Errorf("invalid pricing region id: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO pricing_regions (id, name, base_fee_cents, per_bag_cents, per_kg_cents, currency, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			base_fee_cents = EXCLUDED.base_fee_cents,
			per_bag_cents = EXCLUDED.per_bag_cents,
			per_kg_cents = EXCLUDED.per_kg_cents,
			currency = EXCLUDED.currency,
			active = EXCLUDED.active
	`, id, p.Name, p.BaseFeeCents, p.PerBagCents, p.PerKgCents, p.Currency, p.Active)
	if postgres.IsUniqueViolation(err, "pricing_regions_name_unique") {
		return pricingrepo.ErrNameTaken
	}
	return err
}

func (r *Repo) GetByID(ctx context.Context, id domain.PricingRegionID) (domain.PricingRegion, error) {
	if r.pool == nil {
		return domain.PricingRegion{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.PricingRegion{}, pricingrepo.ErrNotFound
	}
	return scanRegion(r.pool.QueryRow(ctx, selectRegion+` WHERE id = $1`, uid))
}

func (r *Repo) List(ctx context.Context, includeInactive bool) ([]domain.PricingRegion, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	where := ""
	if !includeInactive {
		where = " WHERE active = true "
	}
	rows, err := r.pool.Query(ctx, selectRegion+where+` ORDER BY lower(name) ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.PricingRegion, 0)
	for rows.Next() {
		p, err := scanRegion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Delete(ctx context.Context, id domain.PricingRegionID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return pricingrepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM pricing_regions WHERE id = $1`, uid)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return pricingrepo.ErrInUse
		}
		return err
	}
	if ct.RowsAffected() == 0 {
		return pricingrepo.ErrNotFound
	}
	return nil
}

func scanRegion(row interface {
	Scan(dest ...any) error
}) (domain.PricingRegion, error) {
	var (
		id uuid.UUID
		p  domain.PricingRegion
	)
	if err := row.Scan(&id, &p.Name, &p.BaseFeeCents, &p.PerBagCents, &p.PerKgCents, &p.Currency, &p.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PricingRegion{}, pricingrepo.ErrNotFound
		}
		return domain.PricingRegion{}, err
	}
	p.ID = domain.PricingRegionID(id.String())
	return p, nil
}
