package locationrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/ports/out/locationrepo"
)

// Repo is a Postgres implementation of locationrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const selectPoint = `
	SELECT id, contract_id, delivery_id, lat, lng, speed_kph, heading_deg, recorded_at
	FROM location_points
`

func (r *Repo) Append(ctx context.Context, p domain.LocationPoint) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(p.ID))
	if err != nil {
		return fmt.Errorf("invalid location id: %w", err)
	}
	contractID, err := uuid.Parse(string(p.ContractID))
	if err != nil {
		return fmt.Errorf("invalid contract id: %w", err)
	}
	deliveryID, err := uuid.Parse(string(p.DeliveryID))
	if err != nil {
		return fmt.Errorf("invalid delivery id: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO location_points (id, contract_id, delivery_id, lat, lng, speed_kph, heading_deg, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, contractID, deliveryID, p.Lat, p.Lng, p.SpeedKph, p.HeadingDeg, p.RecordedAt.UTC())
	return err
}

func (r *Repo) ListSince(ctx context.Context, contract domain.ContractID, since time.Time) ([]domain.LocationPoint, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(contract))
	if err != nil {
		return []domain.LocationPoint{}, nil
	}
	rows, err := r.pool.Query(ctx, selectPoint+` WHERE contract_id = $1 AND recorded_at > $2 ORDER BY recorded_at ASC, id ASC`, uid, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.LocationPoint, 0)
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Latest(ctx context.Context, contract domain.ContractID) (domain.LocationPoint, error) {
	if r.pool == nil {
		return domain.LocationPoint{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(contract))
	if err != nil {
		return domain.LocationPoint{}, locationrepo.ErrNotFound
	}
	return scanPoint(r.pool.QueryRow(ctx, selectPoint+` WHERE contract_id = $1 ORDER BY recorded_at DESC, id DESC LIMIT 1`, uid))
}

func scanPoint(row interface {
	Scan(dest ...any) error
}) (domain.LocationPoint, error) {
	var (
		id, contractID, deliveryID uuid.UUID
		recordedAt                 time.Time
		p                          domain.LocationPoint
	)
	if err := row.Scan(&id, &contractID, &deliveryID, &p.Lat, &p.Lng, &p.SpeedKph, &p.HeadingDeg, &recordedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LocationPoint{}, locationrepo.ErrNotFound
		}
		return domain.LocationPoint{}, err
	}
	p.ID = domain.LocationPointID(id.String())
	p.ContractID = domain.ContractID(contractID.String())
	p.DeliveryID = domain.ProfileID(deliveryID.String())
	p.RecordedAt = recordedAt.UTC()
	return p, nil
}
