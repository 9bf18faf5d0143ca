package contractrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/skyporter/luggage-api/internal/adapters/postgres"
	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/ports/out/contractrepo"
)

// Repo is a Postgres implementation of contractrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const selectContract = `
	SELECT
		id,
		contractor_id,
		delivery_id,
		region_id,
		airline,
		flight_number,
		passenger_name,
		passenger_phone,
		pickup_address,
		dropoff_address,
		pickup_lat,
		pickup_lng,
		dropoff_lat,
		dropoff_lng,
		scheduled_at,
		status,
		total_cents,
		currency,
		notes,
		created_at,
		updated_at
	FROM contracts
`

func (r *Repo) Create(ctx context.Context, c domain.Contract) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(c.ID))
	if err != nil {
		return fmt.Errorf("invalid contract id: %w", err)
	}
	contractorID, err := uuid.Parse(string(c.ContractorID))
	if err != nil {
		return fmt.Errorf("invalid contractor id: %w", err)
	}
	regionID, err := uuid.Parse(string(c.RegionID))
	if err != nil {
		return fmt.Errorf("invalid region id: %w", err)
	}
	deliveryID, err := parseOptionalID(c.DeliveryID)
	if err != nil {
		return err
	}
	pickupLat, pickupLng := splitPoint(c.Pickup)
	dropoffLat, dropoffLng := splitPoint(c.Dropoff)

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO contracts (
				id,
				contractor_id,
				delivery_id,
				region_id,
				airline,
				flight_number,
				passenger_name,
				passenger_phone,
				pickup_address,
				dropoff_address,
				pickup_lat,
				pickup_lng,
				dropoff_lat,
				dropoff_lng,
				scheduled_at,
				status,
				total_cents,
				currency,
				notes,
				created_at,
				updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		`,
			id,
			contractorID,
			deliveryID,
			regionID,
			c.Airline,
			c.FlightNumber,
			c.PassengerName,
			c.PassengerPhone,
			c.PickupAddress,
			c.DropoffAddress,
			pickupLat,
			pickupLng,
			dropoffLat,
			dropoffLng,
			c.ScheduledAt.UTC(),
			string(c.Status),
			c.TotalCents,
			c.Currency,
			c.Notes,
			c.CreatedAt.UTC(),
			c.UpdatedAt.UTC(),
		)
		if err != nil {
			if postgres.IsUniqueViolation(err, "contracts_pkey") {
				return contractrepo.ErrAlreadyExists
			}
			return err
		}

		batch := &pgx.Batch{}
		for i, it := range c.Luggage {
			itemID, err := uuid.Parse(string(it.ID))
			if err != nil {
				return fmt.Errorf("invalid luggage item id: %w", err)
			}
			batch.Queue(`
				INSERT INTO luggage_items (id, contract_id, position, tag_number, description, weight_kg, quantity)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, itemID, id, i, it.TagNumber, it.Description, it.WeightKg, it.Quantity)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *Repo) GetByID(ctx context.Context, id domain.ContractID) (domain.Contract, error) {
	if r.pool == nil {
		return domain.Contract{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Contract{}, contractrepo.ErrNotFound
	}
	c, err := scanContract(r.pool.QueryRow(ctx, selectContract+` WHERE id = $1`, uid))
	if err != nil {
		return domain.Contract{}, err
	}
	items, err := r.loadLuggage(ctx, []uuid.UUID{uid})
	if err != nil {
		return domain.Contract{}, err
	}
	c.Luggage = items[c.ID]
	return c, nil
}

func (r *Repo) List(ctx context.Context, f contractrepo.Filter) ([]domain.Contract, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}

	var sb strings.Builder
	sb.WriteString(selectContract)
	sb.WriteString(" WHERE true ")
	args := make([]any, 0, 6)
	add := func(clause string, v any) {
		args = append(args, v)
		sb.WriteString(fmt.Sprintf(clause, len(args)))
	}
	if f.ContractorID != nil {
		add(" AND contractor_id::text = $%d ", string(*f.ContractorID))
	}
	if f.DeliveryID != nil {
		add(" AND delivery_id::text = $%d ", string(*f.DeliveryID))
	}
	if f.RegionID != nil {
		add(" AND region_id::text = $%d ", string(*f.RegionID))
	}
	if f.Unassigned {
		sb.WriteString(" AND delivery_id IS NULL ")
	}
	if len(f.Statuses) > 0 {
		ss := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			ss = append(ss, string(s))
		}
		add(" AND status = ANY($%d) ", ss)
	}
	if f.CreatedFrom != nil {
		add(" AND created_at >= $%d ", f.CreatedFrom.UTC())
	}
	if f.CreatedTo != nil {
		add(" AND created_at < $%d ", f.CreatedTo.UTC())
	}
	sb.WriteString(" ORDER BY scheduled_at ASC, id ASC ")

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Contract, 0)
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		ids = append(ids, uuid.MustParse(string(c.ID)))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := r.loadLuggage(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Luggage = items[out[i].ID]
	}
	return out, nil
}

func (r *Repo) Save(ctx context.Context, c domain.Contract, expected domain.ContractStatus) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(c.ID))
	if err != nil {
		return contractrepo.ErrNotFound
	}
	deliveryID, err := parseOptionalID(c.DeliveryID)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `
			UPDATE contracts
			SET status = $3,
			    delivery_id = $4,
			    notes = $5,
			    updated_at = $6
			WHERE id = $1 AND status = $2
		`, id, string(expected), string(c.Status), deliveryID, c.Notes, c.UpdatedAt.UTC())
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 1 {
			return nil
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM contracts WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return contractrepo.ErrNotFound
		}
		return contractrepo.ErrConflict
	})
}

// --- helpers ---

func (r *Repo) loadLuggage(ctx context.Context, ids []uuid.UUID) (map[domain.ContractID][]domain.LuggageItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, contract_id, tag_number, description, weight_kg, quantity
		FROM luggage_items
		WHERE contract_id = ANY($1)
		ORDER BY contract_id, position ASC
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.ContractID][]domain.LuggageItem, len(ids))
	for rows.Next() {
		var (
			id, contractID uuid.UUID
			it             domain.LuggageItem
		)
		if err := rows.Scan(&id, &contractID, &it.TagNumber, &it.Description, &it.WeightKg, &it.Quantity); err != nil {
			return nil, err
		}
		it.ID = domain.LuggageItemID(id.String())
		it.ContractID = domain.ContractID(contractID.String())
		out[it.ContractID] = append(out[it.ContractID], it)
	}
	return out, rows.Err()
}

func parseOptionalID(id *domain.ProfileID) (*uuid.UUID, error) {
	if id == nil {
		return nil, nil
	}
	u, err := uuid.Parse(string(*id))
	if err != nil {
		return nil, fmt.Errorf("invalid profile id: %w", err)
	}
	return &u, nil
}

func splitPoint(p *domain.GeoPoint) (*float64, *float64) {
	if p == nil {
		return nil, nil
	}
	lat, lng := p.Lat, p.Lng
	return &lat, &lng
}

func joinPoint(lat, lng *float64) *domain.GeoPoint {
	if lat == nil || lng == nil {
		return nil
	}
	return &domain.GeoPoint{Lat: *lat, Lng: *lng}
}

func scanContract(row interface {
	Scan(dest ...any) error
}) (domain.Contract, error) {
	var (
		id, contractorID, regionID uuid.UUID
		deliveryID                 *uuid.UUID
		status                     string
		pickupLat, pickupLng       *float64
		dropoffLat, dropoffLng     *float64
		scheduledAt                time.Time
		createdAt, updatedAt       time.Time
		c                          domain.Contract
	)
	if err := row.Scan(
		&id,
		&contractorID,
		&deliveryID,
		&regionID,
		&c.Airline,
		&c.FlightNumber,
		&c.PassengerName,
		&c.PassengerPhone,
		&c.PickupAddress,
		&c.DropoffAddress,
		&pickupLat,
		&pickupLng,
		&dropoffLat,
		&dropoffLng,
		&scheduledAt,
		&status,
		&c.TotalCents,
		&c.Currency,
		&c.Notes,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Contract{}, contractrepo.ErrNotFound
		}
		return domain.Contract{}, err
	}
	c.ID = domain.ContractID(id.String())
	c.ContractorID = domain.ProfileID(contractorID.String())
	if deliveryID != nil {
		d := domain.ProfileID(deliveryID.String())
		c.DeliveryID = &d
	}
	c.RegionID = domain.PricingRegionID(regionID.String())
	c.Pickup = joinPoint(pickupLat, pickupLng)
	c.Dropoff = joinPoint(dropoffLat, dropoffLng)
	c.Status = domain.ContractStatus(status)
	c.ScheduledAt = scheduledAt.UTC()
	c.CreatedAt = createdAt.UTC()
	c.UpdatedAt = updatedAt.UTC()
	return c, nil
}
