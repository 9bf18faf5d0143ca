// Package tracking records delivery GPS fixes and serves contract tracks.
package tracking

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skyporter/luggage-api/internal/app/apperr"
	"github.com/skyporter/luggage-api/internal/domain"
	clockport "github.com/skyporter/luggage-api/internal/ports/out/clock"
	"github.com/skyporter/luggage-api/internal/ports/out/contractrepo"
	"github.com/skyporter/luggage-api/internal/ports/out/events"
	"github.com/skyporter/luggage-api/internal/ports/out/locationrepo"
)

type UpdateInput struct {
	ContractID domain.ContractID
	Lat        float64
	Lng        float64
	SpeedKph   *float64
	HeadingDeg *float64
}

// Track is everything a map view needs to draw a delivery route.
type Track struct {
	ContractID domain.ContractID      `json:"contractId"`
	Status     domain.ContractStatus  `json:"status"`
	Points     []domain.LocationPoint `json:"points"`
	Polyline   string                 `json:"polyline"`
	DistanceKm float64                `json:"distanceKm"`
	Latest     *domain.LocationPoint  `json:"latest,omitempty"`
}

type Service struct {
	contracts contractrepo.Repository
	locations locationrepo.Repository
	pub       events.Publisher
	clk       clockport.Clock
	log       zerolog.Logger

	newPointID func() domain.LocationPointID
}

func NewService(contracts contractrepo.Repository, locations locationrepo.Repository, pub events.Publisher, clk clockport.Clock, log zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		contracts: contracts,
		locations: locations,
		pub:       pub,
		clk:       clk,
		log:       log,
		newPointID: func() domain.LocationPointID {
			return domain.LocationPointID(uuid.NewString())
		},
	}
}

// UpdateLocation records a fix from the delivery person assigned to an active contract.
func (s *Service) UpdateLocation(ctx context.Context, caller domain.Profile, in UpdateInput) (domain.LocationPoint, error) {
	details := map[string]any{}
	if !domain.ValidCoordinates(in.Lat, in.Lng) {
		details["lat/lng"] = "coordinates out of range"
	}
	if in.SpeedKph != nil && (math.IsNaN(*in.SpeedKph) || *in.SpeedKph < 0) {
		details["speedKph"] = "must be >= 0"
	}
	if in.HeadingDeg != nil && (math.IsNaN(*in.HeadingDeg) || *in.HeadingDeg < 0 || *in.HeadingDeg >= 360) {
		details["headingDeg"] = "must be in [0, 360)"
	}
	if len(details) > 0 {
		return domain.LocationPoint{}, apperr.ValidationFields(details)
	}

	c, err := s.load(ctx, in.ContractID)
	if err != nil {
		return domain.LocationPoint{}, err
	}
	if caller.Role != domain.RoleDelivery || c.DeliveryID == nil || *c.DeliveryID != caller.ID {
		return domain.LocationPoint{}, apperr.Forbidden("only the assigned delivery person can report locations")
	}
	if !c.Status.Trackable() {
		e := apperr.Conflict("contract is not in a trackable state")
		e.Details = map[string]any{"status": string(c.Status)}
		return domain.LocationPoint{}, e
	}

	p := domain.LocationPoint{
		ID:         s.newPointID(),
		ContractID: c.ID,
		DeliveryID: caller.ID,
		Lat:        in.Lat,
		Lng:        in.Lng,
		SpeedKph:   in.SpeedKph,
		HeadingDeg: in.HeadingDeg,
		RecordedAt: s.clk.Now(),
	}
	if err := s.locations.Append(ctx, p); err != nil {
		return domain.LocationPoint{}, err
	}

	err = s.pub.Publish(ctx, events.Event{
		Type:       events.LocationRecorded,
		Topic:      events.ContractTopic(string(c.ID)),
		Payload:    p,
		OccurredAt: p.RecordedAt,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("contractId", string(c.ID)).Msg("realtime publish failed")
	}
	return p, nil
}

// GetLocations returns fixes recorded strictly after since.
func (s *Service) GetLocations(ctx context.Context, caller domain.Profile, id domain.ContractID, since time.Time) ([]domain.LocationPoint, error) {
	if _, err := s.visible(ctx, caller, id); err != nil {
		return nil, err
	}
	return s.locations.ListSince(ctx, id, since)
}

func (s *Service) Track(ctx context.Context, caller domain.Profile, id domain.ContractID) (Track, error) {
	c, err := s.visible(ctx, caller, id)
	if err != nil {
		return Track{}, err
	}
	pts, err := s.locations.ListSince(ctx, id, time.Time{})
	if err != nil {
		return Track{}, err
	}
	geo := make([]domain.GeoPoint, len(pts))
	for i, p := range pts {
		geo[i] = p.Point()
	}
	t := Track{
		ContractID: c.ID,
		Status:     c.Status,
		Points:     pts,
		Polyline:   domain.EncodePolyline(geo),
		DistanceKm: math.Round(domain.PathLengthKm(geo)*1000) / 1000,
	}
	if len(pts) > 0 {
		last := pts[len(pts)-1]
		t.Latest = &last
	}
	return t, nil
}

func (s *Service) visible(ctx context.Context, caller domain.Profile, id domain.ContractID) (domain.Contract, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return domain.Contract{}, err
	}
	if !c.Visible(caller) {
		return domain.Contract{}, apperr.NotFound("contract")
	}
	return c, nil
}

func (s *Service) load(ctx context.Context, id domain.ContractID) (domain.Contract, error) {
	if id == "" {
		return domain.Contract{}, apperr.Validation("contractId", "required")
	}
	c, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, contractrepo.ErrNotFound) {
			return domain.Contract{}, apperr.NotFound("contract")
		}
		return domain.Contract{}, err
	}
	return c, nil
}
