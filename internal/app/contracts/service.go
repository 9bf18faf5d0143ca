// Package contracts books luggage deliveries and drives them through their lifecycle.
package contracts

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skyporter/luggage-api/internal/app/apperr"
	"github.com/skyporter/luggage-api/internal/app/pricing"
	"github.com/skyporter/luggage-api/internal/domain"
	clockport "github.com/skyporter/luggage-api/internal/ports/out/clock"
	"github.com/skyporter/luggage-api/internal/ports/out/contractrepo"
	"github.com/skyporter/luggage-api/internal/ports/out/events"
	"github.com/skyporter/luggage-api/internal/ports/out/profilerepo"
)

type Service struct {
	repo     contractrepo.Repository
	profiles profilerepo.Repository
	pricing  *pricing.Service
	pub      events.Publisher
	clk      clockport.Clock
	log      zerolog.Logger

	newID func() string
}

func NewService(repo contractrepo.Repository, profiles profilerepo.Repository, pricingSvc *pricing.Service, pub events.Publisher, clk clockport.Clock, log zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		repo:     repo,
		profiles: profiles,
		pricing:  pricingSvc,
		pub:      pub,
		clk:      clk,
		log:      log,
		newID:    uuid.NewString,
	}
}

// Book creates a pending contract for a contractor. The total is the region's quote
// for the submitted luggage.
func (s *Service) Book(ctx context.Context, caller domain.Profile, in BookInput) (domain.Contract, error) {
	if caller.Role != domain.RoleContractor {
		return domain.Contract{}, apperr.Forbidden("only contractors can book contracts")
	}

	details := map[string]any{}
	airline := domain.NormalizeHumanName(in.Airline)
	if airline == "" {
		details["airline"] = "must be non-empty"
	}
	flight := domain.NormalizeFlightNumber(in.FlightNumber)
	if flight == "" {
		details["flightNumber"] = "must be non-empty"
	}
	passenger := domain.NormalizeHumanName(in.PassengerName)
	if passenger == "" {
		details["passengerName"] = "must be non-empty"
	}
	pickup := strings.TrimSpace(in.PickupAddress)
	if pickup == "" {
		details["pickupAddress"] = "must be non-empty"
	}
	dropoff := strings.TrimSpace(in.DropoffAddress)
	if dropoff == "" {
		details["dropoffAddress"] = "must be non-empty"
	}
	if in.Pickup != nil && !domain.ValidCoordinates(in.Pickup.Lat, in.Pickup.Lng) {
		details["pickup"] = "coordinates out of range"
	}
	if in.Dropoff != nil && !domain.ValidCoordinates(in.Dropoff.Lat, in.Dropoff.Lng) {
		details["dropoff"] = "coordinates out of range"
	}
	if in.ScheduledAt.IsZero() {
		details["scheduledAt"] = "required"
	}
	if len(details) > 0 {
		return domain.Contract{}, apperr.ValidationFields(details)
	}

	region, err := s.pricing.ActiveRegion(ctx, in.RegionID)
	if err != nil {
		return domain.Contract{}, err
	}
	luggage, err := pricing.ValidateLuggage(in.Luggage)
	if err != nil {
		return domain.Contract{}, err
	}
	quote := pricing.Price(region, luggage)

	now := s.clk.Now()
	c := domain.Contract{
		ID:             domain.ContractID(s.newID()),
		ContractorID:   caller.ID,
		RegionID:       region.ID,
		Airline:        airline,
		FlightNumber:   flight,
		PassengerName:  passenger,
		PassengerPhone: trimmedOrNil(in.PassengerPhone),
		PickupAddress:  pickup,
		DropoffAddress: dropoff,
		Pickup:         in.Pickup,
		Dropoff:        in.Dropoff,
		ScheduledAt:    in.ScheduledAt.UTC(),
		Status:         domain.ContractStatusPending,
		TotalCents:     quote.TotalCents,
		Currency:       quote.Currency,
		Notes:          trimmedOrNil(in.Notes),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for i := range luggage {
		luggage[i].ID = domain.LuggageItemID(s.newID())
		luggage[i].ContractID = c.ID
	}
	c.Luggage = luggage

	if err := s.repo.Create(ctx, c); err != nil {
		return domain.Contract{}, err
	}
	s.log.Info().Str("contractId", string(c.ID)).Str("contractorId", string(caller.ID)).
		Int("bags", c.BagCount()).Int64("totalCents", c.TotalCents).Msg("contract booked")
	s.publish(ctx, c)
	return c, nil
}

// Get returns a contract visible to the caller. Invisible contracts look missing.
func (s *Service) Get(ctx context.Context, caller domain.Profile, id domain.ContractID) (domain.Contract, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return domain.Contract{}, err
	}
	if !c.Visible(caller) {
		return domain.Contract{}, apperr.NotFound("contract")
	}
	return c, nil
}

// List returns the caller's contracts: everything for admins, own bookings for
// contractors, own assignments for delivery personnel.
func (s *Service) List(ctx context.Context, caller domain.Profile, in ListInput) ([]domain.Contract, error) {
	var f contractrepo.Filter
	switch caller.Role {
	case domain.RoleAdmin:
	case domain.RoleContractor:
		id := caller.ID
		f.ContractorID = &id
	case domain.RoleDelivery:
		id := caller.ID
		f.DeliveryID = &id
	default:
		return nil, apperr.Forbidden("unknown role")
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperr.Validation("status", "unknown status")
		}
		f.Statuses = []domain.ContractStatus{*in.Status}
	}
	return s.repo.List(ctx, f)
}

// GetAvailable lists pending contracts nobody has picked up yet.
func (s *Service) GetAvailable(ctx context.Context) ([]domain.Contract, error) {
	return s.repo.List(ctx, contractrepo.Filter{
		Statuses:   []domain.ContractStatus{domain.ContractStatusPending},
		Unassigned: true,
	})
}

// Assign moves a pending contract to assigned.
func (s *Service) Assign(ctx context.Context, caller domain.Profile, in AssignInput) (domain.Contract, error) {
	var deliveryID domain.ProfileID
	switch caller.Role {
	case domain.RoleDelivery:
		if in.DeliveryID != nil && *in.DeliveryID != caller.ID {
			return domain.Contract{}, apperr.Forbidden("delivery personnel can only assign themselves")
		}
		deliveryID = caller.ID
	case domain.RoleAdmin:
		if in.DeliveryID == nil || *in.DeliveryID == "" {
			return domain.Contract{}, apperr.Validation("deliveryId", "required")
		}
		p, err := s.profiles.GetByID(ctx, *in.DeliveryID)
		if err != nil {
			if errors.Is(err, profilerepo.ErrNotFound) {
				return domain.Contract{}, apperr.NotFound("delivery profile")
			}
			return domain.Contract{}, err
		}
		if p.Role != domain.RoleDelivery {
			return domain.Contract{}, apperr.Validation("deliveryId", "profile is not a delivery person")
		}
		if p.Status != domain.ProfileStatusActive {
			return domain.Contract{}, apperr.Validation("deliveryId", "profile is not active")
		}
		deliveryID = p.ID
	default:
		return domain.Contract{}, apperr.Forbidden("cannot assign contracts")
	}

	c, err := s.load(ctx, in.ContractID)
	if err != nil {
		return domain.Contract{}, err
	}
	if c.Status != domain.ContractStatusPending || c.DeliveryID != nil {
		return domain.Contract{}, apperr.InvalidTransition(string(c.Status), string(domain.ContractStatusAssigned))
	}

	prev := c.Status
	c.DeliveryID = &deliveryID
	c.Status = domain.ContractStatusAssigned
	return s.save(ctx, c, prev)
}

// UpdateStatus applies a lifecycle transition the caller is allowed to make.
// Admins may make any legal transition. Delivery personnel advance their own
// assignments or hand them back. Contractors may only cancel their own bookings.
func (s *Service) UpdateStatus(ctx context.Context, caller domain.Profile, in StatusInput) (domain.Contract, error) {
	if !in.Status.Valid() {
		return domain.Contract{}, apperr.Validation("status", "unknown status")
	}
	if in.Status == domain.ContractStatusAssigned {
		return domain.Contract{}, apperr.Validation("status", "use assignContract to assign a delivery person")
	}

	c, err := s.load(ctx, in.ContractID)
	if err != nil {
		return domain.Contract{}, err
	}

	switch caller.Role {
	case domain.RoleAdmin:
	case domain.RoleDelivery:
		if c.DeliveryID == nil || *c.DeliveryID != caller.ID {
			return domain.Contract{}, apperr.Forbidden("contract is not assigned to you")
		}
		if in.Status == domain.ContractStatusCancelled {
			return domain.Contract{}, apperr.Forbidden("delivery personnel cannot cancel contracts")
		}
	case domain.RoleContractor:
		if c.ContractorID != caller.ID {
			return domain.Contract{}, apperr.NotFound("contract")
		}
		if in.Status != domain.ContractStatusCancelled {
			return domain.Contract{}, apperr.Forbidden("contractors can only cancel contracts")
		}
	default:
		return domain.Contract{}, apperr.Forbidden("cannot update contracts")
	}

	if !c.Status.CanTransitionTo(in.Status) {
		return domain.Contract{}, apperr.InvalidTransition(string(c.Status), string(in.Status))
	}

	prev := c.Status
	c.Status = in.Status
	if in.Status == domain.ContractStatusPending {
		c.DeliveryID = nil
	}
	return s.save(ctx, c, prev)
}

func (s *Service) load(ctx context.Context, id domain.ContractID) (domain.Contract, error) {
	if id == "" {
		return domain.Contract{}, apperr.Validation("contractId", "required")
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, contractrepo.ErrNotFound) {
			return domain.Contract{}, apperr.NotFound("contract")
		}
		return domain.Contract{}, err
	}
	return c, nil
}

func (s *Service) save(ctx context.Context, c domain.Contract, expected domain.ContractStatus) (domain.Contract, error) {
	c.UpdatedAt = s.clk.Now()
	if err := s.repo.Save(ctx, c, expected); err != nil {
		switch {
		case errors.Is(err, contractrepo.ErrConflict):
			return domain.Contract{}, apperr.Conflict("contract was updated concurrently; reload and retry")
		case errors.Is(err, contractrepo.ErrNotFound):
			return domain.Contract{}, apperr.NotFound("contract")
		}
		return domain.Contract{}, err
	}
	s.log.Info().Str("contractId", string(c.ID)).Str("from", string(expected)).Str("to", string(c.Status)).Msg("contract status changed")
	s.publish(ctx, c)
	return c, nil
}

func (s *Service) publish(ctx context.Context, c domain.Contract) {
	err := s.pub.Publish(ctx, events.Event{
		Type:       events.ContractUpdated,
		Topic:      events.ContractTopic(string(c.ID)),
		Payload:    c,
		OccurredAt: s.clk.Now(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("contractId", string(c.ID)).Msg("realtime publish failed")
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
