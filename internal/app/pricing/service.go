// Package pricing manages pricing regions and quotes bookings against them.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/skyporter/luggage-api/internal/app/apperr"
	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/ports/out/contractrepo"
	"github.com/skyporter/luggage-api/internal/ports/out/pricingrepo"
)

var currencyRE = regexp.MustCompile(`^[A-Z]{3}$`)

type UpsertInput struct {
	// ID is empty to create a new region.
	ID           domain.PricingRegionID
	Name         string
	BaseFeeCents int64
	PerBagCents  int64
	PerKgCents   int64
	Currency     string
	Active       bool
}

type LuggageInput struct {
	TagNumber   string
	Description string
	WeightKg    float64
	Quantity    int
}

// Quote is a priced breakdown for a set of luggage items.
type Quote struct {
	RegionID     domain.PricingRegionID `json:"regionId"`
	Currency     string                 `json:"currency"`
	Bags         int                    `json:"bags"`
	BillableKg   int64                  `json:"billableKg"`
	BaseFeeCents int64                  `json:"baseFeeCents"`
	BagsCents    int64                  `json:"bagsCents"`
	WeightCents  int64                  `json:"weightCents"`
	TotalCents   int64                  `json:"totalCents"`
}

type Service struct {
	repo      pricingrepo.Repository
	contracts contractrepo.Repository

	newRegionID func() domain.PricingRegionID
}

func NewService(repo pricingrepo.Repository, contracts contractrepo.Repository) *Service {
	return &Service{
		repo:      repo,
		contracts: contracts,
		newRegionID: func() domain.PricingRegionID {
			return domain.PricingRegionID(uuid.NewString())
		},
	}
}

// ListPricing returns regions ordered by name. Only admins may see inactive regions.
func (s *Service) ListPricing(ctx context.Context, caller domain.Profile, includeInactive bool) ([]domain.PricingRegion, error) {
	if caller.Role != domain.RoleAdmin {
		includeInactive = false
	}
	return s.repo.List(ctx, includeInactive)
}

func (s *Service) UpsertPricing(ctx context.Context, in UpsertInput) (domain.PricingRegion, error) {
	name := domain.NormalizeHumanName(in.Name)
	details := map[string]any{}
	if name == "" {
		details["name"] = "must be non-empty"
	}
	if in.BaseFeeCents < 0 || in.BaseFeeCents > domain.MaxFeeCents {
		details["baseFeeCents"] = fmt.Sprintf("must be between 0 and %d", domain.MaxFeeCents)
	}
	if in.PerBagCents < 0 || in.PerBagCents > domain.MaxFeeCents {
		details["perBagCents"] = fmt.Sprintf("must be between 0 and %d", domain.MaxFeeCents)
	}
	if in.PerKgCents < 0 || in.PerKgCents > domain.MaxFeeCents {
		details["perKgCents"] = fmt.Sprintf("must be between 0 and %d", domain.MaxFeeCents)
	}
	currency := domain.NormalizeCode(in.Currency)
	if !currencyRE.MatchString(currency) {
		details["currency"] = "must be a 3-letter ISO code"
	}
	if len(details) > 0 {
		return domain.PricingRegion{}, apperr.ValidationFields(details)
	}

	id := in.ID
	if id == "" {
		id = s.newRegionID()
	} else if _, err := s.get(ctx, id); err != nil {
		return domain.PricingRegion{}, err
	}

	r := domain.PricingRegion{
		ID:           id,
		Name:         name,
		BaseFeeCents: in.BaseFeeCents,
		PerBagCents:  in.PerBagCents,
		PerKgCents:   in.PerKgCents,
		Currency:     currency,
		Active:       in.Active,
	}
	if err := s.repo.Upsert(ctx, r); err != nil {
		if errors.Is(err, pricingrepo.ErrNameTaken) {
			e := apperr.Conflict("pricing region name already in use")
			e.Details = map[string]any{"name": "already in use"}
			return domain.PricingRegion{}, e
		}
		return domain.PricingRegion{}, err
	}
	return r, nil
}

// DeletePricing removes a region unless contracts reference it; deactivate those instead.
func (s *Service) DeletePricing(ctx context.Context, id domain.PricingRegionID) error {
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	cs, err := s.contracts.List(ctx, contractrepo.Filter{RegionID: &id})
	if err != nil {
		return err
	}
	if len(cs) > 0 {
		return apperr.Conflict("pricing region is used by contracts; deactivate it instead")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, pricingrepo.ErrNotFound):
			return apperr.NotFound("pricing region")
		case errors.Is(err, pricingrepo.ErrInUse):
			return apperr.Conflict("pricing region is used by contracts; deactivate it instead")
		}
		return err
	}
	return nil
}

// QuotePrice prices luggage against an active region.
func (s *Service) QuotePrice(ctx context.Context, regionID domain.PricingRegionID, items []LuggageInput) (Quote, error) {
	r, err := s.ActiveRegion(ctx, regionID)
	if err != nil {
		return Quote{}, err
	}
	luggage, err := ValidateLuggage(items)
	if err != nil {
		return Quote{}, err
	}
	return Price(r, luggage), nil
}

// ActiveRegion loads a region and rejects inactive ones.
func (s *Service) ActiveRegion(ctx context.Context, id domain.PricingRegionID) (domain.PricingRegion, error) {
	if id == "" {
		return domain.PricingRegion{}, apperr.Validation("regionId", "required")
	}
	r, err := s.get(ctx, id)
	if err != nil {
		return domain.PricingRegion{}, err
	}
	if !r.Active {
		return domain.PricingRegion{}, apperr.Validation("regionId", "pricing region is inactive")
	}
	return r, nil
}

// Price builds the quote breakdown. TotalCents always equals r.Quote(items).
func Price(r domain.PricingRegion, items []domain.LuggageItem) Quote {
	bags := domain.BagCount(items)
	kg := domain.BillableKg(items)
	return Quote{
		RegionID:     r.ID,
		Currency:     r.Currency,
		Bags:         bags,
		BillableKg:   kg,
		BaseFeeCents: r.BaseFeeCents,
		BagsCents:    r.PerBagCents * int64(bags),
		WeightCents:  r.PerKgCents * kg,
		TotalCents:   r.Quote(items),
	}
}

// ValidateLuggage checks and normalizes booking items. At least one item is required.
func ValidateLuggage(items []LuggageInput) ([]domain.LuggageItem, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("luggage", "at least one item is required")
	}
	if len(items) > domain.MaxLuggageItems {
		return nil, apperr.Validation("luggage", fmt.Sprintf("at most %d items", domain.MaxLuggageItems))
	}
	details := map[string]any{}
	out := make([]domain.LuggageItem, 0, len(items))
	for i, it := range items {
		key := fmt.Sprintf("luggage[%d]", i)
		tag := domain.NormalizeCode(it.TagNumber)
		switch {
		case tag == "":
			details[key+".tagNumber"] = "must be non-empty"
		case math.IsNaN(it.WeightKg) || it.WeightKg <= 0 || it.WeightKg > domain.MaxItemWeightKg:
			details[key+".weightKg"] = fmt.Sprintf("must be > 0 and <= %d", domain.MaxItemWeightKg)
		case it.Quantity < 1 || it.Quantity > domain.MaxItemQuantity:
			details[key+".quantity"] = fmt.Sprintf("must be between 1 and %d", domain.MaxItemQuantity)
		}
		out = append(out, domain.LuggageItem{
			TagNumber:   tag,
			Description: strings.TrimSpace(it.Description),
			WeightKg:    it.WeightKg,
			Quantity:    it.Quantity,
		})
	}
	if len(details) > 0 {
		return nil, apperr.ValidationFields(details)
	}
	return out, nil
}

func (s *Service) get(ctx context.Context, id domain.PricingRegionID) (domain.PricingRegion, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pricingrepo.ErrNotFound) {
			return domain.PricingRegion{}, apperr.NotFound("pricing region")
		}
		return domain.PricingRegion{}, err
	}
	return r, nil
}
