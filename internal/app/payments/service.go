// Package payments keeps the per-contract payments ledger.
package payments

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skyporter/luggage-api/internal/app/apperr"
	"github.com/skyporter/luggage-api/internal/domain"
	clockport "github.com/skyporter/luggage-api/internal/ports/out/clock"
	"github.com/skyporter/luggage-api/internal/ports/out/contractrepo"
	"github.com/skyporter/luggage-api/internal/ports/out/paymentrepo"
)

type RecordInput struct {
	ContractID  domain.ContractID
	AmountCents int64
	Currency    string
	Method      domain.PaymentMethod
	Status      domain.PaymentStatus
	Reference   *string
}

type Service struct {
	repo      paymentrepo.Repository
	contracts contractrepo.Repository
	clk       clockport.Clock
	log       zerolog.Logger

	newPaymentID func() domain.PaymentID
}

func NewService(repo paymentrepo.Repository, contracts contractrepo.Repository, clk clockport.Clock, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		contracts: contracts,
		clk:       clk,
		log:       log,
		newPaymentID: func() domain.PaymentID {
			return domain.PaymentID(uuid.NewString())
		},
	}
}

// RecordPayment appends a ledger row. Currency defaults to, and must match, the contract's.
func (s *Service) RecordPayment(ctx context.Context, in RecordInput) (domain.Payment, error) {
	c, err := s.contract(ctx, in.ContractID)
	if err != nil {
		return domain.Payment{}, err
	}

	details := map[string]any{}
	if in.AmountCents <= 0 {
		details["amountCents"] = "must be > 0"
	}
	currency := domain.NormalizeCode(in.Currency)
	if currency == "" {
		currency = c.Currency
	}
	if currency != c.Currency {
		details["currency"] = "must match the contract currency " + c.Currency
	}
	if !in.Method.Valid() {
		details["method"] = "unknown payment method"
	}
	status := in.Status
	if status == "" {
		status = domain.PaymentStatusPaid
	}
	if !status.Valid() {
		details["status"] = "unknown payment status"
	}
	if len(details) > 0 {
		return domain.Payment{}, apperr.ValidationFields(details)
	}

	now := s.clk.Now()
	p := domain.Payment{
		ID:          s.newPaymentID(),
		ContractID:  c.ID,
		AmountCents: in.AmountCents,
		Currency:    currency,
		Method:      in.Method,
		Status:      status,
		CreatedAt:   now,
	}
	if in.Reference != nil {
		if ref := strings.TrimSpace(*in.Reference); ref != "" {
			p.Reference = &ref
		}
	}
	if status == domain.PaymentStatusPaid {
		p.PaidAt = &now
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return domain.Payment{}, err
	}
	s.log.Info().Str("contractId", string(c.ID)).Int64("amountCents", p.AmountCents).Str("status", string(p.Status)).Msg("payment recorded")
	return p, nil
}

// GetPayments lists payments visible to the caller, oldest first. Contractors only see
// payments against their own contracts.
func (s *Service) GetPayments(ctx context.Context, caller domain.Profile, contractID *domain.ContractID) ([]domain.Payment, error) {
	if contractID != nil {
		c, err := s.contract(ctx, *contractID)
		if err != nil {
			return nil, err
		}
		if caller.Role != domain.RoleAdmin && c.ContractorID != caller.ID {
			return nil, apperr.NotFound("contract")
		}
		return s.repo.ListByContract(ctx, c.ID)
	}

	switch caller.Role {
	case domain.RoleAdmin:
		return s.repo.ListBetween(ctx, time.Time{}, s.clk.Now().Add(time.Nanosecond))
	case domain.RoleContractor:
		id := caller.ID
		cs, err := s.contracts.List(ctx, contractrepo.Filter{ContractorID: &id})
		if err != nil {
			return nil, err
		}
		out := make([]domain.Payment, 0)
		for _, c := range cs {
			ps, err := s.repo.ListByContract(ctx, c.ID)
			if err != nil {
				return nil, err
			}
			out = append(out, ps...)
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		return out, nil
	default:
		return nil, apperr.Forbidden("cannot view payments")
	}
}

// Ledger returns a contract's payments with the amount currently paid.
func (s *Service) Ledger(ctx context.Context, id domain.ContractID) ([]domain.Payment, int64, error) {
	ps, err := s.repo.ListByContract(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return ps, domain.PaidCents(ps), nil
}

func (s *Service) contract(ctx context.Context, id domain.ContractID) (domain.Contract, error) {
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
