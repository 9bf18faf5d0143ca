// Package invoices assembles invoice and receipt documents for contracts.
package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/skyporter/luggage-api/internal/app/apperr"
	"github.com/skyporter/luggage-api/internal/domain"
	clockport "github.com/skyporter/luggage-api/internal/ports/out/clock"
	"github.com/skyporter/luggage-api/internal/ports/out/contractrepo"
	"github.com/skyporter/luggage-api/internal/ports/out/invoices"
	"github.com/skyporter/luggage-api/internal/ports/out/paymentrepo"
	"github.com/skyporter/luggage-api/internal/ports/out/pricingrepo"
	"github.com/skyporter/luggage-api/internal/ports/out/profilerepo"
)

type Service struct {
	contracts contractrepo.Repository
	profiles  profilerepo.Repository
	pricing   pricingrepo.Repository
	payments  paymentrepo.Repository
	renderer  invoices.Renderer
	clk       clockport.Clock
}

func NewService(
	contracts contractrepo.Repository,
	profiles profilerepo.Repository,
	pricing pricingrepo.Repository,
	payments paymentrepo.Repository,
	renderer invoices.Renderer,
	clk clockport.Clock,
) *Service {
	return &Service{
		contracts: contracts,
		profiles:  profiles,
		pricing:   pricing,
		payments:  payments,
		renderer:  renderer,
		clk:       clk,
	}
}

// Document builds the printable view of a contract. A contract whose payments cover
// its total is a receipt; anything else is an invoice.
func (s *Service) Document(ctx context.Context, caller domain.Profile, id domain.ContractID) (invoices.Document, error) {
	c, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, contractrepo.ErrNotFound) {
			return invoices.Document{}, apperr.NotFound("contract")
		}
		return invoices.Document{}, err
	}
	switch caller.Role {
	case domain.RoleAdmin:
	case domain.RoleContractor:
		if c.ContractorID != caller.ID {
			return invoices.Document{}, apperr.NotFound("contract")
		}
	default:
		return invoices.Document{}, apperr.Forbidden("only admins and the booking contractor can download invoices")
	}
	if c.Status == domain.ContractStatusCancelled {
		return invoices.Document{}, apperr.Conflict("cancelled contracts have no invoice")
	}

	contractor, err := s.profiles.GetByID(ctx, c.ContractorID)
	if err != nil && !errors.Is(err, profilerepo.ErrNotFound) {
		return invoices.Document{}, err
	}
	region, err := s.pricing.GetByID(ctx, c.RegionID)
	if err != nil && !errors.Is(err, pricingrepo.ErrNotFound) {
		return invoices.Document{}, err
	}
	ps, err := s.payments.ListByContract(ctx, c.ID)
	if err != nil {
		return invoices.Document{}, err
	}

	d := invoices.Document{
		Kind:       invoices.KindInvoice,
		Number:     Number(c),
		IssuedAt:   s.clk.Now(),
		Contract:   c,
		Contractor: contractor,
		Region:     region,
		Payments:   ps,
		PaidCents:  domain.PaidCents(ps),
	}
	if c.TotalCents > 0 && d.PaidCents >= c.TotalCents {
		d.Kind = invoices.KindReceipt
	}
	return d, nil
}

// Render returns the PDF bytes and a download file name.
func (s *Service) Render(ctx context.Context, caller domain.Profile, id domain.ContractID) ([]byte, string, error) {
	d, err := s.Document(ctx, caller, id)
	if err != nil {
		return nil, "", err
	}
	pdf, err := s.renderer.Render(d)
	if err != nil {
		return nil, "", fmt.Errorf("render %s %s: %w", d.Kind, d.Number, err)
	}
	return pdf, fmt.Sprintf("%s-%s.pdf", d.Kind, d.Number), nil
}

// Number derives a stable document number from the booking date and contract id.
func Number(c domain.Contract) string {
	short := strings.ToUpper(strings.ReplaceAll(string(c.ID), "-", ""))
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("LG-%s-%s", c.CreatedAt.UTC().Format("20060102"), short)
}
