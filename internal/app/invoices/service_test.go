package invoices

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memclock "github.com/skyporter/luggage-api/internal/adapters/memory/clock"
	memcontractrepo "github.com/skyporter/luggage-api/internal/adapters/memory/contractrepo"
	mempaymentrepo "github.com/skyporter/luggage-api/internal/adapters/memory/paymentrepo"
	mempricingrepo "github.com/skyporter/luggage-api/internal/adapters/memory/pricingrepo"
	memprofilerepo "github.com/skyporter/luggage-api/internal/adapters/memory/profilerepo"
	"github.com/skyporter/luggage-api/internal/app/apperr"
	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/ports/out/invoices"
)

type fakeRenderer struct {
	got invoices.Document
	err error
}

func (r *fakeRenderer) Render(d invoices.Document) ([]byte, error) {
	r.got = d
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.3"), nil
}

type fixture struct {
	svc      *Service
	payments *mempaymentrepo.Repo
	renderer *fakeRenderer
}

var (
	admin      = domain.Profile{ID: "a", Role: domain.RoleAdmin}
	contractor = domain.Profile{ID: "c1", Subject: "sub-c1", Role: domain.RoleContractor, FullName: "Ada", Email: "ada@x.io"}
	other      = domain.Profile{ID: "c2", Role: domain.RoleContractor}
	driver     = domain.Profile{ID: "d1", Role: domain.RoleDelivery}
)

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	contracts := memcontractrepo.NewRepo()
	profiles := memprofilerepo.NewRepo()
	pricing := mempricingrepo.NewRepo()
	payments := mempaymentrepo.NewRepo()

	require.NoError(t, profiles.Create(ctx, contractor))
	require.NoError(t, pricing.Upsert(ctx, domain.PricingRegion{ID: "r1", Name: "JFK", Currency: "USD", Active: true}))
	d := driver.ID
	require.NoError(t, contracts.Create(ctx, domain.Contract{
		ID: "0f8c2a4e-1111-2222-3333-444455556666", ContractorID: contractor.ID, DeliveryID: &d, RegionID: "r1",
		Status: domain.ContractStatusDelivered, TotalCents: 3000, Currency: "USD",
		CreatedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, contracts.Create(ctx, domain.Contract{ID: "k-cancelled", ContractorID: contractor.ID, Status: domain.ContractStatusCancelled}))

	r := &fakeRenderer{}
	clk := memclock.NewManualClock(time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	return fixture{svc: NewService(contracts, profiles, pricing, payments, r, clk), payments: payments, renderer: r}
}

const contractID = domain.ContractID("0f8c2a4e-1111-2222-3333-444455556666")

func code(err error) string {
	if ae, ok := apperr.As(err); ok {
		return ae.Code
	}
	return ""
}

func TestService_InvoiceThenReceipt(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.Document(ctx, contractor, contractID)
	require.NoError(t, err)
	assert.Equal(t, invoices.KindInvoice, d.Kind)
	assert.Equal(t, "LG-20260302-0F8C2A4E", d.Number)
	assert.Equal(t, "Ada", d.Contractor.FullName)
	assert.Equal(t, "JFK", d.Region.Name)
	assert.Equal(t, int64(3000), d.DueCents())

	require.NoError(t, f.payments.Create(ctx, domain.Payment{ID: "p1", ContractID: contractID, AmountCents: 1000, Status: domain.PaymentStatusPaid}))
	require.NoError(t, f.payments.Create(ctx, domain.Payment{ID: "p2", ContractID: contractID, AmountCents: 2000, Status: domain.PaymentStatusPaid}))

	pdf, name, err := f.svc.Render(ctx, admin, contractID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(pdf))
	assert.Equal(t, "receipt-LG-20260302-0F8C2A4E.pdf", name)
	assert.Equal(t, invoices.KindReceipt, f.renderer.got.Kind)
	assert.Zero(t, f.renderer.got.DueCents())
}

func TestService_DocumentAccess(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Document(ctx, other, contractID)
	assert.Equal(t, apperr.CodeNotFound, code(err))
	_, err = f.svc.Document(ctx, driver, contractID)
	assert.Equal(t, apperr.CodeForbidden, code(err))
	_, err = f.svc.Document(ctx, admin, "missing")
	assert.Equal(t, apperr.CodeNotFound, code(err))
	_, err = f.svc.Document(ctx, contractor, "k-cancelled")
	assert.Equal(t, apperr.CodeConflict, code(err))
}

func TestService_RenderError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.renderer.err = errors.New("font missing")
	_, _, err := f.svc.Render(context.Background(), admin, contractID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "font missing")
}
