package pricing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memcontractrepo "github.com/skyporter/luggage-api/internal/adapters/memory/contractrepo"
	mempricingrepo "github.com/skyporter/luggage-api/internal/adapters/memory/pricingrepo"
	"github.com/skyporter/luggage-api/internal/app/apperr"
	"github.com/skyporter/luggage-api/internal/domain"
)

var (
	admin      = domain.Profile{ID: "a", Role: domain.RoleAdmin}
	contractor = domain.Profile{ID: "c", Role: domain.RoleContractor}
)

func newService() (*Service, *memcontractrepo.Repo) {
	contracts := memcontractrepo.NewRepo()
	return NewService(mempricingrepo.NewRepo(), contracts), contracts
}

func code(err error) string {
	if ae, ok := apperr.As(err); ok {
		return ae.Code
	}
	return ""
}

func TestService_UpsertAndList(t *testing.T) {
	t.Parallel()

	svc, _ := newService()
	ctx := context.Background()

	r, err := svc.UpsertPricing(ctx, UpsertInput{Name: " JFK  Terminal ", BaseFeeCents: 1000, PerBagCents: 250, PerKgCents: 10, Currency: "usd", Active: true})
	require.NoError(t, err)
	assert.Equal(t, "JFK Terminal", r.Name)
	assert.Equal(t, "USD", r.Currency)
	assert.NotEmpty(t, r.ID)

	_, err = svc.UpsertPricing(ctx, UpsertInput{Name: "Legacy", Currency: "USD", Active: false})
	require.NoError(t, err)

	_, err = svc.UpsertPricing(ctx, UpsertInput{Name: "jfk terminal", Currency: "USD"})
	assert.Equal(t, apperr.CodeConflict, code(err))

	_, err = svc.UpsertPricing(ctx, UpsertInput{ID: "missing", Name: "X", Currency: "USD"})
	assert.Equal(t, apperr.CodeNotFound, code(err))

	all, _ := svc.ListPricing(ctx, admin, true)
	assert.Len(t, all, 2)
	visible, _ := svc.ListPricing(ctx, contractor, true)
	assert.Len(t, visible, 1, "non-admins never see inactive regions")
}

func TestService_UpsertValidation(t *testing.T) {
	t.Parallel()

	svc, _ := newService()
	_, err := svc.UpsertPricing(context.Background(), UpsertInput{Name: "", BaseFeeCents: -1, Currency: "dollars"})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, ae.Details, "name")
	assert.Contains(t, ae.Details, "baseFeeCents")
	assert.Contains(t, ae.Details, "currency")
}

func TestService_QuotePrice(t *testing.T) {
	t.Parallel()

	svc, _ := newService()
	ctx := context.Background()
	r, err := svc.UpsertPricing(ctx, UpsertInput{Name: "LAX", BaseFeeCents: 1000, PerBagCents: 250, PerKgCents: 10, Currency: "USD", Active: true})
	require.NoError(t, err)

	q, err := svc.QuotePrice(ctx, r.ID, []LuggageInput{
		{TagNumber: "ab1", WeightKg: 12.5, Quantity: 2},
		{TagNumber: "ab2", WeightKg: 0.2, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, q.Bags)
	assert.Equal(t, int64(26), q.BillableKg)
	assert.Equal(t, int64(1000+3*250+26*10), q.TotalCents)
	assert.Equal(t, q.BaseFeeCents+q.BagsCents+q.WeightCents, q.TotalCents)

	_, err = svc.QuotePrice(ctx, r.ID, nil)
	assert.Equal(t, apperr.CodeValidation, code(err))
	_, err = svc.QuotePrice(ctx, r.ID, []LuggageInput{{TagNumber: "x", WeightKg: 0, Quantity: 1}})
	assert.Equal(t, apperr.CodeValidation, code(err))
}

func TestService_QuoteRejectsInactiveRegion(t *testing.T) {
	t.Parallel()

	svc, _ := newService()
	ctx := context.Background()
	r, _ := svc.UpsertPricing(ctx, UpsertInput{Name: "Closed", Currency: "EUR", Active: false})

	_, err := svc.QuotePrice(ctx, r.ID, []LuggageInput{{TagNumber: "x", WeightKg: 1, Quantity: 1}})
	assert.Equal(t, apperr.CodeValidation, code(err))
}

func TestService_DeletePricing(t *testing.T) {
	t.Parallel()

	svc, contracts := newService()
	ctx := context.Background()
	used, _ := svc.UpsertPricing(ctx, UpsertInput{Name: "Used", Currency: "USD", Active: true})
	free, _ := svc.UpsertPricing(ctx, UpsertInput{Name: "Free", Currency: "USD", Active: true})
	require.NoError(t, contracts.Create(ctx, domain.Contract{ID: "k1", RegionID: used.ID, Status: domain.ContractStatusPending}))

	assert.Equal(t, apperr.CodeConflict, code(svc.DeletePricing(ctx, used.ID)))
	require.NoError(t, svc.DeletePricing(ctx, free.ID))
	assert.Equal(t, apperr.CodeNotFound, code(svc.DeletePricing(ctx, free.ID)))
}

func TestService_LuggageBounds(t *testing.T) {
	t.Parallel()

	svc, _ := newService()
	ctx := context.Background()
	r, err := svc.UpsertPricing(ctx, UpsertInput{Name: "SEA", BaseFeeCents: 1500, PerBagCents: 700, PerKgCents: 100, Currency: "USD", Active: true})
	require.NoError(t, err)

	for name, it := range map[string]LuggageInput{
		"huge weight":   {TagNumber: "x", WeightKg: 1e20, Quantity: 1},
		"heavy bag":     {TagNumber: "x", WeightKg: domain.MaxItemWeightKg + 0.5, Quantity: 1},
		"huge quantity": {TagNumber: "x", WeightKg: 1, Quantity: 1 << 40},
		"many bags":     {TagNumber: "x", WeightKg: 1, Quantity: domain.MaxItemQuantity + 1},
	} {
		_, err := svc.QuotePrice(ctx, r.ID, []LuggageInput{it})
		assert.Equal(t, apperr.CodeValidation, code(err), name)
	}

	tooMany := make([]LuggageInput, domain.MaxLuggageItems+1)
	for i := range tooMany {
		tooMany[i] = LuggageInput{TagNumber: "x", WeightKg: 1, Quantity: 1}
	}
	_, err = svc.QuotePrice(ctx, r.ID, tooMany)
	assert.Equal(t, apperr.CodeValidation, code(err))

	_, err = svc.UpsertPricing(ctx, UpsertInput{Name: "Gouge", PerKgCents: domain.MaxFeeCents + 1, Currency: "USD", Active: true})
	assert.Equal(t, apperr.CodeValidation, code(err))
}

func TestService_QuoteAtLimitsStaysExact(t *testing.T) {
	t.Parallel()

	svc, _ := newService()
	ctx := context.Background()
	r, err := svc.UpsertPricing(ctx, UpsertInput{
		Name: "Max", BaseFeeCents: domain.MaxFeeCents, PerBagCents: domain.MaxFeeCents, PerKgCents: domain.MaxFeeCents,
		Currency: "USD", Active: true,
	})
	require.NoError(t, err)

	items := make([]LuggageInput, domain.MaxLuggageItems)
	for i := range items {
		items[i] = LuggageInput{TagNumber: "x", WeightKg: domain.MaxItemWeightKg, Quantity: domain.MaxItemQuantity}
	}
	q, err := svc.QuotePrice(ctx, r.ID, items)
	require.NoError(t, err)

	bags := int64(domain.MaxLuggageItems * domain.MaxItemQuantity)
	kg := bags * domain.MaxItemWeightKg
	assert.Equal(t, kg, q.BillableKg)
	assert.Equal(t, int64(domain.MaxFeeCents)*(1+bags+kg), q.TotalCents)
	assert.Positive(t, q.TotalCents)
}
