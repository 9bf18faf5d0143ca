package stats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memcontractrepo "github.com/skyporter/luggage-api/internal/adapters/memory/contractrepo"
	mempaymentrepo "github.com/skyporter/luggage-api/internal/adapters/memory/paymentrepo"
	"github.com/skyporter/luggage-api/internal/app/apperr"
	"github.com/skyporter/luggage-api/internal/domain"
)

func day(d int, h int) time.Time {
	return time.Date(2026, 3, d, h, 0, 0, 0, time.UTC)
}

func TestGranularity_Floor(t *testing.T) {
	t.Parallel()

	// 2026-03-05 is a Thursday.
	ts := time.Date(2026, 3, 5, 17, 30, 0, 0, time.UTC)
	tests := []struct {
		g    Granularity
		want time.Time
	}{
		{Day, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)},
		{Week, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{Month, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		assert.True(t, tt.want.Equal(tt.g.Floor(ts)), "%s: got %v", tt.g, tt.g.Floor(ts))
	}
	sunday := time.Date(2026, 3, 8, 23, 0, 0, 0, time.UTC)
	assert.True(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC).Equal(Week.Floor(sunday)))
}

type fixture struct {
	svc       *Service
	contracts *memcontractrepo.Repo
	payments  *mempaymentrepo.Repo
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{contracts: memcontractrepo.NewRepo(), payments: mempaymentrepo.NewRepo()}
	f.svc = NewService(f.contracts, f.payments)

	d1 := domain.ProfileID("d1")
	rows := []struct {
		contractor domain.ProfileID
		delivery   *domain.ProfileID
		status     domain.ContractStatus
		created    time.Time
	}{
		{"c1", &d1, domain.ContractStatusDelivered, day(2, 9)},
		{"c1", nil, domain.ContractStatusPending, day(2, 22)},
		{"c2", &d1, domain.ContractStatusInTransit, day(3, 10)},
		{"c1", nil, domain.ContractStatusCancelled, day(9, 10)},
		{"c2", nil, domain.ContractStatusPending, day(20, 10)},
	}
	ctx := context.Background()
	for i, r := range rows {
		id := domain.ContractID(fmt.Sprintf("k%d", i))
		require.NoError(t, f.contracts.Create(ctx, domain.Contract{
			ID:           id,
			ContractorID: r.contractor,
			DeliveryID:   r.delivery,
			Status:       r.status,
			TotalCents:   1000,
			Currency:     "USD",
			CreatedAt:    r.created,
			Luggage:      []domain.LuggageItem{{Quantity: 2}},
		}))
	}
	require.NoError(t, f.payments.Create(ctx, domain.Payment{ID: "p1", ContractID: "k0", AmountCents: 1000, Status: domain.PaymentStatusPaid, CreatedAt: day(3, 8)}))
	require.NoError(t, f.payments.Create(ctx, domain.Payment{ID: "p2", ContractID: "k2", AmountCents: 700, Status: domain.PaymentStatusPaid, CreatedAt: day(3, 12)}))
	require.NoError(t, f.payments.Create(ctx, domain.Payment{ID: "p3", ContractID: "k1", AmountCents: 500, Status: domain.PaymentStatusRefunded, CreatedAt: day(3, 13)}))
	return f
}

func TestService_GetStatsDaily(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	admin := domain.Profile{ID: "a", Role: domain.RoleAdmin}

	st, err := f.svc.GetStats(context.Background(), admin, Input{From: day(1, 0), To: day(10, 0), Bucket: Day})
	require.NoError(t, err)
	require.Len(t, st.Buckets, 9)

	sum := 0
	for _, b := range st.Buckets {
		sum += b.Contracts
	}
	assert.Equal(t, st.Totals.Contracts, sum)
	assert.Equal(t, 4, sum)

	assert.Equal(t, 2, st.Buckets[1].Contracts)
	assert.Equal(t, 1, st.Buckets[1].Delivered)
	assert.Equal(t, int64(1700), st.Buckets[2].RevenueCents, "refunded rows are excluded")
	assert.Equal(t, int64(1700), st.Totals.RevenueCents)
	assert.Equal(t, 8, st.Totals.Bags)
	assert.Equal(t, 1, st.Totals.ByStatus[domain.ContractStatusCancelled])
}

func TestService_GetStatsScopedByRole(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	in := Input{From: day(1, 0), To: day(31, 0), Bucket: Week}

	c1, err := f.svc.GetStats(ctx, domain.Profile{ID: "c1", Role: domain.RoleContractor}, in)
	require.NoError(t, err)
	assert.Equal(t, 3, c1.Totals.Contracts)
	assert.Equal(t, int64(1000), c1.Totals.RevenueCents)

	d1, err := f.svc.GetStats(ctx, domain.Profile{ID: "d1", Role: domain.RoleDelivery}, in)
	require.NoError(t, err)
	assert.Equal(t, 2, d1.Totals.Contracts)
	assert.Equal(t, int64(1700), d1.Totals.RevenueCents)

	sum := 0
	for _, b := range c1.Buckets {
		sum += b.Contracts
	}
	assert.Equal(t, c1.Totals.Contracts, sum)
}

func TestService_GetStatsMonthly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	st, err := f.svc.GetStats(context.Background(), domain.Profile{Role: domain.RoleAdmin}, Input{From: day(15, 0), To: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), Bucket: Month})
	require.NoError(t, err)
	require.Len(t, st.Buckets, 2)
	assert.True(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Equal(st.Buckets[0].Start))
	assert.Equal(t, 1, st.Buckets[0].Contracts)
}

func TestService_GetStatsValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	admin := domain.Profile{Role: domain.RoleAdmin}
	ctx := context.Background()

	tests := []Input{
		{From: day(5, 0), To: day(1, 0), Bucket: Day},
		{From: day(1, 0), To: day(5, 0), Bucket: "hour"},
		{From: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), To: day(1, 0), Bucket: Day},
	}
	for _, in := range tests {
		_, err := f.svc.GetStats(ctx, admin, in)
		ae, ok := apperr.As(err)
		require.True(t, ok, "%+v", in)
		assert.Equal(t, apperr.CodeValidation, ae.Code)
	}
}
