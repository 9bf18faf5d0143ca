package insights

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memcontractrepo "github.com/skyporter/luggage-api/internal/adapters/memory/contractrepo"
	mempaymentrepo "github.com/skyporter/luggage-api/internal/adapters/memory/paymentrepo"
	"github.com/skyporter/luggage-api/internal/app/stats"
	"github.com/skyporter/luggage-api/internal/domain"
)

type stubGenerator struct {
	text   string
	err    error
	prompt string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.text, g.err
}

var (
	admin = domain.Profile{ID: "a", Role: domain.RoleAdmin}
	from  = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to    = time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
)

func newStats(t *testing.T) *stats.Service {
	t.Helper()
	contracts := memcontractrepo.NewRepo()
	ctx := context.Background()
	require.NoError(t, contracts.Create(ctx, domain.Contract{ID: "k1", Status: domain.ContractStatusDelivered, TotalCents: 4250, CreatedAt: from.Add(26 * time.Hour), Luggage: []domain.LuggageItem{{Quantity: 3}}}))
	require.NoError(t, contracts.Create(ctx, domain.Contract{ID: "k2", Status: domain.ContractStatusCancelled, TotalCents: 1000, CreatedAt: from.Add(27 * time.Hour), Luggage: []domain.LuggageItem{{Quantity: 1}}}))
	return stats.NewService(contracts, mempaymentrepo.NewRepo())
}

func TestService_UsesGenerator(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{text: "  Bookings doubled.  "}
	svc := NewService(newStats(t), gen, zerolog.Nop())

	got, err := svc.Generate(context.Background(), admin, stats.Input{From: from, To: to, Bucket: stats.Day})
	require.NoError(t, err)
	assert.Equal(t, SourceModel, got.Source)
	assert.Equal(t, "Bookings doubled.", got.Text)
	assert.Contains(t, gen.prompt, "2 contracts, 4 bags, 52.50 booked")
	assert.Contains(t, gen.prompt, "cancelled 1, delivered 1")
	assert.Equal(t, 7, strings.Count(gen.prompt, "\n- "))
}

func TestService_FallsBackToSummary(t *testing.T) {
	t.Parallel()

	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{Name: "fallbacks"})
	tests := []struct {
		name string
		gen  *stubGenerator
	}{
		{"no generator", nil},
		{"generator error", &stubGenerator{err: errors.New("quota exceeded")}},
		{"empty text", &stubGenerator{text: "   "}},
	}
	for _, tt := range tests {
		svc := NewService(newStats(t), nil, zerolog.Nop(), WithFallbackCounter(fallbacks))
		if tt.gen != nil {
			svc.gen = tt.gen
		}
		got, err := svc.Generate(context.Background(), admin, stats.Input{From: from, To: to, Bucket: stats.Day})
		require.NoError(t, err, tt.name)
		assert.Equal(t, SourceSummary, got.Source, tt.name)
		assert.Contains(t, got.Text, "2 contracts covering 4 bags", tt.name)
		assert.Contains(t, got.Text, "50% of them have been delivered", tt.name)
		assert.Contains(t, got.Text, "1 were cancelled", tt.name)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(fallbacks))
}

func TestSummary_Empty(t *testing.T) {
	t.Parallel()

	got := Summary(stats.Stats{From: from, To: to, Bucket: stats.Day})
	assert.Equal(t, "No contracts were booked between Mar 1 and Mar 8, 2026.", got)
}
