// Package insights turns dashboard statistics into a short narrative.
package insights

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/skyporter/luggage-api/internal/app/stats"
	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/ports/out/insights"
)

const (
	SourceModel   = "gemini"
	SourceSummary = "summary"
)

type Insight struct {
	Text   string      `json:"text"`
	Source string      `json:"source"`
	Stats  stats.Stats `json:"stats"`
}

type Service struct {
	stats     *stats.Service
	gen       insights.Generator
	log       zerolog.Logger
	fallbacks prometheus.Counter
}

type Option func(*Service)

// WithFallbackCounter counts insights served from the local summary.
func WithFallbackCounter(c prometheus.Counter) Option {
	return func(s *Service) { s.fallbacks = c }
}

// NewService wires the generator. A nil generator always serves the local summary.
func NewService(statsSvc *stats.Service, gen insights.Generator, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{stats: statsSvc, gen: gen, log: log}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Generate(ctx context.Context, caller domain.Profile, in stats.Input) (Insight, error) {
	st, err := s.stats.GetStats(ctx, caller, in)
	if err != nil {
		return Insight{}, err
	}

	if s.gen != nil {
		text, err := s.gen.Generate(ctx, Prompt(caller.Role, st))
		if err == nil && strings.TrimSpace(text) != "" {
			return Insight{Text: strings.TrimSpace(text), Source: SourceModel, Stats: st}, nil
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("insight generation failed; serving summary")
		}
	}
	if s.fallbacks != nil {
		s.fallbacks.Inc()
	}
	return Insight{Text: Summary(st), Source: SourceSummary, Stats: st}, nil
}

// Prompt renders the statistics as model instructions.
func Prompt(role domain.Role, st stats.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an operations analyst for a luggage delivery platform. The reader is a %s.\n", role)
	b.WriteString("Write three short sentences: the overall trend, one notable change, and one practical recommendation. ")
	b.WriteString("Do not invent numbers that are not in the data.\n\n")
	fmt.Fprintf(&b, "Period: %s to %s, bucketed by %s.\n", st.From.Format("2006-01-02"), st.To.Format("2006-01-02"), st.Bucket)
	fmt.Fprintf(&b, "Totals: %d contracts, %d bags, %s booked, %s collected.\n",
		st.Totals.Contracts, st.Totals.Bags, cents(st.Totals.BookedCents), cents(st.Totals.RevenueCents))
	if len(st.Totals.ByStatus) > 0 {
		b.WriteString("By status: ")
		b.WriteString(statusLine(st.Totals.ByStatus))
		b.WriteString(".\n")
	}
	b.WriteString("Buckets (start, contracts, delivered, cancelled, collected):\n")
	for _, bk := range st.Buckets {
		fmt.Fprintf(&b, "- %s, %d, %d, %d, %s\n", bk.Start.Format("2006-01-02"), bk.Contracts, bk.Delivered, bk.Cancelled, cents(bk.RevenueCents))
	}
	return b.String()
}

// Summary is the deterministic narrative used without a model.
func Summary(st stats.Stats) string {
	if st.Totals.Contracts == 0 {
		return fmt.Sprintf("No contracts were booked between %s and %s.", st.From.Format("Jan 2"), st.To.Format("Jan 2, 2006"))
	}

	busiest := st.Buckets[0]
	for _, bk := range st.Buckets[1:] {
		if bk.Contracts > busiest.Contracts {
			busiest = bk
		}
	}
	delivered := st.Totals.ByStatus[domain.ContractStatusDelivered]
	rate := 100 * float64(delivered) / float64(st.Totals.Contracts)

	parts := []string{
		fmt.Sprintf("%d contracts covering %d bags were booked between %s and %s, with %s collected.",
			st.Totals.Contracts, st.Totals.Bags, st.From.Format("Jan 2"), st.To.Format("Jan 2, 2006"), cents(st.Totals.RevenueCents)),
		fmt.Sprintf("The busiest %s started %s with %d contracts.", st.Bucket, busiest.Start.Format("Jan 2"), busiest.Contracts),
		fmt.Sprintf("%.0f%% of them have been delivered.", rate),
	}
	if c := st.Totals.ByStatus[domain.ContractStatusCancelled]; c > 0 {
		parts = append(parts, fmt.Sprintf("%d were cancelled.", c))
	}
	return strings.Join(parts, " ")
}

func statusLine(m map[domain.ContractStatus]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s %d", k, m[domain.ContractStatus(k)])
	}
	return strings.Join(parts, ", ")
}

func cents(v int64) string {
	return fmt.Sprintf("%d.%02d", v/100, v%100)
}
