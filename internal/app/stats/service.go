// Package stats aggregates contracts and revenue into dashboard time buckets.
package stats

import (
	"context"
	"time"

	"github.com/skyporter/luggage-api/internal/app/apperr"
	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/ports/out/contractrepo"
	"github.com/skyporter/luggage-api/internal/ports/out/paymentrepo"
)

type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// MaxBuckets bounds the size of a single dashboard query.
const MaxBuckets = 400

func (g Granularity) Valid() bool {
	return g == Day || g == Week || g == Month
}

// Floor returns the start of the bucket containing t (UTC). Weeks start on Monday.
func (g Granularity) Floor(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch g {
	case Week:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

func (g Granularity) next(t time.Time) time.Time {
	switch g {
	case Week:
		return t.AddDate(0, 0, 7)
	case Month:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

type Input struct {
	From   time.Time
	To     time.Time
	Bucket Granularity
}

type Bucket struct {
	Start        time.Time `json:"start"`
	Contracts    int       `json:"contracts"`
	Delivered    int       `json:"delivered"`
	Cancelled    int       `json:"cancelled"`
	Bags         int       `json:"bags"`
	BookedCents  int64     `json:"bookedCents"`
	RevenueCents int64     `json:"revenueCents"`
}

type Totals struct {
	Contracts    int                           `json:"contracts"`
	Bags         int                           `json:"bags"`
	BookedCents  int64                         `json:"bookedCents"`
	RevenueCents int64                         `json:"revenueCents"`
	ByStatus     map[domain.ContractStatus]int `json:"byStatus"`
}

// Stats covers contracts created and payments settled in [From, To).
type Stats struct {
	From    time.Time   `json:"from"`
	To      time.Time   `json:"to"`
	Bucket  Granularity `json:"bucket"`
	Buckets []Bucket    `json:"buckets"`
	Totals  Totals      `json:"totals"`
}

type Service struct {
	contracts contractrepo.Repository
	payments  paymentrepo.Repository
}

func NewService(contracts contractrepo.Repository, payments paymentrepo.Repository) *Service {
	return &Service{contracts: contracts, payments: payments}
}

// GetStats buckets the contracts the caller can see. Admins see the platform,
// contractors their bookings, delivery personnel their assignments.
func (s *Service) GetStats(ctx context.Context, caller domain.Profile, in Input) (Stats, error) {
	if in.Bucket == "" {
		in.Bucket = Day
	}
	details := map[string]any{}
	if !in.Bucket.Valid() {
		details["bucket"] = "must be one of day, week, month"
	}
	if in.From.IsZero() || in.To.IsZero() || !in.From.Before(in.To) {
		details["from/to"] = "from must be before to"
	}
	if len(details) > 0 {
		return Stats{}, apperr.ValidationFields(details)
	}
	from, to := in.From.UTC(), in.To.UTC()

	starts := make([]time.Time, 0)
	for b := in.Bucket.Floor(from); b.Before(to); b = in.Bucket.next(b) {
		starts = append(starts, b)
		if len(starts) > MaxBuckets {
			return Stats{}, apperr.Validation("from/to", "range spans too many buckets")
		}
	}

	scope := contractrepo.Filter{}
	switch caller.Role {
	case domain.RoleAdmin:
	case domain.RoleContractor:
		id := caller.ID
		scope.ContractorID = &id
	case domain.RoleDelivery:
		id := caller.ID
		scope.DeliveryID = &id
	default:
		return Stats{}, apperr.Forbidden("cannot view statistics")
	}

	buckets := make([]Bucket, len(starts))
	pos := make(map[int64]int, len(starts))
	for i, st := range starts {
		buckets[i] = Bucket{Start: st}
		pos[st.Unix()] = i
	}
	index := func(t time.Time) int {
		if i, ok := pos[in.Bucket.Floor(t).Unix()]; ok {
			return i
		}
		return -1
	}

	inRange := scope
	inRange.CreatedFrom = &from
	inRange.CreatedTo = &to
	cs, err := s.contracts.List(ctx, inRange)
	if err != nil {
		return Stats{}, err
	}

	totals := Totals{ByStatus: map[domain.ContractStatus]int{}}
	for _, c := range cs {
		i := index(c.CreatedAt)
		if i < 0 {
			continue
		}
		b := &buckets[i]
		b.Contracts++
		b.Bags += c.BagCount()
		b.BookedCents += c.TotalCents
		switch c.Status {
		case domain.ContractStatusDelivered:
			b.Delivered++
		case domain.ContractStatusCancelled:
			b.Cancelled++
		}
		totals.Contracts++
		totals.Bags += c.BagCount()
		totals.BookedCents += c.TotalCents
		totals.ByStatus[c.Status]++
	}

	ps, err := s.payments.ListBetween(ctx, from, to)
	if err != nil {
		return Stats{}, err
	}
	var visible map[domain.ContractID]bool
	if caller.Role != domain.RoleAdmin {
		all, err := s.contracts.List(ctx, scope)
		if err != nil {
			return Stats{}, err
		}
		visible = make(map[domain.ContractID]bool, len(all))
		for _, c := range all {
			visible[c.ID] = true
		}
	}
	for _, p := range ps {
		if p.Status != domain.PaymentStatusPaid {
			continue
		}
		if visible != nil && !visible[p.ContractID] {
			continue
		}
		i := index(p.CreatedAt)
		if i < 0 {
			continue
		}
		buckets[i].RevenueCents += p.AmountCents
		totals.RevenueCents += p.AmountCents
	}

	return Stats{From: from, To: to, Bucket: in.Bucket, Buckets: buckets, Totals: totals}, nil
}
