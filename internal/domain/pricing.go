package domain

import "math"

// Input bounds. Within them a quote fits comfortably in int64 and every column width.
const (
	MaxLuggageItems = 50
	MaxItemQuantity = 100
	MaxItemWeightKg = 1000
	MaxFeeCents     = 10_000_000
)

type PricingRegion struct {
	ID           PricingRegionID `json:"id"`
	Name         string          `json:"name"`
	BaseFeeCents int64           `json:"baseFeeCents"`
	PerBagCents  int64           `json:"perBagCents"`
	PerKgCents   int64           `json:"perKgCents"`
	Currency     string          `json:"currency"`
	Active       bool            `json:"active"`
}

// Quote prices a set of luggage items: base + perBag*bags + perKg*ceil(total weight).
func (r PricingRegion) Quote(items []LuggageItem) int64 {
	return r.BaseFeeCents + r.PerBagCents*int64(BagCount(items)) + r.PerKgCents*BillableKg(items)
}

func BagCount(items []LuggageItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// BillableKg is the total weight across quantities, rounded up to a whole kilogram.
func BillableKg(items []LuggageItem) int64 {
	weight := 0.0
	for _, it := range items {
		weight += it.WeightKg * float64(it.Quantity)
	}
	return int64(math.Ceil(weight))
}
