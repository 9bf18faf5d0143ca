package invoices

import (
	"time"

	"github.com/skyporter/luggage-api/internal/domain"
)

type Kind string

const (
	KindInvoice Kind = "invoice"
	KindReceipt Kind = "receipt"
)

// Document is everything printed on an invoice or receipt.
type Document struct {
	Kind       Kind
	Number     string
	IssuedAt   time.Time
	Contract   domain.Contract
	Contractor domain.Profile
	Region     domain.PricingRegion
	Payments   []domain.Payment
	PaidCents  int64
}

// DueCents is the outstanding balance, never negative.
func (d Document) DueCents() int64 {
	if due := d.Contract.TotalCents - d.PaidCents; due > 0 {
		return due
	}
	return 0
}

// Renderer lays a document out as PDF bytes.
type Renderer interface {
	Render(d Document) ([]byte, error)
}
