package domain

import "time"

type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodInvoice      PaymentMethod = "invoice"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type Payment struct {
	ID          PaymentID     `json:"id"`
	ContractID  ContractID    `json:"contractId"`
	AmountCents int64         `json:"amountCents"`
	Currency    string        `json:"currency"`
	Method      PaymentMethod `json:"method"`
	Status      PaymentStatus `json:"status"`
	Reference   *string       `json:"reference,omitempty"`
	PaidAt      *time.Time    `json:"paidAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// PaidCents sums the amounts of payments currently in the paid state.
// A refund flips the row's status, so refunded rows simply drop out.
func PaidCents(ps []Payment) int64 {
	var total int64
	for _, p := range ps {
		if p.Status == PaymentStatusPaid {
			total += p.AmountCents
		}
	}
	return total
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodCash, PaymentMethodInvoice:
		return true
	default:
		return false
	}
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}
