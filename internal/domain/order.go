package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DrinkType string

const (
	DrinkHalf DrinkType = "half"
	DrinkOne  DrinkType = "one"
)

// ValidDrinkType reports whether t is one of the sellable drink sizes.
func ValidDrinkType(t DrinkType) bool {
	return t == DrinkHalf || t == DrinkOne
}

// LineItem is a single drink position on an order. Total is always
// Count * Price; the ledger derives it, callers never set it.
type LineItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	DrinkType DrinkType       `json:"drink_type"`
	Count     int             `json:"count"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
}

// Order is a single sale. TotalAmount is derived as the sum of line item
// totals plus fee and tip. CreatedAt is assigned by the store and never
// mutated; IsPaid is independent of reconciliation state.
type Order struct {
	ID          int64           `json:"id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Fee         decimal.Decimal `json:"fee"`
	Tip         decimal.Decimal `json:"tip"`
	IsPaid      bool            `json:"is_paid"`
	CreatedAt   time.Time       `json:"created_at"`
	Items       []LineItem      `json:"items,omitempty"`
}

// OrderSummary is the slimmed order shape carried inside a cashout.
type OrderSummary struct {
	ID          int64           `json:"id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Summary returns the order reduced to its cashout-member shape.
func (o *Order) Summary() OrderSummary {
	return OrderSummary{ID: o.ID, TotalAmount: o.TotalAmount, CreatedAt: o.CreatedAt}
}
