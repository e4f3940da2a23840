package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CashoutType string

const (
	CashoutDaily   CashoutType = "daily"
	CashoutMonthly CashoutType = "monthly"
)

// ValidCashoutType reports whether t is a known cashout label. The type is
// a label only; it never changes how the window is computed.
func ValidCashoutType(t CashoutType) bool {
	return t == CashoutDaily || t == CashoutMonthly
}

// Cashout is a reconciliation record: the summary of every order attributed
// to it through the membership table. StartDate and EndDate are the
// created_at of the first and last member order.
type Cashout struct {
	ID          int64           `json:"id"`
	Type        CashoutType     `json:"type"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalOrders int             `json:"total_orders"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	CreatedAt   time.Time       `json:"created_at"`
	Orders      []OrderSummary  `json:"orders,omitempty"`
}

type IntegrityIssueType string

const (
	IssueOrphanCashout      IntegrityIssueType = "ORPHAN_CASHOUT"
	IssueDanglingMembership IntegrityIssueType = "DANGLING_MEMBERSHIP"
)

// IntegrityIssue describes an inconsistency between the cashout store and
// the membership table, e.g. a cashout persisted without members after a
// failed generation.
type IntegrityIssue struct {
	Type        IntegrityIssueType `json:"type"`
	CashoutID   int64              `json:"cashout_id,omitempty"`
	OrderID     int64              `json:"order_id,omitempty"`
	Description string             `json:"description"`
}
