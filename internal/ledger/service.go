package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/refresqueria/caja/internal/domain"
	"github.com/refresqueria/caja/internal/notify"
	"github.com/refresqueria/caja/internal/repository"
)

// ErrInvalidOrder marks a rejected write (bad line items or negative money).
var ErrInvalidOrder = errors.New("invalid order")

// Service is the single write path into the order ledger. It validates
// incoming sales, lets the store derive the totals, and publishes a change
// event after every successful mutation.
type Service struct {
	orders   *repository.OrderRepo
	notifier *notify.Notifier
	log      *logrus.Logger
}

func NewService(orders *repository.OrderRepo, notifier *notify.Notifier, log *logrus.Logger) *Service {
	return &Service{orders: orders, notifier: notifier, log: log}
}

func validateItems(items []domain.LineItem, fee, tip decimal.Decimal) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one line item required", ErrInvalidOrder)
	}
	for i := range items {
		it := &items[i]
		if !domain.ValidDrinkType(it.DrinkType) {
			return fmt.Errorf("%w: item %d: unknown drink type %q", ErrInvalidOrder, i, it.DrinkType)
		}
		if it.Count < 1 {
			return fmt.Errorf("%w: item %d: count must be at least 1", ErrInvalidOrder, i)
		}
		if it.Price.IsNegative() {
			return fmt.Errorf("%w: item %d: negative price", ErrInvalidOrder, i)
		}
	}
	if fee.IsNegative() {
		return fmt.Errorf("%w: negative fee", ErrInvalidOrder)
	}
	if tip.IsNegative() {
		return fmt.Errorf("%w: negative tip", ErrInvalidOrder)
	}
	return nil
}

// CreateOrder records a new sale.
func (s *Service) CreateOrder(items []domain.LineItem, fee, tip decimal.Decimal) (*domain.Order, error) {
	if err := validateItems(items, fee, tip); err != nil {
		return nil, err
	}

	order, err := s.orders.Insert(items, fee, tip)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"component":    "ledger",
		"order_id":     order.ID,
		"total_amount": order.TotalAmount.String(),
	}).Info("order created")

	s.notifier.Publish(notify.Event{Kind: notify.OrderCreated, OrderID: order.ID})
	return order, nil
}

// UpdateOrder replaces the order's line items, fee and tip.
func (s *Service) UpdateOrder(id int64, items []domain.LineItem, fee, tip decimal.Decimal) (*domain.Order, error) {
	if err := validateItems(items, fee, tip); err != nil {
		return nil, err
	}

	order, err := s.orders.Update(id, items, fee, tip)
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(notify.Event{Kind: notify.OrderUpdated, OrderID: id})
	return order, nil
}

// SetPaid flips the payment flag on an order.
func (s *Service) SetPaid(id int64, paid bool) error {
	if err := s.orders.SetPaid(id, paid); err != nil {
		return err
	}
	s.notifier.Publish(notify.Event{Kind: notify.OrderUpdated, OrderID: id})
	return nil
}

// DeleteOrder removes an order (and any membership row referencing it).
func (s *Service) DeleteOrder(id int64) error {
	if err := s.orders.Delete(id); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"component": "ledger",
		"order_id":  id,
	}).Info("order deleted")

	s.notifier.Publish(notify.Event{Kind: notify.OrderDeleted, OrderID: id})
	return nil
}

func (s *Service) GetOrder(id int64) (*domain.Order, error) {
	return s.orders.GetByID(id)
}

func (s *Service) ListOrders(f repository.OrderFilter) ([]domain.Order, error) {
	return s.orders.List(f)
}

// Summary aggregates today's sales and the pending (unreconciled) backlog.
type Summary struct {
	Date           string          `json:"date"`
	OrdersToday    int             `json:"orders_today"`
	RevenueToday   decimal.Decimal `json:"revenue_today"`
	PendingOrders  int             `json:"pending_orders"`
	PendingAmount  decimal.Decimal `json:"pending_amount"`
	UnpaidOrders   int             `json:"unpaid_orders"`
	LatestBoundary *time.Time      `json:"latest_boundary,omitempty"`
}

// Summarize computes the till overview: today's volume plus everything not
// yet covered by a cashout.
func (s *Service) Summarize(cashouts *repository.CashoutRepo, now time.Time) (*Summary, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := s.orders.List(repository.OrderFilter{Since: &dayStart})
	if err != nil {
		return nil, fmt.Errorf("today's orders: %w", err)
	}

	sum := &Summary{
		Date:          dayStart.Format("2006-01-02"),
		OrdersToday:   len(today),
		RevenueToday:  decimal.Zero,
		PendingAmount: decimal.Zero,
	}
	for i := range today {
		sum.RevenueToday = sum.RevenueToday.Add(today[i].TotalAmount)
		if !today[i].IsPaid {
			sum.UnpaidOrders++
		}
	}

	var since time.Time
	lastEnd, ok, err := cashouts.LatestEndDate()
	if err != nil {
		return nil, fmt.Errorf("latest boundary: %w", err)
	}
	if ok {
		since = lastEnd
		sum.LatestBoundary = &lastEnd
	}

	pending, err := s.orders.ListEligible(since)
	if err != nil {
		return nil, fmt.Errorf("pending orders: %w", err)
	}
	sum.PendingOrders = len(pending)
	for i := range pending {
		sum.PendingAmount = sum.PendingAmount.Add(pending[i].TotalAmount)
	}

	return sum, nil
}
