package reconciliation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/refresqueria/caja/internal/domain"
	"github.com/refresqueria/caja/internal/repository"
)

// Engine partitions the order ledger into non-overlapping, exactly-once
// accounted cashout periods.
//
// Window policy: the filter lower bound is the max end_date over the
// cashouts that currently exist (epoch when none do), always recomputed at
// call time. The stored start_date and end_date are the created_at of the
// first and last member order, so the closing boundary never depends on the
// wall clock and cannot capture an order inserted after the eligible-set
// query ran. The eligibility filter is created_at >= bound AND no existing
// membership row; membership, not the time bound, decides "already
// reconciled", so an order created exactly at a boundary lands in exactly
// one cashout.
type Engine struct {
	orders   *repository.OrderRepo
	cashouts *repository.CashoutRepo
	members  *repository.MembershipRepo
	log      *logrus.Logger

	// Serializes the whole read-compute-write sequence of every cashout
	// lifecycle operation. The UNIQUE constraint on membership order_id is
	// the structural backstop.
	mu sync.Mutex
}

func NewEngine(
	orders *repository.OrderRepo,
	cashouts *repository.CashoutRepo,
	members *repository.MembershipRepo,
	log *logrus.Logger,
) *Engine {
	return &Engine{orders: orders, cashouts: cashouts, members: members, log: log}
}

// Generate creates a new cashout covering every order created since the
// previous reconciliation boundary that belongs to no cashout yet, and
// returns it with its member summaries.
//
// Returns domain.ErrConflict when another lifecycle operation is in flight,
// domain.ErrNoPendingOrders when there is nothing to reconcile (no record is
// created), and domain.ErrPartialCommit when the cashout record was written
// but linking its members failed and the record could not be rolled back.
func (e *Engine) Generate(typ domain.CashoutType) (*domain.Cashout, error) {
	if !domain.ValidCashoutType(typ) {
		return nil, fmt.Errorf("unknown cashout type %q", typ)
	}

	if !e.mu.TryLock() {
		return nil, domain.ErrConflict
	}
	defer e.mu.Unlock()

	var since time.Time
	lastEnd, ok, err := e.cashouts.LatestEndDate()
	if err != nil {
		return nil, fmt.Errorf("%w: previous boundary: %v", domain.ErrStoreUnavailable, err)
	}
	if ok {
		since = lastEnd
	}

	eligible, err := e.orders.ListEligible(since)
	if err != nil {
		return nil, fmt.Errorf("%w: eligible orders: %v", domain.ErrStoreUnavailable, err)
	}
	if len(eligible) == 0 {
		return nil, domain.ErrNoPendingOrders
	}

	total := decimal.Zero
	orderIDs := make([]int64, len(eligible))
	summaries := make([]domain.OrderSummary, len(eligible))
	for i := range eligible {
		total = total.Add(eligible[i].TotalAmount)
		orderIDs[i] = eligible[i].ID
		summaries[i] = eligible[i].Summary()
	}

	cashout := &domain.Cashout{
		Type:        typ,
		TotalAmount: total,
		TotalOrders: len(eligible),
		StartDate:   eligible[0].CreatedAt,
		EndDate:     eligible[len(eligible)-1].CreatedAt,
	}

	if err := e.cashouts.Insert(cashout); err != nil {
		return nil, fmt.Errorf("%w: insert cashout: %v", domain.ErrStoreUnavailable, err)
	}

	if err := e.members.Link(cashout.ID, orderIDs); err != nil {
		// Compensate: take the memberless cashout record back out. If even
		// that fails the orphan must be surfaced, not swallowed.
		if delErr := e.cashouts.DeleteRecordOnly(cashout.ID); delErr != nil {
			e.log.WithFields(logrus.Fields{
				"component":  "reconciliation",
				"cashout_id": cashout.ID,
				"link_error": err.Error(),
			}).Error("cashout rollback failed, orphan record left behind")
			return nil, fmt.Errorf("cashout %d: %w: link: %v, rollback: %v",
				cashout.ID, domain.ErrPartialCommit, err, delErr)
		}
		return nil, fmt.Errorf("%w: link members: %v", domain.ErrStoreUnavailable, err)
	}

	cashout.Orders = summaries

	e.log.WithFields(logrus.Fields{
		"component":    "reconciliation",
		"cashout_id":   cashout.ID,
		"type":         string(typ),
		"total_orders": cashout.TotalOrders,
		"total_amount": cashout.TotalAmount.String(),
	}).Info("cashout generated")

	return cashout, nil
}

// Delete removes the cashout and its membership rows, making its orders
// eligible for a future cashout again.
func (e *Engine) Delete(id int64) error {
	if !e.mu.TryLock() {
		return domain.ErrConflict
	}
	defer e.mu.Unlock()

	if err := e.cashouts.Delete(id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: delete cashout: %v", domain.ErrStoreUnavailable, err)
	}

	e.log.WithFields(logrus.Fields{
		"component":  "reconciliation",
		"cashout_id": id,
	}).Info("cashout deleted")

	return nil
}

// Get returns one cashout hydrated with its member order summaries.
func (e *Engine) Get(id int64) (*domain.Cashout, error) {
	cashout, err := e.cashouts.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := e.hydrate(cashout); err != nil {
		return nil, err
	}
	return cashout, nil
}

// List returns all cashouts, newest first, each hydrated with its current
// member order summaries.
func (e *Engine) List() ([]domain.Cashout, error) {
	cashouts, err := e.cashouts.List()
	if err != nil {
		return nil, fmt.Errorf("%w: list cashouts: %v", domain.ErrStoreUnavailable, err)
	}
	for i := range cashouts {
		if err := e.hydrate(&cashouts[i]); err != nil {
			return nil, err
		}
	}
	return cashouts, nil
}

func (e *Engine) hydrate(c *domain.Cashout) error {
	ids, err := e.members.OrderIDsByCashout(c.ID)
	if err != nil {
		return fmt.Errorf("%w: membership for cashout %d: %v", domain.ErrStoreUnavailable, c.ID, err)
	}

	orders, err := e.orders.GetByIDs(ids)
	if err != nil {
		return fmt.Errorf("%w: member orders for cashout %d: %v", domain.ErrStoreUnavailable, c.ID, err)
	}

	summaries := make([]domain.OrderSummary, len(orders))
	for i := range orders {
		summaries[i] = orders[i].Summary()
	}
	c.Orders = summaries
	return nil
}

// VerifyIntegrity reports inconsistencies between the cashout store and the
// membership table: memberless cashouts left by a partial commit and
// membership rows whose order no longer exists.
func (e *Engine) VerifyIntegrity() ([]domain.IntegrityIssue, error) {
	var issues []domain.IntegrityIssue

	orphans, err := e.members.OrphanCashoutIDs()
	if err != nil {
		return nil, fmt.Errorf("%w: orphan cashouts: %v", domain.ErrStoreUnavailable, err)
	}
	for _, id := range orphans {
		issues = append(issues, domain.IntegrityIssue{
			Type:        domain.IssueOrphanCashout,
			CashoutID:   id,
			Description: fmt.Sprintf("cashout %d has no member orders", id),
		})
	}

	dangling, err := e.members.DanglingOrderIDs()
	if err != nil {
		return nil, fmt.Errorf("%w: dangling memberships: %v", domain.ErrStoreUnavailable, err)
	}
	for _, id := range dangling {
		issues = append(issues, domain.IntegrityIssue{
			Type:        domain.IssueDanglingMembership,
			OrderID:     id,
			Description: fmt.Sprintf("membership references missing order %d", id),
		})
	}

	if len(issues) > 0 {
		e.log.WithFields(logrus.Fields{
			"component": "reconciliation",
			"issues":    len(issues),
		}).Warn("integrity check found inconsistencies")
	}

	return issues, nil
}
