package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/refresqueria/caja/internal/domain"
)

func newTestRepos(t *testing.T) (*OrderRepo, *CashoutRepo, *MembershipRepo) {
	t.Helper()

	db, err := InitDB(":memory:")
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewOrderRepo(db), NewCashoutRepo(db), NewMembershipRepo(db)
}

func twoDrinks() []domain.LineItem {
	return []domain.LineItem{
		{DrinkType: domain.DrinkHalf, Count: 2, Price: decimal.NewFromInt(25)},
		{DrinkType: domain.DrinkOne, Count: 1, Price: decimal.NewFromInt(45)},
	}
}

func TestOrderInsertDerivesTotals(t *testing.T) {
	orders, _, _ := newTestRepos(t)

	o, err := orders.Insert(twoDrinks(), decimal.NewFromInt(10), decimal.NewFromInt(5))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	// 2*25 + 1*45 + 10 fee + 5 tip
	if got, want := o.TotalAmount.String(), "110"; got != want {
		t.Errorf("total_amount = %s, want %s", got, want)
	}
	if got, want := o.Items[0].Total.String(), "50"; got != want {
		t.Errorf("item 0 total = %s, want %s", got, want)
	}
	if o.ID == 0 {
		t.Error("id not assigned")
	}
	if o.CreatedAt.IsZero() {
		t.Error("created_at not assigned")
	}

	read, err := orders.GetByID(o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !read.TotalAmount.Equal(o.TotalAmount) {
		t.Errorf("stored total = %s, want %s", read.TotalAmount, o.TotalAmount)
	}
	if len(read.Items) != 2 {
		t.Errorf("stored items = %d, want 2", len(read.Items))
	}
	if !read.CreatedAt.Equal(o.CreatedAt) {
		t.Errorf("stored created_at = %v, want %v", read.CreatedAt, o.CreatedAt)
	}
}

func TestOrderUpdateRecomputesTotalKeepsCreatedAt(t *testing.T) {
	orders, _, _ := newTestRepos(t)

	o, err := orders.Insert(twoDrinks(), decimal.Zero, decimal.Zero)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	updated, err := orders.Update(o.ID,
		[]domain.LineItem{{DrinkType: domain.DrinkOne, Count: 3, Price: decimal.NewFromInt(45)}},
		decimal.Zero, decimal.NewFromInt(20),
	)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if got, want := updated.TotalAmount.String(), "155"; got != want {
		t.Errorf("total_amount = %s, want %s", got, want)
	}
	if len(updated.Items) != 1 {
		t.Errorf("items = %d, want 1", len(updated.Items))
	}
	if !updated.CreatedAt.Equal(o.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", o.CreatedAt, updated.CreatedAt)
	}

	if _, err := orders.Update(999, twoDrinks(), decimal.Zero, decimal.Zero); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("update missing: got %v, want ErrNotFound", err)
	}
}

func TestOrderSetPaid(t *testing.T) {
	orders, _, _ := newTestRepos(t)

	o, err := orders.Insert(twoDrinks(), decimal.Zero, decimal.Zero)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := orders.SetPaid(o.ID, true); err != nil {
		t.Fatalf("set paid: %v", err)
	}
	read, _ := orders.GetByID(o.ID)
	if !read.IsPaid {
		t.Error("is_paid not set")
	}

	if err := orders.SetPaid(999, true); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("set paid missing: got %v, want ErrNotFound", err)
	}
}

func TestOrderDeleteRemovesItemsAndMembership(t *testing.T) {
	orders, cashouts, members := newTestRepos(t)

	o, err := orders.Insert(twoDrinks(), decimal.Zero, decimal.Zero)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	c := &domain.Cashout{
		Type:        domain.CashoutDaily,
		TotalAmount: o.TotalAmount,
		TotalOrders: 1,
		StartDate:   o.CreatedAt,
		EndDate:     o.CreatedAt,
	}
	if err := cashouts.Insert(c); err != nil {
		t.Fatalf("insert cashout: %v", err)
	}
	if err := members.Link(c.ID, []int64{o.ID}); err != nil {
		t.Fatalf("link: %v", err)
	}

	if err := orders.Delete(o.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := orders.GetByID(o.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get deleted: got %v, want ErrNotFound", err)
	}
	if count, _ := members.ReconciledCount(); count != 0 {
		t.Errorf("membership rows = %d, want 0", count)
	}

	if err := orders.Delete(o.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("delete again: got %v, want ErrNotFound", err)
	}
}

func TestOrderListFilters(t *testing.T) {
	orders, _, _ := newTestRepos(t)

	seed := []domain.Order{
		{
			TotalAmount: decimal.NewFromInt(30), Fee: decimal.Zero, Tip: decimal.Zero,
			IsPaid: true, CreatedAt: time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
		},
		{
			TotalAmount: decimal.NewFromInt(50), Fee: decimal.Zero, Tip: decimal.Zero,
			IsPaid: false, CreatedAt: time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
		},
		{
			TotalAmount: decimal.NewFromInt(80), Fee: decimal.Zero, Tip: decimal.Zero,
			IsPaid: true, CreatedAt: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		},
	}
	if n, err := orders.BulkInsert(seed); err != nil || n != 3 {
		t.Fatalf("bulk insert: n=%d err=%v", n, err)
	}

	all, err := orders.List(OrderFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all = %d, want 3", len(all))
	}
	// Newest first.
	if got, want := all[0].TotalAmount.String(), "80"; got != want {
		t.Errorf("first listed = %s, want %s", got, want)
	}

	paid := true
	onlyPaid, err := orders.List(OrderFilter{Paid: &paid})
	if err != nil {
		t.Fatalf("list paid: %v", err)
	}
	if len(onlyPaid) != 2 {
		t.Errorf("paid = %d, want 2", len(onlyPaid))
	}

	since := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 8, 29, 23, 59, 59, 0, time.UTC)
	window, err := orders.List(OrderFilter{Since: &since, Until: &until})
	if err != nil {
		t.Fatalf("list window: %v", err)
	}
	if len(window) != 1 || !window[0].TotalAmount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("window result = %v", window)
	}
}

func TestCorruptStoredTimestampSurfaces(t *testing.T) {
	orders, cashouts, _ := newTestRepos(t)

	// Rows written past the repos, with timestamps no reader should trust.
	if _, err := orders.db.Exec(
		`INSERT INTO orders (total_amount, fee, tip, is_paid, created_at)
		VALUES ('10','0','0',0,'yesterdayish')`,
	); err != nil {
		t.Fatalf("insert corrupt order: %v", err)
	}
	if _, err := orders.GetByID(1); err == nil {
		t.Error("corrupt created_at must not scan as a zero time")
	}

	if _, err := cashouts.db.Exec(
		`INSERT INTO cashouts (type, total_amount, total_orders, start_date, end_date, created_at)
		VALUES ('daily','10',1,'x','x','x')`,
	); err != nil {
		t.Fatalf("insert corrupt cashout: %v", err)
	}
	if _, _, err := cashouts.LatestEndDate(); err == nil {
		t.Error("corrupt end_date must not become the reconciliation boundary")
	}
	if _, err := cashouts.GetByID(1); err == nil {
		t.Error("corrupt cashout dates must not scan as zero times")
	}
}

func TestListEligibleExcludesReconciled(t *testing.T) {
	orders, cashouts, members := newTestRepos(t)

	a, err := orders.Insert(twoDrinks(), decimal.Zero, decimal.Zero)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	b, err := orders.Insert(twoDrinks(), decimal.Zero, decimal.Zero)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	c := &domain.Cashout{
		Type: domain.CashoutDaily, TotalAmount: a.TotalAmount, TotalOrders: 1,
		StartDate: a.CreatedAt, EndDate: a.CreatedAt,
	}
	if err := cashouts.Insert(c); err != nil {
		t.Fatalf("insert cashout: %v", err)
	}
	if err := members.Link(c.ID, []int64{a.ID}); err != nil {
		t.Fatalf("link: %v", err)
	}

	eligible, err := orders.ListEligible(time.Time{})
	if err != nil {
		t.Fatalf("eligible: %v", err)
	}
	if len(eligible) != 1 || eligible[0].ID != b.ID {
		t.Errorf("eligible = %v, want only order %d", eligible, b.ID)
	}
}
