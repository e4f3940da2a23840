package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/refresqueria/caja/internal/domain"
)

type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// Insert persists a new order with its line items in one transaction.
// Totals are derived here: each item total is count*price, the order total
// is the item sum plus fee and tip. created_at is assigned by the store.
func (r *OrderRepo) Insert(items []domain.LineItem, fee, tip decimal.Decimal) (*domain.Order, error) {
	now := time.Now().UTC().Truncate(time.Second)

	subtotal := decimal.Zero
	for i := range items {
		items[i].Total = items[i].Price.Mul(decimal.NewFromInt(int64(items[i].Count)))
		subtotal = subtotal.Add(items[i].Total)
	}
	total := subtotal.Add(fee).Add(tip)

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO orders (total_amount, fee, tip, is_paid, created_at)
		VALUES (?,?,?,0,?)`,
		total.String(), fee.String(), tip.String(), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	orderID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("order id: %w", err)
	}

	if err := insertItems(tx, orderID, items); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	for i := range items {
		items[i].OrderID = orderID
	}
	return &domain.Order{
		ID:          orderID,
		TotalAmount: total,
		Fee:         fee,
		Tip:         tip,
		CreatedAt:   now,
		Items:       items,
	}, nil
}

func insertItems(tx *sql.Tx, orderID int64, items []domain.LineItem) error {
	stmt, err := tx.Prepare(
		`INSERT INTO order_items (order_id, drink_type, count, price, total)
		VALUES (?,?,?,?,?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare items: %w", err)
	}
	defer stmt.Close()

	for i := range items {
		it := &items[i]
		res, err := stmt.Exec(orderID, string(it.DrinkType), it.Count, it.Price.String(), it.Total.String())
		if err != nil {
			return fmt.Errorf("insert item %d: %w", i, err)
		}
		if id, err := res.LastInsertId(); err == nil {
			it.ID = id
		}
	}
	return nil
}

// Update replaces the order's line items, fee and tip, recomputing the
// derived totals. created_at and is_paid are left untouched.
func (r *OrderRepo) Update(id int64, items []domain.LineItem, fee, tip decimal.Decimal) (*domain.Order, error) {
	subtotal := decimal.Zero
	for i := range items {
		items[i].Total = items[i].Price.Mul(decimal.NewFromInt(int64(items[i].Count)))
		subtotal = subtotal.Add(items[i].Total)
	}
	total := subtotal.Add(fee).Add(tip)

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"UPDATE orders SET total_amount = ?, fee = ?, tip = ? WHERE id = ?",
		total.String(), fee.String(), tip.String(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return nil, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}

	if _, err := tx.Exec("DELETE FROM order_items WHERE order_id = ?", id); err != nil {
		return nil, fmt.Errorf("clear items: %w", err)
	}
	if err := insertItems(tx, id, items); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return r.GetByID(id)
}

// SetPaid flips the payment flag. It has no effect on reconciliation state.
func (r *OrderRepo) SetPaid(id int64, paid bool) error {
	res, err := r.db.Exec("UPDATE orders SET is_paid = ? WHERE id = ?", boolToInt(paid), id)
	if err != nil {
		return fmt.Errorf("set paid: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Delete removes the order, its line items and, because the ledger owns that
// cleanup, any membership row referencing it, in one transaction.
func (r *OrderRepo) Delete(id int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM cashout_orders WHERE order_id = ?", id); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM order_items WHERE order_id = ?", id); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	res, err := tx.Exec("DELETE FROM orders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *OrderRepo) GetByID(id int64) (*domain.Order, error) {
	row := r.db.QueryRow(
		"SELECT id, total_amount, fee, tip, is_paid, created_at FROM orders WHERE id = ?", id,
	)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := r.loadItems([]int64{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]
	return o, nil
}

// GetByIDs returns the orders for the given ids, without line items. Order
// of the result follows created_at, then id.
func (r *OrderRepo) GetByIDs(ids []int64) ([]domain.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := fmt.Sprintf(
		`SELECT id, total_amount, fee, tip, is_paid, created_at FROM orders
		WHERE id IN (%s) ORDER BY created_at, id`,
		placeholders(len(ids)),
	)
	rows, err := r.db.Query(q, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

type OrderFilter struct {
	Since *time.Time
	Until *time.Time
	Paid  *bool
}

// List returns orders matching the filter, newest first, with line items.
func (r *OrderRepo) List(f OrderFilter) ([]domain.Order, error) {
	var clauses []string
	var args []any

	if f.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, formatTime(*f.Since))
	}
	if f.Until != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, formatTime(*f.Until))
	}
	if f.Paid != nil {
		clauses = append(clauses, "is_paid = ?")
		args = append(args, boolToInt(*f.Paid))
	}

	q := "SELECT id, total_amount, fee, tip, is_paid, created_at FROM orders"
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	items, err := r.loadItems(ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

// ListEligible returns orders created at or after since that belong to no
// cashout, oldest first. The membership table, not the time bound, is the
// source of truth for "already reconciled".
func (r *OrderRepo) ListEligible(since time.Time) ([]domain.Order, error) {
	rows, err := r.db.Query(`
		SELECT o.id, o.total_amount, o.fee, o.tip, o.is_paid, o.created_at
		FROM orders o
		LEFT JOIN cashout_orders co ON co.order_id = o.id
		WHERE co.order_id IS NULL
		  AND o.created_at >= ?
		ORDER BY o.created_at, o.id
	`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

func (r *OrderRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM orders").Scan(&count)
	return count, err
}

// BulkInsert loads pre-built orders (demo seeding), keeping their
// timestamps and totals as given.
func (r *OrderRepo) BulkInsert(orders []domain.Order) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for i := range orders {
		o := &orders[i]
		res, err := tx.Exec(
			`INSERT INTO orders (total_amount, fee, tip, is_paid, created_at)
			VALUES (?,?,?,?,?)`,
			o.TotalAmount.String(), o.Fee.String(), o.Tip.String(),
			boolToInt(o.IsPaid), formatTime(o.CreatedAt),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert row %d: %w", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return inserted, fmt.Errorf("order id: %w", err)
		}
		if err := insertItems(tx, id, o.Items); err != nil {
			return inserted, err
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (r *OrderRepo) loadItems(orderIDs []int64) (map[int64][]domain.LineItem, error) {
	q := fmt.Sprintf(
		`SELECT id, order_id, drink_type, count, price, total FROM order_items
		WHERE order_id IN (%s) ORDER BY id`,
		placeholders(len(orderIDs)),
	)
	rows, err := r.db.Query(q, int64Args(orderIDs)...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64][]domain.LineItem)
	for rows.Next() {
		var it domain.LineItem
		var drink, priceStr, totalStr string
		if err := rows.Scan(&it.ID, &it.OrderID, &drink, &it.Count, &priceStr, &totalStr); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.DrinkType = domain.DrinkType(drink)
		if it.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		if it.Total, err = decimal.NewFromString(totalStr); err != nil {
			return nil, fmt.Errorf("parse total: %w", err)
		}
		items[it.OrderID] = append(items[it.OrderID], it)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var totalStr, feeStr, tipStr, createdStr string
	var paid int

	if err := row.Scan(&o.ID, &totalStr, &feeStr, &tipStr, &paid, &createdStr); err != nil {
		return nil, err
	}

	var err error
	if o.TotalAmount, err = decimal.NewFromString(totalStr); err != nil {
		return nil, fmt.Errorf("parse total_amount: %w", err)
	}
	if o.Fee, err = decimal.NewFromString(feeStr); err != nil {
		return nil, fmt.Errorf("parse fee: %w", err)
	}
	if o.Tip, err = decimal.NewFromString(tipStr); err != nil {
		return nil, fmt.Errorf("parse tip: %w", err)
	}
	o.IsPaid = paid != 0
	if o.CreatedAt, err = parseStoredTime(createdStr); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &o, nil
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}
