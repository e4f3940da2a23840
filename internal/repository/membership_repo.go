package repository

import (
	"database/sql"
	"fmt"
)

// MembershipRepo owns the cashout_orders join table: the record of which
// order has been attributed to which cashout.
type MembershipRepo struct {
	db *sql.DB
}

func NewMembershipRepo(db *sql.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

// Link attributes every order to the cashout in a single transaction. The
// UNIQUE constraint on order_id rejects the whole batch if any order is
// already a member of some cashout, and the foreign key rejects orders
// deleted since they were read.
func (r *MembershipRepo) Link(cashoutID int64, orderIDs []int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO cashout_orders (cashout_id, order_id) VALUES (?,?)")
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, orderID := range orderIDs {
		if _, err := stmt.Exec(cashoutID, orderID); err != nil {
			return fmt.Errorf("link order %d: %w", orderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// OrderIDsByCashout returns the member order ids of a cashout.
func (r *MembershipRepo) OrderIDsByCashout(cashoutID int64) ([]int64, error) {
	rows, err := r.db.Query(
		"SELECT order_id FROM cashout_orders WHERE cashout_id = ? ORDER BY order_id", cashoutID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReconciledCount returns how many orders belong to any cashout.
func (r *MembershipRepo) ReconciledCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM cashout_orders").Scan(&count)
	return count, err
}

// OrphanCashoutIDs returns cashouts that have no membership rows at all,
// the signature a partially committed generation leaves behind.
func (r *MembershipRepo) OrphanCashoutIDs() ([]int64, error) {
	rows, err := r.db.Query(`
		SELECT c.id FROM cashouts c
		LEFT JOIN cashout_orders co ON co.cashout_id = c.id
		WHERE co.cashout_id IS NULL
		ORDER BY c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DanglingOrderIDs returns membership rows whose order no longer exists.
func (r *MembershipRepo) DanglingOrderIDs() ([]int64, error) {
	rows, err := r.db.Query(`
		SELECT co.order_id FROM cashout_orders co
		LEFT JOIN orders o ON o.id = co.order_id
		WHERE o.id IS NULL
		ORDER BY co.order_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
