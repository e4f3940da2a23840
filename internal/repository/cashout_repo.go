package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/refresqueria/caja/internal/domain"
)

type CashoutRepo struct {
	db *sql.DB
}

func NewCashoutRepo(db *sql.DB) *CashoutRepo {
	return &CashoutRepo{db: db}
}

// Insert persists the cashout record and fills in its id and created_at.
func (r *CashoutRepo) Insert(c *domain.Cashout) error {
	c.CreatedAt = time.Now().UTC().Truncate(time.Second)

	res, err := r.db.Exec(
		`INSERT INTO cashouts (type, total_amount, total_orders, start_date, end_date, created_at)
		VALUES (?,?,?,?,?,?)`,
		string(c.Type), c.TotalAmount.String(), c.TotalOrders,
		formatTime(c.StartDate), formatTime(c.EndDate), formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert cashout: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("cashout id: %w", err)
	}
	return nil
}

// LatestEndDate returns the end_date of the most recent cashout window.
// Always recomputed from current store state; cashouts carry no predecessor
// link, so deleting the newest one simply reopens its window.
func (r *CashoutRepo) LatestEndDate() (time.Time, bool, error) {
	var endStr sql.NullString
	err := r.db.QueryRow("SELECT MAX(end_date) FROM cashouts").Scan(&endStr)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest end date: %w", err)
	}
	if !endStr.Valid || endStr.String == "" {
		return time.Time{}, false, nil
	}
	t, err := parseStoredTime(endStr.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest end date: %w", err)
	}
	return t, true, nil
}

func (r *CashoutRepo) GetByID(id int64) (*domain.Cashout, error) {
	row := r.db.QueryRow(
		`SELECT id, type, total_amount, total_orders, start_date, end_date, created_at
		FROM cashouts WHERE id = ?`, id,
	)
	c, err := scanCashout(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cashout %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get cashout: %w", err)
	}
	return c, nil
}

// List returns all cashouts, newest first.
func (r *CashoutRepo) List() ([]domain.Cashout, error) {
	rows, err := r.db.Query(
		`SELECT id, type, total_amount, total_orders, start_date, end_date, created_at
		FROM cashouts ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var cashouts []domain.Cashout
	for rows.Next() {
		c, err := scanCashout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		cashouts = append(cashouts, *c)
	}
	return cashouts, rows.Err()
}

// Delete removes the cashout's membership rows and then the cashout record
// in one transaction, so its orders become eligible again. Returns
// domain.ErrNotFound when the id does not exist.
func (r *CashoutRepo) Delete(id int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM cashout_orders WHERE cashout_id = ?", id); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}

	res, err := tx.Exec("DELETE FROM cashouts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete cashout: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return fmt.Errorf("cashout %d: %w", id, domain.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteRecordOnly removes just the cashout row. Compensation step for a
// generation whose membership linking failed before any row was written.
func (r *CashoutRepo) DeleteRecordOnly(id int64) error {
	_, err := r.db.Exec("DELETE FROM cashouts WHERE id = ?", id)
	return err
}

func scanCashout(row rowScanner) (*domain.Cashout, error) {
	var c domain.Cashout
	var typ, totalStr, startStr, endStr, createdStr string

	if err := row.Scan(&c.ID, &typ, &totalStr, &c.TotalOrders, &startStr, &endStr, &createdStr); err != nil {
		return nil, err
	}

	var err error
	if c.TotalAmount, err = decimal.NewFromString(totalStr); err != nil {
		return nil, fmt.Errorf("parse total_amount: %w", err)
	}
	c.Type = domain.CashoutType(typ)
	if c.StartDate, err = parseStoredTime(startStr); err != nil {
		return nil, fmt.Errorf("parse start_date: %w", err)
	}
	if c.EndDate, err = parseStoredTime(endStr); err != nil {
		return nil, fmt.Errorf("parse end_date: %w", err)
	}
	if c.CreatedAt, err = parseStoredTime(createdStr); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &c, nil
}
