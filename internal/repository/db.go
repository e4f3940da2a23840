package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Pragmas apply per connection and an in-memory database exists per
	// connection; SQLite has a single writer anyway, so cap the pool at one.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			total_amount TEXT NOT NULL,
			fee TEXT NOT NULL,
			tip TEXT NOT NULL,
			is_paid INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_is_paid ON orders(is_paid)`,

		`CREATE TABLE IF NOT EXISTS order_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id INTEGER NOT NULL,
			drink_type TEXT NOT NULL,
			count INTEGER NOT NULL,
			price TEXT NOT NULL,
			total TEXT NOT NULL,
			FOREIGN KEY (order_id) REFERENCES orders(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)`,

		`CREATE TABLE IF NOT EXISTS cashouts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			total_amount TEXT NOT NULL,
			total_orders INTEGER NOT NULL,
			start_date DATETIME NOT NULL,
			end_date DATETIME NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cashouts_end_date ON cashouts(end_date)`,
		`CREATE INDEX IF NOT EXISTS idx_cashouts_created_at ON cashouts(created_at)`,

		// order_id is UNIQUE across the whole table: an order belongs to at
		// most one cashout, enforced by the store itself.
		`CREATE TABLE IF NOT EXISTS cashout_orders (
			cashout_id INTEGER NOT NULL,
			order_id INTEGER NOT NULL UNIQUE,
			PRIMARY KEY (cashout_id, order_id),
			FOREIGN KEY (cashout_id) REFERENCES cashouts(id),
			FOREIGN KEY (order_id) REFERENCES orders(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cashout_orders_cashout ON cashout_orders(cashout_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:60], err)
		}
	}

	return nil
}
