package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

const mysqlDuplicateEntry = 1062

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenMySQL connects with the options the adapter relies on: parsed times in
// UTC and multi-statement migrations.
func OpenMySQL(ctx context.Context, dsn string, pool PoolConfig) (*sqlx.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = true

	db, err := sqlx.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// MySQLAdapter implements the member, inventory, booking and import
// repositories plus the transactor over one connection pool.
type MySQLAdapter struct {
	db *sqlx.DB
}

func NewMySQLAdapter(db *sqlx.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

type txKey struct{}

func (m *MySQLAdapter) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func txFromContext(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

// conn returns the transaction carried by ctx, or the pool.
func (m *MySQLAdapter) conn(ctx context.Context) sqlx.ExtContext {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return m.db
}

func (m *MySQLAdapter) exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := m.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

// ResetMembers deletes all members along with their bookings. Items get back
// the units held by the deleted active bookings.
func (m *MySQLAdapter) ResetMembers(ctx context.Context) error {
	if _, err := m.exec(ctx, `
		UPDATE inventory_items i
		JOIN (
			SELECT inventory_item_id, COUNT(*) AS active
			FROM bookings WHERE is_active
			GROUP BY inventory_item_id
		) b ON b.inventory_item_id = i.id
		SET i.remaining_count = i.remaining_count + b.active`,
	); err != nil {
		return fmt.Errorf("return held units: %w", err)
	}
	if _, err := m.exec(ctx, `DELETE FROM bookings`); err != nil {
		return fmt.Errorf("delete bookings: %w", err)
	}
	if _, err := m.exec(ctx, `DELETE FROM members`); err != nil {
		return fmt.Errorf("delete members: %w", err)
	}
	return nil
}

// ResetInventory deletes all inventory items along with their bookings. Members
// give back the slots held by the deleted active bookings.
func (m *MySQLAdapter) ResetInventory(ctx context.Context) error {
	if _, err := m.exec(ctx, `
		UPDATE members m
		JOIN (
			SELECT member_id, COUNT(*) AS active
			FROM bookings WHERE is_active
			GROUP BY member_id
		) b ON b.member_id = m.id
		SET m.booking_count = GREATEST(CAST(m.booking_count AS SIGNED) - b.active, 0)`,
	); err != nil {
		return fmt.Errorf("release member slots: %w", err)
	}
	if _, err := m.exec(ctx, `DELETE FROM bookings`); err != nil {
		return fmt.Errorf("delete bookings: %w", err)
	}
	if _, err := m.exec(ctx, `DELETE FROM inventory_items`); err != nil {
		return fmt.Errorf("delete inventory items: %w", err)
	}
	return nil
}
