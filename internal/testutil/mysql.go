package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rl1809/inventory-booking/internal/adapter/storage"
	"github.com/rl1809/inventory-booking/internal/core/domain"
	"github.com/rl1809/inventory-booking/migrations"
)

const (
	defaultTestDSN = "root:root@tcp(localhost:3306)/booking_test?parseTime=true"
	testDBLockName = "inventory_booking_tests"
)

// NewTestDB connects to MYSQL_DSN, skipping the test when MySQL is not
// reachable. Packages sharing the database are serialized with a named lock.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = defaultTestDSN
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := storage.OpenMySQL(ctx, dsn, storage.PoolConfig{MaxOpenConns: 20, MaxIdleConns: 5})
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	lockTestDB(t, db)
	return db
}

func ApplyMigrations(t *testing.T, ctx context.Context, db *sqlx.DB) {
	t.Helper()
	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
}

func TruncateAll(t *testing.T, ctx context.Context, db *sqlx.DB) {
	t.Helper()
	for _, stmt := range []string{
		`SET FOREIGN_KEY_CHECKS = 0`,
		`TRUNCATE TABLE bookings`,
		`TRUNCATE TABLE inventory_items`,
		`TRUNCATE TABLE members`,
		`SET FOREIGN_KEY_CHECKS = 1`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("truncate: %v", err)
		}
	}
}

func InsertMember(t *testing.T, ctx context.Context, db *sqlx.DB, name, surname string, bookingCount int) int64 {
	t.Helper()
	res, err := db.ExecContext(ctx,
		`INSERT INTO members (name, surname, booking_count, date_joined) VALUES (?, ?, ?, ?)`,
		name, surname, bookingCount, time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("insert member: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func InsertItem(t *testing.T, ctx context.Context, db *sqlx.DB, title string, remaining int, expiration time.Time) int64 {
	t.Helper()
	res, err := db.ExecContext(ctx,
		`INSERT INTO inventory_items (title, description, remaining_count, expiration_date) VALUES (?, ?, ?, ?)`,
		title, title+" description", remaining, expiration.Format(domain.ExpirationDateLayout),
	)
	if err != nil {
		t.Fatalf("insert inventory item: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func lockTestDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	conn, err := db.Connx(ctx)
	if err != nil {
		t.Fatalf("acquire lock conn: %v", err)
	}
	var locked int
	if err := conn.GetContext(ctx, &locked, `SELECT GET_LOCK(?, 60)`, testDBLockName); err != nil || locked != 1 {
		conn.Close()
		t.Fatalf("acquire test lock: %v", err)
	}

	t.Cleanup(func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT RELEASE_LOCK(?)`, testDBLockName)
		conn.Close()
	})
}
