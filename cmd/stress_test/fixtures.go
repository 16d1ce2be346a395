package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const (
	itemTitle        = "stress-test-item"
	stressMemberName = "stress-test"
)

// cleanupFixtures removes the rows a previous run left behind: the stress item,
// the stress members and every booking touching either. Counts on rows outside
// the fixtures are given back for the active bookings that go away.
func cleanupFixtures(ctx context.Context, db *sqlx.DB) error {
	stmts := []struct {
		name  string
		query string
		arg   string
	}{
		{"release member slots", `
			UPDATE members m
			JOIN (
				SELECT b.member_id, COUNT(*) AS active
				FROM bookings b
				JOIN inventory_items i ON i.id = b.inventory_item_id
				WHERE b.is_active AND i.title = ?
				GROUP BY b.member_id
			) x ON x.member_id = m.id
			SET m.booking_count = GREATEST(CAST(m.booking_count AS SIGNED) - x.active, 0)`, itemTitle},
		{"return held units", `
			UPDATE inventory_items i
			JOIN (
				SELECT b.inventory_item_id, COUNT(*) AS active
				FROM bookings b
				JOIN members m ON m.id = b.member_id
				WHERE b.is_active AND m.name = ?
				GROUP BY b.inventory_item_id
			) x ON x.inventory_item_id = i.id
			SET i.remaining_count = i.remaining_count + x.active`, stressMemberName},
		{"delete item bookings", `
			DELETE b FROM bookings b
			JOIN inventory_items i ON i.id = b.inventory_item_id
			WHERE i.title = ?`, itemTitle},
		{"delete member bookings", `
			DELETE b FROM bookings b
			JOIN members m ON m.id = b.member_id
			WHERE m.name = ?`, stressMemberName},
		{"delete item", `DELETE FROM inventory_items WHERE title = ?`, itemTitle},
		{"delete members", `DELETE FROM members WHERE name = ?`, stressMemberName},
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt.query, stmt.arg); err != nil {
			return fmt.Errorf("%s: %w", stmt.name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
