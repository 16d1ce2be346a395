package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rl1809/inventory-booking/internal/core/domain"
	"github.com/rl1809/inventory-booking/internal/port"
)

const itemColumns = `id, title, description, remaining_count, expiration_date`

func (m *MySQLAdapter) GetItem(ctx context.Context, id int64) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := sqlx.GetContext(ctx, m.conn(ctx), &item,
		`SELECT `+itemColumns+` FROM inventory_items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory item: %w", err)
	}
	return &item, nil
}

func (m *MySQLAdapter) GetItemByTitle(ctx context.Context, title string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := sqlx.GetContext(ctx, m.conn(ctx), &item,
		`SELECT `+itemColumns+` FROM inventory_items WHERE title = ?`, title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory item by title: %w", err)
	}
	return &item, nil
}

func (m *MySQLAdapter) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	items := []domain.InventoryItem{}
	if err := sqlx.SelectContext(ctx, m.conn(ctx), &items,
		`SELECT `+itemColumns+` FROM inventory_items ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list inventory items: %w", err)
	}
	return items, nil
}

func (m *MySQLAdapter) CreateItem(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	result, err := sqlx.NamedExecContext(ctx, m.conn(ctx), `
		INSERT INTO inventory_items (title, description, remaining_count, expiration_date)
		VALUES (:title, :description, :remaining_count, :expiration_date)`,
		item,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return domain.InventoryItem{}, fmt.Errorf("insert inventory item: %w", port.ErrDuplicateKey)
		}
		return domain.InventoryItem{}, fmt.Errorf("insert inventory item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return domain.InventoryItem{}, fmt.Errorf("inventory item id: %w", err)
	}
	item.ID = id
	return item, nil
}

func (m *MySQLAdapter) DecreaseQuantity(ctx context.Context, id int64) (bool, error) {
	rows, err := m.exec(ctx, `
		UPDATE inventory_items
		SET remaining_count = remaining_count - 1
		WHERE id = ? AND remaining_count > 0`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("decrease quantity: %w", err)
	}
	return rows == 1, nil
}

func (m *MySQLAdapter) IncreaseQuantity(ctx context.Context, id int64) (bool, error) {
	rows, err := m.exec(ctx, `
		UPDATE inventory_items
		SET remaining_count = remaining_count + 1
		WHERE id = ?`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("increase quantity: %w", err)
	}
	return rows == 1, nil
}
