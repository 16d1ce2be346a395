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

const memberColumns = `id, name, surname, booking_count, date_joined`

func (m *MySQLAdapter) GetMember(ctx context.Context, id int64) (*domain.Member, error) {
	var member domain.Member
	err := sqlx.GetContext(ctx, m.conn(ctx), &member,
		`SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query member: %w", err)
	}
	return &member, nil
}

func (m *MySQLAdapter) GetMemberByName(ctx context.Context, name, surname string) (*domain.Member, error) {
	var member domain.Member
	err := sqlx.GetContext(ctx, m.conn(ctx), &member,
		`SELECT `+memberColumns+` FROM members WHERE name = ? AND surname = ? ORDER BY id LIMIT 1`,
		name, surname)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query member by name: %w", err)
	}
	return &member, nil
}

func (m *MySQLAdapter) CreateMember(ctx context.Context, member domain.Member) (domain.Member, error) {
	result, err := sqlx.NamedExecContext(ctx, m.conn(ctx), `
		INSERT INTO members (name, surname, booking_count, date_joined)
		VALUES (:name, :surname, :booking_count, :date_joined)`,
		member,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return domain.Member{}, fmt.Errorf("insert member: %w", port.ErrDuplicateKey)
		}
		return domain.Member{}, fmt.Errorf("insert member: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return domain.Member{}, fmt.Errorf("member id: %w", err)
	}
	member.ID = id
	return member, nil
}

func (m *MySQLAdapter) IncrementBookingCount(ctx context.Context, id int64, limit int) (bool, error) {
	rows, err := m.exec(ctx, `
		UPDATE members
		SET booking_count = booking_count + 1
		WHERE id = ? AND booking_count < ?`,
		id, limit,
	)
	if err != nil {
		return false, fmt.Errorf("increment booking count: %w", err)
	}
	return rows == 1, nil
}

func (m *MySQLAdapter) DecrementBookingCount(ctx context.Context, id int64) (bool, error) {
	rows, err := m.exec(ctx, `
		UPDATE members
		SET booking_count = booking_count - 1
		WHERE id = ? AND booking_count > 0`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("decrement booking count: %w", err)
	}
	return rows == 1, nil
}
