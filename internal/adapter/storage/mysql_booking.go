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

const bookingColumns = `id, booking_reference, member_id, inventory_item_id, booking_date, is_active`

func (m *MySQLAdapter) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	var booking domain.Booking
	err := sqlx.GetContext(ctx, m.conn(ctx), &booking,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query booking: %w", err)
	}
	return &booking, nil
}

// GetBookingByReference locks the row when called inside a transaction so
// concurrent cancellations of one reference queue up.
func (m *MySQLAdapter) GetBookingByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE booking_reference = ?`
	if txFromContext(ctx) != nil {
		query += ` FOR UPDATE`
	}

	var booking domain.Booking
	err := sqlx.GetContext(ctx, m.conn(ctx), &booking, query, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query booking by reference: %w", err)
	}
	return &booking, nil
}

func (m *MySQLAdapter) ListActiveBookings(ctx context.Context, memberID int64) ([]domain.Booking, error) {
	bookings := []domain.Booking{}
	if err := sqlx.SelectContext(ctx, m.conn(ctx), &bookings, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE member_id = ? AND is_active
		ORDER BY booking_date, id`,
		memberID,
	); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

func (m *MySQLAdapter) CreateBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	result, err := sqlx.NamedExecContext(ctx, m.conn(ctx), `
		INSERT INTO bookings (booking_reference, member_id, inventory_item_id, booking_date, is_active)
		VALUES (:booking_reference, :member_id, :inventory_item_id, :booking_date, :is_active)`,
		booking,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return domain.Booking{}, fmt.Errorf("insert booking: %w", port.ErrDuplicateKey)
		}
		return domain.Booking{}, fmt.Errorf("insert booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return domain.Booking{}, fmt.Errorf("booking id: %w", err)
	}
	booking.ID = id
	return booking, nil
}

func (m *MySQLAdapter) CancelBooking(ctx context.Context, reference string) (bool, error) {
	rows, err := m.exec(ctx, `
		UPDATE bookings
		SET is_active = FALSE
		WHERE booking_reference = ? AND is_active`,
		reference,
	)
	if err != nil {
		return false, fmt.Errorf("cancel booking: %w", err)
	}
	return rows == 1, nil
}
