package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/inventory-booking/internal/core/domain"
	"github.com/rl1809/inventory-booking/internal/core/service"
)

var bookedAt = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

// Mock BookingService
type mockBookingService struct {
	bookErr    error
	cancelErr  error
	listErr    error
	lastBook   service.BookItemInput
	lastCancel string
}

func (m *mockBookingService) BookItem(ctx context.Context, in service.BookItemInput) (domain.BookingResult, error) {
	m.lastBook = in
	if m.bookErr != nil {
		return domain.BookingResult{}, m.bookErr
	}
	return domain.BookingResult{
		Reference:  "ABCD1234",
		MemberName: "Sophie Davis",
		ItemTitle:  in.ItemTitle,
		BookedAt:   bookedAt,
	}, nil
}

func (m *mockBookingService) CancelBooking(ctx context.Context, reference string) error {
	m.lastCancel = reference
	return m.cancelErr
}

func (m *mockBookingService) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return []domain.InventoryItem{
		{ID: 1, Title: "Bali", Description: "Island", RemainingCount: 5, ExpirationDate: time.Date(2030, 11, 19, 0, 0, 0, 0, time.UTC)},
	}, nil
}

func (m *mockBookingService) ListMemberBookings(ctx context.Context, memberID int64) ([]domain.Booking, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if memberID != 1 {
		return nil, domain.ErrMemberNotFound
	}
	return []domain.Booking{
		{ID: 7, Reference: "ABCD1234", MemberID: 1, InventoryItemID: 1, BookingDate: bookedAt, IsActive: true},
	}, nil
}

func capacityErr() error {
	return fmt.Errorf("%w (%d)", domain.ErrMaxBookingsReached, 2)
}

var errDatabaseDown = errors.New("dial tcp 127.0.0.1:3306: connect: connection refused")
