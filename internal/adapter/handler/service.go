package handler

import (
	"context"

	"github.com/rl1809/inventory-booking/internal/core/domain"
	"github.com/rl1809/inventory-booking/internal/core/service"
)

// BookingService is the part of service.BookingService the transports call.
type BookingService interface {
	BookItem(ctx context.Context, in service.BookItemInput) (domain.BookingResult, error)
	CancelBooking(ctx context.Context, reference string) error
	ListInventory(ctx context.Context) ([]domain.InventoryItem, error)
	ListMemberBookings(ctx context.Context, memberID int64) ([]domain.Booking, error)
}
