package port

import (
	"context"
	"errors"

	"github.com/rl1809/inventory-booking/internal/core/domain"
)

// ErrDuplicateKey is returned by create operations that violate a unique key.
var ErrDuplicateKey = errors.New("duplicate key")

// Lookups return (nil, nil) when the record does not exist.

type MemberRepository interface {
	GetMember(ctx context.Context, id int64) (*domain.Member, error)
	GetMemberByName(ctx context.Context, name, surname string) (*domain.Member, error)
	CreateMember(ctx context.Context, member domain.Member) (domain.Member, error)

	// IncrementBookingCount adds one booking if the member stays within limit
	IncrementBookingCount(ctx context.Context, id int64, limit int) (bool, error)

	// DecrementBookingCount removes one booking, never going below zero
	DecrementBookingCount(ctx context.Context, id int64) (bool, error)
}

type InventoryRepository interface {
	GetItem(ctx context.Context, id int64) (*domain.InventoryItem, error)
	GetItemByTitle(ctx context.Context, title string) (*domain.InventoryItem, error)
	ListItems(ctx context.Context) ([]domain.InventoryItem, error)
	CreateItem(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error)

	// DecreaseQuantity takes one unit if any remain
	DecreaseQuantity(ctx context.Context, id int64) (bool, error)

	// IncreaseQuantity returns one unit to stock
	IncreaseQuantity(ctx context.Context, id int64) (bool, error)
}

type BookingRepository interface {
	GetBooking(ctx context.Context, id int64) (*domain.Booking, error)
	GetBookingByReference(ctx context.Context, reference string) (*domain.Booking, error)
	ListActiveBookings(ctx context.Context, memberID int64) ([]domain.Booking, error)

	// CreateBooking persists a booking and returns it with its assigned ID.
	// Returns ErrDuplicateKey on a reference collision.
	CreateBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error)

	// CancelBooking flips an active booking to inactive, false if nothing changed
	CancelBooking(ctx context.Context, reference string) (bool, error)
}

// ImportRepository wipes tables ahead of a bulk import.
type ImportRepository interface {
	ResetMembers(ctx context.Context) error
	ResetInventory(ctx context.Context) error
}

// Transactor runs fn in a single transaction carried by the context passed to fn.
// Calls nested inside fn join the outer transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
