package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const ReferenceLength = 8

type Booking struct {
	ID              int64     `db:"id"`
	Reference       string    `db:"booking_reference"`
	MemberID        int64     `db:"member_id"`
	InventoryItemID int64     `db:"inventory_item_id"`
	BookingDate     time.Time `db:"booking_date"`
	IsActive        bool      `db:"is_active"`
}

// NewBookingReference returns an upper-cased prefix of a random UUID.
// Uniqueness is enforced by the store; callers retry on collision.
func NewBookingReference() string {
	return strings.ToUpper(uuid.NewString()[:ReferenceLength])
}

// BookingResult is what a successful booking reports back to the caller.
type BookingResult struct {
	Reference  string
	MemberName string
	ItemTitle  string
	BookedAt   time.Time
}
