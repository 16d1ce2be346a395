package domain

import "time"

type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingCancelled EventType = "booking.cancelled"
)

// BookingEvent is published after a booking or cancellation commits.
type BookingEvent struct {
	Type            EventType `json:"type"`
	Reference       string    `json:"booking_reference"`
	MemberID        int64     `json:"member_id"`
	InventoryItemID int64     `json:"inventory_item_id"`
	OccurredAt      time.Time `json:"occurred_at"`
}
