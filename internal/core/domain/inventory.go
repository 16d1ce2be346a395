package domain

import "time"

// ExpirationDateLayout is the wire format of InventoryItem.ExpirationDate.
const ExpirationDateLayout = "2006-01-02"

type InventoryItem struct {
	ID             int64     `db:"id"`
	Title          string    `db:"title"`
	Description    string    `db:"description"`
	RemainingCount int       `db:"remaining_count"`
	ExpirationDate time.Time `db:"expiration_date"`
}

func (i InventoryItem) IsAvailable() bool {
	return i.RemainingCount > 0
}

// IsExpired reports whether the expiration date falls on a calendar day before now.
// Only the date part of both values is compared.
func (i InventoryItem) IsExpired(now time.Time) bool {
	ey, em, ed := i.ExpirationDate.Date()
	ny, nm, nd := now.Date()
	expiry := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return expiry.Before(today)
}
