package domain

import "time"

// DefaultMaxBookings caps the active bookings a member may hold.
const DefaultMaxBookings = 2

type Member struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Surname      string    `db:"surname"`
	BookingCount int       `db:"booking_count"`
	DateJoined   time.Time `db:"date_joined"`
}

func (m Member) CanBook(maxBookings int) bool {
	return m.BookingCount < maxBookings
}

func (m Member) FullName() string {
	return m.Name + " " + m.Surname
}
