package domain

import "errors"

// Error texts are returned to API clients verbatim.
var (
	ErrMemberNotFound  = errors.New("Member not found")
	ErrItemNotFound    = errors.New("Inventory item not found")
	ErrBookingNotFound = errors.New("Booking not found")

	ErrMaxBookingsReached      = errors.New("Member has reached maximum number of bookings")
	ErrItemUnavailable         = errors.New("Inventory item is not available")
	ErrItemExpired             = errors.New("Inventory item has expired")
	ErrBookingAlreadyCancelled = errors.New("Booking is already cancelled")
	ErrDuplicateRequest        = errors.New("Duplicate booking request")

	ErrBookingCreateFailed = errors.New("Failed to create booking")
	ErrBookingCancelFailed = errors.New("Failed to cancel booking")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrBookingNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrMaxBookingsReached) ||
		errors.Is(err, ErrItemUnavailable) ||
		errors.Is(err, ErrItemExpired) ||
		errors.Is(err, ErrBookingAlreadyCancelled) ||
		errors.Is(err, ErrDuplicateRequest)
}

func IsPersistence(err error) bool {
	return errors.Is(err, ErrBookingCreateFailed) || errors.Is(err, ErrBookingCancelFailed)
}

// IsBusiness reports whether err is one of the errors above rather than an
// infrastructure failure.
func IsBusiness(err error) bool {
	return IsNotFound(err) || IsConflict(err) || IsPersistence(err)
}
