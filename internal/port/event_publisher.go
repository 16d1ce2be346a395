package port

import (
	"context"

	"github.com/rl1809/inventory-booking/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, event domain.BookingEvent) error
	Close() error
}
