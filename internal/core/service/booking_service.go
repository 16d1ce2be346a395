package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-booking/internal/clock"
	"github.com/rl1809/inventory-booking/internal/core/domain"
	"github.com/rl1809/inventory-booking/internal/port"
)

const (
	idempotencyKeyPrefix = "booking:idempotency:"
	referenceAttempts    = 3
	defaultQueueSize     = 1024
)

type Repositories struct {
	Tx        port.Transactor
	Members   port.MemberRepository
	Inventory port.InventoryRepository
	Bookings  port.BookingRepository
}

type BookingService struct {
	repos       Repositories
	cache       port.CacheRepository
	clock       clock.Clock
	logger      *zap.Logger
	tracer      trace.Tracer
	maxBookings int

	queueMu     sync.RWMutex
	queueClosed bool
	eventQueue  chan domain.BookingEvent
}

type Option func(*BookingService)

// WithMaxBookings overrides the per-member booking cap.
func WithMaxBookings(n int) Option {
	return func(s *BookingService) {
		if n > 0 {
			s.maxBookings = n
		}
	}
}

// WithIdempotency enables idempotency keys backed by cache.
func WithIdempotency(cache port.CacheRepository) Option {
	return func(s *BookingService) {
		s.cache = cache
	}
}

func WithClock(clk clock.Clock) Option {
	return func(s *BookingService) {
		s.clock = clk
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *BookingService) {
		s.logger = logger
	}
}

// WithEventQueueSize sizes the buffer between the service and the event workers.
func WithEventQueueSize(n int) Option {
	return func(s *BookingService) {
		if n > 0 {
			s.eventQueue = make(chan domain.BookingEvent, n)
		}
	}
}

func NewBookingService(repos Repositories, opts ...Option) *BookingService {
	s := &BookingService{
		repos:       repos,
		clock:       clock.NewSystem(),
		logger:      zap.NewNop(),
		tracer:      otel.Tracer("github.com/rl1809/inventory-booking/internal/core/service"),
		maxBookings: domain.DefaultMaxBookings,
		eventQueue:  make(chan domain.BookingEvent, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BookingService) MaxBookings() int {
	return s.maxBookings
}

type BookItemInput struct {
	MemberID       int64
	ItemTitle      string
	IdempotencyKey string
}

// BookItem reserves one unit of the titled item for the member. All checks and
// writes share one transaction; the counter updates are conditional, so a request
// that loses a race on the last unit or on the member's cap is rolled back.
func (s *BookingService) BookItem(ctx context.Context, in BookItemInput) (domain.BookingResult, error) {
	ctx, span := s.tracer.Start(ctx, "BookingService.BookItem", trace.WithAttributes(
		attribute.Int64("member.id", in.MemberID),
		attribute.String("item.title", in.ItemTitle),
	))
	defer span.End()

	var key string
	if in.IdempotencyKey != "" && s.cache != nil {
		key = idempotencyKeyPrefix + in.IdempotencyKey
		ok, err := s.cache.SetIdempotency(ctx, key)
		if err != nil {
			return domain.BookingResult{}, s.fail(span, fmt.Errorf("idempotency check failed: %w", err))
		}
		if !ok {
			return domain.BookingResult{}, s.fail(span, domain.ErrDuplicateRequest)
		}
	}

	result, err := s.bookItem(ctx, in)
	if err != nil {
		if key != "" {
			if clearErr := s.cache.ClearIdempotency(ctx, key); clearErr != nil {
				s.logger.Warn("release idempotency key", zap.String("key", key), zap.Error(clearErr))
			}
		}
		return domain.BookingResult{}, s.fail(span, err)
	}

	span.SetAttributes(attribute.String("booking.reference", result.Reference))
	return result, nil
}

func (s *BookingService) bookItem(ctx context.Context, in BookItemInput) (domain.BookingResult, error) {
	now := s.clock.Now()
	var (
		result  domain.BookingResult
		booking domain.Booking
	)

	err := s.repos.Tx.WithTx(ctx, func(txCtx context.Context) error {
		member, err := s.repos.Members.GetMember(txCtx, in.MemberID)
		if err != nil {
			return fmt.Errorf("get member: %w", err)
		}
		if member == nil {
			return domain.ErrMemberNotFound
		}
		if !member.CanBook(s.maxBookings) {
			return s.capacityError()
		}

		item, err := s.repos.Inventory.GetItemByTitle(txCtx, in.ItemTitle)
		if err != nil {
			return fmt.Errorf("get inventory item: %w", err)
		}
		if item == nil {
			return domain.ErrItemNotFound
		}
		if !item.IsAvailable() {
			return domain.ErrItemUnavailable
		}
		if item.IsExpired(now) {
			return domain.ErrItemExpired
		}

		// Row locks are taken item first, then member, before the insert's
		// foreign key checks touch either row.
		ok, err := s.repos.Inventory.DecreaseQuantity(txCtx, item.ID)
		if err != nil {
			return fmt.Errorf("decrease quantity: %w", err)
		}
		if !ok {
			return domain.ErrItemUnavailable
		}

		ok, err = s.repos.Members.IncrementBookingCount(txCtx, member.ID, s.maxBookings)
		if err != nil {
			return fmt.Errorf("increment booking count: %w", err)
		}
		if !ok {
			return s.capacityError()
		}

		booking, err = s.createBooking(txCtx, member.ID, item.ID, now)
		if err != nil {
			s.logger.Error("create booking",
				zap.Int64("member_id", member.ID),
				zap.Int64("item_id", item.ID),
				zap.Error(err),
			)
			return domain.ErrBookingCreateFailed
		}

		result = domain.BookingResult{
			Reference:  booking.Reference,
			MemberName: member.FullName(),
			ItemTitle:  item.Title,
			BookedAt:   booking.BookingDate,
		}
		return nil
	})
	if err != nil {
		return domain.BookingResult{}, err
	}

	s.logger.Info("booking created",
		zap.String("reference", booking.Reference),
		zap.Int64("member_id", booking.MemberID),
		zap.Int64("item_id", booking.InventoryItemID),
	)
	s.enqueue(domain.BookingEvent{
		Type:            domain.EventBookingCreated,
		Reference:       booking.Reference,
		MemberID:        booking.MemberID,
		InventoryItemID: booking.InventoryItemID,
		OccurredAt:      now,
	})

	return result, nil
}

// createBooking retries with a fresh reference when the generated one collides.
func (s *BookingService) createBooking(ctx context.Context, memberID, itemID int64, now time.Time) (domain.Booking, error) {
	var lastErr error
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		booking, err := s.repos.Bookings.CreateBooking(ctx, domain.Booking{
			Reference:       domain.NewBookingReference(),
			MemberID:        memberID,
			InventoryItemID: itemID,
			BookingDate:     now,
			IsActive:        true,
		})
		if err == nil {
			return booking, nil
		}
		if !errors.Is(err, port.ErrDuplicateKey) {
			return domain.Booking{}, err
		}
		lastErr = err
	}
	return domain.Booking{}, fmt.Errorf("reference collision after %d attempts: %w", referenceAttempts, lastErr)
}

// CancelBooking deactivates the booking and returns its unit and member slot.
func (s *BookingService) CancelBooking(ctx context.Context, reference string) error {
	ctx, span := s.tracer.Start(ctx, "BookingService.CancelBooking", trace.WithAttributes(
		attribute.String("booking.reference", reference),
	))
	defer span.End()

	var booking domain.Booking
	err := s.repos.Tx.WithTx(ctx, func(txCtx context.Context) error {
		found, err := s.repos.Bookings.GetBookingByReference(txCtx, reference)
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if found == nil {
			return domain.ErrBookingNotFound
		}
		if !found.IsActive {
			return domain.ErrBookingAlreadyCancelled
		}
		booking = *found

		ok, err := s.repos.Bookings.CancelBooking(txCtx, reference)
		if err != nil {
			s.logger.Error("cancel booking", zap.String("reference", reference), zap.Error(err))
			return domain.ErrBookingCancelFailed
		}
		if !ok {
			return domain.ErrBookingCancelFailed
		}

		ok, err = s.repos.Inventory.IncreaseQuantity(txCtx, booking.InventoryItemID)
		if err != nil {
			return fmt.Errorf("increase quantity: %w", err)
		}
		if !ok {
			s.logger.Warn("inventory item missing on cancel",
				zap.String("reference", reference),
				zap.Int64("item_id", booking.InventoryItemID),
			)
		}

		ok, err = s.repos.Members.DecrementBookingCount(txCtx, booking.MemberID)
		if err != nil {
			return fmt.Errorf("decrement booking count: %w", err)
		}
		if !ok {
			s.logger.Warn("member booking count already zero",
				zap.String("reference", reference),
				zap.Int64("member_id", booking.MemberID),
			)
		}
		return nil
	})
	if err != nil {
		return s.fail(span, err)
	}

	s.logger.Info("booking cancelled", zap.String("reference", reference))
	s.enqueue(domain.BookingEvent{
		Type:            domain.EventBookingCancelled,
		Reference:       booking.Reference,
		MemberID:        booking.MemberID,
		InventoryItemID: booking.InventoryItemID,
		OccurredAt:      s.clock.Now(),
	})
	return nil
}

func (s *BookingService) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	items, err := s.repos.Inventory.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}

// ListMemberBookings returns the member's active bookings.
func (s *BookingService) ListMemberBookings(ctx context.Context, memberID int64) ([]domain.Booking, error) {
	member, err := s.repos.Members.GetMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	if member == nil {
		return nil, domain.ErrMemberNotFound
	}

	bookings, err := s.repos.Bookings.ListActiveBookings(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// Events exposes committed booking events for the publishing workers.
func (s *BookingService) Events() <-chan domain.BookingEvent {
	return s.eventQueue
}

// Close stops event delivery. Events from calls still in flight are dropped.
func (s *BookingService) Close() {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if !s.queueClosed {
		s.queueClosed = true
		close(s.eventQueue)
	}
}

func (s *BookingService) enqueue(event domain.BookingEvent) {
	s.queueMu.RLock()
	defer s.queueMu.RUnlock()
	if s.queueClosed {
		s.logger.Warn("event queue closed, dropping event",
			zap.String("type", string(event.Type)),
			zap.String("reference", event.Reference),
		)
		return
	}

	select {
	case s.eventQueue <- event:
	default:
		s.logger.Warn("event queue full, dropping event",
			zap.String("type", string(event.Type)),
			zap.String("reference", event.Reference),
		)
	}
}

func (s *BookingService) capacityError() error {
	return fmt.Errorf("%w (%d)", domain.ErrMaxBookingsReached, s.maxBookings)
}

func (s *BookingService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	if !domain.IsBusiness(err) {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
