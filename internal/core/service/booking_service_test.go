package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rl1809/inventory-booking/internal/clock"
	"github.com/rl1809/inventory-booking/internal/core/domain"
	"github.com/rl1809/inventory-booking/internal/port"
)

var testNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

// Mock store backing all repositories. WithTx serializes transactions and
// restores a snapshot when fn fails, like a database rollback would.
type mockStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	members       map[int64]domain.Member
	items         map[int64]domain.InventoryItem
	bookings      map[int64]domain.Booking
	nextBookingID int64

	createErr     error
	cancelErr     error
	duplicateRefs int
	afterGetItem  func()
	txCount       int
}

func newMockStore() *mockStore {
	return &mockStore{
		members:  make(map[int64]domain.Member),
		items:    make(map[int64]domain.InventoryItem),
		bookings: make(map[int64]domain.Booking),
	}
}

func (m *mockStore) repos() Repositories {
	return Repositories{Tx: m, Members: m, Inventory: m, Bookings: m}
}

func (m *mockStore) addMember(id int64, name, surname string, count int) {
	m.members[id] = domain.Member{ID: id, Name: name, Surname: surname, BookingCount: count, DateJoined: testNow.AddDate(-1, 0, 0)}
}

func (m *mockStore) addItem(id int64, title string, remaining int, expiration time.Time) {
	m.items[id] = domain.InventoryItem{ID: id, Title: title, RemainingCount: remaining, ExpirationDate: expiration}
}

func (m *mockStore) member(id int64) domain.Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[id]
}

func (m *mockStore) item(id int64) domain.InventoryItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id]
}

func (m *mockStore) bookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

func (m *mockStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	m.txCount++
	members := copyMap(m.members)
	items := copyMap(m.items)
	bookings := copyMap(m.bookings)
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.members, m.items, m.bookings = members, items, bookings
		m.mu.Unlock()
		return err
	}
	return nil
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *mockStore) GetMember(ctx context.Context, id int64) (*domain.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[id]
	if !ok {
		return nil, nil
	}
	return &mem, nil
}

func (m *mockStore) GetMemberByName(ctx context.Context, name, surname string) (*domain.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.members {
		if mem.Name == name && mem.Surname == surname {
			return &mem, nil
		}
	}
	return nil, nil
}

func (m *mockStore) CreateMember(ctx context.Context, member domain.Member) (domain.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member.ID = int64(len(m.members) + 1)
	m.members[member.ID] = member
	return member, nil
}

func (m *mockStore) IncrementBookingCount(ctx context.Context, id int64, limit int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[id]
	if !ok || mem.BookingCount >= limit {
		return false, nil
	}
	mem.BookingCount++
	m.members[id] = mem
	return true, nil
}

func (m *mockStore) DecrementBookingCount(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[id]
	if !ok || mem.BookingCount <= 0 {
		return false, nil
	}
	mem.BookingCount--
	m.members[id] = mem
	return true, nil
}

func (m *mockStore) GetItem(ctx context.Context, id int64) (*domain.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *mockStore) GetItemByTitle(ctx context.Context, title string) (*domain.InventoryItem, error) {
	m.mu.Lock()
	var found *domain.InventoryItem
	for _, item := range m.items {
		if item.Title == title {
			found = &item
			break
		}
	}
	hook := m.afterGetItem
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return found, nil
}

func (m *mockStore) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]domain.InventoryItem, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *mockStore) CreateItem(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = int64(len(m.items) + 1)
	m.items[item.ID] = item
	return item, nil
}

func (m *mockStore) DecreaseQuantity(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || item.RemainingCount <= 0 {
		return false, nil
	}
	item.RemainingCount--
	m.items[id] = item
	return true, nil
}

func (m *mockStore) IncreaseQuantity(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return false, nil
	}
	item.RemainingCount++
	m.items[id] = item
	return true, nil
}

func (m *mockStore) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *mockStore) GetBookingByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.Reference == reference {
			return &b, nil
		}
	}
	return nil, nil
}

func (m *mockStore) ListActiveBookings(ctx context.Context, memberID int64) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Booking
	for _, b := range m.bookings {
		if b.MemberID == memberID && b.IsActive {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) CreateBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return domain.Booking{}, m.createErr
	}
	if m.duplicateRefs > 0 {
		m.duplicateRefs--
		return domain.Booking{}, fmt.Errorf("insert booking: %w", port.ErrDuplicateKey)
	}
	m.nextBookingID++
	booking.ID = m.nextBookingID
	m.bookings[booking.ID] = booking
	return booking, nil
}

func (m *mockStore) CancelBooking(ctx context.Context, reference string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelErr != nil {
		return false, m.cancelErr
	}
	for id, b := range m.bookings {
		if b.Reference == reference && b.IsActive {
			b.IsActive = false
			m.bookings[id] = b
			return true, nil
		}
	}
	return false, nil
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{keys: make(map[string]bool)}
}

func (c *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keys[key] {
		return false, nil
	}
	c.keys[key] = true
	return true, nil
}

func (c *mockCacheRepo) ClearIdempotency(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	return nil
}

func newTestService(store *mockStore, opts ...Option) *BookingService {
	opts = append([]Option{WithClock(clock.NewFixed(testNow))}, opts...)
	return NewBookingService(store.repos(), opts...)
}

func futureDate() time.Time {
	return time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
}

func TestBookItem_Success(t *testing.T) {
	store := newMockStore()
	store.addMember(1, "Sophie", "Davis", 0)
	store.addItem(10, "Widget", 1, futureDate())
	svc := newTestService(store)

	res, err := svc.BookItem(context.Background(), BookItemInput{MemberID: 1, ItemTitle: "Widget"})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if len(res.Reference) != domain.ReferenceLength {
		t.Errorf("expected %d char reference, got %q", domain.ReferenceLength, res.Reference)
	}
	if res.MemberName != "Sophie Davis" {
		t.Errorf("expected member name Sophie Davis, got %s", res.MemberName)
	}
	if res.ItemTitle != "Widget" {
		t.Errorf("expected item title Widget, got %s", res.ItemTitle)
	}
	if !res.BookedAt.Equal(testNow) {
		t.Errorf("expected booking date %v, got %v", testNow, res.BookedAt)
	}

	if got := store.item(10).RemainingCount; got != 0 {
		t.Errorf("expected remaining 0, got %d", got)
	}
	if got := store.member(1).BookingCount; got != 1 {
		t.Errorf("expected booking count 1, got %d", got)
	}
	if got := store.bookingCount(); got != 1 {
		t.Fatalf("expected 1 booking, got %d", got)
	}

	b, _ := store.GetBookingByReference(context.Background(), res.Reference)
	if b == nil || !b.IsActive || b.MemberID != 1 || b.InventoryItemID != 10 {
		t.Errorf("unexpected stored booking: %+v", b)
	}
	if store.txCount != 1 {
		t.Errorf("expected booking to run in 1 transaction, got %d", store.txCount)
	}
}

func TestBookItem_ValidationErrors(t *testing.T) {
	expired := time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		setup   func(s *mockStore)
		title   string
		wantErr error
		wantMsg string
	}{
		{
			name:    "member not found",
			setup:   func(s *mockStore) { s.addItem(10, "Widget", 1, futureDate()) },
			title:   "Widget",
			wantErr: domain.ErrMemberNotFound,
			wantMsg: "Member not found",
		},
		{
			name: "member at cap",
			setup: func(s *mockStore) {
				s.addMember(1, "Sophie", "Davis", 2)
				s.addItem(10, "Widget", 1, futureDate())
			},
			title:   "Widget",
			wantErr: domain.ErrMaxBookingsReached,
			wantMsg: "Member has reached maximum number of bookings (2)",
		},
		{
			name:    "item not found",
			setup:   func(s *mockStore) { s.addMember(1, "Sophie", "Davis", 0) },
			title:   "Gadget",
			wantErr: domain.ErrItemNotFound,
			wantMsg: "Inventory item not found",
		},
		{
			name: "item out of stock",
			setup: func(s *mockStore) {
				s.addMember(1, "Sophie", "Davis", 0)
				s.addItem(10, "Widget", 0, futureDate())
			},
			title:   "Widget",
			wantErr: domain.ErrItemUnavailable,
			wantMsg: "Inventory item is not available",
		},
		{
			name: "item expired",
			setup: func(s *mockStore) {
				s.addMember(1, "Sophie", "Davis", 0)
				s.addItem(10, "Widget", 3, expired)
			},
			title:   "Widget",
			wantErr: domain.ErrItemExpired,
			wantMsg: "Inventory item has expired",
		},
		{
			name: "capacity checked before item existence",
			setup: func(s *mockStore) {
				s.addMember(1, "Sophie", "Davis", 2)
			},
			title:   "Gadget",
			wantErr: domain.ErrMaxBookingsReached,
		},
		{
			name: "availability checked before expiry",
			setup: func(s *mockStore) {
				s.addMember(1, "Sophie", "Davis", 0)
				s.addItem(10, "Widget", 0, expired)
			},
			title:   "Widget",
			wantErr: domain.ErrItemUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			tt.setup(store)
			svc := newTestService(store)
			before := store.item(10).RemainingCount
			beforeCount := store.member(1).BookingCount

			_, err := svc.BookItem(context.Background(), BookItemInput{MemberID: 1, ItemTitle: tt.title})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got: %v", tt.wantErr, err)
			}
			if tt.wantMsg != "" && err.Error() != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, err.Error())
			}

			if store.bookingCount() != 0 {
				t.Error("expected no booking to be created")
			}
			if got := store.item(10).RemainingCount; got != before {
				t.Errorf("expected remaining %d unchanged, got %d", before, got)
			}
			if got := store.member(1).BookingCount; got != beforeCount {
				t.Errorf("expected booking count %d unchanged, got %d", beforeCount, got)
			}
		})
	}
}

func TestBookItem_CustomMaxBookings(t *testing.T) {
	store := newMockStore()
	store.addMember(1, "Sophie", "Davis", 2)
	store.addItem(10, "Widget", 5, futureDate())
	svc := newTestService(store, WithMaxBookings(3))

	if _, err := svc.BookItem(context.Background(), BookItemInput{MemberID: 1, ItemTitle: "Widget"}); err != nil {
		t.Fatalf("expected third booking to succeed, got: %v", err)
	}

	_, err := svc.BookItem(context.Background(), BookItemInput{MemberID: 1, ItemTitle: "Widget"})
	if err == nil || err.Error() != "Member has reached maximum number of bookings (3)" {
		t.Errorf("expected capacity error for cap 3, got: %v", err)
	}
}

func TestBookItem_CreateFailure(t *testing.T) {
	store := newMockStore()
	store.addMember(1, "Sophie", "Davis", 0)
	store.addItem(10, "Widget", 1, futureDate())
	store.createErr = errors.New("connection reset")
	svc := newTestService(store)

	_, err := svc.BookItem(context.Background(), BookItemInput{MemberID: 1, ItemTitle: "Widget"})
	if !errors.Is(err, domain.ErrBookingCreateFailed) {
		t.Fatalf("expected ErrBookingCreateFailed, got: %v", err)
	}
	if err.Error() != "Failed to create booking" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if store.item(10).RemainingCount != 1 || store.member(1).BookingCount != 0 {
		t.Error("expected counts unchanged after failed create")
	}
}

func TestBookItem_ReferenceCollision(t *testing.T) {
	t.Run("retries with a fresh reference", func(t *testing.T) {
		store := newMockStore()
		store.addMember(1, "Sophie", "Davis", 0)
		store.addItem(10, "Widget", 1, futureDate())
		store.duplicateRefs = referenceAttempts - 1
		svc := newTestService(store)

		if _, err := svc.BookItem(context.Background(), BookItemInput{MemberID: 1, ItemTitle: "Widget"}); err != nil {
			t.Fatalf("expected success after retries, got: %v", err)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		store := newMockStore()
		store.addMember(1, "Sophie", "Davis", 0)
		store.addItem(10, "Widget", 1, futureDate())
		store.duplicateRefs = referenceAttempts
		svc := newTestService(store)

		_, err := svc.BookItem(context.Background(), BookItemInput{MemberID: 1, ItemTitle: "Widget"})
		if !errors.Is(err, domain.ErrBookingCreateFailed) {
			t.Fatalf("expected ErrBookingCreateFailed, got: %v", err)
		}
	})
}

// The availability check and the decrement run in one transaction, and the
// decrement only succeeds while stock remains. A unit taken between the two
// makes the booking fail before any booking row is written.
func TestBookItem_StockTakenAfterCheck(t *testing.T) {
	store := newMockStore()
	store.addMember(1, "Sophie", "Davis", 0)
	store.addItem(10, "Widget", 1, futureDate())
	store.afterGetItem = func() {
		store.mu.Lock()
		item := store.items[10]
		item.RemainingCount = 0
		store.items[10] = item
		store.afterGetItem = nil
		store.mu.Unlock()
	}
	svc := newTestService(store)

	_, err := svc.BookItem(context.Background(), BookItemInput{MemberID: 1, ItemTitle: "Widget"})
	if !errors.Is(err, domain.ErrItemUnavailable) {
		t.Fatalf("expected ErrItemUnavailable, got: %v", err)
	}
	if store.bookingCount() != 0 {
		t.Error("expected no booking row")
	}
	if store.member(1).BookingCount != 0 {
		t.Error("expected member count unchanged")
	}
}

// Over-booking is not reproduced: concurrent requests for the last units are
// serialized by the transaction, so exactly the available stock is booked.
func TestBookItem_Concurrent(t *testing.T) {
	initialStock := 20
	totalRequests := 50

	store := newMockStore()
	for i := 1; i <= totalRequests; i++ {
		store.addMember(int64(i), "Member", fmt.Sprint(i), 0)
	}
	store.addItem(10, "Widget", initialStock, futureDate())
	svc := newTestService(store, WithEventQueueSize(totalRequests))

	var successCount atomic.Int32
	var unavailableCount atomic.Int32
	var wg sync.WaitGroup

	for i := 1; i <= totalRequests; i++ {
		wg.Add(1)
		go func(memberID int64) {
			defer wg.Done()
			_, err := svc.BookItem(context.Background(), BookItemInput{MemberID: memberID, ItemTitle: "Widget"})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrItemUnavailable):
				unavailableCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(int64(i))
	}

	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successes, got %d", initialStock, successCount.Load())
	}
	if unavailableCount.Load() != int32(totalRequests-initialStock) {
		t.Errorf("expected %d unavailable, got %d", totalRequests-initialStock, unavailableCount.Load())
	}
	if got := store.item(10).RemainingCount; got != 0 {
		t.Errorf("expected stock 0, got %d", got)
	}
	if got := store.bookingCount(); got != initialStock {
		t.Errorf("expected %d bookings, got %d", initialStock, got)
	}
}

func TestBookItem_Idempotency(t *testing.T) {
	t.Run("duplicate key rejected", func(t *testing.T) {
		store := newMockStore()
		store.addMember(1, "Sophie", "Davis", 0)
		store.addItem(10, "Widget", 5, futureDate())
		svc := newTestService(store, WithIdempotency(newMockCacheRepo()))

		in := BookItemInput{MemberID: 1, ItemTitle: "Widget", IdempotencyKey: "req-1"}
		if _, err := svc.BookItem(context.Background(), in); err != nil {
			t.Fatalf("first booking failed: %v", err)
		}

		_, err := svc.BookItem(context.Background(), in)
		if !errors.Is(err, domain.ErrDuplicateRequest) {
			t.Errorf("expected ErrDuplicateRequest, got: %v", err)
		}

		// Stock should only be decremented once
		if got := store.item(10).RemainingCount; got != 4 {
			t.Errorf("expected stock 4, got %d", got)
		}
	})

	t.Run("key released on failure", func(t *testing.T) {
		store := newMockStore()
		store.addMember(1, "Sophie", "Davis", 0)
		cache := newMockCacheRepo()
		svc := newTestService(store, WithIdempotency(cache))

		in := BookItemInput{MemberID: 1, ItemTitle: "Widget", IdempotencyKey: "req-2"}
		if _, err := svc.BookItem(context.Background(), in); !errors.Is(err, domain.ErrItemNotFound) {
			t.Fatalf("expected ErrItemNotFound, got: %v", err)
		}
		if len(cache.keys) != 0 {
			t.Errorf("expected key released, got %v", cache.keys)
		}

		store.addItem(10, "Widget", 1, futureDate())
		if _, err := svc.BookItem(context.Background(), in); err != nil {
			t.Errorf("expected retry to succeed, got: %v", err)
		}
	})

	t.Run("ignored without cache", func(t *testing.T) {
		store := newMockStore()
		store.addMember(1, "Sophie", "Davis", 0)
		store.addItem(10, "Widget", 5, futureDate())
		svc := newTestService(store)

		in := BookItemInput{MemberID: 1, ItemTitle: "Widget", IdempotencyKey: "req-3"}
		for i := 0; i < 2; i++ {
			if _, err := svc.BookItem(context.Background(), in); err != nil {
				t.Fatalf("booking %d failed: %v", i, err)
			}
		}
	})
}

func TestCancelBooking_Success(t *testing.T) {
	store := newMockStore()
	store.addMember(1, "Sophie", "Davis", 0)
	store.addItem(10, "Widget", 3, futureDate())
	svc := newTestService(store)

	res, err := svc.BookItem(context.Background(), BookItemInput{MemberID: 1, ItemTitle: "Widget"})
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	if err := svc.CancelBooking(context.Background(), res.Reference); err != nil {
		t.Fatalf("expected cancel to succeed, got: %v", err)
	}

	if got := store.item(10).RemainingCount; got != 3 {
		t.Errorf("expected remaining 3, got %d", got)
	}
	if got := store.member(1).BookingCount; got != 0 {
		t.Errorf("expected booking count 0, got %d", got)
	}

	b, _ := store.GetBookingByReference(context.Background(), res.Reference)
	if b == nil {
		t.Fatal("expected booking record retained")
	}
	if b.IsActive {
		t.Error("expected booking inactive")
	}
}

func TestCancelBooking_Errors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		svc := newTestService(newMockStore())

		err := svc.CancelBooking(context.Background(), "NOPE1234")
		if !errors.Is(err, domain.ErrBookingNotFound) || err.Error() != "Booking not found" {
			t.Errorf("expected ErrBookingNotFound, got: %v", err)
		}
	})

	t.Run("already cancelled leaves counts", func(t *testing.T) {
		store := newMockStore()
		store.addMember(1, "Sophie", "Davis", 1)
		store.addItem(10, "Widget", 0, futureDate())
		store.bookings[1] = domain.Booking{ID: 1, Reference: "ABCD1234", MemberID: 1, InventoryItemID: 10, IsActive: false}
		svc := newTestService(store)

		err := svc.CancelBooking(context.Background(), "ABCD1234")
		if !errors.Is(err, domain.ErrBookingAlreadyCancelled) || err.Error() != "Booking is already cancelled" {
			t.Fatalf("expected ErrBookingAlreadyCancelled, got: %v", err)
		}
		if store.item(10).RemainingCount != 0 || store.member(1).BookingCount != 1 {
			t.Error("expected counts unchanged")
		}
	})

	t.Run("write failure", func(t *testing.T) {
		store := newMockStore()
		store.addMember(1, "Sophie", "Davis", 1)
		store.addItem(10, "Widget", 0, futureDate())
		store.bookings[1] = domain.Booking{ID: 1, Reference: "ABCD1234", MemberID: 1, InventoryItemID: 10, IsActive: true}
		store.cancelErr = errors.New("lock wait timeout")
		svc := newTestService(store)

		err := svc.CancelBooking(context.Background(), "ABCD1234")
		if !errors.Is(err, domain.ErrBookingCancelFailed) || err.Error() != "Failed to cancel booking" {
			t.Fatalf("expected ErrBookingCancelFailed, got: %v", err)
		}
		if store.item(10).RemainingCount != 0 || store.member(1).BookingCount != 1 {
			t.Error("expected counts unchanged")
		}
	})
}

func TestCancelBooking_MemberCountFloor(t *testing.T) {
	store := newMockStore()
	store.addMember(1, "Sophie", "Davis", 0)
	store.addItem(10, "Widget", 0, futureDate())
	store.bookings[1] = domain.Booking{ID: 1, Reference: "ABCD1234", MemberID: 1, InventoryItemID: 10, IsActive: true}
	svc := newTestService(store)

	if err := svc.CancelBooking(context.Background(), "ABCD1234"); err != nil {
		t.Fatalf("expected cancel to succeed, got: %v", err)
	}
	if got := store.member(1).BookingCount; got != 0 {
		t.Errorf("expected booking count to stay 0, got %d", got)
	}
	if got := store.item(10).RemainingCount; got != 1 {
		t.Errorf("expected remaining 1, got %d", got)
	}
}

func TestBookAndCancel_Scenario(t *testing.T) {
	store := newMockStore()
	store.addMember(1, "Sophie", "Davis", 0)
	store.addMember(2, "Emily", "Johnson", 0)
	store.addItem(10, "Widget", 1, futureDate())
	svc := newTestService(store)
	ctx := context.Background()

	res, err := svc.BookItem(ctx, BookItemInput{MemberID: 1, ItemTitle: "Widget"})
	if err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	if store.item(10).RemainingCount != 0 || store.member(1).BookingCount != 1 {
		t.Fatal("expected stock 0 and member count 1 after booking")
	}

	for _, memberID := range []int64{1, 2} {
		_, err := svc.BookItem(ctx, BookItemInput{MemberID: memberID, ItemTitle: "Widget"})
		if err == nil || err.Error() != "Inventory item is not available" {
			t.Errorf("member %d: expected unavailable, got: %v", memberID, err)
		}
	}

	if err := svc.CancelBooking(ctx, res.Reference); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if store.item(10).RemainingCount != 1 || store.member(1).BookingCount != 0 {
		t.Fatal("expected stock 1 and member count 0 after cancel")
	}

	err = svc.CancelBooking(ctx, res.Reference)
	if err == nil || err.Error() != "Booking is already cancelled" {
		t.Errorf("expected already cancelled, got: %v", err)
	}
	if store.item(10).RemainingCount != 1 || store.member(1).BookingCount != 0 {
		t.Error("expected counts unchanged by second cancel")
	}
}

func TestListMemberBookings(t *testing.T) {
	store := newMockStore()
	store.addMember(1, "Sophie", "Davis", 1)
	store.bookings[1] = domain.Booking{ID: 1, Reference: "AAAA1111", MemberID: 1, InventoryItemID: 10, IsActive: false}
	store.bookings[2] = domain.Booking{ID: 2, Reference: "BBBB2222", MemberID: 1, InventoryItemID: 11, IsActive: true}
	store.bookings[3] = domain.Booking{ID: 3, Reference: "CCCC3333", MemberID: 2, InventoryItemID: 10, IsActive: true}
	svc := newTestService(store)

	bookings, err := svc.ListMemberBookings(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bookings) != 1 || bookings[0].Reference != "BBBB2222" {
		t.Errorf("expected only active booking BBBB2222, got %+v", bookings)
	}

	_, err = svc.ListMemberBookings(context.Background(), 99)
	if !errors.Is(err, domain.ErrMemberNotFound) {
		t.Errorf("expected ErrMemberNotFound, got: %v", err)
	}
}

func TestListInventory(t *testing.T) {
	store := newMockStore()
	store.addItem(2, "Gadget", 0, futureDate())
	store.addItem(1, "Widget", 4, futureDate())
	svc := newTestService(store)

	items, err := svc.ListInventory(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || items[0].Title != "Widget" || items[1].Title != "Gadget" {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestEvents_Queued(t *testing.T) {
	store := newMockStore()
	store.addMember(1, "Sophie", "Davis", 0)
	store.addItem(10, "Widget", 1, futureDate())
	svc := newTestService(store, WithEventQueueSize(10))

	res, err := svc.BookItem(context.Background(), BookItemInput{MemberID: 1, ItemTitle: "Widget"})
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if err := svc.CancelBooking(context.Background(), res.Reference); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	svc.Close()

	var events []domain.BookingEvent
	for e := range svc.Events() {
		events = append(events, e)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != domain.EventBookingCreated || events[1].Type != domain.EventBookingCancelled {
		t.Errorf("unexpected event types: %s, %s", events[0].Type, events[1].Type)
	}
	for _, e := range events {
		if e.Reference != res.Reference || e.MemberID != 1 || e.InventoryItemID != 10 {
			t.Errorf("unexpected event payload: %+v", e)
		}
	}
}

func TestEvents_DroppedWhenQueueFull(t *testing.T) {
	store := newMockStore()
	store.addMember(1, "Sophie", "Davis", 0)
	store.addItem(10, "Widget", 5, futureDate())
	svc := newTestService(store, WithEventQueueSize(1))

	for i := 0; i < 2; i++ {
		if _, err := svc.BookItem(context.Background(), BookItemInput{MemberID: 1, ItemTitle: "Widget"}); err != nil {
			t.Fatalf("booking %d failed: %v", i, err)
		}
	}

	if got := len(svc.Events()); got != 1 {
		t.Errorf("expected 1 queued event, got %d", got)
	}
}

func TestEvents_DroppedAfterClose(t *testing.T) {
	store := newMockStore()
	store.addMember(1, "Sophie", "Davis", 0)
	store.addItem(10, "Widget", 5, futureDate())
	svc := newTestService(store, WithEventQueueSize(10))

	svc.Close()
	svc.Close()

	res, err := svc.BookItem(context.Background(), BookItemInput{MemberID: 1, ItemTitle: "Widget"})
	if err != nil {
		t.Fatalf("booking after close failed: %v", err)
	}
	if err := svc.CancelBooking(context.Background(), res.Reference); err != nil {
		t.Fatalf("cancel after close failed: %v", err)
	}

	if _, open := <-svc.Events(); open {
		t.Error("expected no events after close")
	}
}

func TestEvents_CloseDuringBookings(t *testing.T) {
	store := newMockStore()
	store.addMember(1, "Sophie", "Davis", 0)
	store.addItem(10, "Widget", 100, futureDate())
	svc := newTestService(store, WithMaxBookings(100), WithEventQueueSize(100))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.BookItem(context.Background(), BookItemInput{MemberID: 1, ItemTitle: "Widget"}); err != nil {
				t.Errorf("booking failed: %v", err)
			}
		}()
	}
	svc.Close()
	wg.Wait()

	n := 0
	for range svc.Events() {
		n++
	}
	if n > 20 {
		t.Errorf("expected at most 20 events, got %d", n)
	}
}
