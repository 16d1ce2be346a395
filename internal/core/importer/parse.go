package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rl1809/inventory-booking/internal/core/domain"
)

var (
	memberColumns    = []string{"name", "surname", "booking_count", "date_joined"}
	inventoryColumns = []string{"title", "description", "remaining_count", "expiration_date"}
)

// Accepted date_joined layouts, tried in order.
var dateJoinedLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Day and month may be written with or without a leading zero.
const expirationDateLayout = "2/1/2006"

// RowError reports a CSV record that could not be parsed. Row counts the
// header as row 1.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ParseMembers reads members from CSV. Booking counts are taken as given.
func ParseMembers(r io.Reader) ([]domain.Member, error) {
	var members []domain.Member
	err := readRecords(r, memberColumns, func(row int, get func(string) string) error {
		count, err := parseCount(get("booking_count"))
		if err != nil {
			return fmt.Errorf("booking_count: %w", err)
		}
		joined, err := parseDateJoined(get("date_joined"))
		if err != nil {
			return fmt.Errorf("date_joined: %w", err)
		}
		members = append(members, domain.Member{
			Name:         get("name"),
			Surname:      get("surname"),
			BookingCount: count,
			DateJoined:   joined,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// ParseInventory reads inventory items from CSV.
func ParseInventory(r io.Reader) ([]domain.InventoryItem, error) {
	var items []domain.InventoryItem
	seen := make(map[string]int)
	err := readRecords(r, inventoryColumns, func(row int, get func(string) string) error {
		title := get("title")
		if title == "" {
			return errors.New("title: empty")
		}
		if prev, ok := seen[title]; ok {
			return fmt.Errorf("title: %q already defined on row %d", title, prev)
		}
		seen[title] = row

		count, err := parseCount(get("remaining_count"))
		if err != nil {
			return fmt.Errorf("remaining_count: %w", err)
		}
		expiration, err := time.ParseInLocation(expirationDateLayout, get("expiration_date"), time.UTC)
		if err != nil {
			return fmt.Errorf("expiration_date: expected DD/MM/YYYY, got %q", get("expiration_date"))
		}
		items = append(items, domain.InventoryItem{
			Title:          title,
			Description:    get("description"),
			RemainingCount: count,
			ExpirationDate: expiration,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func readRecords(r io.Reader, required []string, fn func(row int, get func(string) string) error) error {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return errors.New("empty csv: missing header")
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return fmt.Errorf("missing column %q", col)
		}
	}

	reader.FieldsPerRecord = len(header)
	for row := 2; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &RowError{Row: row, Err: err}
		}

		get := func(col string) string {
			return strings.TrimSpace(record[index[col]])
		}
		if err := fn(row, get); err != nil {
			return &RowError{Row: row, Err: err}
		}
	}
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}

func parseDateJoined(s string) (time.Time, error) {
	for _, layout := range dateJoinedLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
