package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-booking/internal/core/domain"
	"github.com/rl1809/inventory-booking/internal/core/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	idempotencyHeader = "Idempotency-Key"

	msgBookFieldsRequired  = "Must include member_id and item_title fields"
	msgCancelFieldRequired = "Must include booking_reference field"
	msgMemberIDType        = "member_id must be an integer"
	msgItemTitleType       = "item_title must be a string"
	msgReferenceType       = "booking_reference must be a string"
	msgInternalServerError = "Internal server error"
	msgRouteNotFound       = "Not found"
)

type HTTPHandler struct {
	bookingService BookingService
	logger         *zap.Logger
}

type BookHTTPResponse struct {
	BookingReference string `json:"booking_reference"`
	MemberName       string `json:"member_name"`
	ItemTitle        string `json:"item_title"`
	BookingDate      string `json:"booking_date"`
}

// InventoryItemResponse and MemberBookingResponse are shared by HTTP and gRPC.
type InventoryItemResponse struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	RemainingCount int    `json:"remaining_count"`
	ExpirationDate string `json:"expiration_date"`
}

type MemberBookingResponse struct {
	BookingReference string `json:"booking_reference"`
	InventoryItemID  int64  `json:"inventory_item_id"`
	BookingDate      string `json:"booking_date"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func NewHTTPHandler(bookingService BookingService, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{bookingService: bookingService, logger: logger}
}

// Routes registers every endpoint on a new mux wrapped in request logging.
func (h *HTTPHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("POST /api/book", h.Book)
	mux.HandleFunc("POST /api/cancel", h.Cancel)
	mux.HandleFunc("GET /api/inventory", h.ListInventory)
	mux.HandleFunc("GET /api/members/{member_id}/bookings", h.ListMemberBookings)
	return RequestLogger(mux, h.logger)
}

func (h *HTTPHandler) Book(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(r)
	if !ok || !body.has("member_id", "item_title") {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgBookFieldsRequired})
		return
	}
	memberID, ok := body.int64Field("member_id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgMemberIDType})
		return
	}
	itemTitle, ok := body.stringField("item_title")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgItemTitleType})
		return
	}

	result, err := h.bookingService.BookItem(r.Context(), service.BookItemInput{
		MemberID:       memberID,
		ItemTitle:      itemTitle,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, BookHTTPResponse{
		BookingReference: result.Reference,
		MemberName:       result.MemberName,
		ItemTitle:        result.ItemTitle,
		BookingDate:      result.BookedAt.Format(time.RFC3339),
	})
}

func (h *HTTPHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(r)
	if !ok || !body.has("booking_reference") {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgCancelFieldRequired})
		return
	}
	ref, ok := body.stringField("booking_reference")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgReferenceType})
		return
	}

	if err := h.bookingService.CancelBooking(r.Context(), ref); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Booking %s cancelled successfully", ref),
	})
}

func (h *HTTPHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.bookingService.ListInventory(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, inventoryResponse(items))
}

func (h *HTTPHandler) ListMemberBookings(w http.ResponseWriter, r *http.Request) {
	memberID, err := strconv.ParseInt(r.PathValue("member_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: msgRouteNotFound})
		return
	}

	bookings, err := h.bookingService.ListMemberBookings(r.Context(), memberID)
	if errors.Is(err, domain.ErrMemberNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, memberBookingsResponse(bookings))
}

func (h *HTTPHandler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "inventory-booking",
		"endpoints": []string{
			"POST /api/book",
			"POST /api/cancel",
			"GET /api/inventory",
			"GET /api/members/{member_id}/bookings",
			"GET /health",
		},
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeServiceError maps booking errors to a status. Business errors carry
// their message to the client; anything else is logged and hidden.
func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrDuplicateRequest):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case domain.IsBusiness(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternalServerError})
	}
}

// requestBody is a decoded JSON object. Fields are checked for presence first;
// an explicit null passes through as the zero value.
type requestBody map[string]any

func decodeBody(r *http.Request) (requestBody, bool) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var body requestBody
	if err := dec.Decode(&body); err != nil || body == nil {
		return nil, false
	}
	return body, true
}

func (b requestBody) has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func (b requestBody) int64Field(key string) (int64, bool) {
	switch v := b[key].(type) {
	case nil:
		return 0, true
	case interface{ Int64() (int64, error) }:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

func (b requestBody) stringField(key string) (string, bool) {
	switch v := b[key].(type) {
	case nil:
		return "", true
	case string:
		return v, true
	default:
		return "", false
	}
}

func inventoryResponse(items []domain.InventoryItem) []InventoryItemResponse {
	resp := make([]InventoryItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, InventoryItemResponse{
			ID:             item.ID,
			Title:          item.Title,
			Description:    item.Description,
			RemainingCount: item.RemainingCount,
			ExpirationDate: item.ExpirationDate.Format(domain.ExpirationDateLayout),
		})
	}
	return resp
}

func memberBookingsResponse(bookings []domain.Booking) []MemberBookingResponse {
	resp := make([]MemberBookingResponse, 0, len(bookings))
	for _, b := range bookings {
		resp = append(resp, MemberBookingResponse{
			BookingReference: b.Reference,
			InventoryItemID:  b.InventoryItemID,
			BookingDate:      b.BookingDate.Format(time.RFC3339),
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
