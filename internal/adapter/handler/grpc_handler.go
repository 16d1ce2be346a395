package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/inventory-booking/internal/core/domain"
	"github.com/rl1809/inventory-booking/internal/core/service"
)

type GRPCHandler struct {
	bookingService BookingService
	logger         *zap.Logger
}

func NewGRPCHandler(bookingService BookingService, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{bookingService: bookingService, logger: logger}
}

func (h *GRPCHandler) BookItem(ctx context.Context, req *BookItemRequest) (*BookItemResponse, error) {
	result, err := h.bookingService.BookItem(ctx, service.BookItemInput{
		MemberID:       req.MemberID,
		ItemTitle:      req.ItemTitle,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, h.toStatus("BookItem", err)
	}

	return &BookItemResponse{
		BookingReference: result.Reference,
		MemberName:       result.MemberName,
		ItemTitle:        result.ItemTitle,
		BookingDate:      result.BookedAt.Format(time.RFC3339),
	}, nil
}

func (h *GRPCHandler) CancelBooking(ctx context.Context, req *CancelBookingRequest) (*CancelBookingResponse, error) {
	if err := h.bookingService.CancelBooking(ctx, req.BookingReference); err != nil {
		return nil, h.toStatus("CancelBooking", err)
	}

	return &CancelBookingResponse{
		Message: fmt.Sprintf("Booking %s cancelled successfully", req.BookingReference),
	}, nil
}

func (h *GRPCHandler) ListInventory(ctx context.Context, req *ListInventoryRequest) (*ListInventoryResponse, error) {
	items, err := h.bookingService.ListInventory(ctx)
	if err != nil {
		return nil, h.toStatus("ListInventory", err)
	}

	return &ListInventoryResponse{Items: inventoryResponse(items)}, nil
}

func (h *GRPCHandler) ListMemberBookings(ctx context.Context, req *ListMemberBookingsRequest) (*ListMemberBookingsResponse, error) {
	bookings, err := h.bookingService.ListMemberBookings(ctx, req.MemberID)
	if err != nil {
		return nil, h.toStatus("ListMemberBookings", err)
	}

	return &ListMemberBookingsResponse{Bookings: memberBookingsResponse(bookings)}, nil
}

func (h *GRPCHandler) toStatus(method string, err error) error {
	switch {
	case domain.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateRequest):
		return status.Error(codes.AlreadyExists, err.Error())
	case domain.IsConflict(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	case domain.IsPersistence(err):
		return status.Error(codes.Internal, err.Error())
	default:
		h.logger.Error("rpc failed", zap.String("method", method), zap.Error(err))
		return status.Error(codes.Internal, msgInternalServerError)
	}
}
