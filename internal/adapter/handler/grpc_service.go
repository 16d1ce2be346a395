package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// Messages travel as JSON; callers select it with the "json" content-subtype.
const codecName = "json"

const bookingServiceName = "booking.v1.BookingService"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type BookItemRequest struct {
	MemberID       int64  `json:"member_id"`
	ItemTitle      string `json:"item_title"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type BookItemResponse struct {
	BookingReference string `json:"booking_reference"`
	MemberName       string `json:"member_name"`
	ItemTitle        string `json:"item_title"`
	BookingDate      string `json:"booking_date"`
}

type CancelBookingRequest struct {
	BookingReference string `json:"booking_reference"`
}

type CancelBookingResponse struct {
	Message string `json:"message"`
}

type ListInventoryRequest struct{}

type ListInventoryResponse struct {
	Items []InventoryItemResponse `json:"items"`
}

type ListMemberBookingsRequest struct {
	MemberID int64 `json:"member_id"`
}

type ListMemberBookingsResponse struct {
	Bookings []MemberBookingResponse `json:"bookings"`
}

type BookingServiceServer interface {
	BookItem(ctx context.Context, req *BookItemRequest) (*BookItemResponse, error)
	CancelBooking(ctx context.Context, req *CancelBookingRequest) (*CancelBookingResponse, error)
	ListInventory(ctx context.Context, req *ListInventoryRequest) (*ListInventoryResponse, error)
	ListMemberBookings(ctx context.Context, req *ListMemberBookingsRequest) (*ListMemberBookingsResponse, error)
}

var BookingServiceDesc = grpc.ServiceDesc{
	ServiceName: bookingServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "BookItem", Handler: unaryHandler("BookItem", BookingServiceServer.BookItem)},
		{MethodName: "CancelBooking", Handler: unaryHandler("CancelBooking", BookingServiceServer.CancelBooking)},
		{MethodName: "ListInventory", Handler: unaryHandler("ListInventory", BookingServiceServer.ListInventory)},
		{MethodName: "ListMemberBookings", Handler: unaryHandler("ListMemberBookings", BookingServiceServer.ListMemberBookings)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "booking/v1/booking.json",
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&BookingServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + bookingServiceName + "/" + method
}

func unaryHandler[Req, Resp any](method string, call func(BookingServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// BookingServiceClient calls booking.v1.BookingService with the JSON codec.
type BookingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingServiceClient(cc grpc.ClientConnInterface) *BookingServiceClient {
	return &BookingServiceClient{cc: cc}
}

func (c *BookingServiceClient) BookItem(ctx context.Context, in *BookItemRequest, opts ...grpc.CallOption) (*BookItemResponse, error) {
	out := new(BookItemResponse)
	if err := c.invoke(ctx, "BookItem", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) CancelBooking(ctx context.Context, in *CancelBookingRequest, opts ...grpc.CallOption) (*CancelBookingResponse, error) {
	out := new(CancelBookingResponse)
	if err := c.invoke(ctx, "CancelBooking", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) ListInventory(ctx context.Context, in *ListInventoryRequest, opts ...grpc.CallOption) (*ListInventoryResponse, error) {
	out := new(ListInventoryResponse)
	if err := c.invoke(ctx, "ListInventory", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) ListMemberBookings(ctx context.Context, in *ListMemberBookingsRequest, opts ...grpc.CallOption) (*ListMemberBookingsResponse, error) {
	out := new(ListMemberBookingsResponse)
	if err := c.invoke(ctx, "ListMemberBookings", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}
