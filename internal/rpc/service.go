package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "kiosk.v1.OrderService"

// OrderServiceServer is implemented by the orders service handler.
type OrderServiceServer interface {
	PlaceOrder(context.Context, *PlaceOrderRequest) (*OrderResponse, error)
	PlaceStaffOrder(context.Context, *StaffOrderRequest) (*OrderResponse, error)
	ChangeStatus(context.Context, *ChangeStatusRequest) (*OrderResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*OrderResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*OrderResponse, error)
	ActiveOrders(context.Context, *ActiveOrdersRequest) (*OrdersResponse, error)
	Queue(context.Context, *QueueRequest) (*OrdersResponse, error)
	StockReport(context.Context, *StockReportRequest) (*StockReportResponse, error)

	CreateAssignment(context.Context, *CreateAssignmentRequest) (*AssignmentResponse, error)
	UpdateLimits(context.Context, *UpdateLimitsRequest) (*AssignmentResponse, error)
	EnableSurvey(context.Context, *AssignmentRequest) (*AssignmentResponse, error)
	SetOrdering(context.Context, *SetOrderingRequest) (*AssignmentResponse, error)
	EndCare(context.Context, *AssignmentRequest) (*AssignmentResponse, error)
	ActiveAssignment(context.Context, *ActiveAssignmentRequest) (*AssignmentResponse, error)
	DeviceSession(context.Context, *DeviceSessionRequest) (*DeviceSessionResponse, error)

	SubmitFeedback(context.Context, *SubmitFeedbackRequest) (*FeedbackResponse, error)
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&OrderService_ServiceDesc, srv)
}

var OrderService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("PlaceOrder", OrderServiceServer.PlaceOrder),
		unary("PlaceStaffOrder", OrderServiceServer.PlaceStaffOrder),
		unary("ChangeStatus", OrderServiceServer.ChangeStatus),
		unary("CancelOrder", OrderServiceServer.CancelOrder),
		unary("GetOrder", OrderServiceServer.GetOrder),
		unary("ActiveOrders", OrderServiceServer.ActiveOrders),
		unary("Queue", OrderServiceServer.Queue),
		unary("StockReport", OrderServiceServer.StockReport),
		unary("CreateAssignment", OrderServiceServer.CreateAssignment),
		unary("UpdateLimits", OrderServiceServer.UpdateLimits),
		unary("EnableSurvey", OrderServiceServer.EnableSurvey),
		unary("SetOrdering", OrderServiceServer.SetOrdering),
		unary("EndCare", OrderServiceServer.EndCare),
		unary("ActiveAssignment", OrderServiceServer.ActiveAssignment),
		unary("DeviceSession", OrderServiceServer.DeviceSession),
		unary("SubmitFeedback", OrderServiceServer.SubmitFeedback),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kiosk/v1/orders",
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func unary[Req, Resp any](name string, call func(OrderServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(OrderServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(OrderServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// OrderServiceClient mirrors OrderServiceServer for callers. Errors are
// gRPC statuses; FromError turns them back into kiosk errors.
type OrderServiceClient interface {
	PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error)
	PlaceStaffOrder(ctx context.Context, in *StaffOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error)
	ChangeStatus(ctx context.Context, in *ChangeStatusRequest, opts ...grpc.CallOption) (*OrderResponse, error)
	CancelOrder(ctx context.Context, in *CancelOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error)
	GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error)
	ActiveOrders(ctx context.Context, in *ActiveOrdersRequest, opts ...grpc.CallOption) (*OrdersResponse, error)
	Queue(ctx context.Context, in *QueueRequest, opts ...grpc.CallOption) (*OrdersResponse, error)
	StockReport(ctx context.Context, in *StockReportRequest, opts ...grpc.CallOption) (*StockReportResponse, error)

	CreateAssignment(ctx context.Context, in *CreateAssignmentRequest, opts ...grpc.CallOption) (*AssignmentResponse, error)
	UpdateLimits(ctx context.Context, in *UpdateLimitsRequest, opts ...grpc.CallOption) (*AssignmentResponse, error)
	EnableSurvey(ctx context.Context, in *AssignmentRequest, opts ...grpc.CallOption) (*AssignmentResponse, error)
	SetOrdering(ctx context.Context, in *SetOrderingRequest, opts ...grpc.CallOption) (*AssignmentResponse, error)
	EndCare(ctx context.Context, in *AssignmentRequest, opts ...grpc.CallOption) (*AssignmentResponse, error)
	ActiveAssignment(ctx context.Context, in *ActiveAssignmentRequest, opts ...grpc.CallOption) (*AssignmentResponse, error)
	DeviceSession(ctx context.Context, in *DeviceSessionRequest, opts ...grpc.CallOption) (*DeviceSessionResponse, error)

	SubmitFeedback(ctx context.Context, in *SubmitFeedbackRequest, opts ...grpc.CallOption) (*FeedbackResponse, error)
}

type orderServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderServiceClient(cc grpc.ClientConnInterface) OrderServiceClient {
	return &orderServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, name string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orderServiceClient) PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, "PlaceOrder", in, opts)
}

func (c *orderServiceClient) PlaceStaffOrder(ctx context.Context, in *StaffOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, "PlaceStaffOrder", in, opts)
}

func (c *orderServiceClient) ChangeStatus(ctx context.Context, in *ChangeStatusRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, "ChangeStatus", in, opts)
}

func (c *orderServiceClient) CancelOrder(ctx context.Context, in *CancelOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, "CancelOrder", in, opts)
}

func (c *orderServiceClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, "GetOrder", in, opts)
}

func (c *orderServiceClient) ActiveOrders(ctx context.Context, in *ActiveOrdersRequest, opts ...grpc.CallOption) (*OrdersResponse, error) {
	return invoke[OrdersResponse](ctx, c.cc, "ActiveOrders", in, opts)
}

func (c *orderServiceClient) Queue(ctx context.Context, in *QueueRequest, opts ...grpc.CallOption) (*OrdersResponse, error) {
	return invoke[OrdersResponse](ctx, c.cc, "Queue", in, opts)
}

func (c *orderServiceClient) StockReport(ctx context.Context, in *StockReportRequest, opts ...grpc.CallOption) (*StockReportResponse, error) {
	return invoke[StockReportResponse](ctx, c.cc, "StockReport", in, opts)
}

func (c *orderServiceClient) CreateAssignment(ctx context.Context, in *CreateAssignmentRequest, opts ...grpc.CallOption) (*AssignmentResponse, error) {
	return invoke[AssignmentResponse](ctx, c.cc, "CreateAssignment", in, opts)
}

func (c *orderServiceClient) UpdateLimits(ctx context.Context, in *UpdateLimitsRequest, opts ...grpc.CallOption) (*AssignmentResponse, error) {
	return invoke[AssignmentResponse](ctx, c.cc, "UpdateLimits", in, opts)
}

func (c *orderServiceClient) EnableSurvey(ctx context.Context, in *AssignmentRequest, opts ...grpc.CallOption) (*AssignmentResponse, error) {
	return invoke[AssignmentResponse](ctx, c.cc, "EnableSurvey", in, opts)
}

func (c *orderServiceClient) SetOrdering(ctx context.Context, in *SetOrderingRequest, opts ...grpc.CallOption) (*AssignmentResponse, error) {
	return invoke[AssignmentResponse](ctx, c.cc, "SetOrdering", in, opts)
}

func (c *orderServiceClient) EndCare(ctx context.Context, in *AssignmentRequest, opts ...grpc.CallOption) (*AssignmentResponse, error) {
	return invoke[AssignmentResponse](ctx, c.cc, "EndCare", in, opts)
}

func (c *orderServiceClient) ActiveAssignment(ctx context.Context, in *ActiveAssignmentRequest, opts ...grpc.CallOption) (*AssignmentResponse, error) {
	return invoke[AssignmentResponse](ctx, c.cc, "ActiveAssignment", in, opts)
}

func (c *orderServiceClient) DeviceSession(ctx context.Context, in *DeviceSessionRequest, opts ...grpc.CallOption) (*DeviceSessionResponse, error) {
	return invoke[DeviceSessionResponse](ctx, c.cc, "DeviceSession", in, opts)
}

func (c *orderServiceClient) SubmitFeedback(ctx context.Context, in *SubmitFeedbackRequest, opts ...grpc.CallOption) (*FeedbackResponse, error) {
	return invoke[FeedbackResponse](ctx, c.cc, "SubmitFeedback", in, opts)
}
