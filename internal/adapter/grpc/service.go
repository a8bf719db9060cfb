package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// TicketServiceName is the fully qualified gRPC service name
const TicketServiceName = "cinexpo.tickets.v1.TicketService"

const (
	IssuePaymentMethod = "/" + TicketServiceName + "/IssuePayment"
	RedeemTicketMethod = "/" + TicketServiceName + "/RedeemTicket"
	GetTicketMethod    = "/" + TicketServiceName + "/GetTicket"
)

// TicketServiceServer is the server API for the ticket service.
// Messages are google.protobuf.Struct documents with the same fields as the HTTP API.
type TicketServiceServer interface {
	IssuePayment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RedeemTicket(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTicket(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv TicketServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TicketServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(TicketServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// TicketServiceDesc describes the ticket service for grpc.Server.RegisterService
var TicketServiceDesc = grpc.ServiceDesc{
	ServiceName: TicketServiceName,
	HandlerType: (*TicketServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "IssuePayment",
			Handler: unaryHandler(IssuePaymentMethod, func(srv TicketServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return srv.IssuePayment(ctx, in)
			}),
		},
		{
			MethodName: "RedeemTicket",
			Handler: unaryHandler(RedeemTicketMethod, func(srv TicketServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return srv.RedeemTicket(ctx, in)
			}),
		},
		{
			MethodName: "GetTicket",
			Handler: unaryHandler(GetTicketMethod, func(srv TicketServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return srv.GetTicket(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cinexpo/tickets/v1/tickets.proto",
}

// RegisterTicketServiceServer registers srv on s
func RegisterTicketServiceServer(s grpc.ServiceRegistrar, srv TicketServiceServer) {
	s.RegisterService(&TicketServiceDesc, srv)
}

// TicketServiceClient is the client API for the ticket service
type TicketServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewTicketServiceClient(cc grpc.ClientConnInterface) *TicketServiceClient {
	return &TicketServiceClient{cc: cc}
}

func (c *TicketServiceClient) IssuePayment(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, IssuePaymentMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TicketServiceClient) RedeemTicket(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RedeemTicketMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TicketServiceClient) GetTicket(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetTicketMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
