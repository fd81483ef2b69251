package command

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tankguard.v1.CommandService"

// Full method names.
const (
	MethodArm            = "/" + ServiceName + "/Arm"
	MethodDisarm         = "/" + ServiceName + "/Disarm"
	MethodSuspendAutoArm = "/" + ServiceName + "/SuspendAutoArm"
	MethodGetStatus      = "/" + ServiceName + "/GetStatus"
)

// CommandServiceServer is the server API of the command service.
type CommandServiceServer interface {
	Arm(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error)
	Disarm(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error)
	SuspendAutoArm(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error)
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterCommandServiceServer registers srv on the gRPC registrar.
func RegisterCommandServiceServer(r grpc.ServiceRegistrar, srv CommandServiceServer) {
	r.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CommandServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Arm", Handler: structHandler(MethodArm, CommandServiceServer.Arm)},
		{MethodName: "Disarm", Handler: structHandler(MethodDisarm, CommandServiceServer.Disarm)},
		{MethodName: "SuspendAutoArm", Handler: structHandler(MethodSuspendAutoArm, CommandServiceServer.SuspendAutoArm)},
		{MethodName: "GetStatus", Handler: getStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tankguard/v1/command.proto",
}

type structMethod func(CommandServiceServer, context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)

func structHandler(fullMethod string, call structMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return call(srv.(CommandServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CommandServiceServer), ctx, req.(*structpb.Struct))
		}

		return interceptor(ctx, in, info, handler)
	}
}

func getStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(CommandServiceServer).GetStatus(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetStatus}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CommandServiceServer).GetStatus(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

// CommandServiceClient is the client API of the command service.
type CommandServiceClient interface {
	Arm(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Disarm(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	SuspendAutoArm(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type commandServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewCommandServiceClient creates a client on the given connection.
func NewCommandServiceClient(cc grpc.ClientConnInterface) CommandServiceClient {
	return &commandServiceClient{cc: cc}
}

func (c *commandServiceClient) Arm(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return c.reply(ctx, MethodArm, in, opts)
}

func (c *commandServiceClient) Disarm(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return c.reply(ctx, MethodDisarm, in, opts)
}

func (c *commandServiceClient) SuspendAutoArm(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return c.reply(ctx, MethodSuspendAutoArm, in, opts)
}

func (c *commandServiceClient) GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodGetStatus, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *commandServiceClient) reply(
	ctx context.Context,
	method string,
	in *structpb.Struct,
	opts []grpc.CallOption,
) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
