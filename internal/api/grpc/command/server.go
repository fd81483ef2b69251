package command

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/tankwatch/tank-guard/internal/domain/door"
	"github.com/tankwatch/tank-guard/internal/logger"
)

// Service abstracts the operations the transport layer depends on.
type Service interface {
	Arm(ctx context.Context, id door.ChannelID, op door.Operator) (string, error)
	Disarm(ctx context.Context, id door.ChannelID, op door.Operator) (string, error)
	SuspendAutoArm(ctx context.Context, op door.Operator) (string, error)
	Status() *door.Snapshot
}

// Server implements CommandServiceServer on top of a Service.
type Server struct {
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{service: service}
}

// Arm arms the requested channel.
func (s *Server) Arm(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	return s.channelCommand(ctx, req, "arm", false, s.service.Arm)
}

// Disarm disarms the requested channel. The operator is mandatory since the
// disarm notification names them.
func (s *Server) Disarm(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	return s.channelCommand(ctx, req, "disarm", true, s.service.Disarm)
}

// SuspendAutoArm suspends time-based arming until the daily reset.
func (s *Server) SuspendAutoArm(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	op := parseOperator(req)

	reply, err := s.service.SuspendAutoArm(ctx, op)
	if err != nil {
		logger.ErrorKV(ctx, "Suspend command failed", "operator", op.String(), "error", err)

		return nil, status.Error(codes.Internal, "unable to suspend auto-arm")
	}

	return wrapperspb.String(reply), nil
}

// GetStatus returns the current snapshot.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	result, err := SnapshotToStruct(s.service.Status())
	if err != nil {
		logger.ErrorKV(ctx, "Failed to encode status", "error", err)

		return nil, status.Error(codes.Internal, "unable to encode status")
	}

	return result, nil
}

type channelMethod func(ctx context.Context, id door.ChannelID, op door.Operator) (string, error)

func (s *Server) channelCommand(
	ctx context.Context,
	req *structpb.Struct,
	name string,
	operatorRequired bool,
	call channelMethod,
) (*wrapperspb.StringValue, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	id, err := parseChannel(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	op := parseOperator(req)
	if operatorRequired && op.IsZero() {
		return nil, status.Error(codes.InvalidArgument, "operator is required to "+name)
	}

	reply, err := call(ctx, id, op)
	switch {
	case err == nil:
		logger.InfoKV(ctx, "Command handled", "command", name, "channel", int(id), "operator", op.String())

		return wrapperspb.String(reply), nil
	case errors.Is(err, door.ErrUnknownChannel):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	default:
		logger.ErrorKV(ctx, "Command failed", "command", name, "channel", int(id), "error", err)

		return nil, status.Error(codes.Internal, "unable to "+name+" channel")
	}
}
