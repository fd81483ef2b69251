package command

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/tankwatch/tank-guard/internal/logger"
)

// Serve runs the command service on listener until ctx is done.
func Serve(ctx context.Context, listener net.Listener, service Service) error {
	ctx = logger.WithName(ctx, "grpc")

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(contextLogger(ctx)))
	RegisterCommandServiceServer(server, NewServer(service))

	logger.InfoKV(ctx, "Command service listening", "address", listener.Addr().String())

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		server.GracefulStop()
		close(done)
	}()

	if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// contextLogger gives every request the service logger tagged with the method.
func contextLogger(base context.Context) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = logger.ToContext(ctx, logger.FromContext(base).With("method", info.FullMethod))

		return handler(ctx, req)
	}
}
