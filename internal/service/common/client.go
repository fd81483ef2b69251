//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/tankwatch/tank-guard/internal/api/grpc/command"
	"github.com/tankwatch/tank-guard/internal/config"
	"github.com/tankwatch/tank-guard/internal/domain/door"
)

// Client wraps the gRPC command service client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the daemon.
	conn *grpc.ClientConn
	// api is the command service client.
	api command.CommandServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errOperatorRequired is returned when a command carries no operator identity.
	errOperatorRequired = errors.New("operator must be provided")
)

// Dial establishes a gRPC connection to the daemon.
// Note: this uses insecure transport credentials; the command service is
// meant to listen on loopback or a trusted network.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	return DialWith(address, []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
}

// DialWith connects using explicit dial options.
func DialWith(address string, dialOpts []grpc.DialOption, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial door guard: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         command.NewCommandServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Arm arms a channel and returns the daemon reply.
func (c *Client) Arm(ctx context.Context, id door.ChannelID, op door.Operator) (string, error) {
	if op.IsZero() {
		return "", errOperatorRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	reply, err := c.api.Arm(callCtx, command.NewRequest(id, op))
	if err != nil {
		return "", fmt.Errorf("arm channel %d: %w", int(id), err)
	}

	return reply.GetValue(), nil
}

// Disarm disarms a channel and returns the daemon reply.
func (c *Client) Disarm(ctx context.Context, id door.ChannelID, op door.Operator) (string, error) {
	if op.IsZero() {
		return "", errOperatorRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	reply, err := c.api.Disarm(callCtx, command.NewRequest(id, op))
	if err != nil {
		return "", fmt.Errorf("disarm channel %d: %w", int(id), err)
	}

	return reply.GetValue(), nil
}

// SuspendAutoArm suspends automatic arming until the daily reset.
func (c *Client) SuspendAutoArm(ctx context.Context, op door.Operator) (string, error) {
	if op.IsZero() {
		return "", errOperatorRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	reply, err := c.api.SuspendAutoArm(callCtx, command.NewRequest(0, op))
	if err != nil {
		return "", fmt.Errorf("suspend auto-arm: %w", err)
	}

	return reply.GetValue(), nil
}

// Status retrieves the current state snapshot.
func (c *Client) Status(ctx context.Context) (*door.Snapshot, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.GetStatus(callCtx, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	snap, err := command.SnapshotFromStruct(resp)
	if err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}

	return snap, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
