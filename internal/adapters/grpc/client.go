package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/eleven-am/playbook/internal/adapters/compute"
	"github.com/eleven-am/playbook/internal/ports"
)

var ErrNoResult = errors.New("compute stream ended without a result")

type ClientConfig struct {
	ConnectTimeout   time.Duration
	KeepAliveTime    time.Duration
	KeepAliveTimeout time.Duration
	MaxMsgSize       int
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout:   10 * time.Second,
		KeepAliveTime:    30 * time.Second,
		KeepAliveTimeout: 5 * time.Second,
		MaxMsgSize:       64 << 20,
	}
}

// Client is a ports.ComputePort backed by a remote Compute service.
type Client struct {
	conn   *grpc.ClientConn
	logger *slog.Logger
}

func NewClient(address string, config ClientConfig, logger *slog.Logger, opts ...grpc.DialOption) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "grpc-client")

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           backoff.DefaultConfig,
			MinConnectTimeout: config.ConnectTimeout,
		}),
		grpc.WithChainStreamInterceptor(StreamClientLoggingInterceptor(logger)),
	}
	if config.KeepAliveTime > 0 {
		dialOpts = append(dialOpts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                config.KeepAliveTime,
			Timeout:             config.KeepAliveTimeout,
			PermitWithoutStream: true,
		}))
	}
	if config.MaxMsgSize > 0 {
		dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(config.MaxMsgSize),
			grpc.MaxCallSendMsgSize(config.MaxMsgSize),
		))
	}
	dialOpts = append(dialOpts, opts...)

	logger.Debug("creating connection", "address", address)
	conn, err := grpc.NewClient(address, dialOpts...)
	if err != nil {
		logger.Error("failed to create connection", "address", address, "error", err)
		return nil, fmt.Errorf("grpc: connect to %s: %w", address, err)
	}
	return &Client{conn: conn, logger: logger}, nil
}

func (c *Client) Compute(ctx context.Context, req ports.ComputeRequest, notify func(ports.Notification)) (json.RawMessage, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, fmt.Errorf("grpc: encoding request: %w", err)
	}

	stream, err := c.conn.NewStream(ctx, &computeServiceDesc.Streams[0], computeMethod)
	if err != nil {
		return nil, fmt.Errorf("grpc: %w", err)
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, fmt.Errorf("grpc: sending request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("grpc: %w", err)
	}

	for {
		out := new(structpb.Struct)
		if err := stream.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrNoResult
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("grpc: %w", err)
		}
		var f compute.Frame
		if err := fromStruct(out, &f); err != nil {
			return nil, fmt.Errorf("grpc: decoding frame: %w", err)
		}
		result, done, err := compute.ApplyFrame(req.Routine, f, notify)
		if done {
			return result, err
		}
	}
}

// Check asks the worker's health service whether Compute is serving.
func (c *Client) Check(ctx context.Context) error {
	resp, err := grpc_health_v1.NewHealthClient(c.conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fmt.Errorf("grpc: health check: %w", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("grpc: compute service is %s", resp.GetStatus())
	}
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
