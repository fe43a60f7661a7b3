package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func codeOf(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if st, ok := status.FromError(err); ok {
		return st.Code()
	}
	return codes.Unknown
}

func UnaryLoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		logger.Debug("request completed",
			"method", info.FullMethod,
			"type", "unary",
			"duration_ms", time.Since(start).Milliseconds(),
			"code", codeOf(err).String(),
		)
		return resp, err
	}
}

func StreamLoggingInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()

		logger.Debug("stream started",
			"method", info.FullMethod,
			"type", "stream",
		)

		err := handler(srv, ss)

		duration := time.Since(start)
		if err != nil {
			logger.Error("stream failed",
				"method", info.FullMethod,
				"type", "stream",
				"duration_ms", duration.Milliseconds(),
				"code", codeOf(err).String(),
				"error", err,
			)
		} else {
			logger.Info("stream completed",
				"method", info.FullMethod,
				"type", "stream",
				"duration_ms", duration.Milliseconds(),
				"code", codes.OK.String(),
			)
		}
		return err
	}
}

func StreamClientLoggingInterceptor(logger *slog.Logger) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		logger.Debug("client stream started",
			"method", method,
			"target", cc.Target(),
		)

		stream, err := streamer(ctx, desc, cc, method, opts...)
		if err != nil {
			logger.Error("client stream failed",
				"method", method,
				"target", cc.Target(),
				"code", codeOf(err).String(),
				"error", err,
			)
		}
		return stream, err
	}
}
