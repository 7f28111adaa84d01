package telemetry

import (
	"context"
	"log/slog"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/victornm/bananaquiz/internal/errors"
)

// GRPCServerInterceptor logs every call, then runs the given interceptors in order.
func GRPCServerInterceptor(interceptors ...grpc.UnaryServerInterceptor) grpc.ServerOption {
	opts := []logging.Option{
		logging.WithLogOnEvents(logging.StartCall, logging.FinishCall),
	}

	chain := []grpc.UnaryServerInterceptor{
		logging.UnaryServerInterceptor(grpcServerLogger(slog.Default()), opts...),
		errorInterceptor,
	}

	return grpc.ChainUnaryInterceptor(append(chain, interceptors...)...)
}

func grpcServerLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

// errorInterceptor hides untyped errors behind an INTERNAL status.
func errorInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err == nil {
		return resp, nil
	}

	if _, ok := status.FromError(err); ok {
		return resp, err
	}

	slog.ErrorContext(ctx, "grpc: unexpected error", "method", info.FullMethod, "error", err)
	return nil, errors.Internal(err)
}
