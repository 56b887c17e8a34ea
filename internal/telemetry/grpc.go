package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GRPCServerInterceptors logs finished calls and turns handler panics into Internal errors,
// for both unary calls and streams (health Watch is a stream).
func GRPCServerInterceptors() []grpc.ServerOption {
	opts := []logging.Option{
		logging.WithLogOnEvents(logging.FinishCall),
	}
	logger := grpcServerLogger(slog.Default())
	recoverOpt := recovery.WithRecoveryHandlerContext(grpcPanicHandler)

	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			logging.UnaryServerInterceptor(logger, opts...),
			recovery.UnaryServerInterceptor(recoverOpt),
		),
		grpc.ChainStreamInterceptor(
			logging.StreamServerInterceptor(logger, opts...),
			recovery.StreamServerInterceptor(recoverOpt),
		),
	}
}

func grpcServerLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

func grpcPanicHandler(ctx context.Context, p any) error {
	slog.ErrorContext(ctx, "grpc: handler panic", "error", fmt.Errorf("%v", p))
	return status.Error(codes.Internal, "internal error")
}
