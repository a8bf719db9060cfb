package grpc

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor returns a gRPC unary server interceptor that logs every call
// with its status code and duration. A panicking handler is logged and answered with codes.Internal.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc handler panicked",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}

			code := status.Code(err)
			fields := []zap.Field{
				zap.String("method", info.FullMethod),
				zap.String("code", code.String()),
				zap.Duration("duration", time.Since(start)),
			}
			switch code {
			case codes.OK:
				logger.Debug("grpc call", fields...)
			case codes.Internal, codes.Unavailable, codes.Unknown:
				logger.Error("grpc call failed", append(fields, zap.Error(err))...)
			default:
				logger.Info("grpc call rejected", append(fields, zap.Error(err))...)
			}
		}()

		return handler(ctx, req)
	}
}
