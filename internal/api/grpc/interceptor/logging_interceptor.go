package interceptor

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"rental-inventory-backend/internal/logger"
)

type LoggingInterceptor struct {
	// skip lists full method names that are not logged (health checks)
	skip map[string]bool
}

func NewLoggingInterceptor(skipMethods ...string) *LoggingInterceptor {
	skip := make(map[string]bool, len(skipMethods))
	for _, m := range skipMethods {
		skip[m] = true
	}
	return &LoggingInterceptor{skip: skip}
}

// Unary returns a server interceptor that turns handler panics into Internal
// and logs every call that is not skipped. Handler errors pass through as is.
func (i *LoggingInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(ctx, "Panic in gRPC handler", "method", info.FullMethod, "panic", fmt.Sprint(r))
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
			if i.skip[info.FullMethod] {
				return
			}
			code := status.Code(err)
			args := []any{"method", info.FullMethod, "code", code.String(), "duration_ms", time.Since(start).Milliseconds()}
			switch code {
			case codes.OK:
				logger.InfoContext(ctx, "gRPC request", args...)
			case codes.Internal, codes.Unknown, codes.Unavailable:
				logger.ErrorContext(ctx, "gRPC request failed", append(args, "error", err)...)
			default:
				logger.WarnContext(ctx, "gRPC request rejected", append(args, "error", err)...)
			}
		}()

		return handler(ctx, req)
	}
}
