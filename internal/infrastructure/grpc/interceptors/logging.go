package interceptors

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/narwhalmedia/catalog/pkg/interfaces"
)

// UnaryLoggingInterceptor logs unary RPC calls. Health checks log at debug.
func UnaryLoggingInterceptor(logger interfaces.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []interfaces.Field{
			interfaces.String("method", info.FullMethod),
			interfaces.Duration("duration", time.Since(start)),
			interfaces.String("code", codeOf(err).String()),
		}
		if err != nil {
			fields = append(fields, interfaces.Error(err))
		}

		if info.FullMethod == "/grpc.health.v1.Health/Check" {
			logger.Debug("grpc request", fields...)
		} else {
			logger.Info("grpc request", fields...)
		}
		return resp, err
	}
}

// StreamLoggingInterceptor logs streaming RPC calls
func StreamLoggingInterceptor(logger interfaces.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)

		logger.Info("grpc stream",
			interfaces.String("method", info.FullMethod),
			interfaces.Duration("duration", time.Since(start)),
			interfaces.String("code", codeOf(err).String()),
			interfaces.Bool("client_stream", info.IsClientStream),
			interfaces.Bool("server_stream", info.IsServerStream),
		)
		return err
	}
}

func codeOf(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	return codes.Unknown
}
