package interceptor

import (
	"context"
	"errors"

	"github.com/toolink/throttle/limiter"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor admits each unary call before invoking the handler.
func UnaryServerInterceptor(l *limiter.RateLimiter, opts ...Option) grpc.UnaryServerInterceptor {
	o := newOptions(opts...)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := o.admit(ctx, l, info.FullMethod); err != nil {
			return nil, toStatus(err)
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor admits each stream once, when it is opened.
func StreamServerInterceptor(l *limiter.RateLimiter, opts ...Option) grpc.StreamServerInterceptor {
	o := newOptions(opts...)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := o.admit(ss.Context(), l, info.FullMethod); err != nil {
			return toStatus(err)
		}
		return handler(srv, ss)
	}
}

// UnaryClientInterceptor throttles outgoing calls on the client side, so a fleet of
// clients can share one budget towards a server.
func UnaryClientInterceptor(l *limiter.RateLimiter, opts ...Option) grpc.UnaryClientInterceptor {
	o := newOptions(opts...)
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		if err := o.admit(ctx, l, method); err != nil {
			return toStatus(err)
		}
		return invoker(ctx, method, req, reply, cc, callOpts...)
	}
}

// toStatus maps admission errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, limiter.ErrRateLimitExceeded):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, limiter.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
