package grpcclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/AmmannChristian/go-authclient/auth"
)

// UnaryClientInterceptor returns a gRPC unary client interceptor that adds the
// credentials of a to outgoing metadata.
//
// If the call fails with codes.Unauthenticated and a can refresh, the token is
// refreshed once and the call is invoked once more; that outcome is final. If
// the refresh fails, the original error is returned.
//
// Usage:
//
//	conn, err := grpc.NewClient(
//	    "server:9090",
//	    grpc.WithUnaryInterceptor(grpcclient.UnaryClientInterceptor(a)),
//	)
func UnaryClientInterceptor(a *auth.Authenticator) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		h := make(http.Header)
		if err := a.Authorize(ctx, h); err != nil {
			return fmt.Errorf("grpcclient: authorize: %w", err)
		}

		err := invoker(withHeader(ctx, h), method, req, reply, cc, opts...)
		if status.Code(err) != codes.Unauthenticated || !a.CanRefresh() {
			return err
		}

		token, rerr := a.Refresh(ctx, auth.BearerToken(h))
		if rerr != nil {
			return err
		}

		h.Set("Authorization", "Bearer "+token)
		return invoker(withHeader(ctx, h), method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor that adds
// the credentials of a to outgoing metadata. Streams are not retried.
func StreamClientInterceptor(a *auth.Authenticator) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		h := make(http.Header)
		if err := a.Authorize(ctx, h); err != nil {
			return nil, fmt.Errorf("grpcclient: authorize: %w", err)
		}

		return streamer(withHeader(ctx, h), desc, cc, method, opts...)
	}
}

// withHeader sets h on a copy of the outgoing metadata of ctx, replacing
// any values the caller already set for the same keys.
func withHeader(ctx context.Context, h http.Header) context.Context {
	if len(h) == 0 {
		return ctx
	}

	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	for k, vs := range h {
		md.Set(strings.ToLower(k), vs...)
	}
	return metadata.NewOutgoingContext(ctx, md)
}
