package oauth2client

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryClientInterceptor returns a gRPC unary client interceptor that automatically
// adds OAuth2 Bearer tokens to request metadata.
//
// The interceptor adds the token as "authorization: Bearer <token>" to the outgoing
// request context metadata. If token fetch fails, the RPC call is aborted with an error.
// A call rejected with codes.Unauthenticated is retried once with a freshly
// refreshed token. The scope can be overridden per call with WithScope.
//
// Usage:
//
//	conn, err := grpc.NewClient(
//	    "server:9090",
//	    grpc.WithUnaryInterceptor(tokenManager.UnaryClientInterceptor()),
//	)
func (tm *TokenManager) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		scope := ScopeFromContext(ctx)

		// Use the RPC context for token fetching to respect cancellation and deadlines
		token, err := tm.Token(ctx, scope)
		if err != nil {
			return fmt.Errorf("oauth2: failed to get token: %w", err)
		}

		err = invoker(withBearer(ctx, token), method, req, reply, cc, opts...)
		if status.Code(err) != codes.Unauthenticated {
			return err
		}

		token, refreshErr := tm.Reauthenticate(ctx, scope, http.StatusUnauthorized)
		if refreshErr != nil {
			return fmt.Errorf("oauth2: failed to refresh token: %w", refreshErr)
		}

		return invoker(withBearer(ctx, token), method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor that automatically
// adds OAuth2 Bearer tokens to request metadata.
//
// The interceptor adds the token as "authorization: Bearer <token>" to the outgoing
// request context metadata. If token fetch fails, stream creation is aborted with an error.
// Streams are not retried.
//
// Usage:
//
//	conn, err := grpc.NewClient(
//	    "server:9090",
//	    grpc.WithStreamInterceptor(tokenManager.StreamClientInterceptor()),
//	)
func (tm *TokenManager) StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		// Use the RPC context for token fetching to respect cancellation and deadlines
		token, err := tm.Token(ctx, ScopeFromContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("oauth2: failed to get token: %w", err)
		}

		return streamer(withBearer(ctx, token), desc, cc, method, opts...)
	}
}

func withBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}
