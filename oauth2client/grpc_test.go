package oauth2client

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/AmmannChristian/go-oidcx/internal/testutil"
)

func bearerFromContext(t *testing.T, ctx context.Context) string {
	t.Helper()

	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("metadata not found in context")
	}

	authHeaders := md.Get("authorization")
	if len(authHeaders) != 1 {
		t.Fatalf("expected exactly one authorization header, got %v", authHeaders)
	}
	if !strings.HasPrefix(authHeaders[0], "Bearer ") {
		t.Fatalf("expected Bearer token, got: %s", authHeaders[0])
	}
	return strings.TrimPrefix(authHeaders[0], "Bearer ")
}

func TestTokenManager_UnaryClientInterceptor(t *testing.T) {
	idp := testutil.NewMockIdP(t, nil)
	tm := newClientCredentialsManager(t, idp)

	// Create interceptor
	interceptor := tm.UnaryClientInterceptor()
	if interceptor == nil {
		t.Fatal("interceptor should not be nil")
	}

	called := false
	mockInvoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		called = true
		if token := bearerFromContext(t, ctx); token != tm.CurrentToken() {
			t.Errorf("expected current token, got %s", token)
		}
		return nil
	}

	if err := interceptor(context.Background(), "/test.Service/Method", nil, nil, nil, mockInvoker); err != nil {
		t.Errorf("interceptor failed: %v", err)
	}
	if !called {
		t.Error("invoker was not called")
	}
}

func TestTokenManager_UnaryClientInterceptor_RetriesUnauthenticated(t *testing.T) {
	idp := testutil.NewMockIdP(t, nil)
	sink := &recordingSink{}
	tm := newClientCredentialsManager(t, idp, WithEventSink(sink))

	var seen []string
	mockInvoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		seen = append(seen, bearerFromContext(t, ctx))
		if len(seen) == 1 {
			return status.Error(codes.Unauthenticated, "token revoked")
		}
		return nil
	}

	err := tm.UnaryClientInterceptor()(context.Background(), "/test.Service/Method", nil, nil, nil, mockInvoker)
	if err != nil {
		t.Fatalf("interceptor failed: %v", err)
	}

	if len(seen) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(seen))
	}
	if seen[0] == seen[1] {
		t.Error("retry should use a refreshed token")
	}
	if idp.Count() != 2 {
		t.Errorf("expected 2 token requests, got %d", idp.Count())
	}
	if len(sink.retries) != 1 {
		t.Errorf("expected 1 observed retry, got %d", len(sink.retries))
	}
}

func TestTokenManager_UnaryClientInterceptor_RetriesOnce(t *testing.T) {
	idp := testutil.NewMockIdP(t, nil)
	tm := newClientCredentialsManager(t, idp)

	calls := 0
	mockInvoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		calls++
		return status.Error(codes.Unauthenticated, "still not allowed")
	}

	err := tm.UnaryClientInterceptor()(context.Background(), "/test", nil, nil, nil, mockInvoker)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated to be returned, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 invocations, got %d", calls)
	}
}

func TestTokenManager_UnaryClientInterceptor_NoRetryOnOtherCodes(t *testing.T) {
	idp := testutil.NewMockIdP(t, nil)
	tm := newClientCredentialsManager(t, idp)

	calls := 0
	mockInvoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		calls++
		return status.Error(codes.PermissionDenied, "forbidden")
	}

	err := tm.UnaryClientInterceptor()(context.Background(), "/test", nil, nil, nil, mockInvoker)
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 invocation, got %d", calls)
	}
}

func TestTokenManager_UnaryClientInterceptor_Scope(t *testing.T) {
	idp := testutil.NewMockIdP(t, nil)
	tm := newClientCredentialsManager(t, idp)

	mockInvoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return nil
	}

	ctx := WithScope(context.Background(), "admin")
	if err := tm.UnaryClientInterceptor()(ctx, "/test", nil, nil, nil, mockInvoker); err != nil {
		t.Fatalf("interceptor failed: %v", err)
	}

	if got := idp.Requests()[0].Params.Get("scope"); got != "admin" {
		t.Errorf("expected scope admin, got %q", got)
	}
}

func TestTokenManager_StreamClientInterceptor(t *testing.T) {
	idp := testutil.NewMockIdP(t, nil)
	tm := newClientCredentialsManager(t, idp)

	// Create interceptor
	interceptor := tm.StreamClientInterceptor()
	if interceptor == nil {
		t.Fatal("interceptor should not be nil")
	}

	called := false
	mockStreamer := func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		called = true
		bearerFromContext(t, ctx)
		return nil, nil
	}

	if _, err := interceptor(context.Background(), &grpc.StreamDesc{}, nil, "/test.Service/Method", mockStreamer); err != nil {
		t.Errorf("interceptor failed: %v", err)
	}
	if !called {
		t.Error("streamer was not called")
	}
}

func TestTokenManager_Interceptor_TokenFetchError(t *testing.T) {
	idp := testutil.NewMockIdP(t, testutil.JSONResponse(http.StatusBadRequest, `{"message":"kaboom"}`))
	tm := newClientCredentialsManager(t, idp)

	// Test unary interceptor
	unaryInterceptor := tm.UnaryClientInterceptor()
	err := unaryInterceptor(context.Background(), "/test", nil, nil, nil, func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		t.Error("invoker should not be called when token fetch fails")
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("expected kaboom error from unary interceptor, got %v", err)
	}

	// Test stream interceptor
	streamInterceptor := tm.StreamClientInterceptor()
	_, err = streamInterceptor(context.Background(), &grpc.StreamDesc{}, nil, "/test", func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		t.Error("streamer should not be called when token fetch fails")
		return nil, nil
	})
	if err == nil {
		t.Error("expected error from stream interceptor, got nil")
	}
}

func TestTokenManager_UnaryClientInterceptor_RefreshFailsOnRetry(t *testing.T) {
	idp := testutil.NewMockIdP(t, testutil.Sequence(
		testutil.IssueTokens(t, time.Hour),
		testutil.JSONResponse(http.StatusBadRequest, `{"message":"kaboom"}`),
	))
	tm := newClientCredentialsManager(t, idp)

	calls := 0
	err := tm.UnaryClientInterceptor()(context.Background(), "/test", nil, nil, nil, func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		calls++
		return status.Error(codes.Unauthenticated, "revoked")
	})

	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("expected refresh failure, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 invocation, got %d", calls)
	}
}
