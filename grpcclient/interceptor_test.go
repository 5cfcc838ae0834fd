package grpcclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/AmmannChristian/go-authclient/auth"
	"github.com/AmmannChristian/go-authclient/storage"
	"github.com/AmmannChristian/go-authclient/testutil"
)

type invocation struct {
	md metadata.MD
}

// recordingInvoker rejects calls whose authorization is not accepted.
type recordingInvoker struct {
	mu       sync.Mutex
	accepted string
	calls    []invocation
}

func (r *recordingInvoker) invoke(ctx context.Context, _ string, _, _ interface{}, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
	md, _ := metadata.FromOutgoingContext(ctx)
	r.mu.Lock()
	r.calls = append(r.calls, invocation{md: md})
	r.mu.Unlock()

	if vals := md.Get("authorization"); len(vals) == 1 && vals[0] == r.accepted {
		return nil
	}
	return status.Error(codes.Unauthenticated, "bad token")
}

func (r *recordingInvoker) Calls() []invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]invocation(nil), r.calls...)
}

func newOAuth2Authenticator(t *testing.T, tokenJSON string, seed map[string]string) (*auth.Authenticator, *testutil.MockOAuth2Server, storage.Storage) {
	t.Helper()
	server := testutil.NewMockOAuth2Server(t, testutil.StaticJSONResponse(tokenJSON))
	store := storage.NewMemory()
	for k, v := range seed {
		require.NoError(t, store.SetItem(context.Background(), k, v))
	}
	a, err := auth.New(auth.OAuth2{OAuth2: &auth.OAuth2Descriptor{
		TokenURL: server.TokenURL(),
		ClientID: "client",
	}}, store, auth.WithHTTPClient(server.HTTPClient()))
	require.NoError(t, err)
	return a, server, store
}

func TestUnaryClientInterceptor_AddsMetadata(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.SetItem(context.Background(), "access", "T"))
	a, err := auth.New(auth.Bearer{}, store)
	require.NoError(t, err)

	inv := &recordingInvoker{accepted: "Bearer T"}
	err = UnaryClientInterceptor(a)(context.Background(), "/svc/Method", nil, nil, nil, inv.invoke)
	require.NoError(t, err)

	calls := inv.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, []string{"Bearer T"}, calls[0].md.Get("authorization"))
}

func TestUnaryClientInterceptor_ReplacesCallerAuthorization(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.SetItem(context.Background(), "access", "T"))
	a, err := auth.New(auth.Bearer{}, store)
	require.NoError(t, err)

	ctx := metadata.AppendToOutgoingContext(context.Background(),
		"authorization", "Bearer caller", "x-request-id", "42")

	inv := &recordingInvoker{accepted: "Bearer T"}
	err = UnaryClientInterceptor(a)(ctx, "/svc/Method", nil, nil, nil, inv.invoke)
	require.NoError(t, err)

	md := inv.Calls()[0].md
	require.Equal(t, []string{"Bearer T"}, md.Get("authorization"))
	require.Equal(t, []string{"42"}, md.Get("x-request-id"))

	caller, _ := metadata.FromOutgoingContext(ctx)
	require.Equal(t, []string{"Bearer caller"}, caller.Get("authorization"))
}

func TestUnaryClientInterceptor_RetryReplacesToken(t *testing.T) {
	a, _, _ := newOAuth2Authenticator(t, `{"access_token":"new"}`,
		map[string]string{"access": "old", "refresh_token": "R0"})

	inv := &recordingInvoker{accepted: "Bearer new"}
	err := UnaryClientInterceptor(a)(context.Background(), "/svc/Method", nil, nil, nil, inv.invoke)
	require.NoError(t, err)

	calls := inv.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, []string{"Bearer new"}, calls[1].md.Get("authorization"))
}

func TestUnaryClientInterceptor_CustomHeaderLowercased(t *testing.T) {
	a, err := auth.New(auth.APIKey{Key: "k", Header: "X-API-Key"}, storage.NewMemory())
	require.NoError(t, err)

	inv := &recordingInvoker{}
	_ = UnaryClientInterceptor(a)(context.Background(), "/svc/Method", nil, nil, nil, inv.invoke)

	md := inv.Calls()[0].md
	require.Equal(t, []string{"k"}, md["x-api-key"])
}

func TestUnaryClientInterceptor_RefreshesOnceOnUnauthenticated(t *testing.T) {
	a, server, store := newOAuth2Authenticator(t, `{"access_token":"new","refresh_token":"R1"}`,
		map[string]string{"access": "old", "refresh_token": "R0"})

	inv := &recordingInvoker{accepted: "Bearer new"}
	err := UnaryClientInterceptor(a)(context.Background(), "/svc/Method", nil, nil, nil, inv.invoke)
	require.NoError(t, err)

	calls := inv.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, []string{"Bearer old"}, calls[0].md.Get("authorization"))
	require.Equal(t, []string{"Bearer new"}, calls[1].md.Get("authorization"))
	require.Equal(t, 1, server.RequestCount())

	rt, _, _ := store.GetItem(context.Background(), "refresh_token")
	require.Equal(t, "R1", rt)
}

func TestUnaryClientInterceptor_SecondRejectionIsFinal(t *testing.T) {
	a, server, _ := newOAuth2Authenticator(t, `{"access_token":"new"}`,
		map[string]string{"access": "old", "refresh_token": "R0"})

	inv := &recordingInvoker{accepted: "never"}
	err := UnaryClientInterceptor(a)(context.Background(), "/svc/Method", nil, nil, nil, inv.invoke)
	require.Equal(t, codes.Unauthenticated, status.Code(err))
	require.Len(t, inv.Calls(), 2)
	require.Equal(t, 1, server.RequestCount())
}

func TestUnaryClientInterceptor_RefreshFailureReturnsOriginalError(t *testing.T) {
	server := testutil.NewMockOAuth2Server(t, testutil.JSONResponse(400, `{"error":"invalid_grant"}`))
	store := storage.NewMemory()
	require.NoError(t, store.SetItem(context.Background(), "access", "old"))
	require.NoError(t, store.SetItem(context.Background(), "refresh_token", "R0"))
	a, err := auth.New(auth.OAuth2{OAuth2: &auth.OAuth2Descriptor{TokenURL: server.TokenURL(), ClientID: "c"}},
		store, auth.WithHTTPClient(server.HTTPClient()))
	require.NoError(t, err)

	inv := &recordingInvoker{accepted: "never"}
	err = UnaryClientInterceptor(a)(context.Background(), "/svc/Method", nil, nil, nil, inv.invoke)

	st, ok := status.FromError(err)
	require.True(t, ok)
	require.Equal(t, codes.Unauthenticated, st.Code())
	require.Equal(t, "bad token", st.Message())
	require.Len(t, inv.Calls(), 1)

	_, found, _ := store.GetItem(context.Background(), "access")
	require.False(t, found)
}

func TestUnaryClientInterceptor_OtherErrorsNotRetried(t *testing.T) {
	a, server, _ := newOAuth2Authenticator(t, `{"access_token":"new"}`,
		map[string]string{"access": "old", "refresh_token": "R0"})

	calls := 0
	invoker := func(context.Context, string, interface{}, interface{}, *grpc.ClientConn, ...grpc.CallOption) error {
		calls++
		return status.Error(codes.PermissionDenied, "nope")
	}

	err := UnaryClientInterceptor(a)(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	require.Equal(t, codes.PermissionDenied, status.Code(err))
	require.Equal(t, 1, calls)
	require.Zero(t, server.RequestCount())
}

func TestUnaryClientInterceptor_AuthorizeFailureAbortsCall(t *testing.T) {
	server := testutil.NewMockOAuth2Server(t, func(*http.Request) (*http.Response, error) {
		return nil, errors.New("token endpoint down")
	})
	a, err := auth.New(auth.OAuth2{OAuth2: &auth.OAuth2Descriptor{TokenURL: server.TokenURL(), ClientID: "c"}},
		storage.NewMemory(), auth.WithHTTPClient(server.HTTPClient()))
	require.NoError(t, err)

	inv := &recordingInvoker{}
	err = UnaryClientInterceptor(a)(context.Background(), "/svc/Method", nil, nil, nil, inv.invoke)
	require.ErrorContains(t, err, "token endpoint down")
	require.Empty(t, inv.Calls())
}

func TestStreamClientInterceptor(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.SetItem(context.Background(), "access", "T"))
	a, err := auth.New(auth.Bearer{}, store)
	require.NoError(t, err)

	var got metadata.MD
	streamer := func(ctx context.Context, _ *grpc.StreamDesc, _ *grpc.ClientConn, _ string, _ ...grpc.CallOption) (grpc.ClientStream, error) {
		got, _ = metadata.FromOutgoingContext(ctx)
		return nil, nil
	}

	_, err = StreamClientInterceptor(a)(context.Background(), &grpc.StreamDesc{}, nil, "/svc/Stream", streamer)
	require.NoError(t, err)
	require.Equal(t, []string{"Bearer T"}, got.Get("authorization"))
}

func TestStreamClientInterceptor_AuthorizeFailure(t *testing.T) {
	a, err := auth.New(auth.Bearer{}, failingStore{})
	require.NoError(t, err)

	called := false
	streamer := func(context.Context, *grpc.StreamDesc, *grpc.ClientConn, string, ...grpc.CallOption) (grpc.ClientStream, error) {
		called = true
		return nil, nil
	}

	_, err = StreamClientInterceptor(a)(context.Background(), &grpc.StreamDesc{}, nil, "/svc/Stream", streamer)
	require.Error(t, err)
	require.False(t, called)
}

type failingStore struct{ storage.Storage }

func (failingStore) GetItem(context.Context, string) (string, bool, error) {
	return "", false, errors.New("store unavailable")
}

// TestBuilder_Integration runs a health check against an in-process server
// that only accepts the refreshed token.
func TestBuilder_Integration(t *testing.T) {
	listener := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		if vals := md.Get("authorization"); len(vals) != 1 || vals[0] != "Bearer new" {
			return nil, status.Error(codes.Unauthenticated, "token rejected")
		}
		return handler(ctx, req)
	}))
	healthpb.RegisterHealthServer(srv, health.NewServer())
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(srv.Stop)

	a, server, _ := newOAuth2Authenticator(t, `{"access_token":"new"}`,
		map[string]string{"access": "old", "refresh_token": "R0"})

	conn, err := NewBuilder().
		WithAddress("passthrough:///bufnet").
		WithAuthenticator(a).
		WithDialOptions(
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return listener.DialContext(ctx)
			}),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		).
		Build(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	require.Equal(t, 1, server.RequestCount())
}
