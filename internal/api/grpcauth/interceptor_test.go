package grpcauth

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/workspace-api/internal/domain"
	"github.com/xela07ax/workspace-api/internal/infra"
	"github.com/xela07ax/workspace-api/internal/policy"
	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// tokenAuth принимает фиксированные токены.
type tokenAuth map[string]*domain.Principal

func (a tokenAuth) Authenticate(_ context.Context, token string) (*domain.Principal, error) {
	if token == "broken" {
		return nil, domain.ErrFatal
	}
	p, ok := a[token]
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return p, nil
}

func alice() *domain.Principal {
	return &domain.Principal{
		ID:         "u-alice",
		Email:      "alice@example.com",
		Name:       "Alice",
		Roles:      []domain.GlobalRole{domain.RoleUser},
		Workspaces: []domain.Membership{{WorkspaceID: "ws-1", Role: domain.WorkspaceMember}},
	}
}

func dial(t *testing.T) *grpc.ClientConn {
	t.Helper()
	evaluator := policy.NewEvaluator(policy.DefaultPermissionTable(), zap.NewNop())
	icpt := NewInterceptor(tokenAuth{"good": alice()}, evaluator, IdentityRules(), infra.NewMetrics(nil), nil, zap.NewNop())

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(icpt.Unary()))
	NewIdentityServer(evaluator).Register(srv)
	healthpb.RegisterHealthServer(srv, health.NewServer())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func withMD(kv ...string) context.Context {
	return metadata.NewOutgoingContext(context.Background(), metadata.Pairs(kv...))
}

func TestIdentity_WhoAmI(t *testing.T) {
	conn := dial(t)

	out := &structpb.Struct{}
	err := conn.Invoke(withMD("authorization", "Bearer good"), MethodWhoAmI, &emptypb.Empty{}, out)
	require.NoError(t, err)
	assert.Equal(t, "u-alice", out.Fields["id"].GetStringValue())
	assert.Equal(t, "alice@example.com", out.Fields["email"].GetStringValue())
	ws := out.Fields["workspaces"].GetListValue().GetValues()
	require.Len(t, ws, 1)
	assert.Equal(t, "ws-1", ws[0].GetStructValue().Fields["workspace_id"].GetStringValue())
}

func TestIdentity_Unauthenticated(t *testing.T) {
	conn := dial(t)

	for name, ctx := range map[string]context.Context{
		"no token":     context.Background(),
		"bad token":    withMD("authorization", "Bearer nope"),
		"wrong scheme": withMD("authorization", "Basic good"),
	} {
		t.Run(name, func(t *testing.T) {
			err := conn.Invoke(ctx, MethodWhoAmI, &emptypb.Empty{}, &structpb.Struct{})
			assert.Equal(t, codes.Unauthenticated, status.Code(err))
		})
	}
}

func TestIdentity_StoreOutageIsInternal(t *testing.T) {
	conn := dial(t)

	err := conn.Invoke(withMD("authorization", "Bearer broken"), MethodWhoAmI, &emptypb.Empty{}, &structpb.Struct{})
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Equal(t, "internal error", status.Convert(err).Message())
}

func TestIdentity_WorkspaceAccess(t *testing.T) {
	conn := dial(t)

	out := &structpb.Struct{}
	err := conn.Invoke(withMD("authorization", "Bearer good", MetadataWorkspace, "ws-1"),
		MethodWorkspaceAccess, &emptypb.Empty{}, out)
	require.NoError(t, err)
	assert.Equal(t, "MEMBER", out.Fields["role"].GetStringValue())
	assert.NotEmpty(t, out.Fields["permissions"].GetListValue().GetValues())

	err = conn.Invoke(withMD("authorization", "Bearer good", MetadataWorkspace, "ws-2"),
		MethodWorkspaceAccess, &emptypb.Empty{}, &structpb.Struct{})
	st := status.Convert(err)
	require.Equal(t, codes.PermissionDenied, st.Code())

	var info *errdetails.ErrorInfo
	for _, d := range st.Details() {
		if ei, ok := d.(*errdetails.ErrorInfo); ok {
			info = ei
		}
	}
	require.NotNil(t, info)
	assert.Equal(t, "FORBIDDEN", info.Reason)
	assert.Equal(t, domain.CategoryWorkspaceRole, info.Metadata["unmet"])
}

func TestIdentity_UnmarkedMethodIsOpen(t *testing.T) {
	conn := dial(t)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestStatusFromError(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{domain.ErrInvalidInput, codes.InvalidArgument},
		{domain.ErrUnauthenticated, codes.Unauthenticated},
		{domain.ErrInvalidToken, codes.Unauthenticated},
		{domain.ErrForbidden, codes.PermissionDenied},
		{&domain.ForbiddenError{Categories: []string{domain.CategoryRole}}, codes.PermissionDenied},
		{domain.ErrConflict, codes.AlreadyExists},
		{domain.ErrFatal, codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, status.Code(StatusFromError(tc.err)), tc.err.Error())
	}
	assert.NoError(t, StatusFromError(nil))
}

func TestRequestContext(t *testing.T) {
	rc := NewRequestContext(metadata.Pairs(MetadataWorkspace, " ws-9 ", "x-extra", "v"))
	id, ok := rc.WorkspaceID()
	assert.True(t, ok)
	assert.Equal(t, "ws-9", id)
	assert.Equal(t, "v", rc.Param("x-extra"))

	_, ok = NewRequestContext(nil).WorkspaceID()
	assert.False(t, ok)
}
