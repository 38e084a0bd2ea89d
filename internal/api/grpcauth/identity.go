package grpcauth

import (
	"context"

	"github.com/xela07ax/workspace-api/internal/domain"
	"github.com/xela07ax/workspace-api/internal/infra/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Сервис без .proto: запросы - Empty, ответы - Struct.
const (
	IdentityService       = "workspaceapi.v1.Identity"
	MethodWhoAmI          = "/" + IdentityService + "/WhoAmI"
	MethodWorkspaceAccess = "/" + IdentityService + "/WorkspaceAccess"
)

// PermissionResolver раскрывает роль в workspace в набор прав.
type PermissionResolver interface {
	PermissionsFor(role domain.WorkspaceRole) []domain.Permission
}

// IdentityServer отдает принципала вызова и его доступ к workspace.
type IdentityServer struct {
	perms PermissionResolver
}

func NewIdentityServer(perms PermissionResolver) *IdentityServer {
	return &IdentityServer{perms: perms}
}

// IdentityRules - требования методов Identity.
func IdentityRules() Rules {
	member := &domain.Requirement{
		WorkspaceRoles: []domain.WorkspaceRole{domain.WorkspaceOwner, domain.WorkspaceAdmin, domain.WorkspaceMember},
		Operator:       domain.OperatorAny,
	}
	return Rules{
		MethodWhoAmI:          domain.Authenticated(),
		MethodWorkspaceAccess: member,
	}
}

func (s *IdentityServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, StatusFromError(domain.ErrUnauthenticated)
	}

	roles := make([]interface{}, 0, len(p.Roles))
	for _, r := range p.Roles {
		roles = append(roles, string(r))
	}
	workspaces := make([]interface{}, 0, len(p.Workspaces))
	for _, m := range p.Workspaces {
		workspaces = append(workspaces, map[string]interface{}{
			"workspace_id": m.WorkspaceID,
			"role":         string(m.Role),
		})
	}
	return structpb.NewStruct(map[string]interface{}{
		"id":         p.ID,
		"email":      p.Email,
		"name":       p.Name,
		"roles":      roles,
		"workspaces": workspaces,
	})
}

func (s *IdentityServer) WorkspaceAccess(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, StatusFromError(domain.ErrUnauthenticated)
	}
	md, _ := metadata.FromIncomingContext(ctx)
	wsID, _ := NewRequestContext(md).WorkspaceID()
	role, member := p.WorkspaceRole(wsID)
	if !member {
		return nil, StatusFromError(&domain.ForbiddenError{Categories: []string{domain.CategoryWorkspaceRole}})
	}

	perms := make([]interface{}, 0)
	for _, perm := range s.perms.PermissionsFor(role) {
		perms = append(perms, string(perm))
	}
	return structpb.NewStruct(map[string]interface{}{
		"workspace_id": wsID,
		"role":         string(role),
		"permissions":  perms,
	})
}

// Register регистрирует сервис на gRPC-сервере.
func (s *IdentityServer) Register(g *grpc.Server) {
	g.RegisterService(&identityServiceDesc, s)
}

type identityHandler interface {
	WhoAmI(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	WorkspaceAccess(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

func unaryHandler(fullMethod string, call func(identityHandler, context.Context, *emptypb.Empty) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		h := srv.(identityHandler)
		if interceptor == nil {
			return call(h, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(h, ctx, req.(*emptypb.Empty))
		})
	}
}

var identityServiceDesc = grpc.ServiceDesc{
	ServiceName: IdentityService,
	HandlerType: (*identityHandler)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "WhoAmI",
			Handler:    unaryHandler(MethodWhoAmI, identityHandler.WhoAmI),
		},
		{
			MethodName: "WorkspaceAccess",
			Handler:    unaryHandler(MethodWorkspaceAccess, identityHandler.WorkspaceAccess),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "workspaceapi/v1/identity",
}
