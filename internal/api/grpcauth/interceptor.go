package grpcauth

import (
	"context"
	"errors"
	"strings"

	"github.com/xela07ax/workspace-api/internal/audit"
	"github.com/xela07ax/workspace-api/internal/domain"
	"github.com/xela07ax/workspace-api/internal/infra"
	"github.com/xela07ax/workspace-api/internal/infra/auth"
	"github.com/xela07ax/workspace-api/internal/policy"
	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	// MetadataWorkspace - ключ метаданных с идентификатором workspace.
	MetadataWorkspace = "x-workspace-id"
	errorDomain       = "workspace-api"
)

// Rules - требования по полному имени метода (/pkg.Service/Method).
// Метода нет в таблице - он открыт (health checks и т.п.).
type Rules map[string]*domain.Requirement

type Interceptor struct {
	authn    auth.Authenticator
	enforcer policy.Enforcer
	rules    Rules
	metrics  *infra.Metrics
	auditor  audit.Auditor
	logger   *zap.Logger
}

func NewInterceptor(authn auth.Authenticator, enforcer policy.Enforcer, rules Rules, metrics *infra.Metrics, auditor audit.Auditor, logger *zap.Logger) *Interceptor {
	if auditor == nil {
		auditor = audit.Nop{}
	}
	return &Interceptor{
		authn:    authn,
		enforcer: enforcer,
		rules:    rules,
		metrics:  metrics,
		auditor:  auditor,
		logger:   logger.Named("grpc-auth"),
	}
}

// Unary проверяет токен в метаданных и требование метода.
func (i *Interceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		// 1. Извлекаем метаданные из контекста
		md, _ := metadata.FromIncomingContext(ctx)

		// 2. Токен опционален: решение принимает требование метода
		var principal *domain.Principal
		if token, ok := bearerFromMetadata(md); ok {
			p, err := i.authn.Authenticate(ctx, token)
			switch {
			case err == nil:
				principal = p
				ctx = auth.ContextWithPrincipal(ctx, p)
			case errors.Is(err, domain.ErrUnauthenticated):
				i.logger.Debug("bearer token rejected", zap.String("method", info.FullMethod))
			default:
				i.logger.Error("authentication failed", zap.String("method", info.FullMethod), zap.Error(err))
				return nil, StatusFromError(err)
			}
		}

		// 3. Требование метода
		rule := i.rules[info.FullMethod]
		err := i.enforcer.Authorize(ctx, principal, rule, RequestContext{md: md})
		if i.metrics != nil {
			i.metrics.AuthzDecisions.WithLabelValues("grpc", policy.Decision(err)).Inc()
		}
		if err != nil {
			if principal != nil && errors.Is(err, domain.ErrForbidden) {
				i.auditor.Record(ctx, audit.Event{
					UserID:  principal.ID,
					Email:   principal.Email,
					Action:  audit.ActionAuthorize,
					Outcome: audit.OutcomeDenied,
					Reason:  info.FullMethod + ": " + err.Error(),
				})
			}
			return nil, StatusFromError(err)
		}

		return handler(ctx, req)
	}
}

func bearerFromMetadata(md metadata.MD) (string, bool) {
	// В gRPC заголовки в нижнем регистре
	for _, v := range md.Get("authorization") {
		if token, ok := auth.BearerToken(v); ok {
			return token, true
		}
	}
	return "", false
}

// RequestContext - контекст запроса gRPC: workspace и параметры из метаданных.
type RequestContext struct {
	md metadata.MD
}

func NewRequestContext(md metadata.MD) RequestContext {
	return RequestContext{md: md}
}

func (c RequestContext) WorkspaceID() (string, bool) {
	id := strings.TrimSpace(c.Param(MetadataWorkspace))
	return id, id != ""
}

func (c RequestContext) Param(name string) string {
	if vals := c.md.Get(name); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// StatusFromError переводит таксономию в коды gRPC.
func StatusFromError(err error) error {
	var fe *domain.ForbiddenError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, domain.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "invalid credentials or token")
	case errors.As(err, &fe):
		st := status.New(codes.PermissionDenied, fe.Error())
		detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
			Reason:   "FORBIDDEN",
			Domain:   errorDomain,
			Metadata: map[string]string{"unmet": strings.Join(fe.Categories, ",")},
		})
		if derr != nil {
			return st.Err()
		}
		return detailed.Err()
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, domain.ErrForbidden.Error())
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
