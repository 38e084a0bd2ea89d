package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/workspace-api/internal/api/grpcauth"
	"github.com/xela07ax/workspace-api/internal/api/handler"
	"github.com/xela07ax/workspace-api/internal/api/server"
	"github.com/xela07ax/workspace-api/internal/api/service"
	"github.com/xela07ax/workspace-api/internal/audit"
	"github.com/xela07ax/workspace-api/internal/cache"
	"github.com/xela07ax/workspace-api/internal/infra"
	"github.com/xela07ax/workspace-api/internal/infra/auth"
	"github.com/xela07ax/workspace-api/internal/lockout"
	"github.com/xela07ax/workspace-api/internal/policy"
	"github.com/xela07ax/workspace-api/internal/rate"
	"github.com/xela07ax/workspace-api/internal/repository/postgres"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func serve(ctx context.Context, cfg *infra.Config, logger *zap.Logger) error {
	// 1. Инфраструктура и ресурсы
	db, err := infra.OpenPostgres(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Cache.Driver == "redis" || cfg.RateLimit.Driver == "redis" {
		rdb, err = infra.OpenRedis(ctx, cfg.Redis, cfg.Database.ConnectAttempts, logger)
		if err != nil {
			return err
		}
		defer rdb.Close()
	} else {
		logger.Warn("redis disabled: lockout signals stay local to this instance")
	}

	gdb, err := postgres.NewGorm(db)
	if err != nil {
		return err
	}
	users := postgres.NewUserRepo(db)
	members := postgres.NewMembershipRepo(gdb)

	// Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := infra.NewMetrics(reg)

	tokenCache, err := cache.New(cfg.Cache, rdb, metrics, logger)
	if err != nil {
		return err
	}
	codec, err := auth.NewCodecFromConfig(cfg.Auth, logger)
	if err != nil {
		return err
	}

	// 2. Control Plane: kill switch
	lock := lockout.NewManager(rdb, logger)
	if err := lock.Init(ctx); err != nil {
		return err
	}
	if err := lock.Warmup(ctx, users); err != nil {
		logger.Warn("lockout warmup failed", zap.Error(err))
	}

	// Аудит пишется пачками в фоне, дренируется после остановки серверов
	recorder := audit.NewRecorder(postgres.NewAuditRepo(db), cfg.Audit, metrics, logger)
	recorder.Start()
	defer recorder.Stop()

	// 3. Core
	authSvc := service.NewAuthService(service.AuthDeps{
		Users:   users,
		Members: members,
		Codec:   codec,
		Cache:   tokenCache,
		Lockout: lock,
		Auditor: recorder,
		Metrics: metrics,
	}, cfg.Auth, logger)
	userSvc := service.NewUserService(users, lock, tokenCache, recorder, logger)
	evaluator := policy.NewEvaluator(policy.DefaultPermissionTable(), logger)

	var limiter rate.Limiter
	if cfg.RateLimit.Enabled {
		limiter = rate.New(cfg.RateLimit, rdb)
	}

	// 4. HTTP
	httpSrv := server.New(cfg.Server, server.Deps{
		Authenticator:    authSvc,
		Guard:            policy.NewGuard(evaluator, metrics, recorder, logger),
		Limiter:          limiter,
		Metrics:          metrics,
		AuthHandler:      handler.NewAuthHandler(authSvc, logger),
		WorkspaceHandler: handler.NewWorkspaceHandler(evaluator),
		AdminHandler:     handler.NewAdminHandler(userSvc, logger),
	}, logger)

	metricsSrv := &http.Server{
		Addr:    cfg.Metrics.Addr,
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}

	// 5. gRPC
	var grpcSrv *grpc.Server
	var grpcLis net.Listener
	if cfg.GRPC.Addr != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		icpt := grpcauth.NewInterceptor(authSvc, evaluator, grpcauth.IdentityRules(), metrics, recorder, logger)
		grpcSrv = grpc.NewServer(grpc.UnaryInterceptor(icpt.Unary()))
		grpcauth.NewIdentityServer(evaluator).Register(grpcSrv)
		hs := health.NewServer()
		hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		healthpb.RegisterHealthServer(grpcSrv, hs)
	}

	// 6. Жизненный цикл: любой упавший сервер останавливает остальные
	g, gctx := errgroup.WithContext(ctx)

	g.Go(httpSrv.Start)
	g.Go(func() error {
		logger.Info("metrics server listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	if grpcSrv != nil {
		g.Go(func() error {
			logger.Info("grpc server listening", zap.String("addr", cfg.GRPC.Addr))
			return grpcSrv.Serve(grpcLis)
		})
	}
	g.Go(func() error {
		lock.Listen(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if grpcSrv != nil && grpcauth.Shutdown(shutdownCtx, grpcSrv) {
			logger.Warn("grpc graceful stop timed out, connections closed forcibly")
		}
		return errors.Join(
			httpSrv.Shutdown(shutdownCtx),
			metricsSrv.Shutdown(shutdownCtx),
		)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("workspace-api exited properly")
	return nil
}
