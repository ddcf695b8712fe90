package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/jmerrifield20/vendorguard/internal/bootstrap"
	"github.com/jmerrifield20/vendorguard/internal/config"
	"github.com/jmerrifield20/vendorguard/internal/health"
	"github.com/jmerrifield20/vendorguard/internal/server"
	"github.com/jmerrifield20/vendorguard/internal/server/handler"
)

// grpcServiceName is the grpc.health.v1 service name reported for the API.
const grpcServiceName = "vendorguard.v1.VendorGuard"

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// VENDORGUARD_CONFIG overrides the configs/vendorguard.yaml search.
	if err := run(os.Getenv("VENDORGUARD_CONFIG"), logger); err != nil {
		logger.Fatal("vendorguard-server exited with error", zap.Error(err))
	}
}

func run(configFile string, logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	cfg, err := config.Load(config.NewViper(configFile), logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ── Pipeline, history and audit log ──────────────────────────────────────
	app, err := bootstrap.Build(ctx, cfg, handler.AnalysisHooks(), logger)
	if err != nil {
		return err
	}
	defer app.Close()
	app.Service.SetAuditErrorHook(handler.RecordAuditFailure)

	if err := app.Completer.Preflight(); err != nil {
		logger.Warn("model credentials not usable; every analysis will fall back until fixed",
			zap.Error(err))
	}
	if err := app.Audit.Verify(ctx); err != nil {
		// Existing records are left untouched; new appends still chain onto the tail.
		logger.Error("audit log integrity check failed", zap.Error(err))
	}
	if app.Tokens == nil {
		logger.Warn("auth.secret not set, API is unauthenticated")
	}

	// ── Readiness probes ─────────────────────────────────────────────────────
	checker := health.New(health.Config{}, logger)
	app.RegisterProbes(checker)

	// ── gRPC health server ───────────────────────────────────────────────────
	var grpcServer *grpc.Server
	if cfg.Server.GRPCPort > 0 {
		grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
		if err != nil {
			return fmt.Errorf("gRPC listen on :%d: %w", cfg.Server.GRPCPort, err)
		}

		grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
		healthSvc := grpchealth.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthSvc)
		reflection.Register(grpcServer)

		checker.SetStatusChange(func(healthy bool) {
			st := grpc_health_v1.HealthCheckResponse_SERVING
			if !healthy {
				st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			}
			healthSvc.SetServingStatus(grpcServiceName, st)
		})
		healthSvc.SetServingStatus(grpcServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

		go func() {
			logger.Info("gRPC health listening", zap.Int("port", cfg.Server.GRPCPort))
			if err := grpcServer.Serve(grpcLis); err != nil {
				logger.Error("gRPC serve error", zap.Error(err))
			}
		}()
	}

	go checker.Start(ctx)

	// ── HTTP server ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	httpSrv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.New(ctx, server.Options{
			Config:  cfg.Server,
			Service: app.Service,
			Tokens:  app.Tokens,
			Health:  checker,
			Logger:  logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("vendorguard HTTP listening", zap.Int("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("HTTP listen: %w", err)
	}
	logger.Info("shutting down vendorguard...")

	// In-flight analyses can take as long as the model call.
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer shutCancel()

	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	logger.Info("vendorguard stopped")
	return nil
}

// loggingInterceptor returns a gRPC unary server interceptor that logs each call.
func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("grpc",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}
