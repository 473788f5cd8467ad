package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/Tallisgo/JianLi-Tanuki/internal/app"
	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
	"github.com/Tallisgo/JianLi-Tanuki/internal/ingest"
	"github.com/Tallisgo/JianLi-Tanuki/internal/repository"
)

const (
	serviceName     = "resume.ingestion"
	healthInterval  = 15 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := common.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(2)
	}
	cfg := common.LoadConfig()
	logger := app.NewLogger(os.Stdout, cfg.LogLevel, os.Getenv("LOG_FORMAT") == "json")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "code", common.ErrorCode(err), "error", err)
		os.Exit(1)
	}
	defer a.Close()

	queue := a.NewQueue()
	ingestor := a.NewIngestor(queue, false)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_SERVING)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		watchDatabase(ctx, a.DB, healthServer, cfg.Database.DialTimeout, logger)
	}()

	if cfg.Upload.InboxDir != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ingest.RunInbox(ctx, ingestor, ingest.InboxConfig{Dir: cfg.Upload.InboxDir}, logger); err != nil {
				logger.Error("inbox stopped", "dir", cfg.Upload.InboxDir, "error", err)
			}
		}()
	}

	logger.Info("resumed listening",
		"addr", cfg.Server.GRPCAddr,
		"workers", cfg.Queue.Workers,
		"queue_size", cfg.Queue.Size,
		"inbox", cfg.Upload.InboxDir,
		"db", a.DB.Dialect(),
	)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()
	wg.Wait()

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	queue.Shutdown(sctx)
	grpcServer.GracefulStop()
	logger.Info("stopped")
}

// watchDatabase flips the service health to NOT_SERVING while the store is unreachable.
func watchDatabase(ctx context.Context, db *repository.DB, hs *health.Server, timeout time.Duration, logger *slog.Logger) {
	t := time.NewTicker(healthInterval)
	defer t.Stop()
	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		err := repository.HealthCheck(ctx, db, timeout, logger)
		switch {
		case err != nil && serving:
			serving = false
			hs.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
			logger.Warn("health.db.down", "grpc_code", status.Code(common.ToStatus(err)).String(), "error", err)
		case err == nil && !serving:
			serving = true
			hs.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_SERVING)
			logger.Info("health.db.up")
		}
	}
}
