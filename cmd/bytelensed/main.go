package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/bytelense/internal/app"
	"github.com/joseph-ayodele/bytelense/internal/async"
	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/httpapi"
	"github.com/joseph-ayodele/bytelense/internal/ingest"
	svc "github.com/joseph-ayodele/bytelense/internal/server"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("BYTELENSE_CONFIG"), "optional TOML config file")
		inbox      = flag.String("inbox", os.Getenv("INBOX_DIR"), "directory watched for new label files")
		inboxUser  = flag.String("inbox-user", getenv("INBOX_USER", "local"), "user that inbox scans are logged for")
		origins    = flag.String("cors", os.Getenv("CORS_ORIGINS"), "comma-separated allowed origins for the HTTP API")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("LOG_LEVEL")),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, app.Options{}, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("close failed", "error", err)
		}
	}()
	if err := a.Health(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	scanServer := svc.NewScanServer(a.Orchestrator, a.Ledger, a.Export, a.Profiles, logger)

	// gRPC
	lis, err := net.Listen("tcp", listenAddr(cfg.Server.GRPCAddr))
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	svc.RegisterScanService(grpcServer, scanServer)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	logger.Info("bytelensed grpc listening", "addr", lis.Addr().String())
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	// HTTP
	var httpServer *http.Server
	if cfg.Server.HTTPAddr != "" {
		httpServer = &http.Server{
			Addr: listenAddr(cfg.Server.HTTPAddr),
			Handler: httpapi.NewRouter(scanServer, httpapi.Options{
				AllowOrigins: splitList(*origins),
				Health:       a.Health,
				Logger:       logger,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		logger.Info("bytelensed http listening", "addr", httpServer.Addr)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http serve error", "error", err)
				os.Exit(1)
			}
		}()
	}

	// inbox
	var queue *async.WorkerQueue
	if *inbox != "" {
		queue = async.NewWorkerQueue(a.ScanProcessor(nil), logger,
			async.WithWorkers(cfg.Pipeline.Workers),
			async.WithQueueSize(256),
			async.WithProcessTimeout(cfg.Pipeline.OverallDeadline+30*time.Second),
		)
		paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{*inbox},
			InitialScan: true,
			Debounce:    500 * time.Millisecond,
			SkipHidden:  true,
		}, logger)
		if err != nil {
			logger.Error("failed to watch inbox", "dir", *inbox, "error", err)
			os.Exit(1)
		}
		go feedInbox(ctx, paths, errs, queue, *inboxUser, logger)
		logger.Info("watching inbox", "dir", *inbox, "user", *inboxUser)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.OverallDeadline+10*time.Second)
	defer cancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", "error", err)
		}
	}
	if queue != nil {
		queue.Shutdown(shutdownCtx)
	}
	healthServer.Shutdown()
	grpcServer.GracefulStop()
}

func feedInbox(ctx context.Context, paths <-chan string, errs <-chan error, queue *async.WorkerQueue, user string, logger *slog.Logger) {
	for {
		select {
		case p, ok := <-paths:
			if !ok {
				return
			}
			job := async.Job{ScanID: uuid.NewString(), User: user, Path: p, Servings: 1}
			if err := queue.Enqueue(ctx, job); err != nil {
				logger.Warn("inbox enqueue failed", "path", filepath.Base(p), "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("inbox watcher error", "error", err)
		}
	}
}

func listenAddr(addr string) string {
	if !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func logLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
