package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/research"
)

// research-agent serves the streaming research contract backed by SearXNG, so
// bytelensed can reach it through RESEARCH_AGENT_ADDR.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig(os.Getenv("BYTELENSE_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	if cfg.Research.SearXNGURL == "" {
		logger.Error("SEARXNG_URL env var is required")
		os.Exit(2)
	}
	addr := getenv("AGENT_ADDR", ":8090")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	research.RegisterAgentServer(grpcServer, &research.LocalAgent{
		Researcher: research.NewSearXNG(research.SearXNGConfig{
			BaseURL:    cfg.Research.SearXNGURL,
			MaxResults: cfg.Research.MaxResults,
			Timeout:    cfg.Research.Timeout,
		}, logger),
		Logger: logger,
	})
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	logger.Info("research-agent listening", "addr", addr, "searxng", cfg.Research.SearXNGURL)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	healthServer.Shutdown()
	grpcServer.GracefulStop()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
