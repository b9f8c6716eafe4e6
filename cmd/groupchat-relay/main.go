// Command groupchat-relay runs the group chat and signaling relay.
//
// Clients connect to the WebSocket endpoint at /ws and exchange JSON event
// frames to create rooms, join them, chat, and trade WebRTC session
// descriptions and ICE candidates. The rest of the HTTP surface carries the
// banner page, health endpoints, and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/hallwerk/groupchat-relay/internal/config"
	"github.com/hallwerk/groupchat-relay/internal/httpserver"
	"github.com/hallwerk/groupchat-relay/internal/metrics"
	"github.com/hallwerk/groupchat-relay/internal/registry"
	"github.com/hallwerk/groupchat-relay/internal/relay"
	"github.com/hallwerk/groupchat-relay/internal/ws"
)

// Populated via -ldflags at release build time.
var (
	buildCommit = "unknown"
	buildTime   = "unknown"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "groupchat-relay: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "groupchat-relay: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("starting groupchat-relay",
		"listen_addr", cfg.ListenAddr,
		"mode", cfg.Mode,
		"commit", buildCommit,
	)

	m := metrics.New()
	reg := registry.New()
	hub := relay.NewHub(logger, reg, m)
	wsServer := ws.NewServer(cfg, logger, hub)

	srv := httpserver.New(cfg, logger, httpserver.BuildInfo{
		Commit:    buildCommit,
		BuildTime: buildTime,
	})
	srv.Mux().Handle("GET /ws", wsServer)
	srv.Mux().Handle("GET /metrics", metrics.PrometheusHandler(m))

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, httpserver.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown incomplete, forcing close", "err", err)
		_ = srv.Close()
	}
	<-errCh
	return nil
}
