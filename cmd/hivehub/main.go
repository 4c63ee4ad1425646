package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/swarmlab/hivehub/internal/config"
	"github.com/swarmlab/hivehub/internal/janitor"
	"github.com/swarmlab/hivehub/internal/natsbus"
	"github.com/swarmlab/hivehub/internal/room"
	"github.com/swarmlab/hivehub/internal/store"
	"github.com/swarmlab/hivehub/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("hivehub %s\n", version)
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("serve failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: hivehub <command>\n\nCommands:\n  serve      Start the coordination hub\n  version    Print version\n")
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting hivehub", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite-backed room state
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// Embedded NATS event mirror (optional)
	var mirror room.Mirror
	if cfg.NATS.Port >= 0 {
		bus, err := natsbus.New(cfg.NATS)
		if err != nil {
			return fmt.Errorf("init nats: %w", err)
		}
		defer bus.Close()

		client, err := natsbus.NewClient(bus)
		if err != nil {
			return fmt.Errorf("init nats client: %w", err)
		}
		defer client.Close()
		mirror = client
		slog.Info("nats event mirror started", "port", cfg.NATS.Port)
	} else {
		slog.Warn("nats event mirror disabled")
	}

	rooms := room.NewManager(db, mirror)

	// Storage compaction
	jan := janitor.New(rooms, cfg.Janitor)
	go jan.Start(ctx)

	// Web gateway
	srv := web.NewServer(rooms, cfg.Web, version)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()
	slog.Info("web gateway started", "port", cfg.Web.Port)

	// Wait for shutdown signal or fatal server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
		cancel()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}
