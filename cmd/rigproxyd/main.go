// Package main implements the rigproxy daemon entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rig-control/rigproxy/internal/adapter"
	"github.com/rig-control/rigproxy/internal/adapter/rigctl"
	"github.com/rig-control/rigproxy/internal/adapter/simrig"
	"github.com/rig-control/rigproxy/internal/api"
	"github.com/rig-control/rigproxy/internal/audit"
	"github.com/rig-control/rigproxy/internal/auth"
	"github.com/rig-control/rigproxy/internal/bus"
	"github.com/rig-control/rigproxy/internal/config"
	"github.com/rig-control/rigproxy/internal/relay"
	"github.com/rig-control/rigproxy/internal/session"
)

const Version = "1.0.0"

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		simulate   = flag.Bool("sim", false, "use the built-in rig simulator instead of rigctld")
		connect    = flag.Bool("connect", false, "connect to the configured rig at startup")
	)
	flag.Parse()

	log.Printf("Starting rigproxy v%s", Version)

	// Step 1: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.Println("Configuration loaded")

	// Step 2: Initialize audit logger.
	auditLogger := audit.NewLogger(cfg.Audit.Path, cfg.Audit.MaxSizeMB, cfg.Audit.MaxBackups)
	log.Println("Audit logger initialized")

	// Step 3: Initialize event bus.
	events := bus.New()

	// Step 4: Pick the adapter backend.
	var rig adapter.Adapter
	if *simulate || cfg.Rig.Simulator {
		rig = simrig.New()
		log.Println("Using built-in rig simulator")
	} else {
		rig = rigctl.New()
		log.Printf("Using rigctld backend (default target %s:%d)", cfg.Rig.Host, cfg.Rig.Port)
	}

	// Step 5: Create the session manager.
	sess := session.NewManager(rig, events, cfg.Timing)
	sess.SetAuditLogger(auditLogger)
	log.Println("Session manager initialized")

	// Step 6: Start the websocket relay.
	hub := relay.NewHub(sess, events, cfg.Relay.ClientQueue, cfg.Relay.WriteTimeout)
	hub.Run()
	log.Println("Event relay started")

	// Step 7: Wire auth when a secret is configured.
	var authMW *auth.Middleware
	if cfg.Auth.Secret != "" {
		authMW = auth.NewMiddleware(auth.NewVerifier(cfg.Auth.Secret))
		log.Println("Bearer-token auth enabled")
	} else {
		log.Println("Auth disabled (no secret configured)")
	}

	// Step 8: Create and start the API server.
	server := api.NewServer(sess, hub, authMW, cfg.Server)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()
	log.Printf("HTTP server listening on %s:%d", cfg.Server.Host, cfg.Server.Port)

	// Step 9: Optionally bring the session up immediately.
	if *connect {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timing.ConnectTimeout)
		if _, err := sess.Connect(ctx, cfg.Rig.Host, cfg.Rig.Port); err != nil {
			log.Printf("Initial connect to %s:%d failed: %v", cfg.Rig.Host, cfg.Rig.Port, err)
		} else {
			sess.StartPolling(cfg.Timing.PollInterval)
			log.Printf("Connected to %s:%d, polling every %v", cfg.Rig.Host, cfg.Rig.Port, cfg.Timing.PollInterval)
		}
		cancel()
	}

	// Wait for shutdown signal or server error.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-shutdown:
		log.Printf("Received signal %v, shutting down", sig)
	case err := <-serverErr:
		log.Printf("Server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Printf("Error stopping HTTP server: %v", err)
	}
	if err := sess.Disconnect(); err != nil && err != session.ErrNotConnected {
		log.Printf("Error disconnecting session: %v", err)
	}
	hub.Stop()
	events.Close()
	if err := auditLogger.Close(); err != nil {
		log.Printf("Error closing audit logger: %v", err)
	}

	log.Println("rigproxy shutdown complete")
}
