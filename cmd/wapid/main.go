// Package main provides the wapi-dashboard server entry point.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/DhisHub/wapi-dashboard/internal/auth"
	"github.com/DhisHub/wapi-dashboard/internal/config"
	"github.com/DhisHub/wapi-dashboard/internal/dashboard"
	"github.com/DhisHub/wapi-dashboard/internal/db"
	"github.com/DhisHub/wapi-dashboard/internal/gateway"
	"github.com/DhisHub/wapi-dashboard/internal/identity"
	"github.com/DhisHub/wapi-dashboard/internal/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// Parse flags
	port := flag.String("port", "", "Listen port (overrides PORT)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Setup logging
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	// Load config from the environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *port != "" {
		cfg.Port = *port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Open the store (migrations run automatically)
	store, err := db.OpenPostgres(cfg.DatabaseDSN, db.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer store.Close()

	// Upstream clients
	gatewayClient := gateway.NewClient(cfg.GatewayURL)
	identityClient := identity.NewClient(cfg.IdentityURL, cfg.AnonKey, cfg.ServiceRoleKey)

	// Domain services
	authService := auth.NewService(identityClient, db.NewTokenStore(store), cfg.TokenSecret, cfg.BaseURL)
	dashboards := dashboard.NewManager(gatewayClient, db.NewSelectionStore(store), cfg.WebhookURL)

	svc := server.NewService(cfg, store, identityClient, authService, dashboards)

	go func() {
		<-sigCh
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := svc.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Shutdown error")
		}
		cancel()
	}()

	log.Info().
		Str("addr", cfg.Addr()).
		Str("gateway", cfg.GatewayURL).
		Str("version", Version).
		Msg("Starting wapi-dashboard")

	if err := svc.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}
	<-ctx.Done()
}
