package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/themis-legal/themis/internal/asyncexec"
	"github.com/themis-legal/themis/internal/config"
	"github.com/themis-legal/themis/internal/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the orchestrator over HTTP",
	Long: `Start the HTTP API server.

Exposes planning, execution (including streaming and background jobs),
artifact retrieval, health probes, and metrics. Configuration comes
from the usual config files; --host and --port override the server
address.

Examples:
  themis serve
  themis serve --port 9000`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind address (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfigOrExit()
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	service, err := buildService(cfg)
	if err != nil {
		return err
	}

	jobs := asyncexec.NewManager(service, cfg.Async.MaxConcurrent)
	srv, err := server.NewServer(service, jobs, &server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		BodyLimit:   cfg.Server.BodyLimit,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	if err != nil {
		return err
	}

	if _, keyErr := config.GetAPIKey(cfg); keyErr != nil {
		printStatus("⚠", "No Anthropic API key configured, agents run with the deterministic stub client", color.FgYellow)
	}
	printStatus("✓", fmt.Sprintf("Listening on %s:%d", cfg.Server.Host, cfg.Server.Port), color.FgGreen)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	fmt.Println("\nShutting down ...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
