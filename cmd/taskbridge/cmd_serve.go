package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"taskbridge/internal/config"
	"taskbridge/internal/gateway"
	"taskbridge/internal/logging"
	"taskbridge/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var listenAddr string

// serveCmd runs the HTTP gateway
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	Long: `Listens for the task tracker routes and forwards each request to the
configured Apps Script web app.

Also serves /healthz and, unless metrics.enabled is false, /metrics.
SIGINT or SIGTERM drains in-flight requests before exiting.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Listen address (overrides server.listen)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx)
}

// serve builds the gateway from the global config and blocks until ctx ends.
func serve(ctx context.Context) error {
	if listenAddr != "" {
		cfg.Server.Listen = listenAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	boot := logs.Get(logging.CategoryBoot)

	var metrics *gateway.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		var err error
		metrics, err = gateway.NewMetrics(reg)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	fwd, err := newForwarder(cfg, metrics)
	if err != nil {
		return err
	}
	defer fwd.Close()

	gw := gateway.New(gateway.Options{
		Forwarder: fwd,
		Logger:    logs,
		Metrics:   metrics,
		CORS:      cfg.CORS,
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.GetRateBurst(),
	})

	boot.Info("starting gateway",
		zap.String("listen", cfg.Server.Listen),
		zap.String("backend", cfg.Backend.URL),
		zap.Duration("backend_timeout", cfg.Backend.GetTimeout()),
		zap.Bool("metrics", metrics != nil),
		zap.Int("routes", len(gateway.Routes)))

	return server.New(cfg.Server, gw.Handler(), boot).Run(ctx)
}

func newForwarder(c *config.Config, metrics *gateway.Metrics) (*gateway.Forwarder, error) {
	fwd, err := gateway.NewForwarder(gateway.ForwarderConfig{
		URL:           c.Backend.URL,
		Timeout:       c.Backend.GetTimeout(),
		MaxBodyBytes:  c.Backend.MaxBodyBytes,
		LogBodyPrefix: c.Backend.LogBodyPrefix,
	}, logs, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create forwarder: %w", err)
	}
	return fwd, nil
}
