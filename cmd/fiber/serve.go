package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/webriots/fiber"
	"github.com/webriots/fiber/fiberhttp"
	"github.com/webriots/fiber/logging"
	obs "github.com/webriots/fiber/observability/prometheus"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve HTTP requests, one fiber per request",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address (overrides serve.addr)",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "expose /metrics (overrides serve.metrics)",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, logger, err := settings(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if c.IsSet("addr") {
		cfg.Serve.Addr = c.String("addr")
	}
	if c.IsSet("metrics") {
		cfg.Serve.Metrics = c.Bool("metrics")
	}

	handler, loop, err := newServeHandler(cfg.Serve, logger)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer loop.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	server := &http.Server{Addr: cfg.Serve.Addr, Handler: handler}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logger.Info("listening", "addr", cfg.Serve.Addr, "metrics", cfg.Serve.Metrics)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return cli.Exit(err.Error(), 1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newServeHandler builds the demo routes on a dedicated loop.
func newServeHandler(cfg serveConfig, logger logging.Logger) (http.Handler, *fiber.Loop, error) {
	reg := prom.NewRegistry()
	opts := []fiber.LoopOption{fiber.WithName("serve"), fiber.WithLogger(logger)}
	if cfg.Metrics {
		exporter, err := obs.NewMetricsExporter("fiber", reg, obs.ExporterOptions{})
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, fiber.WithMetrics(exporter))
	}
	loop := fiber.NewLoop(opts...)

	routes := http.NewServeMux()
	routes.HandleFunc("/sleep", func(w http.ResponseWriter, r *http.Request) {
		ms, err := strconv.Atoi(r.URL.Query().Get("ms"))
		if err != nil || ms < 0 {
			http.Error(w, "ms must be a non-negative integer", http.StatusBadRequest)
			return
		}
		if err := fiber.Sleep(r.Context(), time.Duration(ms)*time.Millisecond); err != nil {
			panic(err)
		}
		fmt.Fprintf(w, "slept %dms\n", ms)
	})
	routes.HandleFunc("/fail", func(w http.ResponseWriter, r *http.Request) {
		panic("requested failure")
	})

	mux := http.NewServeMux()
	mux.Handle("/", fiberhttp.Middleware(fiberhttp.Options{Loop: loop, Logger: logger})(routes))
	if cfg.Metrics {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	return mux, loop, nil
}
