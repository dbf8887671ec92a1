// Command channelhost serves the libgit2dart method channel.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"libgit2dart/config"
	"libgit2dart/middleware"
	"libgit2dart/plugin"
	"libgit2dart/registry"
	"libgit2dart/server"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "channelhost: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = pflag.StringP("config", "c", "", "path to the YAML config")
		listen     = pflag.StringP("listen", "l", "", "listen address, overrides the config")
		advertise  = pflag.String("advertise", "", "address registered for callers")
		regKind    = pflag.String("registry", "", "registry kind: static or etcd")
		metrics    = pflag.String("metrics", "", "serve /metrics on this address")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen.Address = *listen
	}
	if *advertise != "" {
		cfg.Listen.Advertise = *advertise
	}
	if *regKind != "" {
		cfg.Registry.Kind = *regKind
	}
	if *metrics != "" {
		cfg.Metrics.Address = *metrics
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := cfg.Logger()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mws := []middleware.Middleware{
		middleware.Recover(log),
		middleware.Logging(log),
		middleware.Metrics(promReg),
	}
	if cfg.Limits.RateLimit > 0 {
		mws = append(mws, middleware.RateLimit(cfg.Limits.RateLimit, cfg.Limits.RateBurst))
	}
	if cfg.Limits.CallTimeout > 0 {
		mws = append(mws, middleware.Timeout(cfg.Limits.CallTimeout))
	}

	svr := server.NewServer(
		server.WithLogger(log),
		server.WithMiddleware(mws...),
		server.WithRegistration(cfg.Registry.TTL, version),
	)
	plugin.RegisterWith(svr)

	var reg registry.Registry
	if cfg.Registry.Kind == "etcd" {
		etcd, err := registry.NewEtcdRegistry(log, cfg.Registry.Endpoints, cfg.Registry.DialTimeout)
		if err != nil {
			return err
		}
		defer etcd.Close()
		reg = etcd
	}

	if cfg.Metrics.Address != "" {
		go serveMetrics(log, cfg.Metrics.Address, promReg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- svr.Serve(cfg.Listen.Network, cfg.Listen.Address, cfg.Listen.Advertise, reg)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := svr.Shutdown(10 * time.Second); err != nil {
		return err
	}
	return <-errCh
}

func serveMetrics(log *slog.Logger, addr string, gatherer prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Error("metrics server stopped", "error", err)
	}
}
