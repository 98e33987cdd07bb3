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

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/goodnatureofminers/waterfalls-client/internal/metrics"
	"github.com/goodnatureofminers/waterfalls-client/pkg/waterfalls"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type config struct {
	BaseURL     string            `long:"base-url" env:"WATERFALLS_BASE_URL" description:"index server base URL" required:"true"`
	Network     string            `long:"network" env:"WATERFALLS_NETWORK" description:"network used to parse addresses" choice:"mainnet" choice:"testnet" choice:"signet" choice:"regtest" default:"mainnet"`
	Proxy       string            `long:"proxy" env:"WATERFALLS_PROXY" description:"proxy URL (http, https, socks5, socks5h)"`
	Timeout     time.Duration     `long:"timeout" env:"WATERFALLS_TIMEOUT" description:"timeout of a single HTTP exchange" default:"30s"`
	MaxRetries  int               `long:"max-retries" env:"WATERFALLS_MAX_RETRIES" description:"retries after 429, 500 or 503" default:"6"`
	RateLimit   int               `long:"rate-limit" env:"WATERFALLS_RATE_LIMIT" description:"requests per second, 0 disables the limit" default:"0"`
	Headers     map[string]string `long:"header" env:"WATERFALLS_HEADERS" env-delim:"," description:"header sent with every request, as name:value"`
	MetricsAddr string            `long:"metrics-addr" env:"WATERFALLS_METRICS_ADDR" description:"address for metrics server, empty disables it"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	app := &application{ctx: ctx, logger: logger, out: os.Stdout}
	parser := flags.NewParser(&app.cfg, flags.Default)
	registerCommands(parser, app)
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if cmd == nil {
			return nil
		}
		if err := app.setup(); err != nil {
			return err
		}
		return cmd.Execute(args)
	}

	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Error("command failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func (a *application) setup() error {
	params, err := networkParams(a.cfg.Network)
	if err != nil {
		return err
	}
	a.params = params

	if a.cfg.MetricsAddr != "" {
		startMetricsServer(a.ctx, a.cfg.MetricsAddr, a.logger)
	}

	client, err := waterfalls.NewClient(waterfalls.Config{
		BaseURL:    a.cfg.BaseURL,
		Proxy:      a.cfg.Proxy,
		Timeout:    a.cfg.Timeout,
		Headers:    a.cfg.Headers,
		MaxRetries: a.cfg.MaxRetries,
	},
		waterfalls.WithLogger(a.logger),
		waterfalls.WithMetrics(metrics.NewClient(a.cfg.Network)),
		waterfalls.WithRateLimit(a.cfg.RateLimit),
	)
	if err != nil {
		return fmt.Errorf("init waterfalls client: %w", err)
	}
	a.client = client
	return nil
}

func networkParams(name string) (*chaincfg.Params, error) {
	switch name {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
}

func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()
}
