package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lanebridge/config"
	"lanebridge/core"
	"lanebridge/indexer"
	"lanebridge/observability/logging"
	lbotel "lanebridge/observability/otel"
	"lanebridge/rpc"
	"lanebridge/storage"
)

const (
	envVar      = "LANEBRIDGE_ENV"
	serviceName = "lanebridged"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides GenesisFile)")
	exportFlag := flag.String("export-events", "", "Write the indexed events to a parquet file and exit")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*genesisFlag); trimmed != "" {
		cfg.GenesisFile = trimmed
	}
	if env := strings.TrimSpace(os.Getenv(envVar)); env != "" {
		cfg.Logging.Env = env
	}

	logger := logging.Setup(serviceName, logging.Options{
		Env:        cfg.Logging.Env,
		Level:      cfg.Logging.Level,
		File:       cfg.ResolvePath(cfg.Logging.File),
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if path := strings.TrimSpace(*exportFlag); path != "" {
		if err := exportEvents(ctx, cfg, path, logger); err != nil {
			logger.Error("export failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("node exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	shutdownTelemetry, err := lbotel.Init(ctx, lbotel.Config{
		ServiceName: serviceName,
		Environment: cfg.Logging.Env,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     cfg.Telemetry.Headers,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var (
		opts   []core.Option
		events rpc.EventQuery
	)
	if cfg.Indexer.Enabled {
		store, err := indexer.Open(indexerDSN(cfg))
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, core.WithEventSink(store))
		events = store
	}

	node, err := core.NewNode(cfg, db, logger, opts...)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}

	separateMetrics := strings.TrimSpace(cfg.Telemetry.MetricsAddress) != "" &&
		cfg.Telemetry.MetricsAddress != cfg.RPC.Address
	jwtSecret := os.Getenv(cfg.RPC.JWTSecretEnv)
	logSettings(logger, cfg, jwtSecret)
	server := rpc.NewServer(node, events, rpc.Config{
		JWTSecret:       jwtSecret,
		JWTIssuer:       cfg.RPC.JWTIssuer,
		RateLimitPerSec: cfg.RPC.RateLimitPerSec,
		RateLimitBurst:  cfg.RPC.RateLimitBurst,
		ReadTimeout:     time.Duration(cfg.RPC.ReadTimeoutSecs) * time.Second,
		MaxConnections:  cfg.RPC.MaxConnections,
		ServeMetrics:    !separateMetrics,
	}, logger)

	errCh := make(chan error, 3)
	go func() { errCh <- node.Run(ctx) }()
	go func() { errCh <- server.Serve(ctx, cfg.RPC.Address) }()
	running := 2
	if separateMetrics {
		running++
		go func() { errCh <- serveMetrics(ctx, cfg.Telemetry.MetricsAddress, logger) }()
	}

	logger.Info("node started",
		"network", cfg.NetworkName,
		"chain_id", cfg.ChainID,
		"height", node.Height(),
		"rpc", cfg.RPC.Address)

	var firstErr error
	for i := 0; i < running; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	return firstErr
}

// logSettings records the operator-facing settings with secrets masked.
func logSettings(logger *slog.Logger, cfg *config.Config, jwtSecret string) {
	attrs := []any{
		"jwt_secret_env", cfg.RPC.JWTSecretEnv,
		logging.MaskField("jwt_secret", jwtSecret),
		"jwt_issuer", cfg.RPC.JWTIssuer,
	}
	if cfg.Indexer.Enabled {
		attrs = append(attrs, logging.MaskDSN("indexer_dsn", indexerDSN(cfg)))
	}
	if strings.TrimSpace(jwtSecret) == "" {
		logger.Warn("root submissions disabled", attrs...)
		return
	}
	logger.Info("root authentication configured", attrs...)
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch strings.ToLower(cfg.Storage.Backend) {
	case "memory":
		return storage.NewMemDB(), nil
	case "leveldb":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("prepare data dir: %w", err)
		}
		return storage.NewLevelDB(cfg.ResolvePath("chaindata"), storage.LevelDBOptions{
			CacheMB:   cfg.Storage.CacheMB,
			OpenFiles: cfg.Storage.OpenFiles,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func indexerDSN(cfg *config.Config) string {
	path := strings.TrimSpace(cfg.Indexer.Path)
	if strings.Contains(path, "://") {
		return path
	}
	return cfg.ResolvePath(path)
}

func exportEvents(ctx context.Context, cfg *config.Config, path string, logger *slog.Logger) error {
	store, err := indexer.Open(indexerDSN(cfg))
	if err != nil {
		return err
	}
	defer store.Close()
	written, err := store.ExportParquet(ctx, path, indexer.Filter{})
	if err != nil {
		return err
	}
	logger.Info("exported events", "path", path, "rows", written)
	return nil
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
