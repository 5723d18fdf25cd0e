// Command tenauthd runs the tenant-scoped token authorization service:
// an OAuth2 token endpoint plus bearer-guarded tenant-scoped resource
// routes, configured from a YAML file.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	tenauth "github.com/arlox-io/tenauth"
	"github.com/arlox-io/tenauth/httpapi"
	promexport "github.com/arlox-io/tenauth/metrics/export/prometheus"
	"github.com/arlox-io/tenauth/policy"
)

func main() {
	configPath := flag.String("config", "tenauthd.yaml", "path to configuration file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Stderr.WriteString("logger init failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(*configPath, logger); err != nil {
		logger.Fatal("tenauthd exited", zap.Error(err))
	}
}

func run(configPath string, logger *zap.Logger) error {
	fileCfg, err := httpapi.LoadConfig(configPath)
	if err != nil {
		return err
	}

	engineCfg, err := fileCfg.EngineConfig()
	if err != nil {
		return err
	}

	table, err := policy.LoadFile(fileCfg.PoliciesFile)
	if err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fileCfg.Redis.Addr,
		Password: fileCfg.Redis.Password,
		DB:       fileCfg.Redis.DB,
	})
	defer func() { _ = redisClient.Close() }()

	builder := tenauth.New().
		WithConfig(engineCfg).
		WithRedis(redisClient).
		WithPolicies(table).
		WithUserProvider(fileCfg.UserProvider())
	if cp := fileCfg.ClientProvider(); cp != nil {
		builder = builder.WithClientProvider(cp)
	}
	if fileCfg.Audit.Enabled {
		builder = builder.WithAuditSink(tenauth.NewJSONWriterSink(os.Stdout))
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	api := httpapi.NewServer(engine, httpapi.NewStaticDirectory(), logger)

	mux := http.NewServeMux()
	mux.Handle("/", api.Router())
	if fileCfg.Metrics.Enabled {
		mux.Handle("/metrics", promexport.NewPrometheusExporter(engine).Handler())
	}

	srv := &http.Server{
		Addr:         fileCfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  fileCfg.Server.ReadTimeout,
		WriteTimeout: fileCfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.Int("policies", table.Len()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), fileCfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
