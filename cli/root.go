// Package cli wires the citewatch process together: load the INI config
// file described in spec.md §6, build the Store/auth/scheduler/merger
// components, and serve the REST façade until a shutdown signal arrives.
package cli

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"citewatch.io/adapters"
	"citewatch.io/api"
	"citewatch.io/auth"
	"citewatch.io/common"
	"citewatch.io/config"
	"citewatch.io/db"
	chttp "citewatch.io/http"
	"citewatch.io/merger"
	"citewatch.io/scheduler"
	"citewatch.io/version"
)

var cfgFile string

// RootCmd is the citewatch server entry point: load config, wire every
// component, and run until interrupted.
var RootCmd = &cobra.Command{
	Use:   "citewatch",
	Short: "aggregates a researcher's publications and citations across sources",
	RunE:  runServer,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "citewatch.ini", "path to the INI configuration file")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("cli: load config: %w", err)
	}

	loggerCfg := common.DefaultLoggerConfig()
	loggerCfg.Level = common.LogLevel(cfg.Logging.Level)
	loggerCfg.Service = "citewatch"
	loggerCfg.Version = version.GetModuleVersion()
	baseLogger := common.NewLogger(loggerCfg)
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("cli: open log file: %w", err)
		}
		baseLogger.SetOutput(f)
	}
	log := common.NewContextLogger(baseLogger, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.NewPostgresStore(ctx, cfg.Storage.Path, common.NewComponentLogger(baseLogger, "store", cfg.Logging.Levels))
	if err != nil {
		return fmt.Errorf("cli: open store: %w", err)
	}

	auditDSN := common.GetEnv("CITEWATCH_AUDIT_DSN", cfg.Storage.Path)
	auditStore, err := db.NewAuditStore(auditDSN)
	if err != nil {
		return fmt.Errorf("cli: open audit store: %w", err)
	}

	var cache *db.MetricsCache
	if redisAddr := common.GetEnv("CITEWATCH_REDIS_ADDR", ""); redisAddr != "" {
		ttl := time.Duration(common.GetEnvInt("CITEWATCH_METRICS_CACHE_TTL_MINUTES", 1)) * time.Minute
		cache = db.NewMetricsCache(redisAddr, ttl)
		store.SetMetricsCache(cache)
	}

	registry := adapters.NewDefaultRegistry()
	client := chttp.SharedClient()

	authSvc := auth.NewService(store, auditStore)
	authCfg := auth.DefaultConfig()
	authCfg.FailRetryDelay = cfg.Auth.FailRetryDelay
	authCfg.Whitelist = cfg.Auth.Whitelist
	authCfg.CookieSecure = cfg.WWW.Secure

	sched := scheduler.New(store, registry, client, common.NewComponentLogger(baseLogger, "scheduler", cfg.Logging.Levels))
	mrg := merger.New(store, registry.Namespaces(), common.NewComponentLogger(baseLogger, "merger", cfg.Logging.Levels))

	takeoutSecretStr := common.GetEnv("CITEWATCH_TAKEOUT_SECRET", "")
	if takeoutSecretStr == "" {
		takeoutSecretStr = "citewatch-dev-takeout-secret"
		log.Warn("CITEWATCH_TAKEOUT_SECRET not set, using an insecure development default")
	}
	log.WithField("takeout_secret", common.MaskSecret(takeoutSecretStr)).Debug("takeout signing secret loaded")
	takeoutSecret := []byte(takeoutSecretStr)

	server := api.New(api.Dependencies{
		Store:         store,
		AuthService:   authSvc,
		AuthConfig:    authCfg,
		Scheduler:     sched,
		Merger:        mrg,
		Registry:      registry,
		MetricsCache:  cache,
		TakeoutSecret: takeoutSecret,
		Logger:        common.NewComponentLogger(baseLogger, "http", cfg.Logging.Levels),
	})

	echoServer := chttp.NewEchoServer(chttp.DefaultServerConfig())
	server.RegisterRoutes(echoServer)

	// Scheduler, Merger, and the HTTP listener each run on their own
	// goroutine; errs collects the first failure from any of them so
	// runServer can report it after shutdown completes.
	errs := make(chan error, 3)
	var wg sync.WaitGroup

	runTask := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				errs <- fmt.Errorf("cli: %s: %w", name, err)
			}
		}()
	}

	if cfg.Storage.Crawler {
		runTask("scheduler", sched.Run)
		runTask("merger", mrg.Run)
	} else {
		log.Info("storage.crawler=false, running in read-only mode")
	}

	runTask("http server", func(ctx context.Context) error {
		serverCfg := chttp.DefaultServerConfig()
		if port, err := parsePort(cfg.WWW.Root); err == nil {
			serverCfg.Port = port
		}
		if err := chttp.StartServer(echoServer, serverCfg); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return err
		}
		return nil
	})

	<-ctx.Done()
	log.Info("shutting down")
	if err := chttp.GracefulShutdown(echoServer, 10*time.Second); err != nil {
		log.WithError(err).Error("error during shutdown")
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// parsePort extracts the trailing ":port" from a "host:port" listen
// address, the shape the www.root config value takes (spec.md §6).
func parsePort(root string) (int, error) {
	var port int
	idx := -1
	for i := len(root) - 1; i >= 0; i-- {
		if root[i] == ':' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, fmt.Errorf("no port in %q", root)
	}
	if _, err := fmt.Sscanf(root[idx+1:], "%d", &port); err != nil {
		return 0, err
	}
	return port, nil
}
