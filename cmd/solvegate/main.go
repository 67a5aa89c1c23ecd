package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/solvegate/solvegate/internal/engine"
	"github.com/solvegate/solvegate/internal/httpapi"
	"github.com/solvegate/solvegate/internal/logging"
	"github.com/solvegate/solvegate/internal/settings"
)

func main() {
	cfgPath := strings.TrimSpace(os.Getenv("SOLVEGATE_CONFIG"))
	cfg, err := settings.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}
	applyEnvOverrides(&cfg)

	logger, err := logging.New(logging.Options{
		Level:    os.Getenv("SOLVEGATE_LOG_LEVEL"),
		FilePath: filepath.Join(cfg.LogDir, "solvegate.log"),
	})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	backend, err := engine.BuildStateBackendFromDSN(cfg.StateDSN)
	if err != nil {
		logger.Fatalw("failed to initialize state backend", "dsn", cfg.StateDSN, "error", err)
	}

	remote := engine.NewHTTPRemoteClient(engine.RemoteClientOptions{
		BaseURL:       cfg.Remote.BaseURL,
		SessionCookie: cfg.Remote.SessionCookie,
	})

	// The server is both an API surface and the engine's event sink; the
	// notifier closure lets the engine be constructed first.
	var server *httpapi.Server
	eng, err := engine.New(engine.Options{
		Backend: backend,
		Remote:  remote,
		Logger:  logger,
		Notifier: func(event engine.Event) {
			if server != nil {
				server.Broadcast(event)
			}
		},
	})
	if err != nil {
		logger.Fatalw("failed to initialize engine", "error", err)
	}
	server = httpapi.NewServer(eng, httpapi.ServerConfig{
		APIToken:           cfg.APIToken,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	applyGoalSettings(ctx, eng, logger, cfg)

	go func() {
		syncCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := eng.Reconcile(syncCtx, engine.TriggerBackground); err != nil && !errors.Is(err, engine.ErrNotConfigured) {
			logger.Warnw("startup sync failed", "error", err)
		}
	}()

	if cfgPath != "" || fileExists(settings.DefaultPath()) {
		go func() {
			err := settings.Watch(ctx, cfgPath, logger, func(next settings.Settings) {
				applyGoalSettings(ctx, eng, logger, next)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warnw("settings watcher stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infow("solvegate listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("server shutdown failed", "error", err)
	}
	if err := eng.Close(); err != nil {
		logger.Warnw("engine close failed", "error", err)
	}
}

func applyEnvOverrides(cfg *settings.Settings) {
	if v := strings.TrimSpace(os.Getenv("SOLVEGATE_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("SOLVEGATE_STATE_DSN")); v != "" {
		cfg.StateDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("SOLVEGATE_API_TOKEN")); v != "" {
		cfg.APIToken = v
	}
	if v := strings.TrimSpace(os.Getenv("SOLVEGATE_SESSION_COOKIE")); v != "" {
		cfg.Remote.SessionCookie = v
	}
	if v := strings.TrimSpace(os.Getenv("SOLVEGATE_REMOTE_BASE_URL")); v != "" {
		cfg.Remote.BaseURL = v
	}
}

// applyGoalSettings pushes file-level goal settings into the engine. A file
// without a username leaves whatever was configured through the API alone.
func applyGoalSettings(ctx context.Context, eng *engine.Engine, logger *zap.SugaredLogger, cfg settings.Settings) {
	if cfg.Goal.Username == "" {
		return
	}
	applyCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err := eng.UpdateSettings(applyCtx, cfg.Goal.Username, cfg.Goal.DailyGoal, cfg.Goal.RequireDaily, cfg.Goal.NotifyEnabled())
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warnw("failed to apply goal settings", "error", err)
	}
}

func fileExists(path string) bool {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return false
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	_, err := os.Stat(path)
	return err == nil
}
