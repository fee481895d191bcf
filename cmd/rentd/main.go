// Package main is the entrypoint for the rentd server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/liveinsync/rentd/internal/cache"
	"github.com/liveinsync/rentd/internal/config"
	"github.com/liveinsync/rentd/internal/identity"
	"github.com/liveinsync/rentd/internal/ratelimit"
	"github.com/liveinsync/rentd/internal/server"
	"github.com/liveinsync/rentd/internal/store"

	// Register cache drivers
	_ "github.com/liveinsync/rentd/internal/cache/memory"

	// Register store drivers
	_ "github.com/liveinsync/rentd/internal/store/memory"
	_ "github.com/liveinsync/rentd/internal/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: prod or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	storeDriver := flag.String("store-driver", "", "Store driver: memory or sqlite (overrides config)")
	dataDir := flag.String("data-dir", "", "Data directory for the sqlite driver (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: debug, info, warn, error (overrides config)")
	ownerEmail := flag.String("owner-email", "", "Bootstrap owner email (overrides config)")
	ownerPassword := flag.String("owner-password", "", "Bootstrap owner password (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:    listenAddr,
			StoreDriver:   storeDriver,
			DataDir:       dataDir,
			LoggingLevel:  loggingLevel,
			OwnerEmail:    ownerEmail,
			OwnerPassword: ownerPassword,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("effective configuration", "config", cfg.Redacted())

	// Initialize persistence
	if cfg.Store.Driver == "sqlite" {
		if err := os.MkdirAll(cfg.Store.DataDir, 0700); err != nil {
			logger.Error("failed to create data directory", "path", cfg.Store.DataDir, "error", err)
			os.Exit(1)
		}
	}

	db, err := store.New(&store.DriverConfig{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
	})
	if err != nil {
		logger.Error("failed to create store driver", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := db.Init(ctx); err != nil {
		logger.Error("failed to initialize store", "driver", db.Name(), "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("store initialized", "driver", db.Name())

	// Identity components. Sessions are volatile by design; clients
	// re-login after a restart.
	sessions := identity.NewMemorySessionRepo()
	auth := identity.NewUserAuth(12)

	if cfg.Bootstrap.OwnerEmail != "" && cfg.Bootstrap.OwnerPassword != "" {
		if err := bootstrapOwner(ctx, db, auth, cfg, logger); err != nil {
			logger.Error("failed to bootstrap owner", "error", err)
			os.Exit(1)
		}
	}

	// Per-tenant create quota and per-host websocket connect quota share
	// one counter cache.
	var createLimiter, handshakeLimiter *ratelimit.Limiter
	if cfg.RateLimit.CreatePerMinute > 0 || cfg.RateLimit.HandshakePerMinute > 0 {
		c, err := cache.New("memory", nil)
		if err != nil {
			logger.Error("failed to create cache", "error", err)
			os.Exit(1)
		}
		defer c.Close()

		if cfg.RateLimit.CreatePerMinute > 0 {
			createLimiter = ratelimit.New(c, &ratelimit.Config{
				RequestsPerWindow: cfg.RateLimit.CreatePerMinute,
				Window:            time.Minute,
				KeyPrefix:         "maintenance-create:",
			})
		}
		if cfg.RateLimit.HandshakePerMinute > 0 {
			handshakeLimiter = ratelimit.New(c, &ratelimit.Config{
				RequestsPerWindow: cfg.RateLimit.HandshakePerMinute,
				Window:            time.Minute,
				KeyPrefix:         "ws-handshake:",
			})
		}
	}

	srv, err := server.New(cfg, logger, &server.Deps{
		Users:            db,
		Sessions:         sessions,
		Auth:             auth,
		Requests:         db,
		Limiter:          createLimiter,
		HandshakeLimiter: handshakeLimiter,
	})
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGINT/SIGTERM
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-done
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if err := srv.Start(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// bootstrapOwner seeds the configured owner account if it doesn't exist.
func bootstrapOwner(ctx context.Context, users identity.UserRepo, auth *identity.UserAuth, cfg *config.Config, logger *slog.Logger) error {
	if _, err := users.GetByEmail(ctx, cfg.Bootstrap.OwnerEmail); err == nil {
		return nil
	}

	hash, err := auth.HashPassword(cfg.Bootstrap.OwnerPassword)
	if err != nil {
		return err
	}

	name := cfg.Bootstrap.OwnerName
	if name == "" {
		name = "Owner"
	}

	owner := &identity.User{
		ID:           uuid.NewString(),
		Email:        cfg.Bootstrap.OwnerEmail,
		Name:         name,
		PasswordHash: hash,
		Role:         identity.RoleOwner,
		CreatedAt:    time.Now(),
	}
	if err := users.Create(ctx, owner); err != nil {
		return err
	}

	logger.Info("bootstrapped owner account", "email", owner.Email, "user_id", owner.ID)
	return nil
}
