// Package main provides the minebot server entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raulk/clock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kubotlabs/minebot/internal/config"
	gormdb "github.com/kubotlabs/minebot/internal/db/gorm"
	"github.com/kubotlabs/minebot/internal/mining"
	"github.com/kubotlabs/minebot/internal/notify"
	redisstore "github.com/kubotlabs/minebot/internal/store/redis"
	"github.com/kubotlabs/minebot/internal/webhook"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if err := config.EnsureDataDir(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	if !*debug {
		if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	}
	mgr := config.NewManager(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Chat transport and dispatcher
	if cfg.Telegram.Token == "" {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, outbound notifications will fail")
	}
	transport := notify.NewTelegramTransport(cfg.Telegram.APIBase, cfg.Telegram.Token)
	dispatcher := notify.NewDispatcher(transport, func() int {
		return mgr.Current().MaxNotifyRetries
	})

	// Session store and ledger
	store, ledger, cleanup, err := buildBackends(mgr.Current())
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.SessionBackend).Msg("Failed to initialize session backend")
	}
	defer cleanup()

	svc := mining.NewService(clock.New(), store, ledger, dispatcher, func() mining.Options {
		cur := mgr.Current()
		return mining.Options{
			SessionDuration: cur.SessionDuration(),
			RewardAmount:    cur.RewardAmount,
		}
	})
	defer svc.Close()

	// Reschedule sessions that survived a restart
	if err := svc.Resume(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to resume pending sessions")
	}

	// Hot-reload tunables on config file changes
	configPath := config.ConfigPath()
	cfgWatcher, err := config.NewWatcher(configPath, func() {
		if err := mgr.Reload(); err != nil {
			log.Error().Err(err).Msg("Config reload failed, keeping previous values")
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher")
	} else {
		if err := cfgWatcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start config watcher")
		} else {
			defer cfgWatcher.Stop()
		}
	}

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: webhook.NewServer(svc, dispatcher).Routes(),
	}

	log.Info().
		Str("version", Version).
		Str("addr", cfg.ListenAddr).
		Str("backend", cfg.SessionBackend).
		Dur("session_duration", cfg.SessionDuration()).
		Int64("reward_amount", cfg.RewardAmount).
		Msg("Starting minebot")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
}

// buildBackends wires the configured session store and reward ledger.
// The ledger is always durable except with the memory backend, which is
// meant for local runs and tests.
func buildBackends(cfg config.Config) (mining.SessionStore, mining.Ledger, func(), error) {
	switch cfg.SessionBackend {
	case "memory":
		return mining.NewMemoryStore(), mining.NewMemoryLedger(), func() {}, nil

	case "sqlite":
		store, err := gormdb.NewStore(gormdb.Config{Path: cfg.DBPath, LogLevel: gormlogger.Silent})
		if err != nil {
			return nil, nil, nil, err
		}
		cleanup := func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close database")
			}
		}
		return gormdb.NewSessionStore(store), gormdb.NewLedger(store), cleanup, nil

	case "redis":
		// Sessions live in Redis for cross-instance sharing; the
		// ledger stays in SQLite.
		store, err := gormdb.NewStore(gormdb.Config{Path: cfg.DBPath, LogLevel: gormlogger.Silent})
		if err != nil {
			return nil, nil, nil, err
		}
		sessions := redisstore.NewSessionStore(cfg.RedisAddr)
		cleanup := func() {
			if err := sessions.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close redis pool")
			}
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close database")
			}
		}
		return sessions, gormdb.NewLedger(store), cleanup, nil

	default:
		return nil, nil, nil, errors.New("unknown session backend: " + cfg.SessionBackend)
	}
}
