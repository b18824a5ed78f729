package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/m3rciful/relaybot/core/buildinfo"
	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/core/database"
	"github.com/m3rciful/relaybot/core/logger"
	tg "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/internal/relay"
	"github.com/m3rciful/relaybot/internal/store"
)

func main() {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := coreconfig.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := logger.InitLogger(cfg); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()

	st, err := buildStore(cfg)
	if err != nil {
		logger.L.Error("store init failed",
			slog.String("component", "app"),
			slog.String("event", "startup"),
			slog.String("backend", cfg.Store.Backend),
			slog.String("err", err.Error()),
		)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := relay.New(cfg, st)

	health := relay.NewHealthServer(cfg.Health.Port)
	go func() {
		if err := health.Run(ctx); err != nil {
			logger.L.Error("health server failed",
				slog.String("component", "app"),
				slog.String("event", "health"),
				slog.String("err", err.Error()),
			)
		}
	}()

	logger.L.Info("relaybot starting",
		slog.String("component", "app"),
		slog.String("event", "run"),
		slog.String("version", buildinfo.Version),
		slog.String("store", cfg.Store.Backend),
	)

	if err := tg.RunTelegram(ctx, app.RunOptions()); err != nil {
		logger.L.Error("bot stopped with error",
			slog.String("component", "app"),
			slog.String("event", "run"),
			slog.String("err", err.Error()),
		)
		os.Exit(1)
	}
}

func buildStore(cfg *coreconfig.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case coreconfig.StoreBackendPostgres:
		dbCfg := database.Config{
			Host:           cfg.Store.Host,
			Port:           cfg.Store.Port,
			User:           cfg.Store.User,
			Password:       cfg.Store.Password,
			Name:           cfg.Store.Name,
			SSLMode:        cfg.Store.SSLMode,
			MaxConnections: cfg.Store.MaxConnections,
		}
		if err := database.RunMigrations(dbCfg); err != nil {
			return nil, err
		}
		db, err := database.Connect(dbCfg)
		if err != nil {
			return nil, err
		}
		return store.NewPostgresStore(db), nil
	default:
		return store.NewFileStore(cfg.Store.Path), nil
	}
}
