package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/arenabet/config"
	"github.com/alejandrodnm/arenabet/internal/adapters/entropy"
	"github.com/alejandrodnm/arenabet/internal/adapters/notify"
	"github.com/alejandrodnm/arenabet/internal/adapters/oracle"
	"github.com/alejandrodnm/arenabet/internal/adapters/pyth"
	"github.com/alejandrodnm/arenabet/internal/adapters/storage"
	"github.com/alejandrodnm/arenabet/internal/application"
	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/alejandrodnm/arenabet/internal/ports"
	"github.com/alejandrodnm/arenabet/internal/scheduler"
	"github.com/shopspring/decimal"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one scheduler cycle and exit")
	report := flag.Bool("report", false, "print arenas and current standings and exit")
	demo := flag.Bool("demo", false, "run a scripted arena season in memory and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("arena starting",
		"config", *configPath,
		"oracle", cfg.Oracle.Provider,
		"entropy", cfg.Entropy.Source,
		"interval", cfg.SchedulerInterval(),
		"once", *once,
		"report", *report,
		"demo", *demo,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	console := notify.NewConsole()
	notifier, err := buildNotifier(cfg, console)
	if err != nil {
		slog.Error("failed to build notifier", "err", err)
		os.Exit(1)
	}

	if *demo {
		if err := runDemo(ctx, cfg, console); err != nil {
			slog.Error("demo failed", "err", err)
			os.Exit(1)
		}
		return
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	app, err := buildApp(cfg, store, application.Options{LockWait: cfg.LockWait(), PageSize: cfg.Leaderboard.PageSize})
	if err != nil {
		slog.Error("failed to build platform", "err", err)
		os.Exit(1)
	}
	if err := ensureInitialized(ctx, app, cfg); err != nil {
		slog.Error("failed to initialize platform", "err", err)
		os.Exit(1)
	}

	if *report {
		if err := runReport(ctx, app, console); err != nil {
			slog.Error("report failed", "err", err)
			os.Exit(1)
		}
		return
	}

	schedCfg := scheduler.DefaultConfig()
	schedCfg.Interval = cfg.SchedulerInterval()
	schedCfg.Admin = cfg.Ledger.Admin
	schedCfg.Once = *once

	if err := scheduler.New(schedCfg, app.Leaderboard, notifier).Run(ctx); err != nil {
		slog.Error("scheduler exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("arena stopped cleanly")
}

// buildApp arma oráculo, entropía y economía según la config.
func buildApp(cfg *config.Config, store ports.Store, opts application.Options) (*application.App, error) {
	prices, err := buildOracle(cfg, opts.Now)
	if err != nil {
		return nil, err
	}
	var src ports.EntropySource = entropy.Crypto{}
	if cfg.Entropy.Source == "pricefeed" {
		slog.Warn("price-feed entropy is predictable by anyone watching the feeds", "feeds", cfg.Entropy.Feeds)
		src = entropy.NewPriceFeed(prices, cfg.Entropy.Feeds, opts.Now)
	}
	params, err := cfg.Economy()
	if err != nil {
		return nil, err
	}
	return application.New(store, prices, src, params, opts)
}

func buildOracle(cfg *config.Config, now func() time.Time) (ports.PriceOracle, error) {
	if cfg.Oracle.Provider == "pyth" {
		return pyth.NewClient(cfg.Oracle.BaseURL, cfg.Oracle.Feeds, cfg.OracleMaxAge()), nil
	}

	fixed := oracle.NewFixed(now)
	for symbol, v := range cfg.Oracle.Prices {
		price, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("oracle price %s: %w", symbol, err)
		}
		fixed.Set(symbol, price)
	}
	if cfg.Oracle.Provider == "fixed" {
		return fixed, nil
	}
	step, err := decimal.NewFromString(cfg.Oracle.WalkStep)
	if err != nil {
		return nil, fmt.Errorf("oracle walk step: %w", err)
	}
	return oracle.NewWalk(fixed, step, uint64(time.Now().UnixNano())), nil
}

// buildNotifier suma Telegram a la consola cuando hay token configurado.
func buildNotifier(cfg *config.Config, console *notify.Console) (ports.Notifier, error) {
	if cfg.Notify.TelegramToken == "" {
		return console, nil
	}
	tg, err := notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, cfg.Notify.MaxRetries)
	if err != nil {
		return nil, err
	}
	slog.Info("telegram notifications enabled", "chat", cfg.Notify.TelegramChatID)
	return notify.Multi{console, tg}, nil
}

// ensureInitialized guarda la config on-ledger la primera vez.
func ensureInitialized(ctx context.Context, app *application.App, cfg *config.Config) error {
	stored, err := app.Config(ctx)
	if err == nil {
		slog.Debug("platform already initialized", "admin", stored.Admin, "since", stored.InitializedAt)
		return nil
	}
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		return err
	}
	_, err = app.Initialize(ctx, cfg.Ledger.Admin, cfg.GlobalConfig())
	return err
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
