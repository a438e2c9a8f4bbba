package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/i474232898/soarbot/internal/api/http"
	"github.com/i474232898/soarbot/internal/config"
	"github.com/i474232898/soarbot/internal/db"
	"github.com/i474232898/soarbot/internal/logging"
	"github.com/i474232898/soarbot/internal/notify"
	"github.com/i474232898/soarbot/internal/publish"
	"github.com/i474232898/soarbot/internal/scheduler"
	"github.com/i474232898/soarbot/internal/soaring"
	"github.com/i474232898/soarbot/internal/soaring/providers"
	"github.com/i474232898/soarbot/internal/store"
	"github.com/i474232898/soarbot/internal/subscribers"
)

var version = "dev"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	importFile := flag.String("import-subscribers", "", "copy subscribers from a YAML file into the database and exit")
	flag.Parse()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg, version, "soarbot")
	slog.SetDefault(logger)

	if err := run(cfg, logger, *once, *importFile); err != nil {
		logger.Error("soarbot stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, logger *slog.Logger, once bool, importFile string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defaults := subscribers.Defaults{Timezone: cfg.DefaultTimezone}
	var source soaring.SubscriberSource = subscribers.NewFileSource(cfg.SubscribersFile, defaults)

	// Notification history and run metrics live in the database unless
	// DB_DRIVER=memory.
	var (
		history soaring.HistoryStore
		sink    soaring.MetricsSink
		reader  store.Reader
	)
	if cfg.DBDriver == "memory" {
		if importFile != "" {
			return errors.New("-import-subscribers requires a database, DB_DRIVER is memory")
		}
		mem := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
		history, sink, reader = mem, mem, mem
		logger.Warn("using in-memory store; notification history is lost on restart")
	} else {
		conn, err := db.Open(ctx, db.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN, SQLitePath: cfg.SQLitePath})
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := db.Migrate(ctx, conn); err != nil {
			return err
		}

		sqlSource := subscribers.NewSQLSource(conn, cfg.DBDriver, defaults)
		if importFile != "" {
			return importSubscribers(ctx, importFile, defaults, sqlSource, logger)
		}
		if cfg.SubscribersSource == "sql" {
			source = sqlSource
		}

		sqlStore := store.NewSQLStore(conn, cfg.DBDriver)
		history, sink, reader = sqlStore, sqlStore, sqlStore
	}

	if cfg.RedisAddr != "" {
		client, err := store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Warn("redis unavailable; cooldown cache disabled", "addr", cfg.RedisAddr, "err", err)
		} else {
			defer client.Close()
			history = store.NewRedisCache(client, history, cfg.RedisTTL)
		}
	}

	prom := publish.NewPrometheusSink()
	sinks := soaring.MultiSink{sink, prom}
	if cfg.MQTTBroker != "" {
		mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		client, err := publish.Connect(mctx, publish.Config{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
		}, logger)
		cancel()
		if err != nil {
			logger.Warn("mqtt unavailable; run metrics not published", "broker", cfg.MQTTBroker, "err", err)
		} else {
			defer client.Disconnect(250)
			sinks = append(sinks, publish.NewMQTTSink(client, cfg.MQTTTopic, logger))
		}
	}

	// Shared HTTP client for outbound provider and Telegram calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	telegram := notify.NewTelegram(httpClient, cfg.TelegramToken, cfg.TelegramAPIURL)

	seasonLoc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return err
	}

	service := soaring.NewService(soaring.Options{
		Providers: []soaring.Provider{
			providers.NewSynopticProvider(httpClient, cfg.SynopticToken),
			providers.NewOpenMeteoProvider(httpClient),
		},
		History:        history,
		Notifier:       telegram,
		Formatter:      soaring.MessageFormatter{HTML: true},
		Evaluator:      soaring.NewEvaluator(cfg.Daylight),
		Season:         cfg.Season,
		SeasonLocation: seasonLoc,
		Lookback:       cfg.Lookback,
		Sink:           sinks,
		Operator:       notify.NewOperator(telegram, cfg.AdminChatID),
		Logger:         logger,
	})

	sched := scheduler.New(scheduler.Config{
		Interval: cfg.PollInterval,
		Cron:     cfg.PollCron,
		Timeout:  cfg.CycleTimeout,
	}, service, source, logger)

	if once {
		m, err := sched.RunOnce(ctx)
		if err != nil {
			return err
		}
		logger.Info("cycle finished", "run_id", m.RunID, "success", m.Success, "summary", m.Summary())
		return nil
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	app := httpapi.NewApp("soarbot")
	httpapi.RegisterRoutes(app, reader)
	httpapi.RegisterMetrics(app, prom.Handler())

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", "err", err)
		}
	}()
	logger.Info("soarbot started", "port", cfg.Port, "interval", cfg.PollInterval, "cron", cfg.PollCron)

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "err", err)
	}
	return nil
}

func importSubscribers(ctx context.Context, path string, defaults subscribers.Defaults, dst *subscribers.SQLSource, logger *slog.Logger) error {
	subs, err := subscribers.NewFileSource(path, defaults).Subscribers(ctx)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if err := dst.Save(ctx, sub); err != nil {
			return fmt.Errorf("import %s: %w", sub.ID, err)
		}
	}
	logger.Info("subscribers imported", "count", len(subs), "file", path)
	return nil
}
