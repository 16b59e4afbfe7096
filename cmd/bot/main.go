package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/sdrelite/marketbot/internal/adapter/handler"
	"github.com/sdrelite/marketbot/internal/adapter/messenger"
	"github.com/sdrelite/marketbot/internal/adapter/storage"
	"github.com/sdrelite/marketbot/internal/config"
	"github.com/sdrelite/marketbot/internal/core/domain"
	"github.com/sdrelite/marketbot/internal/core/service"
)

func main() {
	app := &cli.App{
		Name:  "marketbot",
		Usage: "chat-driven marketplace escrow bot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.toml",
				Usage:   "path to the TOML config file",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime.Std())

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping mysql: %w", err)
	}
	if err := storage.EnsureSchema(ctx, db); err != nil {
		return err
	}
	logger.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("connected to redis")

	store := storage.NewMySQLAdapter(db)
	cache := storage.NewRedisAdapter(rdb)

	feePolicy, err := domain.NewFeePolicy(cfg.Market.FeePercent())
	if err != nil {
		return err
	}

	svc := service.NewLifecycleService(store, store, store, cache, service.Config{
		FeePolicy:    feePolicy,
		Admins:       cfg.Market.Admins,
		StoreTimeout: cfg.Engine.StoreTimeout.Std(),
		LockTTL:      cfg.Engine.LockTTL.Std(),
		QueueSize:    cfg.Engine.QueueSize,
	})

	// Telegram
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("connect telegram: %w", err)
	}
	logger.Info("authorized on telegram", zap.String("bot", api.Self.UserName))

	// Notification workers
	dispatcher := service.NewDispatcher(messenger.NewTelegram(api), cache, service.DispatcherConfig{
		Admins:       cfg.Market.Admins,
		PublicChatID: cfg.Telegram.GroupChatID,
		Currency:     cfg.Market.Currency,
	}, logger.Named("dispatcher"))

	var wg sync.WaitGroup
	for i := 0; i < cfg.Engine.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dispatcher.Run(svc.Events())
		}()
	}
	logger.Info("started notification workers", zap.Int("count", cfg.Engine.WorkerCount))

	// Command surface
	router := handler.NewTelegramRouter(svc, cfg.Market.Currency, logger.Named("telegram"))
	bot := handler.NewTelegramBot(api, router, logger.Named("telegram"))
	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		bot.Run(ctx)
	}()

	// Ops surface
	ops := handler.NewOpsHandler(svc, []byte(cfg.Ops.JWTSecret), logger.Named("ops"))
	httpServer := &http.Server{
		Addr:    cfg.Ops.ListenAddr,
		Handler: ops.Router(),
	}
	go func() {
		logger.Info("ops server listening", zap.String("addr", cfg.Ops.ListenAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("ops server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("ops server stopped")

	// Stop the poller and wait for in-flight command handlers: they are
	// event producers and must finish before the queue closes.
	cancel()
	<-botDone
	logger.Info("command handlers drained")

	// Close the event queue and drain the workers before dropping stores.
	svc.Close()
	wg.Wait()
	logger.Info("notification workers stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
	return nil
}
