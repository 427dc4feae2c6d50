package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"predictions/internal/cache"
	"predictions/internal/config"
	"predictions/internal/db"
	"predictions/internal/events"
	"predictions/internal/handlers"
	"predictions/internal/logger"
	"predictions/internal/metrics"
	"predictions/internal/services"
	"predictions/internal/store"
	"predictions/internal/websocket"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.New("predictions-api", cfg.AppEnv)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("connect database", zap.Error(err))
	}
	defer database.Close()

	var odds *cache.OddsCache
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		zlog.Warn("redis unavailable, odds cache disabled", zap.Error(err))
	} else {
		odds = cache.NewOddsCache(redisClient)
		defer redisClient.Close()
	}

	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaEventTopic, zlog)
	defer func() { _ = publisher.Close() }()

	users := store.NewUserStore(database)
	markets := store.NewMarketStore(database)
	bets := store.NewBetStore(database)
	ledger := store.NewLedgerStore(database)
	txRunner := db.NewTxRunner(database).WithRetryHook(metrics.TxRetries.Inc)
	hub := websocket.NewHub()

	var invalidator services.OddsInvalidator
	if odds != nil {
		invalidator = odds
	}
	service := services.NewWagerService(txRunner, markets, bets, users, ledger, hub, publisher, invalidator, zlog)
	handler := handlers.New(cfg, txRunner, users, markets, bets, ledger, service, odds, hub, zlog)

	metricsSrv := metrics.StartServer(cfg.MetricsPort, func(ctx context.Context) error {
		return database.PingContext(ctx)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("api listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}
	_ = metricsSrv.Shutdown(ctx)
}
