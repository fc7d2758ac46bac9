package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/api"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/contest"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/fetcher"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/hub"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/markethours"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/pricecache"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/provider"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/refresher"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/repository"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/stream"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/workerpool"
	"github.com/shubham-shewale/market-data-relay/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	oracle, err := markethours.New(cfg.Market.Timezone, cfg.Market.Open, cfg.Market.Close)
	if err != nil {
		logger.Fatal("Invalid market calendar", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	yahoo := provider.NewYahooClient(cfg.Upstream.BaseURL, logger,
		provider.WithTimeout(cfg.Upstream.Timeout),
		provider.WithUserAgent(cfg.Upstream.UserAgent),
		provider.WithCookieURL(cfg.Upstream.CookieURL),
	)
	var upstream provider.Provider = yahoo
	if cfg.Upstream.FastPath == "financego" {
		upstream = provider.Composite{InfoSource: yahoo, LastPriceSource: provider.NewFinanceGoSource()}
	}

	pool := workerpool.New(cfg.Refresh.Workers, cfg.Refresh.Workers*2, logger)
	cache := pricecache.New()
	wsHub := hub.NewHub(logger)

	var publishers []refresher.SnapshotPublisher
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		store := repository.NewRedisStore(rdb, cfg.Redis.TTL, logger)
		defer store.Close()
		publishers = append(publishers, store)
	}
	if cfg.Kafka.Enabled {
		topic := stream.NewTopicBootstrap(cfg.Kafka.Brokers, cfg.Kafka.Topic,
			&stream.RealKafkaDialer{Dialer: kafka.DefaultDialer}, stream.RealSleeper{}, logger)
		pub := stream.NewPublisher(stream.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger, stream.WithTopic(topic))
		defer func() {
			if err := pub.Close(); err != nil {
				logger.Error("Error closing Kafka writer", zap.Error(err))
			}
		}()
		publishers = append(publishers, pub)
	}

	loop := refresher.New(
		contest.NewClient(cfg.Contest.ActiveSymbolsURL, cfg.Contest.Timeout),
		oracle,
		fetcher.New(yahoo, pool, cfg.Refresh.FetchTimeout, logger),
		cache,
		wsHub,
		cfg.Refresh.Interval,
		logger,
		refresher.WithPublishers(publishers...),
	)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(ctx)
	}()

	handler := api.NewHandler(api.NewService(upstream, logger, api.WithLookupTimeout(cfg.Upstream.Timeout)), wsHub, logger)
	srv := &http.Server{Addr: cfg.App.Port, Handler: api.NewRouter(handler)}

	go func() {
		logger.Info("Server Started", zap.String("port", cfg.App.Port), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("Shutdown signal received")

	cancel()
	<-loopDone
	pool.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("Shutdown Complete")
}
