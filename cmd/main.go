package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"busz-backend/internal/api"
	"busz-backend/internal/cache"
	"busz-backend/internal/config"
	"busz-backend/internal/monitor"
	"busz-backend/internal/station"
	"busz-backend/internal/tago"
	"busz-backend/internal/ws"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()

	conf, err := config.New()
	if err != nil {
		return err
	}

	var loggerOpts slog.HandlerOptions
	if conf.Env == config.EnvDev {
		loggerOpts = slog.HandlerOptions{Level: slog.LevelDebug}
	}

	jsonHandler := slog.NewJSONHandler(os.Stdout, &loggerOpts)
	logger := slog.New(jsonHandler)

	var stopCache monitor.StopCache = cache.NoopStopCache{}
	if conf.RedisHost != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: net.JoinHostPort(conf.RedisHost, conf.RedisPort)})
		stopCache = cache.NewRedisStopCache(redisClient, 60*time.Second)
		logger.Info("stop cache backed by Redis", "host", conf.RedisHost)
	}

	tagoClient := tago.NewClient(conf.TagoBaseURL, conf.TagoAPIKey)
	collector := monitor.NewCollector()

	store := monitor.NewStore(ctx)
	resolver := monitor.NewStopResolver(store, tagoClient, stopCache, logger)

	wsManager := ws.NewManager(ctx, logger)
	gateway := monitor.NewGateway(store, tagoClient, resolver, wsManager, collector, logger,
		conf.MaxStopDistanceM, conf.StopDistancePolicy)
	wsManager.SetGateway(gateway)
	go wsManager.Start()

	stations := station.NewService(store, tagoClient, tagoClient, resolver, logger)

	server := api.NewServer(conf, logger, wsManager, stations, collector)
	if err := server.Start(ctx); err != nil {
		return err
	}

	// Drain: cancel every outstanding worker and wait for them to exit.
	wsManager.Shutdown()
	store.Shutdown()
	logger.Info("all monitoring workers drained")

	return nil
}
