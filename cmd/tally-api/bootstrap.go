package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/TruckTally/config"
	"github.com/BearBump/TruckTally/internal/api/tallyhttp"
	"github.com/BearBump/TruckTally/internal/broker/kafka"
	"github.com/BearBump/TruckTally/internal/cache/rediscache"
	"github.com/BearBump/TruckTally/internal/services/feedback"
	"github.com/BearBump/TruckTally/internal/services/inspections"
	"github.com/BearBump/TruckTally/internal/services/reports"
	"github.com/BearBump/TruckTally/internal/services/trucks"
	"github.com/BearBump/TruckTally/internal/storage/pgtally"
	"github.com/joho/godotenv"
)

type tallyAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     tallyAPIOpts
	api      *tallyhttp.API
	trucks   *trucks.Service
	consumer *kafka.Consumer
	closers  []func()
}

func mustBootstrapTallyAPI() *tallyAPIApp {
	// .env — только для локального запуска, в контейнере переменные уже заданы
	_ = godotenv.Load()

	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	opts := apiOptsFromConfig(cfg)
	opts.swaggerPath = swaggerPath

	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)

	rc := rediscache.New(cfg.Redis.Addr())
	rl := rediscache.NewRateLimiter(cfg.Redis.Addr())

	trucksSvc := trucks.New(st, rc, boardTTL(cfg))
	api := tallyhttp.New(
		trucksSvc,
		inspections.New(st),
		reports.New(trucksSvc, rl, exportLimit(cfg)),
		feedback.New(st),
	)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers(), opts.topic, opts.consumerGroup)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &tallyAPIApp{
		ctx:      ctx,
		cancel:   cancel,
		opts:     opts,
		api:      api,
		trucks:   trucksSvc,
		consumer: consumer,
		closers: []func(){
			func() { _ = consumer.Close() },
			func() { _ = rc.Close() },
			func() { _ = rl.Close() },
			st.Close,
		},
	}
}

func apiOptsFromConfig(cfg *config.Config) tallyAPIOpts {
	opts := tallyAPIOpts{
		httpAddr:      cfg.Tally.HTTPAddr,
		topic:         cfg.Kafka.TruckRecordChangedTopicName,
		consumerGroup: cfg.Tally.KafkaConsumerGroup,
	}
	if opts.httpAddr == "" {
		opts.httpAddr = ":8080"
	}
	if opts.topic == "" {
		opts.topic = "truck-record.changed"
	}
	if opts.consumerGroup == "" {
		opts.consumerGroup = "tally-api"
	}
	return opts
}

func boardTTL(cfg *config.Config) time.Duration {
	ttl := time.Duration(cfg.Tally.StatusBoardTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return ttl
}

func exportLimit(cfg *config.Config) int {
	n := cfg.Tally.ExportRateLimitPerMinute
	if n <= 0 {
		n = 10
	}
	return n
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgtally.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgtally.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *tallyAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, c := range a.closers {
		c()
	}
}

func (a *tallyAPIApp) Run() error {
	return runTallyAPI(a.ctx, a.opts, a.api, a.trucks, a.consumer)
}
