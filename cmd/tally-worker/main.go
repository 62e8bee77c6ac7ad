package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/TruckTally/config"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	relay, closeFn, err := newRelay(cfg, defaultWorkerFactories())
	if err != nil {
		panic(err)
	}
	defer closeFn()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		err := runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    cfg.Tally.WorkerHTTPAddr,
			swaggerPath: os.Getenv("swaggerPath"),
			relay:       relay,
			cfg:         cfg,
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("worker http server stopped", "error", err.Error())
		}
	}()

	slog.Info("outbox relay started")
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
