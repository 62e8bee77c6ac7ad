package main

import (
	"context"
	"time"

	"github.com/BearBump/TruckTally/config"
	"github.com/BearBump/TruckTally/internal/broker/kafka"
	"github.com/BearBump/TruckTally/internal/services/outbox"
	"github.com/BearBump/TruckTally/internal/storage/pgtally"
)

type workerFactories struct {
	newStorage  func(cfg *config.Config) (repo outbox.Repository, closeFn func(), err error)
	newProducer func(cfg *config.Config) outbox.Producer
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (outbox.Repository, func(), error) {
			st, err := pgtally.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) outbox.Producer {
			return kafka.NewProducer(cfg.Kafka.Brokers())
		},
	}
}

type workerSettings struct {
	topic        string
	pollInterval time.Duration
	batchSize    int
	concurrency  int
	lease        time.Duration
	planner      outbox.PlannerConfig
}

func settingsFromConfig(cfg *config.Config) workerSettings {
	s := workerSettings{
		topic:        cfg.Kafka.TruckRecordChangedTopicName,
		pollInterval: time.Duration(cfg.Tally.WorkerPollIntervalSeconds) * time.Second,
		batchSize:    cfg.Tally.WorkerBatchSize,
		concurrency:  cfg.Tally.WorkerConcurrency,
		lease:        time.Duration(cfg.Tally.WorkerLeaseSeconds) * time.Second,
		planner: outbox.PlannerConfig{
			Backoff1: time.Duration(cfg.Tally.WorkerBackoff1Seconds) * time.Second,
			Backoff2: time.Duration(cfg.Tally.WorkerBackoff2Seconds) * time.Second,
			Backoff3: time.Duration(cfg.Tally.WorkerBackoff3Seconds) * time.Second,
			Backoff4: time.Duration(cfg.Tally.WorkerBackoff4Seconds) * time.Second,
		},
	}
	if s.topic == "" {
		s.topic = "truck-record.changed"
	}
	if s.pollInterval <= 0 {
		s.pollInterval = 2 * time.Second
	}
	if s.batchSize <= 0 {
		s.batchSize = 100
	}
	if s.concurrency <= 0 {
		s.concurrency = 4
	}
	if s.lease <= 0 {
		s.lease = 60 * time.Second
	}
	return s
}

// newRelay собирает outbox-релей; closeFn закрывает хранилище.
func newRelay(cfg *config.Config, f workerFactories) (*outbox.Relay, func(), error) {
	s := settingsFromConfig(cfg)

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	if closeFn == nil {
		closeFn = func() {}
	}

	r := outbox.New(repo, f.newProducer(cfg), s.topic).
		WithSettings(s.pollInterval, s.batchSize, s.concurrency, s.lease).
		WithPlanner(s.planner)
	return r, closeFn, nil
}

func RunTallyWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	r, closeFn, err := newRelay(cfg, f)
	if err != nil {
		return err
	}
	defer closeFn()

	return r.Run(ctx)
}
