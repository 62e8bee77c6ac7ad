package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/TruckTally/internal/broker/messages"
	"github.com/BearBump/TruckTally/internal/models"
	"github.com/pkg/errors"
)

type Repository interface {
	ClaimPendingEvents(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.RecordEvent, error)
	MarkEventPublished(ctx context.Context, id uint64, at time.Time) error
	MarkEventFailed(ctx context.Context, id uint64, nextAttemptAt time.Time, lastError string) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Relay переносит журнал изменений записей из Postgres в Kafka.
type Relay struct {
	repo     Repository
	producer Producer
	topic    string

	planner *Planner
	now     func() time.Time

	pollInterval   time.Duration
	batchSize      int
	concurrency    int
	lease          time.Duration
	publishRetries int

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalPublished      atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, producer Producer, topic string) *Relay {
	return &Relay{
		repo:              repo,
		producer:          producer,
		topic:             topic,
		planner:           DefaultPlanner(),
		now:               time.Now,
		pollInterval:      2 * time.Second,
		batchSize:         100,
		concurrency:       4,
		lease:             60 * time.Second,
		publishRetries:    3,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (r *Relay) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration) *Relay {
	if pollInterval > 0 {
		r.pollInterval = pollInterval
	}
	if batchSize > 0 {
		r.batchSize = batchSize
	}
	if concurrency > 0 {
		r.concurrency = concurrency
	}
	if lease > 0 {
		r.lease = lease
	}
	return r
}

func (r *Relay) WithPlanner(cfg PlannerConfig) *Relay {
	r.planner = NewPlanner(cfg, nil)
	return r
}

// WithPublishRetries задаёт число попыток Publish внутри одного цикла.
func (r *Relay) WithPublishRetries(n int) *Relay {
	if n > 0 {
		r.publishRetries = n
	}
	return r
}

func (r *Relay) WithClock(now func() time.Time) *Relay {
	if now != nil {
		r.now = now
	}
	return r
}

// Trigger запускает цикл немедленно (неблокирующе).
func (r *Relay) Trigger() {
	r.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed   int64      `json:"totalClaimed"`
	TotalPublished int64      `json:"totalPublished"`
	TotalErrors    int64      `json:"totalErrors"`
	InFlight       int64      `json:"inFlight"`
	LastError      string     `json:"lastError,omitempty"`
}

func (r *Relay) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, r.startedAtUnixNano).UTC(),
		TotalClaimed:   r.totalClaimed.Load(),
		TotalPublished: r.totalPublished.Load(),
		TotalErrors:    r.totalErrors.Load(),
		InFlight:       r.inFlight.Load(),
	}
	if n := r.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := r.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	r.lastErrorMu.Lock()
	st.LastError = r.lastError
	r.lastErrorMu.Unlock()
	return st
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.runOnce(ctx)
		case <-r.triggerCh:
			r.runOnce(ctx)
		}
	}
}

func (r *Relay) setLastError(err error) {
	r.lastErrorMu.Lock()
	r.lastError = err.Error()
	r.lastErrorMu.Unlock()
}

// runOnce: события одной инспекции публикуются последовательно в порядке id,
// разные инспекции идут параллельно.
func (r *Relay) runOnce(ctx context.Context) {
	now := r.now().UTC()
	r.lastCycleUnixNano.Store(now.UnixNano())

	items, err := r.repo.ClaimPendingEvents(ctx, now, r.batchSize, r.lease)
	if err != nil {
		slog.Error("claim pending events", "error", err.Error())
		r.setLastError(err)
		return
	}
	r.totalClaimed.Add(int64(len(items)))

	var order []uint64
	groups := make(map[uint64][]*models.RecordEvent)
	for _, ev := range items {
		if _, ok := groups[ev.InspectionID]; !ok {
			order = append(order, ev.InspectionID)
		}
		groups[ev.InspectionID] = append(groups[ev.InspectionID], ev)
	}

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for _, id := range order {
		group := groups[id]
		sem <- struct{}{}
		wg.Add(1)
		r.inFlight.Add(int64(len(group)))
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()
			for _, ev := range group {
				r.processOne(ctx, ev)
				r.inFlight.Add(-1)
			}
		}()
	}
	wg.Wait()
}

func (r *Relay) processOne(ctx context.Context, ev *models.RecordEvent) {
	err := r.publish(ctx, ev)
	now := r.now().UTC()
	if err == nil {
		if err := r.repo.MarkEventPublished(ctx, ev.ID, now); err != nil {
			// событие уйдёт ещё раз после lease, потребитель идемпотентен
			r.fail(ev, err)
			return
		}
		r.totalPublished.Add(1)
		return
	}

	r.fail(ev, err)
	next := now.Add(r.planner.BackoffDelay(ev.Attempts + 1))
	if mErr := r.repo.MarkEventFailed(ctx, ev.ID, next, err.Error()); mErr != nil {
		slog.Error("mark event failed", "event_id", ev.EventID, "error", mErr.Error())
	}
}

func (r *Relay) fail(ev *models.RecordEvent, err error) {
	r.totalErrors.Add(1)
	r.setLastError(err)
	slog.Error("relay record event", "event_id", ev.EventID, "inspection_id", ev.InspectionID, "error", err.Error())
}

func (r *Relay) publish(ctx context.Context, ev *models.RecordEvent) error {
	b, err := json.Marshal(messages.TruckRecordChanged{
		EventID:      ev.EventID,
		InspectionID: ev.InspectionID,
		RecordID:     ev.RecordID,
		Kind:         ev.Kind,
		SerialNumber: ev.SerialNumber,
		PlateNumber:  ev.PlateNumber,
		ActorID:      ev.ActorID,
		OccurredAt:   ev.CreatedAt,
		Payload:      ev.Payload,
	})
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}

	// ключ — инспекция: все события одной инспекции в одной партиции
	key := []byte(fmt.Sprintf("%d", ev.InspectionID))
	var pubErr error
	for i := 0; i < r.publishRetries; i++ {
		if pubErr = r.producer.Publish(ctx, r.topic, key, b); pubErr == nil {
			return nil
		}
		if i == r.publishRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(150*(i+1)) * time.Millisecond):
		}
	}
	return pubErr
}
