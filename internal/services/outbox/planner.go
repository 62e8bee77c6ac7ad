package outbox

import (
	"math/rand"
	"time"
)

type Rand interface {
	Intn(n int) int
}

type PlannerConfig struct {
	Backoff1 time.Duration // default: 5 seconds
	Backoff2 time.Duration // default: 15 seconds
	Backoff3 time.Duration // default: 30 seconds
	Backoff4 time.Duration // default: 60 seconds

	// MaxJitter добавляется к паузе случайно, чтобы воркеры не били в Kafka разом.
	MaxJitter time.Duration // default: 0
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Backoff1: 5 * time.Second,
		Backoff2: 15 * time.Second,
		Backoff3: 30 * time.Second,
		Backoff4: 60 * time.Second,
	}
}

type Planner struct {
	cfg PlannerConfig
	r   Rand
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	if cfg.MaxJitter < 0 {
		cfg.MaxJitter = 0
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

func DefaultPlanner() *Planner {
	return NewPlanner(DefaultPlannerConfig(), nil)
}

// BackoffDelay — пауза перед попыткой номер nextAttempt после неудачи.
func (p *Planner) BackoffDelay(nextAttempt int32) time.Duration {
	var d time.Duration
	switch {
	case nextAttempt <= 1:
		d = p.cfg.Backoff1
	case nextAttempt == 2:
		d = p.cfg.Backoff2
	case nextAttempt == 3:
		d = p.cfg.Backoff3
	default:
		d = p.cfg.Backoff4
	}
	if ms := int(p.cfg.MaxJitter / time.Millisecond); ms > 0 {
		d += time.Duration(p.r.Intn(ms+1)) * time.Millisecond
	}
	return d
}
