package mocks

import (
	"context"
	"time"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/stretchr/testify/mock"
)

type Rand struct {
	mock.Mock
}

func (m *Rand) Intn(n int) int {
	args := m.Called(n)
	return args.Int(0)
}

type Repository struct {
	mock.Mock
}

func (m *Repository) ClaimPendingEvents(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.RecordEvent, error) {
	args := m.Called(ctx, now, limit, lease)
	out, _ := args.Get(0).([]*models.RecordEvent)
	return out, args.Error(1)
}

func (m *Repository) MarkEventPublished(ctx context.Context, id uint64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *Repository) MarkEventFailed(ctx context.Context, id uint64, nextAttemptAt time.Time, lastError string) error {
	args := m.Called(ctx, id, nextAttemptAt, lastError)
	return args.Error(0)
}

type Producer struct {
	mock.Mock
}

func (m *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}
