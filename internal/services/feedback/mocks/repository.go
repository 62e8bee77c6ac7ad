package mocks

import (
	"context"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateFeedbackTicket(ctx context.Context, f *models.FeedbackTicket) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockRepository) GetFeedbackTicket(ctx context.Context, id uint64) (*models.FeedbackTicket, error) {
	args := m.Called(ctx, id)
	f, _ := args.Get(0).(*models.FeedbackTicket)
	return f, args.Error(1)
}

func (m *MockRepository) ListFeedbackTickets(ctx context.Context, limit, offset int) ([]*models.FeedbackTicket, error) {
	args := m.Called(ctx, limit, offset)
	out, _ := args.Get(0).([]*models.FeedbackTicket)
	return out, args.Error(1)
}

func (m *MockRepository) SetFeedbackNotes(ctx context.Context, id uint64, notes *string) error {
	args := m.Called(ctx, id, notes)
	return args.Error(0)
}
