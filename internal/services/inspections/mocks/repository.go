package mocks

import (
	"context"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateInspection(ctx context.Context, in *models.Inspection) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

func (m *MockRepository) GetInspection(ctx context.Context, id uint64) (*models.Inspection, error) {
	args := m.Called(ctx, id)
	in, _ := args.Get(0).(*models.Inspection)
	return in, args.Error(1)
}

func (m *MockRepository) ListInspections(ctx context.Context, ownerID string, limit, offset int) ([]*models.Inspection, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	out, _ := args.Get(0).([]*models.Inspection)
	return out, args.Error(1)
}

func (m *MockRepository) UpdateInspection(ctx context.Context, in *models.Inspection) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

func (m *MockRepository) DeleteInspection(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) ListTruckRecords(ctx context.Context, inspectionID uint64) ([]*models.TruckRecord, error) {
	args := m.Called(ctx, inspectionID)
	out, _ := args.Get(0).([]*models.TruckRecord)
	return out, args.Error(1)
}
