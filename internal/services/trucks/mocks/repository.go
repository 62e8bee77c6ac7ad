package mocks

import (
	"context"
	"time"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/BearBump/TruckTally/internal/storage/pgtally"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

// WithInspectionLock: первый возвращаемый аргумент — LockedInspection, который
// получит fn; nil означает, что fn не вызывается (например, инспекция не найдена).
func (m *MockRepository) WithInspectionLock(ctx context.Context, inspectionID uint64, fn func(ctx context.Context, tx pgtally.LockedInspection) error) error {
	args := m.Called(ctx, inspectionID, fn)
	if tx, ok := args.Get(0).(pgtally.LockedInspection); ok && tx != nil {
		if err := fn(ctx, tx); err != nil {
			return err
		}
	}
	return args.Error(1)
}

func (m *MockRepository) GetInspection(ctx context.Context, id uint64) (*models.Inspection, error) {
	args := m.Called(ctx, id)
	in, _ := args.Get(0).(*models.Inspection)
	return in, args.Error(1)
}

func (m *MockRepository) GetTruckRecord(ctx context.Context, id uint64) (*models.TruckRecord, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*models.TruckRecord)
	return r, args.Error(1)
}

func (m *MockRepository) QueryTruckRecords(ctx context.Context, q pgtally.RecordQuery) (*pgtally.RecordPage, error) {
	args := m.Called(ctx, q)
	p, _ := args.Get(0).(*pgtally.RecordPage)
	return p, args.Error(1)
}

func (m *MockRepository) PlateHints(ctx context.Context, inspectionID uint64, term string, take int) ([]string, error) {
	args := m.Called(ctx, inspectionID, term, take)
	out, _ := args.Get(0).([]string)
	return out, args.Error(1)
}

func (m *MockRepository) UpdateTruckRecord(ctx context.Context, r *models.TruckRecord, ev *models.RecordEvent) error {
	args := m.Called(ctx, r, ev)
	return args.Error(0)
}

func (m *MockRepository) MarkCargoOpsStarted(ctx context.Context, recordID uint64, at time.Time, ev *models.RecordEvent) (bool, error) {
	args := m.Called(ctx, recordID, at, ev)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) MarkCargoOpsCompleted(ctx context.Context, recordID uint64, at time.Time, ev *models.RecordEvent) (bool, error) {
	args := m.Called(ctx, recordID, at, ev)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ListRecordEvents(ctx context.Context, inspectionID uint64, limit, offset int) ([]*models.RecordEvent, error) {
	args := m.Called(ctx, inspectionID, limit, offset)
	out, _ := args.Get(0).([]*models.RecordEvent)
	return out, args.Error(1)
}

type MockLockedInspection struct {
	mock.Mock
}

func (m *MockLockedInspection) Inspection() *models.Inspection {
	args := m.Called()
	in, _ := args.Get(0).(*models.Inspection)
	return in
}

func (m *MockLockedInspection) MaxSerialNumber(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockLockedInspection) InsertTruckRecord(ctx context.Context, r *models.TruckRecord) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockLockedInspection) GetTruckRecord(ctx context.Context, id uint64) (*models.TruckRecord, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*models.TruckRecord)
	return r, args.Error(1)
}

func (m *MockLockedInspection) DeleteTruckRecord(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockLockedInspection) ShiftSerialNumbersDown(ctx context.Context, after int) (int64, error) {
	args := m.Called(ctx, after)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLockedInspection) AppendEvent(ctx context.Context, ev *models.RecordEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}
