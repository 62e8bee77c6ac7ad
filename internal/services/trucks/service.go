package trucks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/TruckTally/internal/cache"
	"github.com/BearBump/TruckTally/internal/models"
	"github.com/BearBump/TruckTally/internal/storage/pgtally"
	"github.com/pkg/errors"
)

type Repository interface {
	WithInspectionLock(ctx context.Context, inspectionID uint64, fn func(ctx context.Context, tx pgtally.LockedInspection) error) error
	GetInspection(ctx context.Context, id uint64) (*models.Inspection, error)
	GetTruckRecord(ctx context.Context, id uint64) (*models.TruckRecord, error)
	QueryTruckRecords(ctx context.Context, q pgtally.RecordQuery) (*pgtally.RecordPage, error)
	PlateHints(ctx context.Context, inspectionID uint64, term string, take int) ([]string, error)
	UpdateTruckRecord(ctx context.Context, r *models.TruckRecord, ev *models.RecordEvent) error
	MarkCargoOpsStarted(ctx context.Context, recordID uint64, at time.Time, ev *models.RecordEvent) (bool, error)
	MarkCargoOpsCompleted(ctx context.Context, recordID uint64, at time.Time, ev *models.RecordEvent) (bool, error)
	ListRecordEvents(ctx context.Context, inspectionID uint64, limit, offset int) ([]*models.RecordEvent, error)
}

type Service struct {
	repo     Repository
	cache    cache.BytesCache
	boardTTL time.Duration
	now      func() time.Time
}

func New(repo Repository, c cache.BytesCache, boardTTL time.Duration) *Service {
	return &Service{repo: repo, cache: c, boardTTL: boardTTL, now: time.Now}
}

// WithClock подменяет источник времени (для тестов).
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// inspectionFor загружает инспекцию и проверяет доступ без блокировки.
func (s *Service) inspectionFor(ctx context.Context, actor models.Actor, inspectionID uint64) (*models.Inspection, error) {
	in, err := s.repo.GetInspection(ctx, inspectionID)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(actor, in); err != nil {
		return nil, err
	}
	return in, nil
}

func checkAccess(actor models.Actor, in *models.Inspection) error {
	if !actor.CanAccess(in) {
		return errors.Wrapf(models.ErrForbidden, "inspection %d", in.ID)
	}
	return nil
}

func newEvent(actor models.Actor, r *models.TruckRecord, kind string, payload any) *models.RecordEvent {
	ev := &models.RecordEvent{
		InspectionID: r.InspectionID,
		RecordID:     r.ID,
		Kind:         kind,
		SerialNumber: r.SerialNumber,
		PlateNumber:  r.PlateNumber,
		ActorID:      actor.UserID,
	}
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			ev.Payload = b
		}
	}
	return ev
}

func boardKey(inspectionID uint64) string {
	return fmt.Sprintf("inspection:%d:board", inspectionID)
}

// InvalidateBoard сбрасывает кэш табло инспекции. Ошибки кэша только логируются.
func (s *Service) InvalidateBoard(ctx context.Context, inspectionID uint64) {
	if s.cache == nil || s.boardTTL <= 0 {
		return
	}
	if err := s.cache.Delete(ctx, boardKey(inspectionID)); err != nil {
		slog.Warn("invalidate status board", "inspection_id", inspectionID, "error", err.Error())
	}
}
