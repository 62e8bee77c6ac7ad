package trucks

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/TruckTally/internal/broker/messages"
	"github.com/BearBump/TruckTally/internal/models"
	"github.com/BearBump/TruckTally/internal/storage/pgtally"
	"github.com/BearBump/TruckTally/internal/tracker"
	"github.com/pkg/errors"
)

type TransitionResult struct {
	Record  *models.TruckRecord
	Outcome tracker.Outcome
}

type stageFn func(r *models.TruckRecord, now time.Time) (tracker.Outcome, error)

type markFn func(ctx context.Context, recordID uint64, at time.Time, ev *models.RecordEvent) (bool, error)

func (s *Service) StartCargoOps(ctx context.Context, actor models.Actor, recordID uint64) (*TransitionResult, error) {
	return s.transition(ctx, actor, recordID, tracker.StartCargoOps, s.repo.MarkCargoOpsStarted, models.RecordEventCargoOpsStarted)
}

func (s *Service) CompleteCargoOps(ctx context.Context, actor models.Actor, recordID uint64) (*TransitionResult, error) {
	return s.transition(ctx, actor, recordID, tracker.CompleteCargoOps, s.repo.MarkCargoOpsCompleted, models.RecordEventCargoOpsCompleted)
}

// transition проверяет правило стадии на прочитанной записи, затем пишет
// условным UPDATE. Если UPDATE ничего не изменил, значит запись поменялась
// параллельно: перечитываем и решаем заново.
func (s *Service) transition(ctx context.Context, actor models.Actor, recordID uint64, apply stageFn, mark markFn, kind string) (*TransitionResult, error) {
	if recordID == 0 {
		return nil, models.Validationf("recordId is required")
	}
	r, err := s.repo.GetTruckRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if _, err := s.inspectionFor(ctx, actor, r.InspectionID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	out, err := apply(r, now)
	if err != nil {
		return nil, err
	}
	if out == tracker.AlreadyDone {
		return &TransitionResult{Record: r, Outcome: out}, nil
	}

	ok, err := mark(ctx, r.ID, now, newEvent(actor, r, kind, nil))
	if err != nil {
		return nil, err
	}
	if !ok {
		fresh, err := s.repo.GetTruckRecord(ctx, recordID)
		if err != nil {
			return nil, err
		}
		out, err := apply(fresh, now)
		if err != nil {
			return nil, err
		}
		if out == tracker.AlreadyDone {
			return &TransitionResult{Record: fresh, Outcome: out}, nil
		}
		return nil, errors.Wrapf(models.ErrPreconditionFailed, "truck record %d changed concurrently", recordID)
	}

	s.InvalidateBoard(ctx, r.InspectionID)
	slog.Info("truck stage changed", "inspection_id", r.InspectionID, "record_id", r.ID, "kind", kind)
	return &TransitionResult{Record: r, Outcome: out}, nil
}

// StatusBoard — табло стадий инспекции. Классификация кэшируется целиком,
// страница Completed вырезается уже после кэша.
func (s *Service) StatusBoard(ctx context.Context, actor models.Actor, inspectionID uint64, page, pageSize int) (*tracker.Board, error) {
	if _, err := s.inspectionFor(ctx, actor, inspectionID); err != nil {
		return nil, err
	}

	board, ok := s.cachedBoard(ctx, inspectionID)
	if !ok {
		res, err := s.repo.QueryTruckRecords(ctx, pgtally.RecordQuery{InspectionID: inspectionID})
		if err != nil {
			return nil, err
		}
		b := tracker.Classify(res.Records)
		board = &b
		if s.cache != nil && s.boardTTL > 0 {
			bb, _ := json.Marshal(board)
			_ = s.cache.Set(ctx, boardKey(inspectionID), bb, s.boardTTL)
		}
	}

	out := board.PageCompleted(page, pageSize)
	return &out, nil
}

func (s *Service) cachedBoard(ctx context.Context, inspectionID uint64) (*tracker.Board, bool) {
	if s.cache == nil || s.boardTTL <= 0 {
		return nil, false
	}
	b, ok, err := s.cache.Get(ctx, boardKey(inspectionID))
	if err != nil || !ok {
		return nil, false
	}
	var board tracker.Board
	if json.Unmarshal(b, &board) != nil {
		return nil, false
	}
	return &board, true
}

// ApplyRecordChanged — обработчик события из Kafka: табло инспекции устарело.
func (s *Service) ApplyRecordChanged(ctx context.Context, msg messages.TruckRecordChanged) error {
	if msg.InspectionID == 0 {
		return errors.New("inspection_id is required")
	}
	s.InvalidateBoard(ctx, msg.InspectionID)
	return nil
}
