package trucks

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/BearBump/TruckTally/internal/storage/pgtally"
	"github.com/BearBump/TruckTally/internal/tz"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// DeleteResult: AlreadyRemoved — запись уже удалил кто-то другой, это не ошибка.
type DeleteResult struct {
	AlreadyRemoved bool
	SerialNumber   int
	Renumbered     int64
}

// CreateRecord добавляет машину с номером max+1. Номер вычисляется под блокировкой
// строки инспекции, поэтому параллельные вставки получают разные номера подряд.
func (s *Service) CreateRecord(ctx context.Context, actor models.Actor, in models.CreateRecordInput) (*models.TruckRecord, error) {
	plate, err := validateRecord(in.PlateNumber, in.Initial, in.Final)
	if err != nil {
		return nil, err
	}
	if err := models.Validate(in); err != nil {
		return nil, err
	}

	var created *models.TruckRecord
	err = s.repo.WithInspectionLock(ctx, in.InspectionID, func(ctx context.Context, tx pgtally.LockedInspection) error {
		insp := tx.Inspection()
		if err := checkAccess(actor, insp); err != nil {
			return err
		}

		maxSerial, err := tx.MaxSerialNumber(ctx)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		loc := tz.Resolve(insp.TimeZoneID)
		r := &models.TruckRecord{
			InspectionID: insp.ID,
			SerialNumber: maxSerial + 1,
			PlateNumber:  plate,
			CreatedAt:    now,
		}
		r.InitialWeight, r.InitialWeightAt = applyWeighing(in.Initial, loc, now)
		r.FinalWeight, r.FinalWeightAt = applyWeighing(in.Final, loc, now)

		if err := tx.InsertTruckRecord(ctx, r); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, newEvent(actor, r, models.RecordEventCreated, nil)); err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateBoard(ctx, in.InspectionID)
	slog.Info("truck record created",
		"inspection_id", created.InspectionID, "record_id", created.ID, "serial", created.SerialNumber)
	return created, nil
}

// DeleteRecord удаляет запись и сдвигает номера следующих за ней на 1 вниз
// в той же транзакции.
func (s *Service) DeleteRecord(ctx context.Context, actor models.Actor, inspectionID, recordID uint64) (DeleteResult, error) {
	if inspectionID == 0 || recordID == 0 {
		return DeleteResult{}, models.Validationf("inspectionId and recordId are required")
	}

	var res DeleteResult
	err := s.repo.WithInspectionLock(ctx, inspectionID, func(ctx context.Context, tx pgtally.LockedInspection) error {
		if err := checkAccess(actor, tx.Inspection()); err != nil {
			return err
		}

		r, err := tx.GetTruckRecord(ctx, recordID)
		if errors.Is(err, models.ErrNotFound) {
			res.AlreadyRemoved = true
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.DeleteTruckRecord(ctx, r.ID); err != nil {
			return err
		}
		n, err := tx.ShiftSerialNumbersDown(ctx, r.SerialNumber)
		if err != nil {
			return err
		}
		ev := newEvent(actor, r, models.RecordEventDeleted, map[string]any{"renumbered": n})
		if err := tx.AppendEvent(ctx, ev); err != nil {
			return err
		}

		res.SerialNumber = r.SerialNumber
		res.Renumbered = n
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}

	if res.AlreadyRemoved {
		slog.Warn("truck record already removed", "inspection_id", inspectionID, "record_id", recordID)
		return res, nil
	}
	s.InvalidateBoard(ctx, inspectionID)
	slog.Info("truck record deleted",
		"inspection_id", inspectionID, "record_id", recordID, "serial", res.SerialNumber, "renumbered", res.Renumbered)
	return res, nil
}

// EditRecord правит номер машины, веса и отметки. Порядковый номер не меняется.
func (s *Service) EditRecord(ctx context.Context, actor models.Actor, in models.EditRecordInput) (*models.TruckRecord, error) {
	plate, err := validateRecord(in.PlateNumber, in.Initial, in.Final)
	if err != nil {
		return nil, err
	}
	if err := models.Validate(in); err != nil {
		return nil, err
	}

	r, err := s.repo.GetTruckRecord(ctx, in.RecordID)
	if err != nil {
		return nil, err
	}
	insp, err := s.inspectionFor(ctx, actor, r.InspectionID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	loc := tz.Resolve(insp.TimeZoneID)
	r.PlateNumber = plate
	r.InitialWeight, r.InitialWeightAt = applyWeighing(in.Initial, loc, now)
	r.FinalWeight, r.FinalWeightAt = applyWeighing(in.Final, loc, now)
	if in.BerthNote != nil {
		note := strings.TrimSpace(*in.BerthNote)
		if note == "" {
			r.BerthNote = nil
		} else {
			r.BerthNote = &note
		}
	}

	if err := s.repo.UpdateTruckRecord(ctx, r, newEvent(actor, r, models.RecordEventEdited, nil)); err != nil {
		return nil, err
	}

	s.InvalidateBoard(ctx, r.InspectionID)
	slog.Info("truck record edited", "inspection_id", r.InspectionID, "record_id", r.ID)
	return r, nil
}

func validateRecord(rawPlate string, weighings ...models.Weighing) (string, error) {
	plate := models.NormalizePlate(rawPlate)
	if plate == "" {
		return "", models.Validationf("plate number is required")
	}
	if len([]rune(plate)) > models.PlateMaxLen {
		return "", models.Validationf("plate number must be at most %d characters", models.PlateMaxLen)
	}
	for _, w := range weighings {
		if w.Weight != nil && !models.WeightInRange(*w.Weight) {
			return "", models.Validationf("weight %s is out of range [%s, %s]", w.Weight, models.MinWeight, models.MaxWeight)
		}
	}
	return plate, nil
}

// applyWeighing: нет веса — нет и отметки; вес без времени — now;
// время задано — это локальное время инспекции, переводим в UTC.
func applyWeighing(w models.Weighing, loc *time.Location, now time.Time) (*decimal.Decimal, *time.Time) {
	if w.Weight == nil {
		return nil, nil
	}
	weight := w.Weight.Round(3)
	at := now
	if w.At != nil {
		at = tz.ToUTC(*w.At, loc)
	}
	return &weight, &at
}
