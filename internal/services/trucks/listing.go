package trucks

import (
	"context"
	"strings"
	"time"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/BearBump/TruckTally/internal/storage/pgtally"
	"github.com/BearBump/TruckTally/internal/tracker"
	"github.com/BearBump/TruckTally/internal/tz"
)

const maxPlateHints = 20

type RecordList struct {
	Inspection *models.Inspection
	Records    []*models.TruckRecord
	Page       tracker.Page
	Stats      models.PeriodStats
	FromUTC    *time.Time
	ToUTC      *time.Time
}

func (l *RecordList) Filtered() bool {
	return l.FromUTC != nil || l.ToUTC != nil
}

// RangeToUTC переводит границы фильтра из локального времени инспекции в UTC.
func RangeToUTC(in *models.Inspection, from, to *time.Time) (*time.Time, *time.Time, error) {
	if from != nil && to != nil && from.After(*to) {
		return nil, nil, models.Validationf("range start must not be after range end")
	}
	loc := tz.Resolve(in.TimeZoneID)
	return tz.PtrToUTC(from, loc), tz.PtrToUTC(to, loc), nil
}

// ListRecords — список машин с фильтром по времени взвешивания и итогами периода.
func (s *Service) ListRecords(ctx context.Context, actor models.Actor, inspectionID uint64, f models.RecordFilter) (*RecordList, error) {
	in, err := s.inspectionFor(ctx, actor, inspectionID)
	if err != nil {
		return nil, err
	}
	fromUTC, toUTC, err := RangeToUTC(in, f.From, f.To)
	if err != nil {
		return nil, err
	}

	size := tracker.NormalizePageSize(f.PageSize)
	number := max(f.Page, 1)
	q := pgtally.RecordQuery{
		InspectionID: inspectionID,
		FromUTC:      fromUTC,
		ToUTC:        toUTC,
		Descending:   f.Descending,
	}
	if size != tracker.PageSizeAll {
		q.Limit = size
		q.Offset = (number - 1) * size
	}

	res, err := s.repo.QueryTruckRecords(ctx, q)
	if err != nil {
		return nil, err
	}
	page, lo, _ := tracker.Paginate(res.Total, number, size)
	if page.Number != number && size != tracker.PageSizeAll {
		// запрошена страница за концом списка — отдаём последнюю
		q.Offset = lo
		if res, err = s.repo.QueryTruckRecords(ctx, q); err != nil {
			return nil, err
		}
	}

	return &RecordList{
		Inspection: in,
		Records:    res.Records,
		Page:       page,
		Stats:      res.Stats,
		FromUTC:    fromUTC,
		ToUTC:      toUTC,
	}, nil
}

func (s *Service) PlateHints(ctx context.Context, actor models.Actor, inspectionID uint64, term string) ([]string, error) {
	if _, err := s.inspectionFor(ctx, actor, inspectionID); err != nil {
		return nil, err
	}
	term = models.NormalizePlate(strings.TrimSpace(term))
	if term == "" {
		return []string{}, nil
	}
	return s.repo.PlateHints(ctx, inspectionID, term, maxPlateHints)
}

// History — журнал изменений записей инспекции, новые сверху.
func (s *Service) History(ctx context.Context, actor models.Actor, inspectionID uint64, limit, offset int) ([]*models.RecordEvent, error) {
	if _, err := s.inspectionFor(ctx, actor, inspectionID); err != nil {
		return nil, err
	}
	return s.repo.ListRecordEvents(ctx, inspectionID, limit, offset)
}
