package pgtally

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const truckRecordColumns = `
  id, inspection_id, serial_number, plate_number,
  initial_weight, initial_weight_at, final_weight, final_weight_at,
  initial_berth_at, final_berth_at, berth_note,
  created_at, updated_at`

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanTruckRecord(row scanner) (*models.TruckRecord, error) {
	var r models.TruckRecord
	if err := row.Scan(
		&r.ID, &r.InspectionID, &r.SerialNumber, &r.PlateNumber,
		&r.InitialWeight, &r.InitialWeightAt, &r.FinalWeight, &r.FinalWeightAt,
		&r.InitialBerthAt, &r.FinalBerthAt, &r.BerthNote,
		&r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func getTruckRecord(ctx context.Context, q querier, id uint64, forUpdate bool) (*models.TruckRecord, error) {
	sql := `SELECT` + truckRecordColumns + ` FROM truck_records WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	r, err := scanTruckRecord(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrNotFound, "truck record %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select truck record")
	}
	return r, nil
}

func (s *Storage) GetTruckRecord(ctx context.Context, id uint64) (*models.TruckRecord, error) {
	return getTruckRecord(ctx, s.db, id, false)
}

// ListTruckRecords — все записи инспекции по номеру.
func (s *Storage) ListTruckRecords(ctx context.Context, inspectionID uint64) ([]*models.TruckRecord, error) {
	page, err := s.QueryTruckRecords(ctx, RecordQuery{InspectionID: inspectionID})
	if err != nil {
		return nil, err
	}
	return page.Records, nil
}

// RecordQuery — фильтр по диапазону взвешивания (уже в UTC) и страница.
// Limit <= 0 — без ограничения.
type RecordQuery struct {
	InspectionID uint64
	FromUTC      *time.Time
	ToUTC        *time.Time
	Descending   bool
	Limit        int
	Offset       int
}

type RecordPage struct {
	Records []*models.TruckRecord
	Total   int
	Stats   models.PeriodStats
}

func (q RecordQuery) where() (string, []any) {
	conds := []string{"inspection_id = $1"}
	args := []any{q.InspectionID}
	if q.FromUTC != nil {
		args = append(args, q.FromUTC.UTC())
		conds = append(conds, fmt.Sprintf("initial_weight_at >= $%d", len(args)))
	}
	if q.ToUTC != nil {
		args = append(args, q.ToUTC.UTC())
		conds = append(conds, fmt.Sprintf("final_weight_at <= $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

func (s *Storage) QueryTruckRecords(ctx context.Context, q RecordQuery) (*RecordPage, error) {
	where, args := q.where()

	out := &RecordPage{Records: make([]*models.TruckRecord, 0)}
	var netSum decimal.Decimal
	err := s.db.QueryRow(ctx, `
SELECT
  count(*),
  count(*) FILTER (WHERE initial_weight IS NOT NULL AND final_weight IS NOT NULL),
  COALESCE(SUM(ABS(final_weight - initial_weight)) FILTER (WHERE initial_weight IS NOT NULL AND final_weight IS NOT NULL), 0)
FROM truck_records
WHERE `+where, args...).Scan(&out.Total, &out.Stats.Count, &netSum)
	if err != nil {
		return nil, errors.Wrap(err, "count truck records")
	}
	out.Stats.NetWeight = netSum

	order := "ASC"
	if q.Descending {
		order = "DESC"
	}
	sql := `SELECT` + truckRecordColumns + ` FROM truck_records WHERE ` + where + ` ORDER BY serial_number ` + order
	if q.Limit > 0 {
		args = append(args, q.Limit, max(q.Offset, 0))
		sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select truck records")
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanTruckRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan truck record")
		}
		out.Records = append(out.Records, r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// PlateHints — подсказки номеров по подстроке без учёта регистра.
func (s *Storage) PlateHints(ctx context.Context, inspectionID uint64, term string, take int) ([]string, error) {
	if take <= 0 || take > 100 {
		take = 20
	}
	rows, err := s.db.Query(ctx, `
SELECT DISTINCT plate_number
FROM truck_records
WHERE inspection_id = $1 AND plate_number ILIKE $2
ORDER BY plate_number
LIMIT $3
`, inspectionID, "%"+escapeLike(term)+"%", take)
	if err != nil {
		return nil, errors.Wrap(err, "select plate hints")
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, errors.Wrap(err, "scan plate hint")
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// UpdateTruckRecord сохраняет правку записи (без номера) и событие журнала в одной транзакции.
func (s *Storage) UpdateTruckRecord(ctx context.Context, r *models.TruckRecord, ev *models.RecordEvent) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r.UpdatedAt = time.Now().UTC()
	tag, err := tx.Exec(ctx, `
UPDATE truck_records SET
  plate_number = $2,
  initial_weight = $3, initial_weight_at = $4,
  final_weight = $5, final_weight_at = $6,
  berth_note = $7,
  updated_at = $8
WHERE id = $1
`, r.ID, r.PlateNumber, r.InitialWeight, r.InitialWeightAt, r.FinalWeight, r.FinalWeightAt, r.BerthNote, r.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "update truck record")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrNotFound, "truck record %d", r.ID)
	}
	if ev != nil {
		if err := insertEvent(ctx, tx, ev); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// MarkCargoOpsStarted ставит initial_berth_at, только если она ещё пуста.
// false — отметку уже поставил кто-то другой.
func (s *Storage) MarkCargoOpsStarted(ctx context.Context, recordID uint64, at time.Time, ev *models.RecordEvent) (bool, error) {
	return s.markStage(ctx, `
UPDATE truck_records SET initial_berth_at = $2, updated_at = now()
WHERE id = $1 AND initial_berth_at IS NULL AND initial_weight_at IS NOT NULL
`, recordID, at, ev)
}

func (s *Storage) MarkCargoOpsCompleted(ctx context.Context, recordID uint64, at time.Time, ev *models.RecordEvent) (bool, error) {
	return s.markStage(ctx, `
UPDATE truck_records SET final_berth_at = $2, updated_at = now()
WHERE id = $1 AND final_berth_at IS NULL AND initial_berth_at IS NOT NULL
`, recordID, at, ev)
}

func (s *Storage) markStage(ctx context.Context, sql string, recordID uint64, at time.Time, ev *models.RecordEvent) (bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, sql, recordID, at.UTC())
	if err != nil {
		return false, errors.Wrap(err, "update stage")
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if ev != nil {
		if err := insertEvent(ctx, tx, ev); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, errors.Wrap(err, "commit tx")
	}
	return true, nil
}
