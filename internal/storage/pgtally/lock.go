package pgtally

import (
	"context"
	"time"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// LockedInspection — операции внутри транзакции, которая держит
// блокировку строки инспекции (SELECT ... FOR UPDATE).
type LockedInspection interface {
	Inspection() *models.Inspection
	MaxSerialNumber(ctx context.Context) (int, error)
	InsertTruckRecord(ctx context.Context, r *models.TruckRecord) error
	GetTruckRecord(ctx context.Context, id uint64) (*models.TruckRecord, error)
	DeleteTruckRecord(ctx context.Context, id uint64) error
	ShiftSerialNumbersDown(ctx context.Context, after int) (int64, error)
	AppendEvent(ctx context.Context, ev *models.RecordEvent) error
}

// WithInspectionLock открывает транзакцию, блокирует строку инспекции и вызывает fn.
// Ошибка fn (или отмена ctx) откатывает всё, что fn успела сделать.
// Пока блокировка держится, другие вызовы для той же инспекции ждут.
func (s *Storage) WithInspectionLock(ctx context.Context, inspectionID uint64, fn func(ctx context.Context, tx LockedInspection) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	in, err := scanInspection(tx.QueryRow(ctx, `SELECT`+inspectionColumns+` FROM inspections WHERE id = $1 FOR UPDATE`, inspectionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrapf(models.ErrNotFound, "inspection %d", inspectionID)
	}
	if err != nil {
		return errors.Wrap(err, "lock inspection")
	}

	if err := fn(ctx, &lockedInspection{tx: tx, in: in}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

type lockedInspection struct {
	tx pgx.Tx
	in *models.Inspection
}

func (l *lockedInspection) Inspection() *models.Inspection {
	return l.in
}

func (l *lockedInspection) MaxSerialNumber(ctx context.Context) (int, error) {
	var n int
	err := l.tx.QueryRow(ctx, `SELECT COALESCE(MAX(serial_number), 0) FROM truck_records WHERE inspection_id = $1`, l.in.ID).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "select max serial")
	}
	return n, nil
}

func (l *lockedInspection) InsertTruckRecord(ctx context.Context, r *models.TruckRecord) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = r.CreatedAt
	r.InspectionID = l.in.ID

	err := l.tx.QueryRow(ctx, `
INSERT INTO truck_records (
  inspection_id, serial_number, plate_number,
  initial_weight, initial_weight_at, final_weight, final_weight_at,
  initial_berth_at, final_berth_at, berth_note,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
RETURNING id
`, r.InspectionID, r.SerialNumber, r.PlateNumber,
		r.InitialWeight, r.InitialWeightAt, r.FinalWeight, r.FinalWeightAt,
		r.InitialBerthAt, r.FinalBerthAt, r.BerthNote,
		r.CreatedAt).Scan(&r.ID)
	return errors.Wrap(err, "insert truck record")
}

// GetTruckRecord ищет запись только внутри заблокированной инспекции.
func (l *lockedInspection) GetTruckRecord(ctx context.Context, id uint64) (*models.TruckRecord, error) {
	r, err := getTruckRecord(ctx, l.tx, id, true)
	if err != nil {
		return nil, err
	}
	if r.InspectionID != l.in.ID {
		return nil, errors.Wrapf(models.ErrNotFound, "truck record %d in inspection %d", id, l.in.ID)
	}
	return r, nil
}

func (l *lockedInspection) DeleteTruckRecord(ctx context.Context, id uint64) error {
	tag, err := l.tx.Exec(ctx, `DELETE FROM truck_records WHERE id = $1 AND inspection_id = $2`, id, l.in.ID)
	if err != nil {
		return errors.Wrap(err, "delete truck record")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrNotFound, "truck record %d", id)
	}
	return nil
}

// ShiftSerialNumbersDown уменьшает на 1 все номера больше after.
func (l *lockedInspection) ShiftSerialNumbersDown(ctx context.Context, after int) (int64, error) {
	tag, err := l.tx.Exec(ctx, `
UPDATE truck_records
SET serial_number = serial_number - 1, updated_at = now()
WHERE inspection_id = $1 AND serial_number > $2
`, l.in.ID, after)
	if err != nil {
		return 0, errors.Wrap(err, "shift serial numbers")
	}
	return tag.RowsAffected(), nil
}

func (l *lockedInspection) AppendEvent(ctx context.Context, ev *models.RecordEvent) error {
	return insertEvent(ctx, l.tx, ev)
}
