package pgtally

import (
	"context"
	"time"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const eventColumns = `
  id, event_id, inspection_id, record_id, kind,
  serial_number, plate_number, actor_id, payload, created_at,
  published_at, attempts, last_error, next_attempt_at`

func scanEvent(row scanner) (*models.RecordEvent, error) {
	var e models.RecordEvent
	var payload []byte
	if err := row.Scan(
		&e.ID, &e.EventID, &e.InspectionID, &e.RecordID, &e.Kind,
		&e.SerialNumber, &e.PlateNumber, &e.ActorID, &payload, &e.CreatedAt,
		&e.PublishedAt, &e.Attempts, &e.LastError, &e.NextAttemptAt,
	); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		e.Payload = payload
	}
	return &e, nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, ev *models.RecordEvent) error {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if ev.NextAttemptAt.IsZero() {
		ev.NextAttemptAt = ev.CreatedAt
	}
	var payload []byte
	if len(ev.Payload) > 0 {
		payload = ev.Payload
	}

	err := tx.QueryRow(ctx, `
INSERT INTO truck_record_events (
  event_id, inspection_id, record_id, kind, serial_number, plate_number,
  actor_id, payload, created_at, next_attempt_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id
`, ev.EventID, ev.InspectionID, ev.RecordID, ev.Kind, ev.SerialNumber, ev.PlateNumber,
		ev.ActorID, payload, ev.CreatedAt.UTC(), ev.NextAttemptAt.UTC()).Scan(&ev.ID)
	return errors.Wrap(err, "insert record event")
}

// ListRecordEvents — журнал инспекции, сначала новые.
func (s *Storage) ListRecordEvents(ctx context.Context, inspectionID uint64, limit, offset int) ([]*models.RecordEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `SELECT`+eventColumns+`
FROM truck_record_events
WHERE inspection_id = $1
ORDER BY id DESC
LIMIT $2 OFFSET $3
`, inspectionID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	defer rows.Close()

	out := make([]*models.RecordEvent, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ClaimPendingEvents выбирает пачку неопубликованных событий и "бронирует" их
// на время lease, чтобы параллельный воркер их не взял.
// Использует SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimPendingEvents(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.RecordEvent, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `SELECT`+eventColumns+`
FROM truck_record_events
WHERE published_at IS NULL
  AND next_attempt_at <= $1
ORDER BY id ASC
LIMIT $2
FOR UPDATE SKIP LOCKED
`, now.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select pending events")
	}
	defer rows.Close()

	var picked []*models.RecordEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan pending event")
		}
		picked = append(picked, e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	leaseUntil := now.UTC().Add(lease)
	for _, e := range picked {
		_, err := tx.Exec(ctx, `UPDATE truck_record_events SET next_attempt_at = $2 WHERE id = $1`, e.ID, leaseUntil)
		if err != nil {
			return nil, errors.Wrap(err, "lease event")
		}
		e.NextAttemptAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

func (s *Storage) MarkEventPublished(ctx context.Context, id uint64, at time.Time) error {
	_, err := s.db.Exec(ctx, `
UPDATE truck_record_events
SET published_at = $2, attempts = attempts + 1, last_error = NULL
WHERE id = $1
`, id, at.UTC())
	return errors.Wrap(err, "mark event published")
}

func (s *Storage) MarkEventFailed(ctx context.Context, id uint64, nextAttemptAt time.Time, lastError string) error {
	_, err := s.db.Exec(ctx, `
UPDATE truck_record_events
SET attempts = attempts + 1, last_error = $2, next_attempt_at = $3
WHERE id = $1
`, id, lastError, nextAttemptAt.UTC())
	return errors.Wrap(err, "mark event failed")
}
