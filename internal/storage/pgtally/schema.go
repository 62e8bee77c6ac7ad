package pgtally

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS inspections (
  id BIGSERIAL PRIMARY KEY,
  owner_id TEXT NOT NULL,
  vessel TEXT NOT NULL DEFAULT '',
  cargo TEXT NOT NULL DEFAULT '',
  place TEXT NOT NULL DEFAULT '',
  declared_total_weight NUMERIC(18,3) NULL,
  time_zone_id TEXT NOT NULL DEFAULT 'UTC',
  notes TEXT NULL,
  logo_id TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_inspections_owner_created_at ON inspections(owner_id, created_at DESC)`,
		// Уникальность номера отложена до commit: сдвиг номеров вниз одним UPDATE
		// может временно давать дубли внутри транзакции.
		`
CREATE TABLE IF NOT EXISTS truck_records (
  id BIGSERIAL PRIMARY KEY,
  inspection_id BIGINT NOT NULL REFERENCES inspections(id) ON DELETE CASCADE,
  serial_number INT NOT NULL CHECK (serial_number > 0),
  plate_number VARCHAR(32) NOT NULL,
  initial_weight NUMERIC(18,3) NULL,
  initial_weight_at TIMESTAMPTZ NULL,
  final_weight NUMERIC(18,3) NULL,
  final_weight_at TIMESTAMPTZ NULL,
  initial_berth_at TIMESTAMPTZ NULL,
  final_berth_at TIMESTAMPTZ NULL,
  berth_note TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  CONSTRAINT uq_truck_records_serial UNIQUE (inspection_id, serial_number) DEFERRABLE INITIALLY DEFERRED
)`,
		`CREATE INDEX IF NOT EXISTS idx_truck_records_inspection_plate ON truck_records(inspection_id, plate_number)`,
		`
CREATE TABLE IF NOT EXISTS truck_record_events (
  id BIGSERIAL PRIMARY KEY,
  event_id TEXT NOT NULL UNIQUE,
  inspection_id BIGINT NOT NULL REFERENCES inspections(id) ON DELETE CASCADE,
  record_id BIGINT NOT NULL,
  kind TEXT NOT NULL,
  serial_number INT NOT NULL,
  plate_number TEXT NOT NULL,
  actor_id TEXT NOT NULL DEFAULT '',
  payload JSONB NULL,
  created_at TIMESTAMPTZ NOT NULL,
  published_at TIMESTAMPTZ NULL,
  attempts INT NOT NULL DEFAULT 0,
  last_error TEXT NULL,
  next_attempt_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_truck_record_events_pending ON truck_record_events(next_attempt_at) WHERE published_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_truck_record_events_inspection ON truck_record_events(inspection_id, id DESC)`,
		`
CREATE TABLE IF NOT EXISTS feedback_tickets (
  id BIGSERIAL PRIMARY KEY,
  user_id TEXT NOT NULL,
  user_email TEXT NOT NULL,
  message TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  admin_notes TEXT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_tickets_created_at ON feedback_tickets(created_at DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
