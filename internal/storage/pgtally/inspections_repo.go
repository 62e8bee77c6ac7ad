package pgtally

import (
	"context"
	"time"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const inspectionColumns = `
  id, owner_id, vessel, cargo, place,
  declared_total_weight, time_zone_id, notes, logo_id, created_at`

func scanInspection(row scanner) (*models.Inspection, error) {
	var in models.Inspection
	if err := row.Scan(
		&in.ID, &in.OwnerID, &in.Vessel, &in.Cargo, &in.Place,
		&in.DeclaredTotalWeight, &in.TimeZoneID, &in.Notes, &in.LogoID, &in.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &in, nil
}

func (s *Storage) CreateInspection(ctx context.Context, in *models.Inspection) error {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	if in.TimeZoneID == "" {
		in.TimeZoneID = models.DefaultTimeZoneID
	}
	err := s.db.QueryRow(ctx, `
INSERT INTO inspections (
  owner_id, vessel, cargo, place, declared_total_weight, time_zone_id, notes, logo_id, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING id
`, in.OwnerID, in.Vessel, in.Cargo, in.Place, in.DeclaredTotalWeight, in.TimeZoneID, in.Notes, in.LogoID, in.CreatedAt.UTC()).Scan(&in.ID)
	return errors.Wrap(err, "insert inspection")
}

func (s *Storage) GetInspection(ctx context.Context, id uint64) (*models.Inspection, error) {
	in, err := scanInspection(s.db.QueryRow(ctx, `SELECT`+inspectionColumns+` FROM inspections WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrNotFound, "inspection %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select inspection")
	}
	return in, nil
}

// ListInspections: ownerID == "" означает все инспекции (для администратора).
func (s *Storage) ListInspections(ctx context.Context, ownerID string, limit, offset int) ([]*models.Inspection, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `SELECT`+inspectionColumns+`
FROM inspections
WHERE ($1 = '' OR owner_id = $1)
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`, ownerID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select inspections")
	}
	defer rows.Close()

	out := make([]*models.Inspection, 0)
	for rows.Next() {
		in, err := scanInspection(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan inspection")
		}
		out = append(out, in)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) UpdateInspection(ctx context.Context, in *models.Inspection) error {
	tag, err := s.db.Exec(ctx, `
UPDATE inspections SET
  vessel = $2, cargo = $3, place = $4,
  declared_total_weight = $5, time_zone_id = $6, notes = $7, logo_id = $8
WHERE id = $1
`, in.ID, in.Vessel, in.Cargo, in.Place, in.DeclaredTotalWeight, in.TimeZoneID, in.Notes, in.LogoID)
	if err != nil {
		return errors.Wrap(err, "update inspection")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrNotFound, "inspection %d", in.ID)
	}
	return nil
}

// DeleteInspection удаляет инспекцию вместе с записями и журналом (ON DELETE CASCADE).
func (s *Storage) DeleteInspection(ctx context.Context, id uint64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM inspections WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete inspection")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrNotFound, "inspection %d", id)
	}
	return nil
}
