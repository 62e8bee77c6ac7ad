package pgtally

import (
	"context"
	"time"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const feedbackColumns = ` id, user_id, user_email, message, created_at, admin_notes`

func scanFeedback(row scanner) (*models.FeedbackTicket, error) {
	var f models.FeedbackTicket
	if err := row.Scan(&f.ID, &f.UserID, &f.UserEmail, &f.Message, &f.CreatedAt, &f.AdminNotes); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Storage) CreateFeedbackTicket(ctx context.Context, f *models.FeedbackTicket) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRow(ctx, `
INSERT INTO feedback_tickets (user_id, user_email, message, created_at)
VALUES ($1,$2,$3,$4)
RETURNING id
`, f.UserID, f.UserEmail, f.Message, f.CreatedAt.UTC()).Scan(&f.ID)
	return errors.Wrap(err, "insert feedback ticket")
}

func (s *Storage) GetFeedbackTicket(ctx context.Context, id uint64) (*models.FeedbackTicket, error) {
	f, err := scanFeedback(s.db.QueryRow(ctx, `SELECT`+feedbackColumns+` FROM feedback_tickets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrNotFound, "feedback ticket %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select feedback ticket")
	}
	return f, nil
}

func (s *Storage) ListFeedbackTickets(ctx context.Context, limit, offset int) ([]*models.FeedbackTicket, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.Query(ctx, `SELECT`+feedbackColumns+`
FROM feedback_tickets
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select feedback tickets")
	}
	defer rows.Close()

	out := make([]*models.FeedbackTicket, 0)
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan feedback ticket")
		}
		out = append(out, f)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// SetFeedbackNotes: nil очищает заметку.
func (s *Storage) SetFeedbackNotes(ctx context.Context, id uint64, notes *string) error {
	tag, err := s.db.Exec(ctx, `UPDATE feedback_tickets SET admin_notes = $2 WHERE id = $1`, id, notes)
	if err != nil {
		return errors.Wrap(err, "update feedback notes")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrNotFound, "feedback ticket %d", id)
	}
	return nil
}
