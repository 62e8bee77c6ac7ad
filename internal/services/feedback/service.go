package feedback

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/pkg/errors"
)

type Repository interface {
	CreateFeedbackTicket(ctx context.Context, f *models.FeedbackTicket) error
	GetFeedbackTicket(ctx context.Context, id uint64) (*models.FeedbackTicket, error)
	ListFeedbackTickets(ctx context.Context, limit, offset int) ([]*models.FeedbackTicket, error)
	SetFeedbackNotes(ctx context.Context, id uint64, notes *string) error
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func New(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Create — обращение может оставить любой пользователь.
func (s *Service) Create(ctx context.Context, actor models.Actor, in models.FeedbackInput) (*models.FeedbackTicket, error) {
	in.UserEmail = strings.TrimSpace(in.UserEmail)
	in.Message = strings.TrimSpace(in.Message)
	if err := models.Validate(in); err != nil {
		return nil, err
	}

	f := &models.FeedbackTicket{
		UserID:    actor.UserID,
		UserEmail: in.UserEmail,
		Message:   in.Message,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateFeedbackTicket(ctx, f); err != nil {
		return nil, err
	}
	slog.Info("feedback ticket created", "ticket_id", f.ID, "user_id", f.UserID)
	return f, nil
}

func (s *Service) List(ctx context.Context, actor models.Actor, limit, offset int) ([]*models.FeedbackTicket, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListFeedbackTickets(ctx, limit, max(offset, 0))
}

func (s *Service) Get(ctx context.Context, actor models.Actor, id uint64) (*models.FeedbackTicket, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.repo.GetFeedbackTicket(ctx, id)
}

// SaveNote сохраняет заметку администратора, пустая строка её стирает.
func (s *Service) SaveNote(ctx context.Context, actor models.Actor, id uint64, note string) (*models.FeedbackTicket, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)
	if len([]rune(note)) > 4000 {
		return nil, models.Validationf("note must be at most 4000 characters")
	}

	f, err := s.repo.GetFeedbackTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	f.AdminNotes = nil
	if note != "" {
		f.AdminNotes = &note
	}
	if err := s.repo.SetFeedbackNotes(ctx, id, f.AdminNotes); err != nil {
		return nil, err
	}
	return f, nil
}

func requireAdmin(actor models.Actor) error {
	if !actor.IsAdmin() {
		return errors.Wrapf(models.ErrForbidden, "user %q is not an admin", actor.UserID)
	}
	return nil
}
