package inspections

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/BearBump/TruckTally/internal/tz"
	"github.com/pkg/errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type Repository interface {
	CreateInspection(ctx context.Context, in *models.Inspection) error
	GetInspection(ctx context.Context, id uint64) (*models.Inspection, error)
	ListInspections(ctx context.Context, ownerID string, limit, offset int) ([]*models.Inspection, error)
	UpdateInspection(ctx context.Context, in *models.Inspection) error
	DeleteInspection(ctx context.Context, id uint64) error
	ListTruckRecords(ctx context.Context, inspectionID uint64) ([]*models.TruckRecord, error)
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

// Details — инспекция вместе с производными итогами по машинам.
type Details struct {
	Inspection *models.Inspection
	Summary    models.InspectionSummary
	// CreatedAtLocal — время создания в поясе инспекции.
	CreatedAtLocal time.Time
}

func (s *Service) Create(ctx context.Context, actor models.Actor, in models.InspectionInput) (*models.Inspection, error) {
	if actor.UserID == "" {
		return nil, errors.Wrap(models.ErrForbidden, "anonymous actor")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	insp := &models.Inspection{OwnerID: actor.UserID, CreatedAt: s.now().UTC()}
	apply(insp, in)
	if err := s.repo.CreateInspection(ctx, insp); err != nil {
		return nil, err
	}
	slog.Info("inspection created", "inspection_id", insp.ID, "owner_id", insp.OwnerID, "tz", insp.TimeZoneID)
	return insp, nil
}

func (s *Service) Get(ctx context.Context, actor models.Actor, id uint64) (*Details, error) {
	insp, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.ListTruckRecords(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Details{
		Inspection:     insp,
		Summary:        models.Summarize(insp.DeclaredTotalWeight, records),
		CreatedAtLocal: tz.FromUTC(insp.CreatedAt, tz.Resolve(insp.TimeZoneID)),
	}, nil
}

// List: свои инспекции, администратор видит все. Новые сверху.
func (s *Service) List(ctx context.Context, actor models.Actor, limit, offset int) ([]*models.Inspection, error) {
	if actor.UserID == "" {
		return nil, errors.Wrap(models.ErrForbidden, "anonymous actor")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	offset = max(offset, 0)

	ownerID := actor.UserID
	if actor.IsAdmin() {
		ownerID = ""
	}
	return s.repo.ListInspections(ctx, ownerID, limit, offset)
}

func (s *Service) Update(ctx context.Context, actor models.Actor, id uint64, in models.InspectionInput) (*models.Inspection, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	insp, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	apply(insp, in)
	if err := s.repo.UpdateInspection(ctx, insp); err != nil {
		return nil, err
	}
	slog.Info("inspection updated", "inspection_id", id)
	return insp, nil
}

// Delete удаляет инспекцию вместе со всеми машинами и журналом.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id uint64) error {
	if _, err := s.load(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.DeleteInspection(ctx, id); err != nil {
		return err
	}
	slog.Info("inspection deleted", "inspection_id", id, "actor_id", actor.UserID)
	return nil
}

func (s *Service) load(ctx context.Context, actor models.Actor, id uint64) (*models.Inspection, error) {
	if id == 0 {
		return nil, models.Validationf("inspection id is required")
	}
	insp, err := s.repo.GetInspection(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(insp) {
		return nil, errors.Wrapf(models.ErrForbidden, "inspection %d", id)
	}
	return insp, nil
}

func validateInput(in models.InspectionInput) error {
	if err := models.Validate(in); err != nil {
		return err
	}
	if in.DeclaredTotalWeight != nil && !models.WeightInRange(*in.DeclaredTotalWeight) {
		return models.Validationf("declared total weight %s is out of range [%s, %s]",
			in.DeclaredTotalWeight, models.MinWeight, models.MaxWeight)
	}
	return nil
}

// apply переносит поля ввода. Неизвестный пояс сохраняется как есть,
// при расчётах он превращается в UTC.
func apply(insp *models.Inspection, in models.InspectionInput) {
	insp.Vessel = strings.TrimSpace(in.Vessel)
	insp.Cargo = strings.TrimSpace(in.Cargo)
	insp.Place = strings.TrimSpace(in.Place)
	insp.TimeZoneID = strings.TrimSpace(in.TimeZoneID)
	if insp.TimeZoneID == "" {
		insp.TimeZoneID = models.DefaultTimeZoneID
	}
	insp.DeclaredTotalWeight = nil
	if in.DeclaredTotalWeight != nil {
		d := in.DeclaredTotalWeight.Round(3)
		insp.DeclaredTotalWeight = &d
	}
	insp.Notes = trimmedOrNil(in.Notes)
	insp.LogoID = trimmedOrNil(in.LogoID)
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
