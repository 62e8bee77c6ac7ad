// Package tracker определяет стадию машины по заполненным отметкам времени
// и переводит её между стадиями грузовых операций.
package tracker

import (
	"sort"
	"time"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/pkg/errors"
)

type Stage string

const (
	StageNone                  Stage = "none"
	StageAwaitingCargoOps      Stage = "awaiting_cargo_ops"
	StageUnderCargoOps         Stage = "under_cargo_ops"
	StageAwaitingFinalWeighing Stage = "awaiting_final_weighing"
	StageCompleted             Stage = "completed"
)

var (
	ErrInitialWeighingRequired = errors.Wrap(models.ErrPreconditionFailed, "initial weighing is required")
	ErrCargoOpsNotStarted      = errors.Wrap(models.ErrPreconditionFailed, "cargo operations should be started first")
)

// StageOf: проверки идут сверху вниз, первая подходящая побеждает.
// Порядок самих отметок не проверяется, только их наличие.
func StageOf(r *models.TruckRecord) Stage {
	switch {
	case r.FinalWeightAt != nil:
		return StageCompleted
	case r.FinalBerthAt != nil:
		return StageAwaitingFinalWeighing
	case r.InitialBerthAt != nil:
		return StageUnderCargoOps
	case r.InitialWeightAt != nil:
		return StageAwaitingCargoOps
	default:
		return StageNone
	}
}

type Outcome int

const (
	Applied Outcome = iota + 1
	AlreadyDone
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case AlreadyDone:
		return "already_done"
	default:
		return "unknown"
	}
}

// StartCargoOps ставит начало грузовых операций. Повторный вызов ничего не меняет.
func StartCargoOps(r *models.TruckRecord, now time.Time) (Outcome, error) {
	if r.InitialWeightAt == nil {
		return 0, ErrInitialWeighingRequired
	}
	if r.InitialBerthAt != nil {
		return AlreadyDone, nil
	}
	t := now.UTC()
	r.InitialBerthAt = &t
	return Applied, nil
}

func CompleteCargoOps(r *models.TruckRecord, now time.Time) (Outcome, error) {
	if r.InitialBerthAt == nil {
		return 0, ErrCargoOpsNotStarted
	}
	if r.FinalBerthAt != nil {
		return AlreadyDone, nil
	}
	t := now.UTC()
	r.FinalBerthAt = &t
	return Applied, nil
}

// Durations — интервалы между стадиями. nil, если нет одной из отметок.
// Отрицательные значения возвращаются как есть.
type Durations struct {
	InitialToBerthStart *time.Duration
	BerthStartToFinish  *time.Duration
	BerthFinishToFinal  *time.Duration
	InitialToFinal      *time.Duration
}

func between(from, to *time.Time) *time.Duration {
	if from == nil || to == nil {
		return nil
	}
	d := to.Sub(*from)
	return &d
}

func DurationsOf(r *models.TruckRecord) Durations {
	return Durations{
		InitialToBerthStart: between(r.InitialWeightAt, r.InitialBerthAt),
		BerthStartToFinish:  between(r.InitialBerthAt, r.FinalBerthAt),
		BerthFinishToFinal:  between(r.FinalBerthAt, r.FinalWeightAt),
		InitialToFinal:      between(r.InitialWeightAt, r.FinalWeightAt),
	}
}

type CompletedEntry struct {
	Record    *models.TruckRecord
	Durations Durations
}

type Board struct {
	AwaitingCargoOps      []*models.TruckRecord
	UnderCargoOps         []*models.TruckRecord
	AwaitingFinalWeighing []*models.TruckRecord
	Completed             []CompletedEntry
	CompletedPage         Page
}

// Classify раскладывает записи по стадиям. Внутри корзины сначала самые свежие
// по отметке, определяющей стадию.
func Classify(records []*models.TruckRecord) Board {
	b := Board{
		AwaitingCargoOps:      []*models.TruckRecord{},
		UnderCargoOps:         []*models.TruckRecord{},
		AwaitingFinalWeighing: []*models.TruckRecord{},
		Completed:             []CompletedEntry{},
	}
	for _, r := range records {
		switch StageOf(r) {
		case StageAwaitingCargoOps:
			b.AwaitingCargoOps = append(b.AwaitingCargoOps, r)
		case StageUnderCargoOps:
			b.UnderCargoOps = append(b.UnderCargoOps, r)
		case StageAwaitingFinalWeighing:
			b.AwaitingFinalWeighing = append(b.AwaitingFinalWeighing, r)
		case StageCompleted:
			b.Completed = append(b.Completed, CompletedEntry{Record: r, Durations: DurationsOf(r)})
		}
	}

	sortDesc(b.AwaitingCargoOps, func(r *models.TruckRecord) *time.Time { return r.InitialWeightAt })
	sortDesc(b.UnderCargoOps, func(r *models.TruckRecord) *time.Time { return r.InitialBerthAt })
	sortDesc(b.AwaitingFinalWeighing, func(r *models.TruckRecord) *time.Time { return r.FinalBerthAt })
	sort.SliceStable(b.Completed, func(i, j int) bool {
		return newer(b.Completed[i].Record, b.Completed[j].Record, func(r *models.TruckRecord) *time.Time { return r.FinalWeightAt })
	})

	b.CompletedPage = Page{Number: 1, Size: PageSizeAll, TotalItems: len(b.Completed), TotalPages: 1}
	return b
}

func sortDesc(rs []*models.TruckRecord, key func(*models.TruckRecord) *time.Time) {
	sort.SliceStable(rs, func(i, j int) bool { return newer(rs[i], rs[j], key) })
}

func newer(a, b *models.TruckRecord, key func(*models.TruckRecord) *time.Time) bool {
	ta, tb := key(a), key(b)
	if ta.Equal(*tb) {
		return a.SerialNumber > b.SerialNumber
	}
	return ta.After(*tb)
}
