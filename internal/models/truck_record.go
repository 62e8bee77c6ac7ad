package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

const (
	PlateMaxLen    = 32
	PlateRawMaxLen = 64
)

var (
	MinWeight = decimal.Zero
	MaxWeight = decimal.NewFromInt(1_000_000_000)
)

type TruckRecord struct {
	ID              uint64
	InspectionID    uint64
	SerialNumber    int
	PlateNumber     string
	InitialWeight   *decimal.Decimal
	InitialWeightAt *time.Time
	FinalWeight     *decimal.Decimal
	FinalWeightAt   *time.Time
	InitialBerthAt  *time.Time
	FinalBerthAt    *time.Time
	BerthNote       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NetWeight = |final - initial|, если оба веса заданы, иначе 0.
func (r *TruckRecord) NetWeight() decimal.Decimal {
	if r.InitialWeight == nil || r.FinalWeight == nil {
		return decimal.Zero
	}
	return r.FinalWeight.Sub(*r.InitialWeight).Abs()
}

// NormalizePlate: trim, верхний регистр, без пробелов внутри.
func NormalizePlate(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, raw)
}

func WeightInRange(w decimal.Decimal) bool {
	return w.GreaterThanOrEqual(MinWeight) && w.LessThanOrEqual(MaxWeight)
}

// Weighing — вес и (опционально) локальное время взвешивания в поясе инспекции.
type Weighing struct {
	Weight *decimal.Decimal
	At     *time.Time
}

type CreateRecordInput struct {
	InspectionID uint64   `validate:"required"`
	PlateNumber  string   `validate:"required,max=64"`
	Initial      Weighing `validate:"-"`
	Final        Weighing `validate:"-"`
}

type EditRecordInput struct {
	RecordID    uint64   `validate:"required"`
	PlateNumber string   `validate:"required,max=64"`
	Initial     Weighing `validate:"-"`
	Final       Weighing `validate:"-"`
	BerthNote   *string  `validate:"omitempty,max=1000"`
}

// RecordFilter — фильтр списка машин. From/To — локальное время инспекции.
type RecordFilter struct {
	From       *time.Time
	To         *time.Time
	Descending bool
	Page       int
	PageSize   int
}
