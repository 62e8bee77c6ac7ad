package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultTimeZoneID = "UTC"

type Inspection struct {
	ID                  uint64
	OwnerID             string
	Vessel              string
	Cargo               string
	Place               string
	DeclaredTotalWeight *decimal.Decimal
	CreatedAt           time.Time
	TimeZoneID          string
	Notes               *string
	LogoID              *string
}

type InspectionInput struct {
	Vessel              string           `validate:"max=256"`
	Cargo               string           `validate:"max=256"`
	Place               string           `validate:"max=256"`
	DeclaredTotalWeight *decimal.Decimal `validate:"-"`
	TimeZoneID          string           `validate:"max=64"`
	Notes               *string          `validate:"omitempty,max=4000"`
	LogoID              *string          `validate:"omitempty,max=128"`
}

// InspectionSummary — производные величины, в БД не хранятся.
type InspectionSummary struct {
	RecordCount        int
	WeighedTotalWeight decimal.Decimal
	DifferenceWeight   decimal.Decimal
	DifferencePercent  decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

func Summarize(declared *decimal.Decimal, records []*TruckRecord) InspectionSummary {
	out := InspectionSummary{RecordCount: len(records)}
	for _, r := range records {
		out.WeighedTotalWeight = out.WeighedTotalWeight.Add(r.NetWeight())
	}
	if declared == nil {
		return out
	}
	out.DifferenceWeight = out.WeighedTotalWeight.Sub(*declared)
	if declared.IsZero() {
		return out
	}
	out.DifferencePercent = out.DifferenceWeight.Mul(hundred).Div(*declared)
	return out
}

// PeriodStats — количество и суммарный нетто по записям, где есть оба веса.
type PeriodStats struct {
	Count     int
	NetWeight decimal.Decimal
}

func CalcPeriodStats(records []*TruckRecord) PeriodStats {
	var st PeriodStats
	for _, r := range records {
		if r.InitialWeight == nil || r.FinalWeight == nil {
			continue
		}
		st.Count++
		st.NetWeight = st.NetWeight.Add(r.NetWeight())
	}
	return st
}
