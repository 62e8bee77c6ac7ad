package tallyhttp

import (
	"time"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/BearBump/TruckTally/internal/services/inspections"
	"github.com/BearBump/TruckTally/internal/services/trucks"
	"github.com/BearBump/TruckTally/internal/tracker"
	"github.com/BearBump/TruckTally/internal/tz"
	"github.com/shopspring/decimal"
)

const localLayout = "2006-01-02T15:04:05"

type inspectionRequest struct {
	Vessel              string           `json:"vessel"`
	Cargo               string           `json:"cargo"`
	Place               string           `json:"place"`
	DeclaredTotalWeight *decimal.Decimal `json:"declaredTotalWeight"`
	TimeZoneID          string           `json:"timeZoneId"`
	Notes               *string          `json:"notes"`
	LogoID              *string          `json:"logoId"`
}

func (r inspectionRequest) toInput() models.InspectionInput {
	return models.InspectionInput{
		Vessel:              r.Vessel,
		Cargo:               r.Cargo,
		Place:               r.Place,
		DeclaredTotalWeight: r.DeclaredTotalWeight,
		TimeZoneID:          r.TimeZoneID,
		Notes:               r.Notes,
		LogoID:              r.LogoID,
	}
}

type inspectionDTO struct {
	ID                  uint64           `json:"id"`
	OwnerID             string           `json:"ownerId"`
	Vessel              string           `json:"vessel"`
	Cargo               string           `json:"cargo"`
	Place               string           `json:"place"`
	DeclaredTotalWeight *decimal.Decimal `json:"declaredTotalWeight,omitempty"`
	TimeZoneID          string           `json:"timeZoneId"`
	Notes               *string          `json:"notes,omitempty"`
	LogoID              *string          `json:"logoId,omitempty"`
	CreatedAt           time.Time        `json:"createdAt"`
	CreatedAtLocal      string           `json:"createdAtLocal"`
	Summary             *summaryDTO      `json:"summary,omitempty"`
}

type summaryDTO struct {
	RecordCount        int             `json:"recordCount"`
	WeighedTotalWeight decimal.Decimal `json:"weighedTotalWeight"`
	DifferenceWeight   decimal.Decimal `json:"differenceWeight"`
	DifferencePercent  decimal.Decimal `json:"differencePercent"`
}

func toInspectionDTO(in *models.Inspection) inspectionDTO {
	return inspectionDTO{
		ID:                  in.ID,
		OwnerID:             in.OwnerID,
		Vessel:              in.Vessel,
		Cargo:               in.Cargo,
		Place:               in.Place,
		DeclaredTotalWeight: in.DeclaredTotalWeight,
		TimeZoneID:          in.TimeZoneID,
		Notes:               in.Notes,
		LogoID:              in.LogoID,
		CreatedAt:           in.CreatedAt.UTC(),
		CreatedAtLocal:      tz.FromUTC(in.CreatedAt, tz.Resolve(in.TimeZoneID)).Format(localLayout),
	}
}

func toDetailsDTO(d *inspections.Details) inspectionDTO {
	out := toInspectionDTO(d.Inspection)
	out.Summary = &summaryDTO{
		RecordCount:        d.Summary.RecordCount,
		WeighedTotalWeight: d.Summary.WeighedTotalWeight.Round(3),
		DifferenceWeight:   d.Summary.DifferenceWeight.Round(3),
		DifferencePercent:  d.Summary.DifferencePercent.Round(3),
	}
	return out
}

type weighingDTO struct {
	Weight *decimal.Decimal `json:"weight"`
	// At — локальное время инспекции, без пояса.
	At string `json:"at,omitempty"`
}

func (w *weighingDTO) toModel() (models.Weighing, error) {
	if w == nil {
		return models.Weighing{}, nil
	}
	at, err := parseLocal(w.At)
	if err != nil {
		return models.Weighing{}, err
	}
	return models.Weighing{Weight: w.Weight, At: at}, nil
}

type createRecordRequest struct {
	PlateNumber string       `json:"plateNumber"`
	Initial     *weighingDTO `json:"initial"`
	Final       *weighingDTO `json:"final"`
}

type editRecordRequest struct {
	PlateNumber string       `json:"plateNumber"`
	Initial     *weighingDTO `json:"initial"`
	Final       *weighingDTO `json:"final"`
	BerthNote   *string      `json:"berthNote"`
}

type truckRecordDTO struct {
	ID                   uint64           `json:"id"`
	InspectionID         uint64           `json:"inspectionId"`
	SerialNumber         int              `json:"serialNumber"`
	PlateNumber          string           `json:"plateNumber"`
	Stage                tracker.Stage    `json:"stage"`
	InitialWeight        *decimal.Decimal `json:"initialWeight,omitempty"`
	InitialWeightAt      *time.Time       `json:"initialWeightAt,omitempty"`
	InitialWeightAtLocal string           `json:"initialWeightAtLocal,omitempty"`
	FinalWeight          *decimal.Decimal `json:"finalWeight,omitempty"`
	FinalWeightAt        *time.Time       `json:"finalWeightAt,omitempty"`
	FinalWeightAtLocal   string           `json:"finalWeightAtLocal,omitempty"`
	InitialBerthAt       *time.Time       `json:"initialBerthAt,omitempty"`
	FinalBerthAt         *time.Time       `json:"finalBerthAt,omitempty"`
	BerthNote            *string          `json:"berthNote,omitempty"`
	NetWeight            decimal.Decimal  `json:"netWeight"`
	CreatedAt            time.Time        `json:"createdAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`
}

// toRecordDTO: loc == nil — локальные поля не заполняются.
func toRecordDTO(r *models.TruckRecord, loc *time.Location) truckRecordDTO {
	return truckRecordDTO{
		ID:                   r.ID,
		InspectionID:         r.InspectionID,
		SerialNumber:         r.SerialNumber,
		PlateNumber:          r.PlateNumber,
		Stage:                tracker.StageOf(r),
		InitialWeight:        r.InitialWeight,
		InitialWeightAt:      r.InitialWeightAt,
		InitialWeightAtLocal: localString(r.InitialWeightAt, loc),
		FinalWeight:          r.FinalWeight,
		FinalWeightAt:        r.FinalWeightAt,
		FinalWeightAtLocal:   localString(r.FinalWeightAt, loc),
		InitialBerthAt:       r.InitialBerthAt,
		FinalBerthAt:         r.FinalBerthAt,
		BerthNote:            r.BerthNote,
		NetWeight:            r.NetWeight(),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func toRecordDTOs(rs []*models.TruckRecord, loc *time.Location) []truckRecordDTO {
	out := make([]truckRecordDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toRecordDTO(r, loc))
	}
	return out
}

func localString(t *time.Time, loc *time.Location) string {
	if t == nil || loc == nil {
		return ""
	}
	return tz.FromUTC(*t, loc).Format(localLayout)
}

type pageDTO struct {
	Number     int `json:"number"`
	Size       int `json:"size"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

func toPageDTO(p tracker.Page) pageDTO {
	return pageDTO{Number: p.Number, Size: p.Size, TotalItems: p.TotalItems, TotalPages: p.TotalPages}
}

type recordListDTO struct {
	Records []truckRecordDTO `json:"records"`
	Page    pageDTO          `json:"page"`
	Period  *periodDTO       `json:"period,omitempty"`
}

type periodDTO struct {
	FromUTC   *time.Time      `json:"fromUtc,omitempty"`
	ToUTC     *time.Time      `json:"toUtc,omitempty"`
	Count     int             `json:"count"`
	NetWeight decimal.Decimal `json:"netWeight"`
}

func toRecordListDTO(l *trucks.RecordList) recordListDTO {
	out := recordListDTO{
		Records: toRecordDTOs(l.Records, tz.Resolve(l.Inspection.TimeZoneID)),
		Page:    toPageDTO(l.Page),
	}
	if l.Filtered() {
		out.Period = &periodDTO{FromUTC: l.FromUTC, ToUTC: l.ToUTC, Count: l.Stats.Count, NetWeight: l.Stats.NetWeight}
	}
	return out
}

type durationsDTO struct {
	InitialToBerthStartSeconds *int64 `json:"initialToBerthStartSeconds,omitempty"`
	BerthStartToFinishSeconds  *int64 `json:"berthStartToFinishSeconds,omitempty"`
	BerthFinishToFinalSeconds  *int64 `json:"berthFinishToFinalSeconds,omitempty"`
	InitialToFinalSeconds      *int64 `json:"initialToFinalSeconds,omitempty"`
}

func seconds(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	v := int64(d.Seconds())
	return &v
}

type completedDTO struct {
	truckRecordDTO
	Durations durationsDTO `json:"durations"`
}

type boardDTO struct {
	AwaitingCargoOps      []truckRecordDTO `json:"awaitingCargoOps"`
	UnderCargoOps         []truckRecordDTO `json:"underCargoOps"`
	AwaitingFinalWeighing []truckRecordDTO `json:"awaitingFinalWeighing"`
	Completed             []completedDTO   `json:"completed"`
	CompletedPage         pageDTO          `json:"completedPage"`
}

func toBoardDTO(b *tracker.Board) boardDTO {
	out := boardDTO{
		AwaitingCargoOps:      toRecordDTOs(b.AwaitingCargoOps, nil),
		UnderCargoOps:         toRecordDTOs(b.UnderCargoOps, nil),
		AwaitingFinalWeighing: toRecordDTOs(b.AwaitingFinalWeighing, nil),
		Completed:             make([]completedDTO, 0, len(b.Completed)),
		CompletedPage:         toPageDTO(b.CompletedPage),
	}
	for _, c := range b.Completed {
		out.Completed = append(out.Completed, completedDTO{
			truckRecordDTO: toRecordDTO(c.Record, nil),
			Durations: durationsDTO{
				InitialToBerthStartSeconds: seconds(c.Durations.InitialToBerthStart),
				BerthStartToFinishSeconds:  seconds(c.Durations.BerthStartToFinish),
				BerthFinishToFinalSeconds:  seconds(c.Durations.BerthFinishToFinal),
				InitialToFinalSeconds:      seconds(c.Durations.InitialToFinal),
			},
		})
	}
	return out
}

type transitionDTO struct {
	Record  truckRecordDTO `json:"record"`
	Outcome string         `json:"outcome"`
}

type deleteResultDTO struct {
	AlreadyRemoved bool  `json:"alreadyRemoved"`
	SerialNumber   int   `json:"serialNumber,omitempty"`
	Renumbered     int64 `json:"renumbered"`
}

type eventDTO struct {
	EventID      string     `json:"eventId"`
	RecordID     uint64     `json:"recordId"`
	Kind         string     `json:"kind"`
	SerialNumber int        `json:"serialNumber"`
	PlateNumber  string     `json:"plateNumber"`
	ActorID      string     `json:"actorId,omitempty"`
	Payload      any        `json:"payload,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	PublishedAt  *time.Time `json:"publishedAt,omitempty"`
}

func toEventDTOs(evs []*models.RecordEvent) []eventDTO {
	out := make([]eventDTO, 0, len(evs))
	for _, e := range evs {
		d := eventDTO{
			EventID:      e.EventID,
			RecordID:     e.RecordID,
			Kind:         e.Kind,
			SerialNumber: e.SerialNumber,
			PlateNumber:  e.PlateNumber,
			ActorID:      e.ActorID,
			CreatedAt:    e.CreatedAt,
			PublishedAt:  e.PublishedAt,
		}
		if len(e.Payload) > 0 {
			d.Payload = e.Payload
		}
		out = append(out, d)
	}
	return out
}

type feedbackRequest struct {
	UserEmail string `json:"userEmail"`
	Message   string `json:"message"`
}

type feedbackNoteRequest struct {
	Note string `json:"note"`
}

type feedbackDTO struct {
	ID         uint64    `json:"id"`
	UserID     string    `json:"userId"`
	UserEmail  string    `json:"userEmail"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
	AdminNotes *string   `json:"adminNotes,omitempty"`
}

func toFeedbackDTO(f *models.FeedbackTicket) feedbackDTO {
	return feedbackDTO{
		ID:         f.ID,
		UserID:     f.UserID,
		UserEmail:  f.UserEmail,
		Message:    f.Message,
		CreatedAt:  f.CreatedAt,
		AdminNotes: f.AdminNotes,
	}
}
