package reports

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/BearBump/TruckTally/internal/services/trucks"
	"github.com/BearBump/TruckTally/internal/tracker"
	"github.com/BearBump/TruckTally/internal/tz"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
)

type RecordLister interface {
	ListRecords(ctx context.Context, actor models.Actor, inspectionID uint64, f models.RecordFilter) (*trucks.RecordList, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Service struct {
	records RecordLister
	rl      RateLimiter

	limitPerMinute int64
	now            func() time.Time
}

// New: rl == nil или limitPerMinute <= 0 отключают ограничение.
func New(records RecordLister, rl RateLimiter, limitPerMinute int) *Service {
	return &Service{records: records, rl: rl, limitPerMinute: int64(limitPerMinute), now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Request — параметры выгрузки. From/To в локальном времени инспекции,
// при PrintAll игнорируются.
type Request struct {
	InspectionID uint64
	PrintAll     bool
	From         *time.Time
	To           *time.Time
	IncludeTimes bool
}

func (r Request) period() bool {
	return !r.PrintAll && (r.From != nil || r.To != nil)
}

type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// sheet — всё, что нужно обоим форматам.
type sheet struct {
	inspection   *models.Inspection
	rows         []row
	includeTimes bool
	summary      models.InspectionSummary
	period       *periodStats
}

type row struct {
	serial       int
	plate        string
	initial      *decimal.Decimal
	initialLocal *time.Time
	final        *decimal.Decimal
	finalLocal   *time.Time
	net          decimal.Decimal
}

type periodStats struct {
	stats models.PeriodStats
	from  *time.Time
	to    *time.Time
}

func (s *Service) Excel(ctx context.Context, actor models.Actor, req Request) (*File, error) {
	sh, err := s.load(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	body, err := buildWorkbook(sh)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("Trucks_%d_All.xlsx", sh.inspection.ID)
	if req.period() {
		name = fmt.Sprintf("Trucks_%d_%s_%s.xlsx", sh.inspection.ID, stamp(req.From, "20060102-1504"), stamp(req.To, "20060102-1504"))
	}
	slog.Info("excel export built", "inspection_id", sh.inspection.ID, "rows", len(sh.rows), "bytes", len(body))
	return &File{Name: name, ContentType: ContentTypeXLSX, Body: body}, nil
}

func (s *Service) PDF(ctx context.Context, actor models.Actor, req Request) (*File, error) {
	sh, err := s.load(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	body, err := buildPDF(sh)
	if err != nil {
		return nil, err
	}

	vessel := fileSafe(sh.inspection.Vessel)
	name := fmt.Sprintf("Tally_%s_All.pdf", vessel)
	if req.period() {
		now := tz.FromUTC(s.now().UTC(), tz.Resolve(sh.inspection.TimeZoneID))
		name = fmt.Sprintf("Tally_%s_%s_period_from_%s_till_%s.pdf",
			vessel, now.Format("2006-01-02-1504"), stamp(req.From, "2006-01-02-1504"), stamp(req.To, "2006-01-02-1504"))
	}
	slog.Info("pdf export built", "inspection_id", sh.inspection.ID, "rows", len(sh.rows), "bytes", len(body))
	return &File{Name: name, ContentType: ContentTypePDF, Body: body}, nil
}

func (s *Service) load(ctx context.Context, actor models.Actor, req Request) (*sheet, error) {
	if req.InspectionID == 0 {
		return nil, models.Validationf("inspection id is required")
	}
	if err := s.allow(ctx, actor); err != nil {
		return nil, err
	}

	f := models.RecordFilter{PageSize: tracker.PageSizeAll}
	if req.period() {
		f.From, f.To = req.From, req.To
	}
	list, err := s.records.ListRecords(ctx, actor, req.InspectionID, f)
	if err != nil {
		return nil, err
	}

	// итог по инспекции считается по всем машинам, не только по периоду
	all := list
	if list.Filtered() {
		if all, err = s.records.ListRecords(ctx, actor, req.InspectionID, models.RecordFilter{PageSize: tracker.PageSizeAll}); err != nil {
			return nil, err
		}
	}

	sh := &sheet{
		inspection:   list.Inspection,
		includeTimes: req.IncludeTimes,
		summary:      models.Summarize(list.Inspection.DeclaredTotalWeight, all.Records),
	}
	if list.Filtered() {
		sh.period = &periodStats{stats: list.Stats, from: req.From, to: req.To}
	}

	loc := tz.Resolve(list.Inspection.TimeZoneID)
	sh.rows = make([]row, 0, len(list.Records))
	for _, r := range list.Records {
		sh.rows = append(sh.rows, row{
			serial:       r.SerialNumber,
			plate:        r.PlateNumber,
			initial:      r.InitialWeight,
			initialLocal: localPtr(r.InitialWeightAt, loc),
			final:        r.FinalWeight,
			finalLocal:   localPtr(r.FinalWeightAt, loc),
			net:          r.NetWeight(),
		})
	}
	return sh, nil
}

func (s *Service) allow(ctx context.Context, actor models.Actor) error {
	if s.rl == nil || s.limitPerMinute <= 0 {
		return nil
	}
	key := fmt.Sprintf("rl:export:%s:%s", actor.UserID, s.now().UTC().Format("200601021504"))
	allowed, n, err := s.rl.Allow(ctx, key, s.limitPerMinute, 70*time.Second)
	if err != nil {
		return err
	}
	if !allowed {
		slog.Warn("export rate limit exceeded", "user_id", actor.UserID, "count", n)
		return errors.Wrapf(models.ErrRateLimited, "at most %d exports per minute", s.limitPerMinute)
	}
	return nil
}

func localPtr(t *time.Time, loc *time.Location) *time.Time {
	if t == nil {
		return nil
	}
	v := tz.FromUTC(*t, loc)
	return &v
}

func stamp(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.Format(layout)
}

// fileSafe убирает из названия судна символы, недопустимые в имени файла.
func fileSafe(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "Unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
}

func fmtWeight(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(3)
}

func fmtLocal(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}
