package trucks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/BearBump/TruckTally/internal/storage/pgtally"
	"github.com/pkg/errors"
)

// memStore ведёт себя как pgtally.Storage: блокировка инспекции — канал на 1,
// изменения внутри WithInspectionLock применяются только при успешном завершении.
type memStore struct {
	mu          sync.Mutex
	inspections map[uint64]*models.Inspection
	records     map[uint64]*models.TruckRecord
	events      []*models.RecordEvent
	locks       map[uint64]chan struct{}

	nextID    atomic.Uint64
	lockCalls atomic.Int64

	shiftErr    error
	afterInsert func()
}

func newMemStore(inspections ...*models.Inspection) *memStore {
	s := &memStore{
		inspections: map[uint64]*models.Inspection{},
		records:     map[uint64]*models.TruckRecord{},
		locks:       map[uint64]chan struct{}{},
	}
	for _, in := range inspections {
		s.inspections[in.ID] = in
	}
	return s
}

func (s *memStore) lockFor(id uint64) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[id] = l
	}
	return l
}

func copyRecord(r *models.TruckRecord) *models.TruckRecord {
	c := *r
	return &c
}

func (s *memStore) WithInspectionLock(ctx context.Context, inspectionID uint64, fn func(ctx context.Context, tx pgtally.LockedInspection) error) error {
	s.lockCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	in, ok := s.inspections[inspectionID]
	s.mu.Unlock()
	if !ok {
		return errors.Wrapf(models.ErrNotFound, "inspection %d", inspectionID)
	}

	lock := s.lockFor(inspectionID)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-lock }()

	tx := &memTx{store: s, in: in, records: map[uint64]*models.TruckRecord{}}
	s.mu.Lock()
	for id, r := range s.records {
		if r.InspectionID == inspectionID {
			tx.records[id] = copyRecord(r)
		}
	}
	s.mu.Unlock()

	err := fn(ctx, tx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.records {
		if r.InspectionID == inspectionID {
			delete(s.records, id)
		}
	}
	for id, r := range tx.records {
		s.records[id] = r
	}
	s.events = append(s.events, tx.events...)
	return nil
}

type memTx struct {
	store   *memStore
	in      *models.Inspection
	records map[uint64]*models.TruckRecord
	events  []*models.RecordEvent
}

func (t *memTx) Inspection() *models.Inspection { return t.in }

func (t *memTx) MaxSerialNumber(ctx context.Context) (int, error) {
	n := 0
	for _, r := range t.records {
		n = max(n, r.SerialNumber)
	}
	return n, nil
}

func (t *memTx) InsertTruckRecord(ctx context.Context, r *models.TruckRecord) error {
	r.ID = t.store.nextID.Add(1)
	r.InspectionID = t.in.ID
	r.UpdatedAt = r.CreatedAt
	t.records[r.ID] = copyRecord(r)
	if t.store.afterInsert != nil {
		t.store.afterInsert()
	}
	return nil
}

func (t *memTx) GetTruckRecord(ctx context.Context, id uint64) (*models.TruckRecord, error) {
	r, ok := t.records[id]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "truck record %d", id)
	}
	return copyRecord(r), nil
}

func (t *memTx) DeleteTruckRecord(ctx context.Context, id uint64) error {
	if _, ok := t.records[id]; !ok {
		return errors.Wrapf(models.ErrNotFound, "truck record %d", id)
	}
	delete(t.records, id)
	return nil
}

func (t *memTx) ShiftSerialNumbersDown(ctx context.Context, after int) (int64, error) {
	if t.store.shiftErr != nil {
		return 0, t.store.shiftErr
	}
	var n int64
	for _, r := range t.records {
		if r.SerialNumber > after {
			r.SerialNumber--
			n++
		}
	}
	return n, nil
}

func (t *memTx) AppendEvent(ctx context.Context, ev *models.RecordEvent) error {
	t.events = append(t.events, ev)
	return nil
}

func (s *memStore) GetInspection(ctx context.Context, id uint64) (*models.Inspection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.inspections[id]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "inspection %d", id)
	}
	return in, nil
}

func (s *memStore) GetTruckRecord(ctx context.Context, id uint64) (*models.TruckRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "truck record %d", id)
	}
	return copyRecord(r), nil
}

func (s *memStore) QueryTruckRecords(ctx context.Context, q pgtally.RecordQuery) (*pgtally.RecordPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*models.TruckRecord
	for _, r := range s.records {
		if r.InspectionID != q.InspectionID {
			continue
		}
		if q.FromUTC != nil && (r.InitialWeightAt == nil || r.InitialWeightAt.Before(*q.FromUTC)) {
			continue
		}
		if q.ToUTC != nil && (r.FinalWeightAt == nil || r.FinalWeightAt.After(*q.ToUTC)) {
			continue
		}
		all = append(all, copyRecord(r))
	}
	sort.Slice(all, func(i, j int) bool {
		if q.Descending {
			return all[i].SerialNumber > all[j].SerialNumber
		}
		return all[i].SerialNumber < all[j].SerialNumber
	})
	out := &pgtally.RecordPage{Total: len(all), Stats: models.CalcPeriodStats(all)}
	if q.Limit > 0 {
		lo := min(q.Offset, len(all))
		hi := min(lo+q.Limit, len(all))
		all = all[lo:hi]
	}
	out.Records = append([]*models.TruckRecord{}, all...)
	return out, nil
}

func (s *memStore) PlateHints(ctx context.Context, inspectionID uint64, term string, take int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	var out []string
	for _, r := range s.records {
		if r.InspectionID != inspectionID || !strings.Contains(r.PlateNumber, strings.ToUpper(term)) {
			continue
		}
		if _, ok := seen[r.PlateNumber]; ok {
			continue
		}
		seen[r.PlateNumber] = struct{}{}
		out = append(out, r.PlateNumber)
	}
	sort.Strings(out)
	if len(out) > take {
		out = out[:take]
	}
	return out, nil
}

func (s *memStore) UpdateTruckRecord(ctx context.Context, r *models.TruckRecord, ev *models.RecordEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[r.ID]
	if !ok {
		return errors.Wrapf(models.ErrNotFound, "truck record %d", r.ID)
	}
	upd := copyRecord(r)
	upd.SerialNumber = cur.SerialNumber
	upd.UpdatedAt = time.Now().UTC()
	s.records[r.ID] = upd
	s.events = append(s.events, ev)
	return nil
}

func (s *memStore) MarkCargoOpsStarted(ctx context.Context, recordID uint64, at time.Time, ev *models.RecordEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[recordID]
	if !ok || r.InitialBerthAt != nil || r.InitialWeightAt == nil {
		return false, nil
	}
	t := at.UTC()
	r.InitialBerthAt = &t
	s.events = append(s.events, ev)
	return true, nil
}

func (s *memStore) MarkCargoOpsCompleted(ctx context.Context, recordID uint64, at time.Time, ev *models.RecordEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[recordID]
	if !ok || r.FinalBerthAt != nil || r.InitialBerthAt == nil {
		return false, nil
	}
	t := at.UTC()
	r.FinalBerthAt = &t
	s.events = append(s.events, ev)
	return true, nil
}

func (s *memStore) ListRecordEvents(ctx context.Context, inspectionID uint64, limit, offset int) ([]*models.RecordEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.RecordEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].InspectionID == inspectionID {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

// serials — отсортированные номера записей инспекции.
func (s *memStore) serials(inspectionID uint64) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for _, r := range s.records {
		if r.InspectionID == inspectionID {
			out = append(out, r.SerialNumber)
		}
	}
	sort.Ints(out)
	return out
}

func (s *memStore) bySerial(inspectionID uint64) map[int]*models.TruckRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[int]*models.TruckRecord{}
	for _, r := range s.records {
		if r.InspectionID == inspectionID {
			out[r.SerialNumber] = copyRecord(r)
		}
	}
	return out
}

func (s *memStore) eventKinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}
