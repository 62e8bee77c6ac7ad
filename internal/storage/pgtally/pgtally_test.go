package pgtally

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container is skipped in -short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "tally_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/tally_test?sslmode=disable"

	// порт слушается чуть раньше, чем postgres принимает соединения
	var st *Storage
	require.Eventually(t, func() bool {
		st, err = New(dsn)
		return err == nil
	}, 30*time.Second, 500*time.Millisecond)
	t.Cleanup(st.Close)
	return st
}

func addRecord(ctx context.Context, st *Storage, inspectionID uint64, plate string) (*models.TruckRecord, error) {
	var created *models.TruckRecord
	err := st.WithInspectionLock(ctx, inspectionID, func(ctx context.Context, tx LockedInspection) error {
		n, err := tx.MaxSerialNumber(ctx)
		if err != nil {
			return err
		}
		r := &models.TruckRecord{SerialNumber: n + 1, PlateNumber: plate}
		if err := tx.InsertTruckRecord(ctx, r); err != nil {
			return err
		}
		created = r
		return tx.AppendEvent(ctx, &models.RecordEvent{
			InspectionID: inspectionID, RecordID: r.ID, Kind: models.RecordEventCreated,
			SerialNumber: r.SerialNumber, PlateNumber: plate, ActorID: "u1",
		})
	})
	return created, err
}

func serials(t *testing.T, st *Storage, inspectionID uint64) []int {
	t.Helper()
	rs, err := st.ListTruckRecords(context.Background(), inspectionID)
	require.NoError(t, err)
	out := make([]int, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.SerialNumber)
	}
	return out
}

func TestPGTally_RepoFlow(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	declared := decimal.RequireFromString("1000.5")
	insp := &models.Inspection{OwnerID: "u1", Vessel: "MV Test", DeclaredTotalWeight: &declared, TimeZoneID: "Europe/Berlin"}
	require.NoError(t, st.CreateInspection(ctx, insp))
	require.NotZero(t, insp.ID)

	got, err := st.GetInspection(ctx, insp.ID)
	require.NoError(t, err)
	require.Equal(t, "MV Test", got.Vessel)
	require.True(t, got.DeclaredTotalWeight.Equal(declared))

	_, err = st.GetInspection(ctx, insp.ID+1000)
	require.True(t, errors.Is(err, models.ErrNotFound))

	t.Run("parallel inserts get dense serials", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := addRecord(ctx, st, insp.ID, "AA1")
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, serials(t, st, insp.ID))
	})

	t.Run("delete shifts following serials", func(t *testing.T) {
		rs, err := st.ListTruckRecords(ctx, insp.ID)
		require.NoError(t, err)
		third := rs[2]
		var shifted int64

		err = st.WithInspectionLock(ctx, insp.ID, func(ctx context.Context, tx LockedInspection) error {
			r, err := tx.GetTruckRecord(ctx, third.ID)
			if err != nil {
				return err
			}
			if err := tx.DeleteTruckRecord(ctx, r.ID); err != nil {
				return err
			}
			n, err := tx.ShiftSerialNumbersDown(ctx, r.SerialNumber)
			if err != nil {
				return err
			}
			shifted = n
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, int64(7), shifted)
		require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, serials(t, st, insp.ID))

		// второй раз запись уже не найти
		err = st.WithInspectionLock(ctx, insp.ID, func(ctx context.Context, tx LockedInspection) error {
			_, err := tx.GetTruckRecord(ctx, third.ID)
			return err
		})
		require.True(t, errors.Is(err, models.ErrNotFound))
	})

	t.Run("failed callback rolls back", func(t *testing.T) {
		boom := errors.New("boom")
		err := st.WithInspectionLock(ctx, insp.ID, func(ctx context.Context, tx LockedInspection) error {
			if err := tx.InsertTruckRecord(ctx, &models.TruckRecord{SerialNumber: 10, PlateNumber: "ZZ9"}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		require.Len(t, serials(t, st, insp.ID), 9)
	})

	t.Run("lock on missing inspection", func(t *testing.T) {
		called := false
		err := st.WithInspectionLock(ctx, insp.ID+1000, func(ctx context.Context, tx LockedInspection) error {
			called = true
			return nil
		})
		require.True(t, errors.Is(err, models.ErrNotFound))
		require.False(t, called)
	})

	t.Run("query with range and stats", func(t *testing.T) {
		rs, err := st.ListTruckRecords(ctx, insp.ID)
		require.NoError(t, err)

		base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
		for i, r := range rs[:3] {
			in := decimal.NewFromInt(int64(20 + i))
			out := decimal.RequireFromString("10.250")
			at := base.Add(time.Duration(i) * time.Hour)
			fin := at.Add(30 * time.Minute)
			r.InitialWeight, r.InitialWeightAt = &in, &at
			r.FinalWeight, r.FinalWeightAt = &out, &fin
			require.NoError(t, st.UpdateTruckRecord(ctx, r, nil))
		}

		from := base.Add(30 * time.Minute)
		page, err := st.QueryTruckRecords(ctx, RecordQuery{InspectionID: insp.ID, FromUTC: &from})
		require.NoError(t, err)
		require.Equal(t, 2, page.Total)
		require.Equal(t, 2, page.Stats.Count)
		// (21-10.25) + (22-10.25)
		require.True(t, page.Stats.NetWeight.Equal(decimal.RequireFromString("22.5")), page.Stats.NetWeight.String())

		page, err = st.QueryTruckRecords(ctx, RecordQuery{InspectionID: insp.ID, Descending: true, Limit: 2, Offset: 2})
		require.NoError(t, err)
		require.Equal(t, 9, page.Total)
		require.Len(t, page.Records, 2)
		require.Equal(t, 7, page.Records[0].SerialNumber)
	})

	t.Run("cargo ops marks are conditional", func(t *testing.T) {
		rs, err := st.ListTruckRecords(ctx, insp.ID)
		require.NoError(t, err)
		weighed, unweighed := rs[0], rs[8]
		now := time.Now().UTC()

		ok, err := st.MarkCargoOpsStarted(ctx, unweighed.ID, now, nil)
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = st.MarkCargoOpsCompleted(ctx, weighed.ID, now, nil)
		require.NoError(t, err)
		require.False(t, ok)

		ev := &models.RecordEvent{InspectionID: insp.ID, RecordID: weighed.ID, Kind: models.RecordEventCargoOpsStarted, SerialNumber: 1, PlateNumber: "AA1"}
		ok, err = st.MarkCargoOpsStarted(ctx, weighed.ID, now, ev)
		require.NoError(t, err)
		require.True(t, ok)
		require.NotZero(t, ev.ID)

		ok, err = st.MarkCargoOpsStarted(ctx, weighed.ID, now, nil)
		require.NoError(t, err)
		require.False(t, ok)

		r, err := st.GetTruckRecord(ctx, weighed.ID)
		require.NoError(t, err)
		require.NotNil(t, r.InitialBerthAt)
	})

	t.Run("plate hints", func(t *testing.T) {
		_, err := addRecord(ctx, st, insp.ID, "BB_7")
		require.NoError(t, err)

		hints, err := st.PlateHints(ctx, insp.ID, "a", 20)
		require.NoError(t, err)
		require.Equal(t, []string{"AA1"}, hints)

		// "_" не работает как шаблон LIKE
		hints, err = st.PlateHints(ctx, insp.ID, "B_", 20)
		require.NoError(t, err)
		require.Equal(t, []string{"BB_7"}, hints)
		hints, err = st.PlateHints(ctx, insp.ID, "A_", 20)
		require.NoError(t, err)
		require.Empty(t, hints)
	})

	t.Run("outbox claim and lease", func(t *testing.T) {
		now := time.Now().UTC().Add(time.Minute)
		lease := 30 * time.Second

		claimed, err := st.ClaimPendingEvents(ctx, now, 100, lease)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(claimed), 10)
		for i := 1; i < len(claimed); i++ {
			require.Less(t, claimed[i-1].ID, claimed[i].ID)
		}

		// под lease события повторно не выдаются
		again, err := st.ClaimPendingEvents(ctx, now, 100, lease)
		require.NoError(t, err)
		require.Empty(t, again)

		require.NoError(t, st.MarkEventPublished(ctx, claimed[0].ID, now))
		require.NoError(t, st.MarkEventFailed(ctx, claimed[1].ID, now, "kafka down"))

		after, err := st.ClaimPendingEvents(ctx, now.Add(lease+time.Second), 100, lease)
		require.NoError(t, err)
		require.Len(t, after, len(claimed)-1)
		require.Equal(t, claimed[1].ID, after[0].ID)
		require.Equal(t, int32(1), after[0].Attempts)
		require.NotNil(t, after[0].LastError)

		evs, err := st.ListRecordEvents(ctx, insp.ID, 5, 0)
		require.NoError(t, err)
		require.Len(t, evs, 5)
		require.Greater(t, evs[0].ID, evs[1].ID)
	})

	t.Run("feedback tickets", func(t *testing.T) {
		f := &models.FeedbackTicket{UserID: "u1", UserEmail: "a@b.io", Message: "hello"}
		require.NoError(t, st.CreateFeedbackTicket(ctx, f))
		require.NotZero(t, f.ID)

		note := "answered"
		require.NoError(t, st.SetFeedbackNotes(ctx, f.ID, &note))
		got, err := st.GetFeedbackTicket(ctx, f.ID)
		require.NoError(t, err)
		require.Equal(t, "answered", *got.AdminNotes)

		list, err := st.ListFeedbackTickets(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, list, 1)
	})

	t.Run("inspections list and cascade delete", func(t *testing.T) {
		other := &models.Inspection{OwnerID: "u2", Vessel: "Other"}
		require.NoError(t, st.CreateInspection(ctx, other))
		require.Equal(t, models.DefaultTimeZoneID, other.TimeZoneID)

		mine, err := st.ListInspections(ctx, "u1", 10, 0)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		all, err := st.ListInspections(ctx, "", 10, 0)
		require.NoError(t, err)
		require.Len(t, all, 2)

		require.NoError(t, st.DeleteInspection(ctx, insp.ID))
		require.Empty(t, serials(t, st, insp.ID))
		require.True(t, errors.Is(st.DeleteInspection(ctx, insp.ID), models.ErrNotFound))
	})
}
