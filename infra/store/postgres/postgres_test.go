package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ttms/core/store"
	"github.com/kilianp07/ttms/core/store/storetest"
	"github.com/kilianp07/ttms/infra/logger"
	"github.com/kilianp07/ttms/infra/store/sqlstore"
	"github.com/kilianp07/ttms/test/util"
)

// dsnForTest returns TTMS_POSTGRES_DSN or starts a disposable container.
func dsnForTest(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres tests skipped in -short mode")
	}
	if dsn := os.Getenv("TTMS_POSTGRES_DSN"); dsn != "" {
		return dsn
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	dsn, cleanup, err := util.StartPostgres(ctx)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(cleanup)
	return dsn
}

func openClean(t *testing.T, dsn string) *sqlstore.Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, dsn, logger.NopLogger{})
	require.NoError(t, err)
	_, err = s.DB().ExecContext(ctx, `TRUNCATE conflicts, train_positions, schedule_stops, train_schedules,
		timetables, track_locks, routes, trains, stations, train_types RESTART IDENTITY`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreCompliance(t *testing.T) {
	dsn := dsnForTest(t)
	storetest.Run(t, func(t *testing.T) store.Store { return openClean(t, dsn) })
}

func TestTrackLockSerialisesWriters(t *testing.T) {
	dsn := dsnForTest(t)
	s := openClean(t, dsn)
	ttID := storetest.SeedTimetable(t, s)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(train int64) {
			defer wg.Done()
			err := s.WithTx(ctx, func(tx store.Tx) error {
				if err := tx.LockTracks(ctx, store.TrackKey{Track: "T1", Date: storetest.Base}); err != nil {
					return err
				}
				existing, err := tx.ListTrackSchedules(ctx, "T1", storetest.Base, nil)
				if err != nil || len(existing) > 0 {
					return err
				}
				_, err = tx.InsertSchedule(ctx, storetest.NewSchedule(ttID, train, "T1", storetest.At(8, 0), storetest.At(9, 0)))
				return err
			})
			assert.NoError(t, err)
		}(int64(i + 1))
	}
	wg.Wait()

	all, err := s.ListSchedules(ctx, store.ScheduleFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
