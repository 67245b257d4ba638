package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ttms/core/store"
	"github.com/kilianp07/ttms/core/store/storetest"
	"github.com/kilianp07/ttms/infra/logger"
	"github.com/kilianp07/ttms/infra/store/sqlstore"
)

func openTemp(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "ttms.db"), logger.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreCompliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openTemp(t) })
}

func TestInMemory(t *testing.T) {
	s, err := Open(context.Background(), ":memory:", logger.NopLogger{})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	id := storetest.SeedTimetable(t, s)
	_, err = s.GetTimetable(context.Background(), id)
	require.NoError(t, err)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "file::memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate", DSN(""))
	assert.Equal(t, "file:/tmp/a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate", DSN("/tmp/a.db"))
	assert.Equal(t, "file:x.db?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate", DSN("file:x.db?cache=shared"))
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttms.db")
	s, err := Open(context.Background(), path, logger.NopLogger{})
	require.NoError(t, err)
	id := storetest.SeedTimetable(t, s)
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), path, logger.NopLogger{})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	tt, err := s.GetTimetable(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Winter 2025", tt.Name)
}

func TestConcurrentTransactionsSerialise(t *testing.T) {
	s := openTemp(t)
	ttID := storetest.SeedTimetable(t, s)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(train int64) {
			defer wg.Done()
			err := s.WithTx(ctx, func(tx store.Tx) error {
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
