// Package storetests holds behavioural tests shared by every [types.Store]
// backend. Backends call [RunAll] from their own test files, against an
// in-process fake in unit tests or a real service in integration tests.
//
// The tests wipe the store between cases, so never point them at data you
// want to keep.
package storetests

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quititoday/clickstats/clicks"
	"github.com/quititoday/clickstats/keys"
	"github.com/quititoday/clickstats/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Store is a backend that can be wiped between test cases.
type Store interface {
	types.Store
	DropAllData(ctx context.Context) error
}

// Start is the first timestamp handed out by the test clock.
var Start = time.Date(2025, 10, 2, 8, 0, 0, 0, time.UTC)

// RunAll runs every shared test against store, sequentially.
func RunAll(t *testing.T, store Store) {
	t.Helper()

	t.Run("EmptyTotalIsZero", func(t *testing.T) { TestEmptyTotalIsZero(t, store) })
	t.Run("RecordClickExample", func(t *testing.T) { TestRecordClickExample(t, store) })
	t.Run("ConcurrentRecordClick", func(t *testing.T) { TestConcurrentRecordClick(t, store) })
	t.Run("ConcurrentSameSubject", func(t *testing.T) { TestConcurrentSameSubject(t, store) })
	t.Run("FixedClockKeepsEveryEvent", func(t *testing.T) { TestFixedClockKeepsEveryEvent(t, store) })
	t.Run("RealClockKeepsEveryEvent", func(t *testing.T) { TestRealClockKeepsEveryEvent(t, store) })
	t.Run("ListNewestFirst", func(t *testing.T) { TestListNewestFirst(t, store) })
	t.Run("ListInRangeIsSubset", func(t *testing.T) { TestListInRangeIsSubset(t, store) })
	t.Run("InvertedRangeRejected", func(t *testing.T) { TestInvertedRangeRejected(t, store) })
	t.Run("ListClicksByDate", func(t *testing.T) { TestListClicksByDate(t, store) })
	t.Run("DailyStat", func(t *testing.T) { TestDailyStat(t, store) })
	t.Run("MonthlyStat", func(t *testing.T) { TestMonthlyStat(t, store) })
	t.Run("StatNotFound", func(t *testing.T) { TestStatNotFound(t, store) })
	t.Run("ReservedSubjectRejected", func(t *testing.T) { TestReservedSubjectRejected(t, store) })
	t.Run("Rollups", func(t *testing.T) { TestRollups(t, store) })
	t.Run("StoreContract", func(t *testing.T) { TestStoreContract(t, store) })
}

// TestEmptyTotalIsZero checks that the total of an empty store is 0, not an
// error.
func TestEmptyTotalIsZero(t *testing.T, store Store) {
	svc := newService(t, store)

	total, err := svc.GetTotalClicks(t.Context())

	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

// TestRecordClickExample records user-001, user-002, user-001 and checks the
// total and the per-user listing.
func TestRecordClickExample(t *testing.T, store Store) {
	svc := newService(t, store)
	ctx := t.Context()

	first, err := svc.RecordClick(ctx, "user-001")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.TotalClicks)
	assert.Equal(t, "user-001", first.SubjectID)
	assert.Equal(t, keys.DateOf(first.Timestamp), first.Date)

	_, err = svc.RecordClick(ctx, "user-002")
	require.NoError(t, err)

	third, err := svc.RecordClick(ctx, "user-001")
	require.NoError(t, err)
	assert.Equal(t, int64(3), third.TotalClicks)

	total, err := svc.GetTotalClicks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	rows, err := svc.ListClicksForSubject(ctx, "user-001")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, third.Timestamp, rows[0].SortKey)
	assert.Equal(t, first.Timestamp, rows[1].SortKey)

	for _, row := range rows {
		assert.Equal(t, int64(1), row.ClickCount)
		assert.Equal(t, keys.DatePrefix+keys.DateOf(row.SortKey), row.DateKey)
		assert.Equal(t, keys.ClickPrefix+row.SortKey+"#user-001", row.RecordSort)
	}

	none, err := svc.ListClicksForSubject(ctx, "user-404")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

// TestConcurrentRecordClick records clicks from many goroutines and checks
// that no increment and no event is lost.
func TestConcurrentRecordClick(t *testing.T, store Store) {
	const workers, perWorker = 8, 5

	svc := newService(t, store)

	subjects := make([]string, 0, workers)
	for w := range workers {
		subjects = append(subjects, fmt.Sprintf("user-%03d", w))
	}

	recordConcurrently(t, perWorker, func() *clicks.Service { return svc }, subjects...)

	assertLogMatchesTotal(t, svc, workers*perWorker, subjects...)
}

// TestConcurrentSameSubject records clicks for one subject from several
// services sharing a frozen clock, so every service first tries the same
// event key.
func TestConcurrentSameSubject(t *testing.T, store Store) {
	const services, perService = 3, 3

	reset(t, store)

	frozen := func() time.Time { return Start }

	var pool []*clicks.Service

	for range services {
		svc, err := clicks.New(store, clicks.WithClock(frozen))
		require.NoError(t, err)

		pool = append(pool, svc)
	}

	var next atomic.Int64

	subjects := make([]string, services)
	for i := range subjects {
		subjects[i] = "user-001"
	}

	recordConcurrently(t, perService, func() *clicks.Service {
		return pool[int(next.Add(1)-1)%services]
	}, subjects...)

	assertLogMatchesTotal(t, pool[0], services*perService, "user-001")
}

// TestFixedClockKeepsEveryEvent records several clicks at one instant and
// checks that each gets its own row.
func TestFixedClockKeepsEveryEvent(t *testing.T, store Store) {
	const n = 5

	reset(t, store)

	svc, err := clicks.New(store, clicks.WithClock(func() time.Time { return Start }))
	require.NoError(t, err)

	for range n {
		_, err := svc.RecordClick(t.Context(), "user-001")
		require.NoError(t, err)
	}

	assertLogMatchesTotal(t, svc, n, "user-001")
}

// TestRealClockKeepsEveryEvent records back-to-back clicks with the wall
// clock, which repeats milliseconds.
func TestRealClockKeepsEveryEvent(t *testing.T, store Store) {
	const n = 50

	reset(t, store)

	svc, err := clicks.New(store)
	require.NoError(t, err)

	for range n {
		_, err := svc.RecordClick(t.Context(), "user-001")
		require.NoError(t, err)
	}

	assertLogMatchesTotal(t, svc, n, "user-001")
}

// TestListNewestFirst checks that a subject's events come back in strictly
// decreasing timestamp order.
func TestListNewestFirst(t *testing.T, store Store) {
	svc := newService(t, store)
	ctx := t.Context()

	for range 6 {
		_, err := svc.RecordClick(ctx, "user-001")
		require.NoError(t, err)
	}

	rows, err := svc.ListClicksForSubject(ctx, "user-001")
	require.NoError(t, err)
	require.Len(t, rows, 6)

	for i := 1; i < len(rows); i++ {
		assert.Greater(t, rows[i-1].SortKey, rows[i].SortKey, "rows %d and %d out of order", i-1, i)
	}
}

// TestListInRangeIsSubset checks that a range listing is exactly the part of
// the full listing inside the bounds.
func TestListInRangeIsSubset(t *testing.T, store Store) {
	svc := newService(t, store)
	ctx := t.Context()

	for range 10 {
		_, err := svc.RecordClick(ctx, "user-001")
		require.NoError(t, err)
	}

	all, err := svc.ListClicksForSubject(ctx, "user-001")
	require.NoError(t, err)
	require.Len(t, all, 10)

	// all is newest first, so all[7] is the third oldest.
	start, end := all[7].SortKey, all[2].SortKey

	ranged, err := svc.ListClicksInRange(ctx, "user-001", start, end)
	require.NoError(t, err)

	var want []string

	for _, row := range all {
		if row.SortKey >= start && row.SortKey <= end {
			want = append(want, row.SortKey)
		}
	}

	got := make([]string, 0, len(ranged))
	for _, row := range ranged {
		got = append(got, row.SortKey)
	}

	assert.Equal(t, want, got)
	assert.Len(t, got, 6)

	day, err := svc.ListClicksInRange(ctx, "user-001", keys.DateOf(start), keys.DateOf(start))
	require.NoError(t, err)
	assert.Len(t, day, 10)
}

// TestInvertedRangeRejected checks that start > end is a validation error.
func TestInvertedRangeRejected(t *testing.T, store Store) {
	svc := newService(t, store)

	_, err := svc.ListClicksInRange(t.Context(), "user-001", "2025-10-05", "2025-10-01")

	require.ErrorIs(t, err, types.ErrValidation)
}

// TestListClicksByDate checks that the DateIndex returns the events of one
// date across subjects and nothing else.
func TestListClicksByDate(t *testing.T, store Store) {
	ctx := t.Context()

	reset(t, store)

	day1, err := clicks.New(store, clicks.WithClock(steppingClock(Start)), clicks.WithRollups(true))
	require.NoError(t, err)

	day2, err := clicks.New(store, clicks.WithClock(steppingClock(Start.AddDate(0, 0, 1))))
	require.NoError(t, err)

	for _, subjectID := range []string{"user-001", "user-002", "user-003"} {
		_, err := day1.RecordClick(ctx, subjectID)
		require.NoError(t, err)
	}

	_, err = day2.RecordClick(ctx, "user-001")
	require.NoError(t, err)

	rows, err := day1.ListClicksByDate(ctx, "2025-10-02")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	subjects := map[string]bool{}
	for _, row := range rows {
		assert.Equal(t, "DATE#2025-10-02", row.DateKey)
		subjects[row.PartitionKey] = true
	}

	assert.Len(t, subjects, 3)

	next, err := day1.ListClicksByDate(ctx, "2025-10-03")
	require.NoError(t, err)
	assert.Len(t, next, 1)

	empty, err := day1.ListClicksByDate(ctx, "2025-01-01")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

// TestDailyStat checks that M upserts of k yield k*M with derived index keys.
func TestDailyStat(t *testing.T, store Store) {
	const k, m = 3, 4

	svc := newService(t, store)
	ctx := t.Context()

	for i := range m {
		row, err := svc.UpsertDailyStat(ctx, "2025-10-02", k)
		require.NoError(t, err)
		assert.Equal(t, int64(k*(i+1)), row.TotalClicks)
		assert.Equal(t, "DATE#2025-10-02", row.DateKey)
		assert.Equal(t, "STAT#DAILY", row.RecordSort)
	}

	row, err := svc.GetDailyStat(ctx, "2025-10-02")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(k*m), row.TotalClicks)
	assert.Equal(t, "STAT#DAILY", row.PartitionKey)
	assert.Equal(t, "2025-10-02", row.SortKey)
	assert.Equal(t, "DATE#2025-10-02", row.DateKey)
	assert.Equal(t, "STAT#DAILY", row.RecordSort)

	twice := newService(t, store)

	_, err = twice.UpsertDailyStat(ctx, "2025-10-02", 1)
	require.NoError(t, err)
	_, err = twice.UpsertDailyStat(ctx, "2025-10-02", 1)
	require.NoError(t, err)

	row, err = twice.GetDailyStat(ctx, "2025-10-02")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(2), row.TotalClicks)

	_, err = twice.UpsertDailyStat(ctx, "2025-10-02", 0)
	require.ErrorIs(t, err, types.ErrValidation)
}

// TestMonthlyStat mirrors [TestDailyStat] for months.
func TestMonthlyStat(t *testing.T, store Store) {
	svc := newService(t, store)
	ctx := t.Context()

	for range 5 {
		_, err := svc.UpsertMonthlyStat(ctx, "2025-10", 2)
		require.NoError(t, err)
	}

	row, err := svc.GetMonthlyStat(ctx, "2025-10")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(10), row.TotalClicks)
	assert.Equal(t, "MONTH#2025-10", row.DateKey)
	assert.Equal(t, "STAT#MONTHLY", row.RecordSort)

	_, err = svc.GetMonthlyStat(ctx, "2025-13")
	require.ErrorIs(t, err, types.ErrValidation)
}

// TestStatNotFound checks that missing rollups are nil, not errors.
func TestStatNotFound(t *testing.T, store Store) {
	svc := newService(t, store)
	ctx := t.Context()

	daily, err := svc.GetDailyStat(ctx, "2025-10-02")
	require.NoError(t, err)
	assert.Nil(t, daily)

	monthly, err := svc.GetMonthlyStat(ctx, "2025-10")
	require.NoError(t, err)
	assert.Nil(t, monthly)
}

// TestReservedSubjectRejected checks that aggregate partition keys cannot be
// used as subject ids and that nothing is written.
func TestReservedSubjectRejected(t *testing.T, store Store) {
	svc := newService(t, store)
	ctx := t.Context()

	for _, subjectID := range []string{keys.TotalPartition, keys.DailyPartition, "STAT#anything", "", "a\x00b", "bad-\xff"} {
		_, err := svc.RecordClick(ctx, subjectID)
		require.ErrorIs(t, err, types.ErrValidation, "subject %q", subjectID)
	}

	total, err := svc.GetTotalClicks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

// TestRollups checks that a service with rollups enabled maintains daily and
// monthly rows alongside the total.
func TestRollups(t *testing.T, store Store) {
	ctx := t.Context()

	reset(t, store)

	svc, err := clicks.New(store, clicks.WithClock(steppingClock(Start)), clicks.WithRollups(true))
	require.NoError(t, err)

	for range 3 {
		_, err := svc.RecordClick(ctx, "user-001")
		require.NoError(t, err)
	}

	daily, err := svc.GetDailyStat(ctx, "2025-10-02")
	require.NoError(t, err)
	require.NotNil(t, daily)
	assert.Equal(t, int64(3), daily.TotalClicks)

	monthly, err := svc.GetMonthlyStat(ctx, "2025-10")
	require.NoError(t, err)
	require.NotNil(t, monthly)
	assert.Equal(t, int64(3), monthly.TotalClicks)

	total, err := svc.GetTotalClicks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

// TestStoreContract exercises the raw store primitives.
func TestStoreContract(t *testing.T, store Store) {
	ctx := t.Context()

	reset(t, store)

	key := types.Key{PartitionKey: "user-001", SortKey: "2025-10-02T08:00:00.000Z"}

	missing, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, missing)

	event := &types.Record{
		Key:        key,
		IndexKeys:  types.IndexKeys{DateKey: "DATE#2025-10-02", RecordSort: "CLICK#2025-10-02T08:00:00.000Z#user-001"},
		ClickCount: 1,
	}

	require.NoError(t, store.Create(ctx, event))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *event, *got)

	clash := *event
	clash.ClickCount = 9
	require.ErrorIs(t, store.Create(ctx, &clash), types.ErrStoreWriteConflict)

	got, err = store.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *event, *got)

	replaced := *event
	replaced.ClickCount = 3
	require.NoError(t, store.Put(ctx, &replaced))

	got, err = store.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.ClickCount)

	added, err := store.Add(ctx, &types.AddInput{Key: keys.TotalStatKeys().Key, Field: types.AttrTotalClicks, Delta: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(5), added.TotalClicks)
	assert.Empty(t, added.DateKey)

	added, err = store.Add(ctx, &types.AddInput{Key: keys.TotalStatKeys().Key, Field: types.AttrTotalClicks, Delta: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(7), added.TotalClicks)

	_, err = store.Add(ctx, &types.AddInput{Key: key, Field: "userId", Delta: 1})
	require.ErrorIs(t, err, types.ErrValidation)

	_, err = store.Query(ctx, &types.QueryInput{IndexName: "NoSuchIndex", PartitionValue: "x"})
	require.ErrorIs(t, err, types.ErrValidation)
}

// recordConcurrently starts one goroutine per subject, each recording
// perWorker clicks through the service that pick returns.
func recordConcurrently(t *testing.T, perWorker int, pick func() *clicks.Service, subjects ...string) {
	t.Helper()

	ctx := t.Context()

	var wg sync.WaitGroup

	errs := make(chan error, len(subjects)*perWorker)

	for _, subjectID := range subjects {
		svc := pick()

		wg.Go(func() {
			for range perWorker {
				if _, err := svc.RecordClick(ctx, subjectID); err != nil {
					errs <- err
				}
			}
		})
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

// assertLogMatchesTotal checks that the total and the number of event rows
// of the distinct subjects both equal want.
func assertLogMatchesTotal(t *testing.T, svc *clicks.Service, want int, subjects ...string) {
	t.Helper()

	ctx := t.Context()

	total, err := svc.GetTotalClicks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(want), total)

	seen := map[string]bool{}
	rows := 0

	for _, subjectID := range subjects {
		if seen[subjectID] {
			continue
		}

		seen[subjectID] = true

		records, err := svc.ListClicksForSubject(ctx, subjectID)
		require.NoError(t, err)

		rows += len(records)
	}

	assert.Equal(t, want, rows)
}

func newService(t *testing.T, store Store) *clicks.Service {
	t.Helper()

	reset(t, store)

	svc, err := clicks.New(store, clicks.WithClock(steppingClock(Start)))
	require.NoError(t, err)

	return svc
}

func reset(t *testing.T, store Store) {
	t.Helper()

	require.NoError(t, store.DropAllData(context.Background()))
}

// steppingClock returns a clock that advances one millisecond per call, so
// every recorded event gets a distinct timestamp.
func steppingClock(start time.Time) func() time.Time {
	var n atomic.Int64

	return func() time.Time {
		return start.Add(time.Duration(n.Add(1)-1) * time.Millisecond)
	}
}
