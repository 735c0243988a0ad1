package clicks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quititoday/clickstats/keys"
	"github.com/quititoday/clickstats/types"
)

// ClickResult describes a recorded click.
type ClickResult struct {
	SubjectID   string `json:"userId"`
	Timestamp   string `json:"createDateTime"`
	Date        string `json:"date"`
	TotalClicks int64  `json:"totalClicks"`
}

// MaxCreateAttempts bounds how many timestamps [Service.RecordClick] tries
// for one click when the event key is already taken by another writer.
const MaxCreateAttempts = 10

// Service implements the click access patterns against a [types.Store].
type Service struct {
	store types.Store
	opts  *Options

	mu   sync.Mutex
	last time.Time
}

// New creates a Service backed by store. It returns an error if any option is
// invalid.
func New(store types.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}

	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("invalid clicks options: %w", err)
	}

	return &Service{store: store, opts: options}, nil
}

// RecordClick appends a click event for subjectID, stamped with the current
// UTC time, and increments the all-time total. The returned total is the
// value after this click's increment.
//
// Event rows are write-once. A Service never issues the same millisecond
// twice, and a key already taken by another writer moves the click to the
// next free millisecond, up to [MaxCreateAttempts] tries.
func (s *Service) RecordClick(ctx context.Context, subjectID string) (*ClickResult, error) {
	if err := keys.ValidateSubjectID(subjectID); err != nil {
		return nil, fmt.Errorf("record click: %w", err)
	}

	var timestamp string

	for attempt := 1; ; attempt++ {
		timestamp = keys.FormatTimestamp(s.nextTime())

		k, err := keys.EventKeys(subjectID, timestamp)
		if err != nil {
			return nil, fmt.Errorf("record click: %w", err)
		}

		err = s.create(ctx, &types.Record{Key: k.Key, IndexKeys: k.Index, ClickCount: 1})
		if err == nil {
			break
		}

		if !errors.Is(err, types.ErrStoreWriteConflict) || attempt == MaxCreateAttempts {
			return nil, fmt.Errorf("record click: failed to write event for %s: %w", subjectID, err)
		}
	}

	total, err := s.add(ctx, &types.AddInput{
		Key:   keys.TotalStatKeys().Key,
		Field: types.AttrTotalClicks,
		Delta: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("record click: failed to increment total: %w", err)
	}

	date := keys.DateOf(timestamp)

	if s.opts.rollups {
		if _, err := s.UpsertDailyStat(ctx, date, 1); err != nil {
			return nil, fmt.Errorf("record click: %w", err)
		}

		if _, err := s.UpsertMonthlyStat(ctx, keys.MonthOf(date), 1); err != nil {
			return nil, fmt.Errorf("record click: %w", err)
		}
	}

	return &ClickResult{
		SubjectID:   subjectID,
		Timestamp:   timestamp,
		Date:        date,
		TotalClicks: total.TotalClicks,
	}, nil
}

// ListClicksForSubject returns every click event of subjectID, newest first.
// It returns an empty slice if the subject has no events.
func (s *Service) ListClicksForSubject(ctx context.Context, subjectID string) ([]*types.Record, error) {
	if err := keys.ValidateSubjectID(subjectID); err != nil {
		return nil, fmt.Errorf("list clicks: %w", err)
	}

	records, err := s.query(ctx, &types.QueryInput{
		PartitionValue: subjectID,
		ScanForward:    false,
	})
	if err != nil {
		return nil, fmt.Errorf("list clicks: failed to query events of %s: %w", subjectID, err)
	}

	return records, nil
}

// ListClicksInRange returns the click events of subjectID whose timestamp
// lies in [start, end], newest first. Bounds are timestamps or dates; see
// [keys.Range].
func (s *Service) ListClicksInRange(ctx context.Context, subjectID, start, end string) ([]*types.Record, error) {
	if err := keys.ValidateSubjectID(subjectID); err != nil {
		return nil, fmt.Errorf("list clicks in range: %w", err)
	}

	lower, upper, err := keys.Range(start, end)
	if err != nil {
		return nil, fmt.Errorf("list clicks in range: %w", err)
	}

	records, err := s.query(ctx, &types.QueryInput{
		PartitionValue: subjectID,
		SortCondition:  &types.SortCondition{Operator: types.SortBetween, Value: lower, Upper: upper},
		ScanForward:    false,
	})
	if err != nil {
		return nil, fmt.Errorf("list clicks in range: failed to query events of %s: %w", subjectID, err)
	}

	return records, nil
}

// GetTotalClicks returns the all-time click total, or 0 if nothing has been
// recorded yet.
func (s *Service) GetTotalClicks(ctx context.Context) (int64, error) {
	record, err := call(ctx, s.opts.storeTimeout, func(ctx context.Context) (*types.Record, error) {
		return s.store.Get(ctx, keys.TotalStatKeys().Key)
	})
	if err != nil {
		return 0, fmt.Errorf("get total clicks: %w", err)
	}

	if record == nil {
		return 0, nil
	}

	return record.TotalClicks, nil
}

// ListClicksByDate returns the click events of every subject on date
// (yyyy-mm-dd) using the DateIndex. The order is unspecified.
func (s *Service) ListClicksByDate(ctx context.Context, date string) ([]*types.Record, error) {
	dateKey, err := keys.DateIndexKey(date)
	if err != nil {
		return nil, fmt.Errorf("list clicks by date: %w", err)
	}

	records, err := s.query(ctx, &types.QueryInput{
		IndexName:      types.DateIndex,
		PartitionValue: dateKey,
		SortCondition:  &types.SortCondition{Operator: types.SortBeginsWith, Value: keys.ClickPrefix},
		ScanForward:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("list clicks by date: failed to query %s: %w", dateKey, err)
	}

	return records, nil
}

// UpsertDailyStat atomically adds increment to the rollup of date, creating
// it on first use, and returns the row after the increment.
func (s *Service) UpsertDailyStat(ctx context.Context, date string, increment int64) (*types.Record, error) {
	k, err := keys.DailyStatKeys(date)
	if err != nil {
		return nil, fmt.Errorf("upsert daily stat: %w", err)
	}

	record, err := s.upsertStat(ctx, k, increment)
	if err != nil {
		return nil, fmt.Errorf("upsert daily stat %s: %w", date, err)
	}

	return record, nil
}

// GetDailyStat returns the rollup of date, or nil if it does not exist.
func (s *Service) GetDailyStat(ctx context.Context, date string) (*types.Record, error) {
	k, err := keys.DailyStatKeys(date)
	if err != nil {
		return nil, fmt.Errorf("get daily stat: %w", err)
	}

	record, err := s.getStat(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("get daily stat %s: %w", date, err)
	}

	return record, nil
}

// UpsertMonthlyStat atomically adds increment to the rollup of month
// (yyyy-mm), creating it on first use, and returns the row after the
// increment.
func (s *Service) UpsertMonthlyStat(ctx context.Context, month string, increment int64) (*types.Record, error) {
	k, err := keys.MonthlyStatKeys(month)
	if err != nil {
		return nil, fmt.Errorf("upsert monthly stat: %w", err)
	}

	record, err := s.upsertStat(ctx, k, increment)
	if err != nil {
		return nil, fmt.Errorf("upsert monthly stat %s: %w", month, err)
	}

	return record, nil
}

// GetMonthlyStat returns the rollup of month, or nil if it does not exist.
func (s *Service) GetMonthlyStat(ctx context.Context, month string) (*types.Record, error) {
	k, err := keys.MonthlyStatKeys(month)
	if err != nil {
		return nil, fmt.Errorf("get monthly stat: %w", err)
	}

	record, err := s.getStat(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("get monthly stat %s: %w", month, err)
	}

	return record, nil
}

func (s *Service) upsertStat(ctx context.Context, k keys.Keys, increment int64) (*types.Record, error) {
	if increment < 1 {
		return nil, fmt.Errorf("%w: increment must be at least 1, got %d", types.ErrValidation, increment)
	}

	index := k.Index

	return s.add(ctx, &types.AddInput{
		Key:   k.Key,
		Field: types.AttrTotalClicks,
		Delta: increment,
		Index: &index,
	})
}

// getStat reads a rollup through the DateIndex, matching both index keys.
func (s *Service) getStat(ctx context.Context, k keys.Keys) (*types.Record, error) {
	records, err := s.query(ctx, &types.QueryInput{
		IndexName:      types.DateIndex,
		PartitionValue: k.Index.DateKey,
		SortCondition:  &types.SortCondition{Operator: types.SortEqual, Value: k.Index.RecordSort},
		ScanForward:    true,
	})
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, nil //nolint:nilnil // not found is not an error
	}

	return records[0], nil
}

// nextTime reads the clock at millisecond precision, moved past the previous
// reading when the clock has not advanced.
func (s *Service) nextTime() time.Time {
	now := s.opts.clock().UTC().Truncate(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !now.After(s.last) {
		now = s.last.Add(time.Millisecond)
	}

	s.last = now

	return now
}

func (s *Service) create(ctx context.Context, record *types.Record) error {
	_, err := call(ctx, s.opts.storeTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.store.Create(ctx, record)
	})

	return err
}

func (s *Service) add(ctx context.Context, input *types.AddInput) (*types.Record, error) {
	record, err := call(ctx, s.opts.storeTimeout, func(ctx context.Context) (*types.Record, error) {
		return s.store.Add(ctx, input)
	})
	if err != nil {
		return nil, err
	}

	if record == nil {
		return nil, errors.New("store returned no attributes for atomic add")
	}

	return record, nil
}

func (s *Service) query(ctx context.Context, input *types.QueryInput) ([]*types.Record, error) {
	records, err := call(ctx, s.opts.storeTimeout, func(ctx context.Context) ([]*types.Record, error) {
		return s.store.Query(ctx, input)
	})
	if err != nil {
		return nil, err
	}

	if records == nil {
		records = []*types.Record{}
	}

	return records, nil
}

// call runs fn under a deadline of at most timeout. A call that exceeds its
// deadline is reported as [types.ErrStoreUnavailable].
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := fn(ctx)
	if err != nil {
		var zero T

		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, types.ErrStoreUnavailable) {
			return zero, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
		}

		return zero, err
	}

	return result, nil
}
