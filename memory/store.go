// Package memory provides an in-process implementation of [types.Store]. It
// is meant for tests and local runs of the click service; data is lost when
// the process exits.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/quititoday/clickstats/types"
)

// Store keeps rows in a map guarded by a read-write mutex. Every operation honours
// context cancellation before touching the map.
type Store struct {
	mu   sync.RWMutex
	rows map[types.Key]*types.Record
}

// New returns an empty Store.
func New() *Store {
	return &Store{rows: make(map[types.Key]*types.Record)}
}

// Put inserts or replaces a row.
func (s *Store) Put(ctx context.Context, record *types.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := record.Validate(); err != nil {
		return err
	}

	row := *record

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows[row.Key] = &row

	return nil
}

// Create inserts a row unless its key is already present.
func (s *Store) Create(ctx context.Context, record *types.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := record.Validate(); err != nil {
		return err
	}

	row := *record

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[row.Key]; ok {
		return fmt.Errorf("%w: row %s/%s already exists", types.ErrStoreWriteConflict, row.PartitionKey, row.SortKey)
	}

	s.rows[row.Key] = &row

	return nil
}

// Get returns a copy of the row stored under key, or (nil, nil).
func (s *Store) Get(ctx context.Context, key types.Key) (*types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := key.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[key]
	if !ok {
		return nil, nil //nolint:nilnil // not found is not an error
	}

	out := *row

	return &out, nil
}

// Add increments the counter under the store lock, creating the row when
// needed.
func (s *Store) Add(ctx context.Context, input *types.AddInput) (*types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[input.Key]
	if !ok {
		row = &types.Record{Key: input.Key}
		s.rows[input.Key] = row
	}

	switch input.Field {
	case types.AttrTotalClicks:
		row.TotalClicks += input.Delta
	case types.AttrClickCount:
		row.ClickCount += input.Delta
	}

	if input.Index != nil {
		row.IndexKeys = *input.Index
	}

	out := *row

	return &out, nil
}

// Query scans the map for matching rows and sorts them the way the DynamoDB
// backend would return them.
func (s *Store) Query(ctx context.Context, input *types.QueryInput) ([]*types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}

	onIndex := input.IndexName == types.DateIndex

	s.mu.RLock()

	records := []*types.Record{}

	for _, row := range s.rows {
		partition, sortKey := row.PartitionKey, row.SortKey
		if onIndex {
			partition, sortKey = row.DateKey, row.RecordSort
		}

		if partition != input.PartitionValue || !input.SortCondition.Matches(sortKey) {
			continue
		}

		out := *row
		records = append(records, &out)
	}

	s.mu.RUnlock()

	slices.SortFunc(records, func(a, b *types.Record) int {
		if onIndex {
			if c := strings.Compare(a.RecordSort, b.RecordSort); c != 0 {
				return c
			}

			if c := strings.Compare(a.PartitionKey, b.PartitionKey); c != 0 {
				return c
			}
		}

		return strings.Compare(a.SortKey, b.SortKey)
	})

	if !input.ScanForward {
		slices.Reverse(records)
	}

	return records, nil
}

// DropAllData deletes every row.
func (s *Store) DropAllData(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.rows)

	return nil
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rows)
}
