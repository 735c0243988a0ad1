package types

import (
	"context"
	"strings"
)

const (
	// DateIndex is the name of the secondary index keyed by (dateKey,
	// recordSort), projecting all attributes.
	DateIndex = "DateIndex"

	// AttrClickCount is the per-event counter attribute. Always 1 on event rows.
	AttrClickCount = "clickCount"

	// AttrTotalClicks is the aggregate counter attribute on STAT# rows.
	AttrTotalClicks = "totalClicks"
)

// Key is the primary key of a row: partition key plus sort key.
type Key struct {
	PartitionKey string
	SortKey      string
}

// IndexKeys are the DateIndex attributes of a row.
type IndexKeys struct {
	DateKey    string
	RecordSort string
}

// Record is one row of the click table. Event rows carry ClickCount; aggregate
// rows carry TotalClicks. DateKey and RecordSort are empty on rows that are
// not projected into the DateIndex (the STAT#TOTAL row).
type Record struct {
	Key
	IndexKeys
	ClickCount  int64
	TotalClicks int64
}

// AddInput describes a server-side atomic increment of a numeric attribute.
// When Index is non-nil its attributes are written in the same request as the
// increment, so a row created by the increment is immediately indexed.
type AddInput struct {
	Key   Key
	Field string
	Delta int64
	Index *IndexKeys
}

// SortOperator is a comparison applied to the sort key of a query.
type SortOperator int

const (
	// SortEqual matches rows whose sort key equals Value.
	SortEqual SortOperator = iota + 1
	// SortBetween matches rows whose sort key lies in [Value, Upper].
	SortBetween
	// SortBeginsWith matches rows whose sort key starts with Value.
	SortBeginsWith
)

// SortCondition constrains the sort key of a query.
type SortCondition struct {
	Operator SortOperator
	Value    string
	Upper    string
}

// Matches reports whether sortKey satisfies the condition. A nil condition
// matches everything.
func (c *SortCondition) Matches(sortKey string) bool {
	if c == nil {
		return true
	}

	switch c.Operator {
	case SortEqual:
		return sortKey == c.Value
	case SortBetween:
		return sortKey >= c.Value && sortKey <= c.Upper
	case SortBeginsWith:
		return strings.HasPrefix(sortKey, c.Value)
	default:
		return false
	}
}

// QueryInput selects rows sharing one partition value, either on the base
// table (IndexName empty) or on [DateIndex].
//
// On the base table PartitionValue matches the partition key and the
// condition applies to the sort key. On DateIndex PartitionValue matches
// DateKey and the condition applies to RecordSort.
type QueryInput struct {
	IndexName      string
	PartitionValue string
	SortCondition  *SortCondition
	ScanForward    bool
}

// Store is the capability set the access pattern library needs from a
// key-value backend. Implementations must be safe for concurrent use.
type Store interface {
	// Put unconditionally inserts or replaces a row.
	Put(ctx context.Context, record *Record) error

	// Create inserts a row only when no row with the same key exists. It
	// returns an error wrapping [ErrStoreWriteConflict] when the key is taken
	// and leaves the existing row untouched.
	Create(ctx context.Context, record *Record) error

	// Get performs a point lookup. It returns (nil, nil) when the row does
	// not exist.
	Get(ctx context.Context, key Key) (*Record, error)

	// Add atomically increments a numeric attribute on the server, creating
	// the row when it does not exist, and returns the row as it is after the
	// increment.
	Add(ctx context.Context, input *AddInput) (*Record, error)

	// Query returns all rows matching the input. Base-table queries are
	// ordered by sort key, ascending unless ScanForward is false. DateIndex
	// queries are ordered by RecordSort only within one partition value.
	Query(ctx context.Context, input *QueryInput) ([]*Record, error)
}
