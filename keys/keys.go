package keys

import (
	"time"

	"github.com/quititoday/clickstats/types"
)

const (
	// StatPrefix is the reserved partition key namespace of aggregate rows.
	StatPrefix = "STAT#"

	// TotalPartition is the partition key of the all-time total row.
	TotalPartition = StatPrefix + "TOTAL"

	// DailyPartition is the partition key of daily rollups. It doubles as the
	// DateIndex sort value marking a daily rollup.
	DailyPartition = StatPrefix + "DAILY"

	// MonthlyPartition is the partition key of monthly rollups. It doubles as
	// the DateIndex sort value marking a monthly rollup.
	MonthlyPartition = StatPrefix + "MONTHLY"

	// MetadataSortKey is the sort key of the total row.
	MetadataSortKey = "METADATA"

	// DatePrefix prefixes the DateIndex partition value of event and daily rows.
	DatePrefix = "DATE#"

	// MonthPrefix prefixes the DateIndex partition value of monthly rows.
	MonthPrefix = "MONTH#"

	// ClickPrefix prefixes the DateIndex sort value of event rows.
	ClickPrefix = "CLICK#"

	// TimestampLayout renders event timestamps.
	TimestampLayout = "2006-01-02T15:04:05.000Z"

	// DateLayout renders calendar dates.
	DateLayout = "2006-01-02"

	// MonthLayout renders calendar months.
	MonthLayout = "2006-01"
)

// Keys holds the primary key of a row and, for indexed rows, its DateIndex
// attributes.
type Keys struct {
	types.Key
	Index types.IndexKeys
}

// Indexed reports whether the row is projected into the DateIndex.
func (k Keys) Indexed() bool {
	return k.Index.DateKey != ""
}

// EventKeys returns the keys of the click event recorded for subjectID at
// timestamp.
func EventKeys(subjectID, timestamp string) (Keys, error) {
	if err := ValidateSubjectID(subjectID); err != nil {
		return Keys{}, err
	}

	if err := ValidateTimestamp(timestamp); err != nil {
		return Keys{}, err
	}

	return Keys{
		Key: types.Key{PartitionKey: subjectID, SortKey: timestamp},
		Index: types.IndexKeys{
			DateKey:    DatePrefix + DateOf(timestamp),
			RecordSort: ClickPrefix + timestamp + "#" + subjectID,
		},
	}, nil
}

// TotalStatKeys returns the fixed keys of the all-time total row.
func TotalStatKeys() Keys {
	return Keys{Key: types.Key{PartitionKey: TotalPartition, SortKey: MetadataSortKey}}
}

// DailyStatKeys returns the keys of the rollup row for date (yyyy-mm-dd).
func DailyStatKeys(date string) (Keys, error) {
	if err := ValidateDate(date); err != nil {
		return Keys{}, err
	}

	return Keys{
		Key:   types.Key{PartitionKey: DailyPartition, SortKey: date},
		Index: types.IndexKeys{DateKey: DatePrefix + date, RecordSort: DailyPartition},
	}, nil
}

// MonthlyStatKeys returns the keys of the rollup row for month (yyyy-mm).
func MonthlyStatKeys(month string) (Keys, error) {
	if err := ValidateMonth(month); err != nil {
		return Keys{}, err
	}

	return Keys{
		Key:   types.Key{PartitionKey: MonthlyPartition, SortKey: month},
		Index: types.IndexKeys{DateKey: MonthPrefix + month, RecordSort: MonthlyPartition},
	}, nil
}

// DateIndexKey returns the DateIndex partition value of date.
func DateIndexKey(date string) (string, error) {
	if err := ValidateDate(date); err != nil {
		return "", err
	}

	return DatePrefix + date, nil
}

// FormatTimestamp renders t as an event timestamp in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// DateOf returns the calendar date of a well-formed timestamp.
func DateOf(timestamp string) string {
	return timestamp[:len(DateLayout)]
}

// MonthOf returns the calendar month of a well-formed date or timestamp.
func MonthOf(date string) string {
	return date[:len(MonthLayout)]
}
