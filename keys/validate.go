package keys

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/quititoday/clickstats/types"
)

// MaxSubjectIDLength bounds subject ids well below the DynamoDB partition key
// limit of 2048 bytes.
const MaxSubjectIDLength = 1024

const (
	startOfDay = "T00:00:00.000Z"
	endOfDay   = "T23:59:59.999Z"
)

// ValidateSubjectID rejects empty, oversized, and reserved subject ids, as
// well as ids that are not valid UTF-8 or contain control characters. NUL is
// the Redis index member separator.
func ValidateSubjectID(subjectID string) error {
	if subjectID == "" {
		return fmt.Errorf("%w: subject ID cannot be empty", types.ErrValidation)
	}

	if len(subjectID) > MaxSubjectIDLength {
		return fmt.Errorf("%w: subject ID exceeds %d bytes", types.ErrValidation, MaxSubjectIDLength)
	}

	if !utf8.ValidString(subjectID) {
		return fmt.Errorf("%w: subject ID %q is not valid UTF-8", types.ErrValidation, subjectID)
	}

	if strings.ContainsFunc(subjectID, unicode.IsControl) {
		return fmt.Errorf("%w: subject ID %q contains control characters", types.ErrValidation, subjectID)
	}

	if strings.HasPrefix(subjectID, StatPrefix) {
		return fmt.Errorf("%w: subject ID %q uses the reserved prefix %s", types.ErrValidation, subjectID, StatPrefix)
	}

	return nil
}

// ValidateTimestamp accepts only canonical UTC millisecond timestamps.
func ValidateTimestamp(timestamp string) error {
	return validateLayout("timestamp", timestamp, TimestampLayout)
}

// ValidateDate accepts only yyyy-mm-dd calendar dates.
func ValidateDate(date string) error {
	return validateLayout("date", date, DateLayout)
}

// ValidateMonth accepts only yyyy-mm calendar months.
func ValidateMonth(month string) error {
	return validateLayout("month", month, MonthLayout)
}

// Range normalizes an inclusive [start, end] sort key range. Each bound is
// either a timestamp, used as is, or a date, which expands to the first
// millisecond of the day for start and the last millisecond for end.
func Range(start, end string) (string, string, error) {
	lower, err := bound(start, startOfDay)
	if err != nil {
		return "", "", err
	}

	upper, err := bound(end, endOfDay)
	if err != nil {
		return "", "", err
	}

	if lower > upper {
		return "", "", fmt.Errorf("%w: range start %q is after range end %q", types.ErrValidation, start, end)
	}

	return lower, upper, nil
}

func bound(value, timeOfDay string) (string, error) {
	if ValidateTimestamp(value) == nil {
		return value, nil
	}

	if ValidateDate(value) == nil {
		return value + timeOfDay, nil
	}

	return "", fmt.Errorf("%w: range bound %q is neither a timestamp nor a date", types.ErrValidation, value)
}

func validateLayout(name, value, layout string) error {
	t, err := time.Parse(layout, value)
	if err != nil {
		return fmt.Errorf("%w: invalid %s %q", types.ErrValidation, name, value)
	}

	if t.Format(layout) != value {
		return fmt.Errorf("%w: %s %q is not in canonical form %s", types.ErrValidation, name, value, layout)
	}

	return nil
}
