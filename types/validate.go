package types

import "fmt"

// Validate checks that the record has a complete primary key.
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: record cannot be nil", ErrValidation)
	}

	return r.Key.Validate()
}

// Validate checks that both halves of the key are set.
func (k Key) Validate() error {
	if k.PartitionKey == "" {
		return fmt.Errorf("%w: partition key cannot be empty", ErrValidation)
	}

	if k.SortKey == "" {
		return fmt.Errorf("%w: sort key cannot be empty", ErrValidation)
	}

	return nil
}

// Validate checks the key, the counter field, and the index attributes.
func (in *AddInput) Validate() error {
	if in == nil {
		return fmt.Errorf("%w: add input cannot be nil", ErrValidation)
	}

	if err := in.Key.Validate(); err != nil {
		return err
	}

	if in.Field != AttrTotalClicks && in.Field != AttrClickCount {
		return fmt.Errorf("%w: attribute %q is not a counter", ErrValidation, in.Field)
	}

	if in.Index != nil && (in.Index.DateKey == "" || in.Index.RecordSort == "") {
		return fmt.Errorf("%w: index attributes must both be set", ErrValidation)
	}

	return nil
}

// Validate checks the index name, the partition value, and the condition.
func (in *QueryInput) Validate() error {
	if in == nil {
		return fmt.Errorf("%w: query input cannot be nil", ErrValidation)
	}

	if in.IndexName != "" && in.IndexName != DateIndex {
		return fmt.Errorf("%w: unknown index %q", ErrValidation, in.IndexName)
	}

	if in.PartitionValue == "" {
		return fmt.Errorf("%w: partition value cannot be empty", ErrValidation)
	}

	c := in.SortCondition
	if c == nil {
		return nil
	}

	switch c.Operator {
	case SortEqual, SortBeginsWith:
		if c.Value == "" {
			return fmt.Errorf("%w: sort condition value cannot be empty", ErrValidation)
		}
	case SortBetween:
		if c.Value > c.Upper {
			return fmt.Errorf("%w: sort range lower bound %q is after upper bound %q", ErrValidation, c.Value, c.Upper)
		}
	default:
		return fmt.Errorf("%w: unknown sort operator %d", ErrValidation, c.Operator)
	}

	return nil
}
