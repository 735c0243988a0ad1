package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/quititoday/clickstats/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(redis.ErrClosed), types.ErrStoreUnavailable)
	assert.ErrorIs(t, classify(context.DeadlineExceeded), types.ErrStoreUnavailable)
	assert.ErrorIs(t, classify(errors.New("LOADING Redis is loading the dataset in memory")), types.ErrStoreUnavailable)
	assert.ErrorIs(t, classify(errors.New("BUSY Redis is busy running a script")), types.ErrStoreUnavailable)

	wrongType := errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	assert.Equal(t, wrongType, classify(wrongType))
}

func TestSplitIndexMember(t *testing.T) {
	t.Parallel()

	key := types.Key{PartitionKey: "u1", SortKey: "2025-10-02T08:00:00.000Z"}

	rs, got, ok := splitIndexMember(indexMember("CLICK#x", key))
	assert.True(t, ok)
	assert.Equal(t, "CLICK#x", rs)
	assert.Equal(t, key, got)

	_, _, ok = splitIndexMember("no-separator")
	assert.False(t, ok)
}
