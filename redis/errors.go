package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/quititoday/clickstats/types"
	"github.com/redis/go-redis/v9"
)

// unavailablePrefixes are server error prefixes for a node that cannot serve
// the request right now.
var unavailablePrefixes = []string{"LOADING", "BUSY", "TRYAGAIN", "CLUSTERDOWN", "MASTERDOWN"}

// classify wraps err with [types.ErrStoreUnavailable] when the failure is
// transient. Other errors are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	for _, prefix := range unavailablePrefixes {
		if strings.HasPrefix(err.Error(), prefix) {
			return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
		}
	}

	return err
}
