package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/quititoday/clickstats/types"
)

// conflictCodes are SQLSTATE codes for writes that lost against a concurrent
// transaction.
var conflictCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"23505": true, // unique_violation
}

// unavailableClasses are SQLSTATE classes for a server that cannot serve
// the request right now.
var unavailableClasses = []string{
	"08", // connection exception
	"53", // insufficient resources
	"57", // operator intervention
	"58", // system error
}

// classify wraps err with the store sentinel matching its cause. Errors that
// match neither sentinel are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if conflictCodes[pgErr.Code] {
			return fmt.Errorf("%w: %w", types.ErrStoreWriteConflict, err)
		}

		for _, class := range unavailableClasses {
			if strings.HasPrefix(pgErr.Code, class) {
				return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
			}
		}

		return err
	}

	var netErr net.Error
	if pgconn.Timeout(err) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	return err
}
