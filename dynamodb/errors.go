package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
	"github.com/quititoday/clickstats/types"
)

var conflictCodes = map[string]bool{
	"ConditionalCheckFailedException": true,
	"TransactionConflictException":    true,
	"TransactionCanceledException":    true,
}

var unavailableCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"ThrottlingException":                    true,
	"RequestLimitExceeded":                   true,
	"InternalServerError":                    true,
	"ServiceUnavailable":                     true,
	"LimitExceededException":                 true,
}

// classify wraps err with the store sentinel matching its cause. Errors that
// match neither sentinel are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, types.ErrStoreUnavailable) || errors.Is(err, types.ErrStoreWriteConflict) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch {
		case conflictCodes[apiErr.ErrorCode()]:
			return fmt.Errorf("%w: %w", types.ErrStoreWriteConflict, err)
		case unavailableCodes[apiErr.ErrorCode()]:
			return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
		}
	}

	var maxAttemptsErr *retry.MaxAttemptsError
	if errors.As(err, &maxAttemptsErr) {
		return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() >= 500 {
		return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	return err
}
