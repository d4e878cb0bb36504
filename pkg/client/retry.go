package client

import (
	"context"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"
	"kubegems.io/hubx/pkg/errors"
)

// retry runs fn until it succeeds, fails with a non-transient error, or the
// attempt budget is spent. Backoff doubles from opts.BackoffBase.
func retry(ctx context.Context, opts *RetryOptions, op string, fn func() error) error {
	log := logr.FromContextOrDiscard(ctx).WithValues("op", op)

	maxAttempts, base := DefaultMaxAttempts, DefaultBackoffBase
	if opts != nil {
		if opts.MaxAttempts > 0 {
			maxAttempts = opts.MaxAttempts
		}
		if opts.BackoffBase > 0 {
			base = opts.BackoffBase
		}
	}

	attempts := 0
	var lasterr error
	backoff := wait.Backoff{Duration: base, Factor: 2.0, Steps: maxAttempts}
	err := wait.ExponentialBackoff(backoff, func() (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		attempts++
		lasterr = fn()
		if lasterr == nil {
			return true, nil
		}
		if !errors.IsRetryable(lasterr) {
			return false, lasterr
		}
		if attempts < maxAttempts {
			log.Info("transient failure, backing off", "attempt", attempts, "wait", (base << (attempts - 1)).String(), "error", lasterr.Error())
		}
		return false, nil
	})
	if err == wait.ErrWaitTimeout {
		log.Error(lasterr, "retry budget exhausted", "attempts", attempts)
		return errors.NewRetryExhaustedError(attempts, lasterr)
	}
	return err
}
