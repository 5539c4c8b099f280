// Package retrypolicy implements the exponential-backoff retry loop used by
// the Checkpoint Manager's upload step.
package retrypolicy

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrMaxAttempts is wrapped around the last error when max_attempts is
// exhausted without ever succeeding.
var ErrMaxAttempts = errors.New("retrypolicy: max attempts exhausted")

// Policy holds the exponential backoff parameters. The overall wall-clock
// ceiling is hard-coded at 60s and is not configurable.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// maxElapsedTime is the hard wall-clock budget for a single retried call.
const maxElapsedTime = 60 * time.Second

// DefaultPolicy matches the runtime's default retry configuration.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
	}
}

// Do runs fn, retrying on error until it succeeds, until attempt count
// reaches MaxAttempts, or until the 60s wall-clock ceiling elapses –
// whichever comes first. Every failure before the final attempt is treated
// as transient and retried; the failure on the final attempt is permanent
// and returned wrapped in ErrMaxAttempts. fn is never called again once it
// returns nil.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.MaxElapsedTime = maxElapsedTime

	attempt := 0
	var lastErr error

	operation := func() error {
		attempt++
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt >= p.MaxAttempts {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		if lastErr != nil {
			return errFinal(lastErr)
		}
		return errFinal(err)
	}
	return nil
}

func errFinal(err error) error {
	return &maxAttemptsError{cause: err}
}

type maxAttemptsError struct {
	cause error
}

func (e *maxAttemptsError) Error() string {
	return ErrMaxAttempts.Error() + ": " + e.cause.Error()
}

func (e *maxAttemptsError) Unwrap() error {
	return ErrMaxAttempts
}

func (e *maxAttemptsError) Cause() error {
	return e.cause
}
