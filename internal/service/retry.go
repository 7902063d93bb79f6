package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"stockledger/internal/model"
)

const (
	maxTxAttempts  = 3
	retryBaseDelay = 25 * time.Millisecond
)

// withRetry re-runs fn a bounded number of times with jittered backoff when it
// fails with a transient concurrency error (lock contention, serialization
// failure, reference-number race). Anything else — including business-rule
// failures like insufficient stock — surfaces immediately.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		delay := retryBaseDelay<<attempt + time.Duration(rand.Int63n(int64(retryBaseDelay)))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func retryable(err error) bool {
	return errors.Is(err, model.ErrBusy) || errors.Is(err, model.ErrDuplicateReference)
}
