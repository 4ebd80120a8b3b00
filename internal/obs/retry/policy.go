package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultConnectPolicy covers startup dependencies (database, broker) that
// may come up after the engine does.
func DefaultConnectPolicy(name string, log *zap.Logger) Policy {
	return Policy{
		Name:     name,
		Attempts: 6,
		Backoff:  ExpoJitter{Base: 500 * time.Millisecond, Max: 15 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("connect retry", zap.String("dep", name), zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("connect retries exhausted", zap.String("dep", name), zap.Error(err))
			}
		},
	}
}
