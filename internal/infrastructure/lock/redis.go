// Package lock provides distributed locks backed by redis.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"dentallab/internal/core/apperror"
	"dentallab/internal/domain/salary"
)

// Locker obtains short-lived redis locks. A held key makes callers wait up
// to the retry budget before RESOURCE_LOCKED is returned.
type Locker struct {
	client *redislock.Client
	retry  redislock.RetryStrategy
}

// New creates a Locker on rdb.
func New(rdb redis.Scripter) *Locker {
	return &Locker{
		client: redislock.New(rdb),
		retry:  redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 20),
	}
}

// Obtain takes key for ttl and returns its release func.
func (l *Locker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lk, err := l.client.Obtain(ctx, key, ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, apperror.NewLocked(key)
	}
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		err := lk.Release(ctx)
		// Expired before release; someone else may hold it now.
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return err
	}, nil
}

var _ salary.Locker = (*Locker)(nil)
