// Package lock serializes work across processes with redis locks.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/domain/lifecycle"
	"github.com/OvertAmbrosio/affiliation-request-demo/internal/logging"
)

// RedisLocker hands out short-lived exclusive locks. A nil *RedisLocker is a
// valid no-op locker for single-process deployments.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration, log logrus.FieldLogger) *RedisLocker {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = logging.Discard()
	}
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl, log: log}
}

// Lock obtains key without waiting. A held key is lifecycle.ErrBusy.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l == nil {
		return func() {}, nil
	}
	lk, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", lifecycle.ErrBusy, key)
	}
	if err != nil {
		logging.LogError(l.log, "lock", "Lock", "obtain redis lock", key, err)
		return nil, err
	}
	return func() {
		// the lock may already have expired
		if err := lk.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logging.LogError(l.log, "lock", "Lock", "release redis lock", key, err)
		}
	}, nil
}
