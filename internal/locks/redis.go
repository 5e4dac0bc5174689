package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"coursesync/internal/logs"
)

const retryStep = 100 * time.Millisecond

// Redis — распределённый вариант поверх redislock: несколько реплик сервиса
// не пишут в один контакт одновременно. Пока блокировка удерживается, её TTL
// продлевается каждые ttl/3, так что медленная синхронизация её не теряет.
type Redis struct {
	locker *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

func NewRedis(rdb redis.UniversalClient, ttl, wait time.Duration) *Redis {
	return &Redis{locker: redislock.New(rdb), ttl: ttl, wait: wait}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	retries := int(r.wait / retryStep)
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(retryStep), retries),
	}
	lock, err := r.locker.Obtain(ctx, key, r.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(lock, key, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// ctx вызывающего к этому моменту может быть отменён
			err := lock.Release(context.Background())
			switch {
			case errors.Is(err, redislock.ErrLockNotHeld):
				logs.Logger.WithField("key", key).Warn("lock lost before release, contact writes were not exclusive")
			case err != nil:
				logs.Logger.WithField("key", key).Warnf("release lock: %v", err)
			}
		})
	}, nil
}

func (r *Redis) keepAlive(lock *redislock.Lock, key string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	every := r.ttl / 3
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			err := lock.Refresh(context.Background(), r.ttl, nil)
			if errors.Is(err, redislock.ErrNotObtained) {
				logs.Logger.WithField("key", key).Warn("lock lost while held, contact writes are no longer exclusive")
				return
			}
			if err != nil {
				logs.Logger.WithField("key", key).Warnf("refresh lock: %v", err)
			}
		}
	}
}
