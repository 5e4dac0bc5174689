package locks

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursesync/internal/logs"
)

func TestContactKey(t *testing.T) {
	assert.Equal(t, "crm:contact:loc-1:ann@example.com", ContactKey("loc-1", " Ann@Example.com "))
}

func TestMemory_SerialisesSameKey(t *testing.T) {
	m := NewMemory(5 * time.Second)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, "k")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, m.entries)
}

func TestMemory_BusyAfterWait(t *testing.T) {
	m := NewMemory(20 * time.Millisecond)
	ctx := context.Background()

	unlock, err := m.Lock(ctx, "k")
	require.NoError(t, err)

	_, err = m.Lock(ctx, "k")
	assert.ErrorIs(t, err, ErrBusy)

	other, err := m.Lock(ctx, "other")
	require.NoError(t, err)
	other()

	unlock()
	unlock() // повторный вызов безопасен

	again, err := m.Lock(ctx, "k")
	require.NoError(t, err)
	again()
}

func TestMemory_ContextCancelled(t *testing.T) {
	m := NewMemory(0)
	unlock, err := m.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func newRedisLocker(t *testing.T, wait time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb, 30*time.Second, wait), mr
}

func TestRedis_ExclusiveAndRelease(t *testing.T) {
	l, mr := newRedisLocker(t, 0)
	ctx := context.Background()
	key := ContactKey("loc-1", "ann@example.com")

	unlock, err := l.Lock(ctx, key)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))

	_, err = l.Lock(ctx, key)
	assert.ErrorIs(t, err, ErrBusy)

	unlock()
	assert.False(t, mr.Exists(key))

	unlock2, err := l.Lock(ctx, key)
	require.NoError(t, err)
	unlock2()
}

func TestRedis_WaitsForHolder(t *testing.T) {
	l, _ := newRedisLocker(t, 2*time.Second)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	go func() {
		time.Sleep(150 * time.Millisecond)
		unlock()
	}()

	unlock2, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	unlock2()
}

func newRedisLockerTTL(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb, ttl, 0), mr
}

func TestRedis_RefreshesWhileHeld(t *testing.T) {
	l, mr := newRedisLockerTTL(t, 300*time.Millisecond)
	key := ContactKey("loc-1", "ann@example.com")

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	defer unlock()

	mr.FastForward(250 * time.Millisecond)
	assert.Eventually(t, func() bool {
		return mr.TTL(key) > 200*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, mr.Exists(key))
}

func TestRedis_LogsLostLock(t *testing.T) {
	prev := logs.Logger
	t.Cleanup(func() { logs.Logger = prev })
	var buf bytes.Buffer
	logs.Logger = logrus.New()
	logs.Logger.SetOutput(&buf)

	l, mr := newRedisLockerTTL(t, time.Second)
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists("k"))
	unlock()
	unlock()

	assert.Contains(t, buf.String(), "lock lost")
}
