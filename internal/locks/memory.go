package locks

import (
	"context"
	"sync"
	"time"
)

// Memory — ключевой мьютекс в пределах процесса. Используется, когда redis не настроен.
type Memory struct {
	wait time.Duration

	mu      sync.Mutex
	entries map[string]*memEntry
}

type memEntry struct {
	ch   chan struct{}
	refs int
}

func NewMemory(wait time.Duration) *Memory {
	return &Memory{wait: wait, entries: map[string]*memEntry{}}
}

func (m *Memory) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &memEntry{ch: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	var timeout <-chan time.Time
	if m.wait > 0 {
		t := time.NewTimer(m.wait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e, false)
		return nil, ctx.Err()
	case <-timeout:
		m.release(key, e, false)
		return nil, ErrBusy
	}

	var once sync.Once
	return func() { once.Do(func() { m.release(key, e, true) }) }, nil
}

func (m *Memory) release(key string, e *memEntry, held bool) {
	if held {
		<-e.ch
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}
