// Package lock provides short-lived named locks that keep a single operation
// from running twice at once.
package lock

import (
	"context"
	"sync"
	"time"
)

// Locker hands out named locks with an expiry. TryLock never blocks waiting
// for a holder: ok is false when someone else has the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Memory is a process-local Locker.
type Memory struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	now   func() time.Time
	token uint64
}

type memoryEntry struct {
	token   uint64
	expires time.Time
}

// NewMemory creates an empty in-process locker.
func NewMemory() *Memory {
	return &Memory{held: make(map[string]memoryEntry), now: time.Now}
}

// TryLock acquires key unless an unexpired holder exists.
func (m *Memory) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.held[key]; ok && now.Before(e.expires) {
		return nil, false, nil
	}
	m.token++
	token := m.token
	m.held[key] = memoryEntry{token: token, expires: now.Add(ttl)}

	release := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// Only release our own hold; it may have expired and been retaken.
		if e, ok := m.held[key]; ok && e.token == token {
			delete(m.held, key)
		}
	}
	return release, true, nil
}
