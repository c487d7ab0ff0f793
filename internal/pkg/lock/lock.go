// Package lock provides per-key locking. Rooms are serialized by room code so
// that join, start, call, mark and declare never interleave on the same room;
// users are serialized by Telegram ID around coin spending.
package lock

import (
	"context"
	"sync"
	"time"
)

// entry is a mutex with a count of holders and waiters. The entry is removed
// from the map once nobody references it.
type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyedLock serializes work per key while letting different keys proceed in
// parallel.
type KeyedLock[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
}

// RoomLock serializes mutations of one room.
type RoomLock = KeyedLock[string]

// UserLock serializes balance changes of one user.
type UserLock = KeyedLock[int64]

// New creates an empty KeyedLock.
func New[K comparable]() *KeyedLock[K] {
	return &KeyedLock[K]{entries: make(map[K]*entry)}
}

// NewRoomLock creates a lock keyed by room code.
func NewRoomLock() *RoomLock {
	return New[string]()
}

// NewUserLock creates a lock keyed by user ID.
func NewUserLock() *UserLock {
	return New[int64]()
}

// ref returns the entry for key with its reference count raised.
func (l *KeyedLock[K]) ref(key K) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.refs++
	return e
}

// unref drops a reference and forgets the entry when it is unused.
func (l *KeyedLock[K]) unref(key K, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// Lock acquires the lock for key.
func (l *KeyedLock[K]) Lock(key K) {
	l.ref(key).mu.Lock()
}

// Unlock releases the lock for key. Unlocking a key that is not locked is a
// no-op.
func (l *KeyedLock[K]) Unlock(key K) {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Unlock()
	l.unref(key, e)
}

// TryLock acquires the lock without blocking and reports whether it did.
func (l *KeyedLock[K]) TryLock(key K) bool {
	e := l.ref(key)
	if e.mu.TryLock() {
		return true
	}
	l.unref(key, e)
	return false
}

// LockWithTimeout waits at most timeout for the lock. It returns false on
// timeout or when ctx is done first.
func (l *KeyedLock[K]) LockWithTimeout(ctx context.Context, key K, timeout time.Duration) bool {
	e := l.ref(key)

	done := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		return true
	case <-timeoutCtx.Done():
		// The waiter still acquires eventually; hand the lock straight back.
		go func() {
			<-done
			e.mu.Unlock()
			l.unref(key, e)
		}()
		return false
	}
}

// WithLock runs fn while holding the lock for key.
func (l *KeyedLock[K]) WithLock(key K, fn func() error) error {
	l.Lock(key)
	defer l.Unlock(key)
	return fn()
}

// WithLockContext runs fn while holding the lock for key, giving up with
// ErrLockTimeout if the lock is not acquired within timeout.
func (l *KeyedLock[K]) WithLockContext(ctx context.Context, key K, timeout time.Duration, fn func() error) error {
	if !l.LockWithTimeout(ctx, key, timeout) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrLockTimeout
	}
	defer l.Unlock(key)

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

// IsLocked reports whether key is currently held. The answer may be stale as
// soon as it is returned.
func (l *KeyedLock[K]) IsLocked(key K) bool {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		return false
	}
	if e.mu.TryLock() {
		e.mu.Unlock()
		return false
	}
	return true
}

// Len returns the number of keys currently referenced.
func (l *KeyedLock[K]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
