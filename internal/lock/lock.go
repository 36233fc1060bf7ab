// Package lock provides keyed mutual exclusion with a bounded wait.
// The reservation arbiter takes one key per apartment.
package lock

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"stayreserve/internal/domain"
)

// Release gives the key back. It is safe to call more than once.
type Release func() error

type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

func ApartmentKey(apartmentID int64) string {
	return "apartment:" + strconv.FormatInt(apartmentID, 10)
}

type slot struct {
	ch   chan struct{}
	refs int
}

// MemoryLocker serializes holders of the same key inside one process.
// Different keys never block each other.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

// NewMemoryLocker returns a locker whose Acquire gives up after wait.
// A non-positive wait means only the caller's context bounds the wait.
func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*slot), wait: wait}
}

func (l *MemoryLocker) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *MemoryLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		return
	}
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string) (Release, error) {
	s := l.ref(key)

	var timeout <-chan time.Time
	if l.wait > 0 {
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() error {
			once.Do(func() {
				<-s.ch
				l.unref(key)
			})
			return nil
		}, nil
	case <-ctx.Done():
		l.unref(key)
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrBusy, key, ctx.Err())
	case <-timeout:
		l.unref(key)
		return nil, fmt.Errorf("%w: %s held longer than %s", domain.ErrBusy, key, l.wait)
	}
}

// Held reports the number of keys currently held or waited on.
func (l *MemoryLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
