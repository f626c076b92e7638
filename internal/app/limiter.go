package app

import (
	"context"
	"sync"
)

// DynamicLimiter bounds the number of concurrent operations. The ceiling can
// be changed at runtime via SetLimit.
//
// Acquire respects the context.
type DynamicLimiter struct {
	mu       sync.Mutex
	limit    int
	inFlight int
	notify   chan struct{}
}

func NewDynamicLimiter(limit int) *DynamicLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &DynamicLimiter{limit: limit, notify: make(chan struct{})}
}

func (l *DynamicLimiter) Limit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

func (l *DynamicLimiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

func (l *DynamicLimiter) SetLimit(limit int) {
	if limit <= 0 {
		limit = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limit == limit {
		return
	}
	l.limit = limit
	l.signalLocked()
}

func (l *DynamicLimiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		limit := l.limit
		if limit <= 0 {
			limit = 1
		}
		if l.inFlight < limit {
			l.inFlight++
			l.mu.Unlock()
			return nil
		}
		ch := l.notify
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

func (l *DynamicLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight > 0 {
		l.inFlight--
	}
	l.signalLocked()
}

func (l *DynamicLimiter) signalLocked() {
	// Wake every waiter by closing and recreating the channel. Fine even
	// when nobody is listening.
	close(l.notify)
	l.notify = make(chan struct{})
}
