package service

import (
	"sync"
	"time"
)

// monthLock serializes refreshes whose month ranges overlap while
// letting disjoint ranges run concurrently.
type monthLock struct {
	mu   sync.Mutex
	cond *sync.Cond
	held map[time.Time]struct{}
}

func newMonthLock() *monthLock {
	l := &monthLock{held: make(map[time.Time]struct{})}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *monthLock) acquire(months []time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.anyHeld(months) {
		l.cond.Wait()
	}
	for _, m := range months {
		l.held[m] = struct{}{}
	}
}

func (l *monthLock) release(months []time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range months {
		delete(l.held, m)
	}
	l.cond.Broadcast()
}

func (l *monthLock) anyHeld(months []time.Time) bool {
	for _, m := range months {
		if _, ok := l.held[m]; ok {
			return true
		}
	}
	return false
}
