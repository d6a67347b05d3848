package rag

import (
	"context"
	"sync"
)

// sessionLocks serialises asks per session. Entries are dropped once nobody holds or waits for them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	sem  chan struct{}
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// acquire blocks until the session is free or ctx is done. The returned func releases it.
func (l *sessionLocks) acquire(ctx context.Context, sessionId string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[sessionId]
	if !ok {
		lock = &sessionLock{sem: make(chan struct{}, 1)}
		l.locks[sessionId] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.sem <- struct{}{}:
		return func() {
			<-lock.sem
			l.done(sessionId, lock)
		}, nil
	case <-ctx.Done():
		l.done(sessionId, lock)
		return nil, ctx.Err()
	}
}

func (l *sessionLocks) done(sessionId string, lock *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, sessionId)
	}
}
