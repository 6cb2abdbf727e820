package dispatch

import (
	"context"
	"sync"
)

// KeyedLocker is a set of FIFO mutexes keyed by string. Waiters for the same
// key acquire it in arrival order; entries are dropped when nobody holds or
// waits for a key.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	waiters []chan struct{}
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is acquired or ctx is done. The returned func
// releases the key and may be called more than once.
func (l *KeyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, held := l.locks[key]
	if !held {
		l.locks[key] = &keyLock{}
		l.mu.Unlock()
		return l.releaser(key), nil
	}
	ch := make(chan struct{})
	kl.waiters = append(kl.waiters, ch)
	l.mu.Unlock()

	select {
	case <-ch:
		return l.releaser(key), nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	for i, w := range kl.waiters {
		if w == ch {
			kl.waiters = append(kl.waiters[:i], kl.waiters[i+1:]...)
			l.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	l.mu.Unlock()
	// The lock was handed over while ctx expired. Pass it on.
	l.unlock(key)
	return nil, ctx.Err()
}

func (l *KeyedLocker) releaser(key string) func() {
	var once sync.Once
	return func() { once.Do(func() { l.unlock(key) }) }
}

func (l *KeyedLocker) unlock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.locks[key]
	if !ok {
		return
	}
	if len(kl.waiters) == 0 {
		delete(l.locks, key)
		return
	}
	next := kl.waiters[0]
	kl.waiters = kl.waiters[1:]
	close(next)
}

// Len returns the number of keys currently held.
func (l *KeyedLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
