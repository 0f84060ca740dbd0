package cache

import "sync"

// keyLocks hands out one mutex per key, freeing it once nobody holds or waits on it.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *keyLocks) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() { k.release(key, l) }
}

// TryLock takes key only if no goroutine holds or waits on it.
func (k *keyLocks) TryLock(key string) (func(), bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, busy := k.locks[key]; busy {
		return nil, false
	}
	l := &keyLock{refs: 1}
	l.Lock()
	k.locks[key] = l
	return func() { k.release(key, l) }, true
}

func (k *keyLocks) release(key string, l *keyLock) {
	l.Unlock()

	k.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}
