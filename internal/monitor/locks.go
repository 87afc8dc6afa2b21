package monitor

import "sync"

// AccountLocks serializes the read-watermark / decide / write-watermark
// sequence per account handle. Runs that monitor disjoint handles never
// contend; runs that share a handle take turns for that handle only.
type AccountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewAccountLocks() *AccountLocks {
	return &AccountLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock for one account handle and returns its release
// function.
func (l *AccountLocks) Lock(account string) (unlock func()) {
	l.mu.Lock()
	m, ok := l.locks[account]
	if !ok {
		m = &sync.Mutex{}
		l.locks[account] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
