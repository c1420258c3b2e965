package service

import "sync"

// ownerLocks serializes the quota check and metadata insert per owner so
// concurrent uploads for the same owner cannot both pass the check and
// overshoot the quota. Different owners never contend.
type ownerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the owner's mutex and returns its release func.
func (l *ownerLocks) lock(owner string) func() {
	l.mu.Lock()
	m, ok := l.locks[owner]
	if !ok {
		m = &sync.Mutex{}
		l.locks[owner] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
