package services

import "sync"

// userLocks serializes evaluation pipelines per user. Concurrent submissions
// for the same user would otherwise interleave reads of the savings total and
// lose updates on goal progress.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the user's mutex, creating it on first use. The returned
// function releases it.
func (ul *userLocks) Lock(userID string) func() {
	ul.mu.Lock()
	lock, ok := ul.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		ul.locks[userID] = lock
	}
	ul.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
