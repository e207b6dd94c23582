// Package keylock serializes work per user id with a fixed set of striped mutexes.
package keylock

import "sync"

// DefaultStripes is used when New receives a non-positive count.
const DefaultStripes = 256

// Striped maps int64 keys onto a fixed pool of mutexes. Two keys may share a
// stripe; one key always maps to the same stripe.
type Striped struct {
	stripes []sync.Mutex
}

// New returns a Striped with n stripes.
func New(n int) *Striped {
	if n <= 0 {
		n = DefaultStripes
	}
	return &Striped{stripes: make([]sync.Mutex, n)}
}

// Lock acquires the stripe for key and returns its unlock function.
func (s *Striped) Lock(key int64) func() {
	m := &s.stripes[s.index(key)]
	m.Lock()
	return m.Unlock
}

// Do runs fn while holding the stripe for key.
func (s *Striped) Do(key int64, fn func() error) error {
	unlock := s.Lock(key)
	defer unlock()
	return fn()
}

func (s *Striped) index(key int64) int {
	u := uint64(key)
	u ^= u >> 33
	u *= 0xff51afd7ed558ccd
	u ^= u >> 33
	return int(u % uint64(len(s.stripes)))
}
