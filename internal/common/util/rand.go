package util

import (
	"math/rand"
	"sync"
)

type lockedSource struct {
	mutex sync.Mutex
	src   rand.Source
}

func (s *lockedSource) Int63() int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Seed(seed int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.src.Seed(seed)
}

// NewThreadsafeRand returns a generator that load senders may share, seeded with seed.
func NewThreadsafeRand(seed int64) *rand.Rand {
	return rand.New(&lockedSource{src: rand.NewSource(seed)})
}
