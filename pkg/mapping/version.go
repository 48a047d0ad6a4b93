package mapping

import (
	"sync"
	"sync/atomic"
)

// lockedState guards a mapping and counts its mutations
type lockedState struct {
	sync.RWMutex
	version atomic.Uint64
}

// bump must be called with the write lock held
func (s *lockedState) bump() {
	s.version.Add(1)
}

func (s *lockedState) current() uint64 {
	return s.version.Load()
}
