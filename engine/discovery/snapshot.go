package discovery

import "sync/atomic"

// atomicSnapshot swaps whole snapshots so readers are never exposed to a
// partially cleared state during rediscovery.
type atomicSnapshot struct {
	ptr atomic.Pointer[snapshot]
}

func (a *atomicSnapshot) load() *snapshot {
	return a.ptr.Load()
}

func (a *atomicSnapshot) store(s *snapshot) {
	a.ptr.Store(s)
}
