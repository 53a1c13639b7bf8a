package service

import "sync"

// VersionTracker hands out a generation per inspection and remembers the
// latest one per document, so that only the newest inspection of a document
// publishes its result.
type VersionTracker struct {
	mu     sync.Mutex
	next   uint64
	latest map[string]uint64
}

// NewVersionTracker returns an empty tracker.
func NewVersionTracker() *VersionTracker {
	return &VersionTracker{latest: make(map[string]uint64)}
}

// Issue records a new inspection of uri and returns its generation.
// Generations are unique across documents.
func (v *VersionTracker) Issue(uri string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.next++
	v.latest[uri] = v.next
	return v.next
}

// IsLatest reports whether gen is still the newest generation of uri.
func (v *VersionTracker) IsLatest(uri string, gen uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.latest[uri] == gen
}

// Commit runs fn only if gen is still the newest generation of uri. The
// check and fn run under the tracker lock, so a newer inspection cannot
// publish in between. fn must not call back into the tracker.
func (v *VersionTracker) Commit(uri string, gen uint64, fn func()) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.latest[uri] != gen {
		return false
	}
	fn()
	return true
}

// Forget drops uri; results still in flight for it are discarded.
func (v *VersionTracker) Forget(uri string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.latest, uri)
}

// Len returns the number of tracked documents.
func (v *VersionTracker) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.latest)
}
