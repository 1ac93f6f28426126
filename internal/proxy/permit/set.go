// Package permit wraps the shared concurrency semaphore of §5 with an
// in-flight counter, so the supervisor and diagnostics listener can
// report live permit usage without reaching into golang.org/x/sync's
// semaphore internals.
package permit

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Set is the counted permit pool shared by both reader pumps.
type Set struct {
	sem   *semaphore.Weighted
	total int64
	inUse atomic.Int64
}

// NewSet returns a Set with n permits.
func NewSet(n int64) *Set {
	return &Set{sem: semaphore.NewWeighted(n), total: n}
}

// Acquire blocks for one permit until ctx is done.
func (s *Set) Acquire(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	s.inUse.Add(1)
	return nil
}

// Release returns one permit to the pool.
func (s *Set) Release() {
	s.inUse.Add(-1)
	s.sem.Release(1)
}

// InUse reports the number of permits currently held.
func (s *Set) InUse() int64 { return s.inUse.Load() }

// Total reports the configured pool size.
func (s *Set) Total() int64 { return s.total }
