// Package memstore implements the in-process keyed object cache that backs
// direct-call returns before (and unless) they are promoted to plasma
// (§2 row 3, §4.3).
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
)

// entry holds a resolved value, or the wait-set of callbacks blocked on one
// that has not arrived yet. Only one of (value set) or (waiters non-empty)
// is meaningful at a time, but both fields coexist across a value's
// lifetime: waiters drain to an empty slice once a value lands.
type entry struct {
	hasValue bool
	value    *object.Object
	valueErr error // object.ErrInPlasma when promoted

	waiters []chan struct{}
}

// Store is the per-worker in-process wait-set keyed by ObjectID. Every
// method is safe for concurrent use; GetAsync callbacks registered here run
// on whatever goroutine Put/PutError happens on -- callers posting those
// callbacks onto the reactor thread must not block inside them (§5).
type Store struct {
	mu      sync.Mutex
	entries map[ids.ObjectID]*entry
}

// New constructs an empty Store.
func New() *Store {
	return &Store{entries: make(map[ids.ObjectID]*entry)}
}

func (s *Store) entryLocked(id ids.ObjectID) *entry {
	e, ok := s.entries[id]
	if !ok {
		e = &entry{}
		s.entries[id] = e
	}
	return e
}

// Put stores val under id and wakes any blocked Get/Wait/GetAsync callers.
func (s *Store) Put(id ids.ObjectID, val *object.Object) {
	s.mu.Lock()
	e := s.entryLocked(id)
	e.hasValue = true
	e.value = val
	e.valueErr = nil
	s.wakeLocked(e)
	s.mu.Unlock()
}

// PutError stores err (e.g. object.ErrInPlasma, object.ErrActorDied) as the
// terminal state for id.
func (s *Store) PutError(id ids.ObjectID, err error) {
	s.mu.Lock()
	e := s.entryLocked(id)
	e.hasValue = true
	e.value = nil
	e.valueErr = err
	s.wakeLocked(e)
	s.mu.Unlock()
}

func (s *Store) wakeLocked(e *entry) {
	for _, ch := range e.waiters {
		close(ch)
	}
	e.waiters = nil
}

// Contains reports whether id currently has a resolved value or error.
func (s *Store) Contains(id ids.ObjectID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return ok && e.hasValue
}

// Delete drops id's entry unconditionally.
func (s *Store) Delete(id ids.ObjectID) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Get blocks for up to timeout (negative = unbounded, zero = non-blocking
// probe) for each id in ids to resolve, returning results in the caller's
// original order (duplicates fill every matching slot, per §4.3 step 5).
func (s *Store) Get(ctx context.Context, idList []ids.ObjectID, timeout time.Duration) ([]*object.Object, []error) {
	n := len(idList)
	values := make([]*object.Object, n)
	errs := make([]error, n)

	deadline, hasDeadline := deadlineFrom(timeout)

	// Index identical ids once so duplicates share a single wait.
	unique := make(map[ids.ObjectID][]int)
	for i, id := range idList {
		unique[id] = append(unique[id], i)
	}

	for id, positions := range unique {
		val, err, ok := s.waitOne(ctx, id, deadline, hasDeadline)
		if !ok {
			continue // timed out; slots remain nil/nil
		}
		for _, pos := range positions {
			values[pos] = val
			errs[pos] = err
		}
	}
	return values, errs
}

func deadlineFrom(timeout time.Duration) (time.Time, bool) {
	if timeout < 0 {
		return time.Time{}, false
	}
	return time.Now().Add(timeout), true
}

// waitOne blocks until id resolves or the deadline passes, returning
// ok=false on timeout.
func (s *Store) waitOne(ctx context.Context, id ids.ObjectID, deadline time.Time, hasDeadline bool) (*object.Object, error, bool) {
	s.mu.Lock()
	e := s.entryLocked(id)
	if e.hasValue {
		val, err := e.value, e.valueErr
		s.mu.Unlock()
		return val, err, true
	}
	if hasDeadline && time.Now().After(deadline) {
		s.mu.Unlock()
		return nil, nil, false
	}

	ch := make(chan struct{})
	e.waiters = append(e.waiters, ch)
	s.mu.Unlock()

	if hasDeadline {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		select {
		case <-ch:
		case <-timer.C:
			return nil, nil, false
		case <-ctx.Done():
			return nil, nil, false
		}
	} else {
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, nil, false
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e = s.entries[id]
	if e == nil || !e.hasValue {
		return nil, nil, false
	}
	return e.value, e.valueErr, true
}

// GetAsyncCallback receives the resolved value or error for one id.
type GetAsyncCallback func(val *object.Object, err error)

// GetAsync registers cb to run (synchronously on the calling goroutine, or
// later on whichever goroutine calls Put/PutError) once id resolves. This
// is the non-blocking counterpart of Get used by GetObjectStatus and by
// CoreWorker.GetAsync (SPEC_FULL §12).
func (s *Store) GetAsync(id ids.ObjectID, cb GetAsyncCallback) {
	s.mu.Lock()
	e := s.entryLocked(id)
	if e.hasValue {
		val, err := e.value, e.valueErr
		s.mu.Unlock()
		cb(val, err)
		return
	}
	ch := make(chan struct{})
	e.waiters = append(e.waiters, ch)
	s.mu.Unlock()

	go func() {
		<-ch
		s.mu.Lock()
		ent := s.entries[id]
		var val *object.Object
		var err error
		if ent != nil {
			val, err = ent.value, ent.valueErr
		}
		s.mu.Unlock()
		cb(val, err)
	}()
}

// GetOrPromoteToPlasma implements the promotion primitive (§4.3 Promotion):
// if id already has a resolved, non-error value, it is returned so the
// caller can write it into plasma; otherwise an InPlasmaError sentinel is
// recorded so subsequent readers are redirected to plasma, and ok=false is
// returned (nothing for the caller to copy out).
func (s *Store) GetOrPromoteToPlasma(id ids.ObjectID) (val *object.Object, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(id)
	if e.hasValue && e.valueErr == nil {
		return e.value, true
	}
	e.hasValue = true
	e.value = nil
	e.valueErr = object.ErrInPlasma
	s.wakeLocked(e)
	return nil, false
}
