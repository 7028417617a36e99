// Package objectstore implements the dual-backend object store façade that
// groups ObjectIds by transport tier and orchestrates the memory-store /
// plasma-store Get and Wait protocols, including promotion retries (§4.3).
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/embercore/workerrt/internal/memstore"
	"github.com/embercore/workerrt/internal/plasma"
	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
)

// ErrInvalidArgument is returned for Wait calls with duplicate ids or k
// outside [1, n] (§7 Invalid argument taxonomy).
var ErrInvalidArgument = errors.New("objectstore: invalid argument")

// Store is the dual-tier façade: §2 row orchestration over a MemoryStore
// and a PlasmaStoreFacade.
type Store struct {
	mem    *memstore.Store
	plasma *plasma.Facade
}

// New constructs a Store over the given tiers.
func New(mem *memstore.Store, pf *plasma.Facade) *Store {
	return &Store{mem: mem, plasma: pf}
}

func partitionByTransport(idList []ids.ObjectID) (memIDs, plasmaIDs []ids.ObjectID) {
	for _, id := range idList {
		if id.IsDirectCallType() {
			memIDs = append(memIDs, id)
		} else {
			plasmaIDs = append(plasmaIDs, id)
		}
	}
	return
}

// Get implements §4.3's Get semantics: direct ids hit the memory tier
// first; any InPlasmaError sentinel found there redirects that id to the
// plasma tier with the remaining timeout budget; results are filled back
// into the caller's original order, duplicates filling every slot.
func (s *Store) Get(ctx context.Context, idList []ids.ObjectID, timeout time.Duration) ([]*object.Object, bool, error) {
	n := len(idList)
	results := make([]*object.Object, n)
	gotException := false

	memIDs, plasmaIDs := partitionByTransport(idList)

	memValues, memErrs := s.mem.Get(ctx, memIDs, timeout)
	promoted := make([]ids.ObjectID, 0)
	memResultByID := make(map[ids.ObjectID]*object.Object, len(memIDs))
	memErrByID := make(map[ids.ObjectID]error, len(memIDs))
	for i, id := range memIDs {
		if errors.Is(memErrs[i], object.ErrInPlasma) {
			promoted = append(promoted, id)
			continue
		}
		memResultByID[id] = memValues[i]
		memErrByID[id] = memErrs[i]
		if isExceptionSentinel(memErrs[i]) {
			gotException = true
		}
	}
	plasmaIDs = append(plasmaIDs, promoted...)

	plasmaResultByID := make(map[ids.ObjectID]*object.Object, len(plasmaIDs))
	if !gotException && len(plasmaIDs) > 0 {
		remaining := timeout
		values, errs := s.plasma.Get(ctx, plasmaIDs, remaining)
		for i, id := range plasmaIDs {
			plasmaResultByID[id] = values[i]
			if isExceptionSentinel(errs[i]) {
				gotException = true
			}
		}
	}

	for i, id := range idList {
		if v, ok := memResultByID[id]; ok {
			results[i] = v
			continue
		}
		if v, ok := plasmaResultByID[id]; ok {
			results[i] = v
		}
	}

	if timeout < 0 && !gotException {
		for i, r := range results {
			if r == nil {
				return results, gotException, fmt.Errorf("objectstore: Get incomplete for id %s despite unlimited timeout", idList[i])
			}
		}
	}

	return results, gotException, nil
}

func isExceptionSentinel(err error) bool {
	return err != nil && !errors.Is(err, object.ErrInPlasma)
}

// Wait implements the two-phase, two-tier §4.3 Wait semantics: wait for at
// least k of the n given ids, never starving one tier of its timeout quota.
func (s *Store) Wait(ctx context.Context, idList []ids.ObjectID, k int, timeout time.Duration) ([]bool, error) {
	n := len(idList)
	if k < 1 || k > n {
		return nil, fmt.Errorf("%w: k=%d must be in [1,%d]", ErrInvalidArgument, k, n)
	}
	seen := make(map[ids.ObjectID]struct{}, n)
	for _, id := range idList {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidArgument, id)
		}
		seen[id] = struct{}{}
	}

	memIDs, plasmaIDs := partitionByTransport(idList)
	ready := make(map[ids.ObjectID]bool, n)

	readyCount := func() int {
		c := 0
		for _, v := range ready {
			if v {
				c++
			}
		}
		return c
	}

	runPhase := func(phaseTimeout time.Duration) {
		if readyCount() >= k {
			return
		}
		if len(memIDs) > 0 {
			memReady, err := s.memWait(ctx, memIDs, phaseTimeout)
			if err == nil {
				for id, isReady := range memReady {
					if isReady {
						ready[id] = true
					}
				}
				s.retryObjectInPlasmaErrors(memIDs, ready, &plasmaIDs)
			}
		}
		if readyCount() >= k {
			return
		}
		if len(plasmaIDs) > 0 {
			plasmaReady, _ := s.plasma.Wait(ctx, plasmaIDs, k-readyCount(), phaseTimeout)
			for i, id := range plasmaIDs {
				if plasmaReady[i] {
					ready[id] = true
				}
			}
		}
	}

	// Phase one: zero timeout on both tiers so neither starves the other.
	runPhase(0)

	if readyCount() < k && timeout != 0 {
		// Phase two: split the real timeout across the two tiers.
		half := timeout
		if timeout > 0 && len(memIDs) > 0 && len(plasmaIDs) > 0 {
			half = timeout / 2
		}
		runPhase(half)
	}

	result := make([]bool, n)
	for i, id := range idList {
		result[i] = ready[id]
	}
	return result, nil
}

// memWait polls the memory store's Get with the given timeout purely to
// determine readiness, without consuming the result permanently (values
// remain cached in the store for the subsequent real Get).
func (s *Store) memWait(ctx context.Context, memIDs []ids.ObjectID, timeout time.Duration) (map[ids.ObjectID]bool, error) {
	values, errs := s.mem.Get(ctx, memIDs, timeout)
	result := make(map[ids.ObjectID]bool, len(memIDs))
	for i, id := range memIDs {
		if values[i] != nil || errs[i] != nil {
			result[id] = true
		}
	}
	return result, nil
}

// retryObjectInPlasmaErrors moves any id that resolved to an InPlasmaError
// sentinel from the memory wait-set to the plasma set, and un-marks it
// ready, matching §4.3's per-phase promotion retry.
func (s *Store) retryObjectInPlasmaErrors(memIDs []ids.ObjectID, ready map[ids.ObjectID]bool, plasmaIDs *[]ids.ObjectID) {
	for _, id := range memIDs {
		_, errs := s.mem.Get(context.Background(), []ids.ObjectID{id}, 0)
		if len(errs) > 0 && errors.Is(errs[0], object.ErrInPlasma) {
			delete(ready, id)
			*plasmaIDs = append(*plasmaIDs, id)
		}
	}
}

// Contains checks the memory tier first for direct ids, falling through to
// plasma when the memory record is the InPlasmaError sentinel.
func (s *Store) Contains(ctx context.Context, id ids.ObjectID) (bool, error) {
	if id.IsDirectCallType() {
		if s.mem.Contains(id) {
			_, errs := s.mem.Get(ctx, []ids.ObjectID{id}, 0)
			if len(errs) > 0 && errors.Is(errs[0], object.ErrInPlasma) {
				return s.plasma.Contains(ctx, id)
			}
			return true, nil
		}
		return false, nil
	}
	return s.plasma.Contains(ctx, id)
}

// Delete drops references from both tiers for the given ids.
func (s *Store) Delete(ctx context.Context, idList []ids.ObjectID) error {
	memIDs, plasmaIDs := partitionByTransport(idList)
	for _, id := range memIDs {
		s.mem.Delete(id)
	}
	if len(plasmaIDs) > 0 {
		return s.plasma.Delete(ctx, plasmaIDs)
	}
	return nil
}
