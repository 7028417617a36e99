// Package refcount implements the process-wide distributed reference
// counter: the ground truth for when an owned object may be unpinned and
// when a borrowed object's borrow record may be dropped (§4.2).
package refcount

import (
	"log/slog"
	"sync"

	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
)

// DeleteCallback fires exactly once, when a reference record's local count
// reaches zero and it has no outstanding borrower subscriptions (I2).
type DeleteCallback func(id ids.ObjectID)

// record is the per-ObjectId bookkeeping entry (§3 Reference record).
type record struct {
	ownerKnown   bool
	ownerTask    ids.TaskID
	ownerAddress object.Address

	localCount int
	borrowedBy map[object.Address]struct{}

	deleteCallback DeleteCallback
	containedIDs   []ids.ObjectID
}

func (r *record) deletionEligible() bool {
	return r.localCount <= 0 && len(r.borrowedBy) == 0
}

// Counter is the process-wide reference registry (§2 row 2).
type Counter struct {
	mu      sync.Mutex
	records map[ids.ObjectID]*record
	log     *slog.Logger
}

// New constructs an empty Counter.
func New(log *slog.Logger) *Counter {
	if log == nil {
		log = slog.Default()
	}
	return &Counter{
		records: make(map[ids.ObjectID]*record),
		log:     log,
	}
}

// AddOwnedObject creates a record for id with this process as owner. The
// local count starts at 1: the creator holds the first reference.
func (c *Counter) AddOwnedObject(id ids.ObjectID, ownerTask ids.TaskID, ownerAddress object.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.records[id]; ok {
		r.ownerKnown = true
		r.ownerTask = ownerTask
		r.ownerAddress = ownerAddress
		return
	}
	c.records[id] = &record{
		ownerKnown:   true,
		ownerTask:    ownerTask,
		ownerAddress: ownerAddress,
		localCount:   1,
		borrowedBy:   make(map[object.Address]struct{}),
	}
}

// AddBorrowedObject creates or merges a borrower record for id. The owner
// field, once known, is authoritative and is never overwritten by a later
// borrow call with different (ownerTask, ownerAddress) -- that would
// indicate two owners of the same id, a contract violation (I1).
func (c *Counter) AddBorrowedObject(id ids.ObjectID, ownerTask ids.TaskID, ownerAddress object.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.records[id]
	if !ok {
		r = &record{borrowedBy: make(map[object.Address]struct{})}
		c.records[id] = r
	}
	if !r.ownerKnown {
		r.ownerKnown = true
		r.ownerTask = ownerTask
		r.ownerAddress = ownerAddress
	}
	r.localCount++
}

// AddLocalReference increments id's local count, creating an owner-unknown
// record if none exists yet (e.g. a reference created before the owner
// information arrives).
func (c *Counter) AddLocalReference(id ids.ObjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[id]
	if !ok {
		r = &record{borrowedBy: make(map[object.Address]struct{})}
		c.records[id] = r
	}
	r.localCount++
}

// RemoveLocalReference decrements id's local count. Reaching zero with no
// outstanding borrower subscriptions triggers deletion and fires the
// delete-callback exactly once (I2).
func (c *Counter) RemoveLocalReference(id ids.ObjectID) {
	c.mu.Lock()
	r, ok := c.records[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	r.localCount--
	c.maybeDeleteLocked(id, r)
	c.mu.Unlock()
}

// maybeDeleteLocked removes id from the table and fires its delete callback
// if the record has become eligible. Must be called with c.mu held.
func (c *Counter) maybeDeleteLocked(id ids.ObjectID, r *record) {
	if !r.deletionEligible() {
		return
	}
	delete(c.records, id)
	if r.deleteCallback != nil {
		cb := r.deleteCallback
		c.log.Debug("refcount: object eligible for deletion", "object_id", id.String())
		// Fire outside the lock window implicitly is not possible here since
		// we hold the mutex; callbacks must not reacquire it.
		cb(id)
	}
}

// GetOwner returns the owner identity for id, and false if the object was
// constructed from random or out-of-band bytes and has no known owner.
func (c *Counter) GetOwner(id ids.ObjectID) (ids.TaskID, object.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[id]
	if !ok || !r.ownerKnown {
		return ids.NilTaskID, object.Address{}, false
	}
	return r.ownerTask, r.ownerAddress, true
}

// SetDeleteCallback attaches an owner-side eviction trigger to id's record.
// It returns false if no record exists, in which case the caller (the
// supervisor's WaitForObjectEviction handler) must respond immediately
// rather than park the reply (§4.2, T7).
func (c *Counter) SetDeleteCallback(id ids.ObjectID, cb DeleteCallback) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[id]
	if !ok {
		return false
	}
	r.deleteCallback = cb
	return true
}

// AddContainedObjectIDs records the set of ObjectIds nested inside id's
// value. This is a stub matching the reference source (§9 Open Question b):
// containment is tracked for diagnostics but does not yet gate eviction
// timing -- that contract is left to a future strict-reference-counting
// mode.
func (c *Counter) AddContainedObjectIDs(id ids.ObjectID, contained []ids.ObjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.records[id]; ok {
		r.containedIDs = append(r.containedIDs, contained...)
	}
}

// NumObjectIDsInScope reports the number of live reference records, for
// diagnostics and for GetCoreWorkerStats.
func (c *Counter) NumObjectIDsInScope() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// DeleteReferences drops every record in ids outright, regardless of local
// count or borrower set, firing delete callbacks as it goes. Used by
// Delete(ids, local_only=true, ...) at the CoreWorker façade.
func (c *Counter) DeleteReferences(idList []ids.ObjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range idList {
		r, ok := c.records[id]
		if !ok {
			continue
		}
		delete(c.records, id)
		if r.deleteCallback != nil {
			r.deleteCallback(id)
		}
	}
}

// HasReference reports whether id currently has a live record, used by
// Contains-adjacent checks and tests.
func (c *Counter) HasReference(id ids.ObjectID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.records[id]
	return ok
}

// AddBorrower records that address now holds a borrowed reference to id,
// parking eviction until the borrower confirms it is done (released via
// RemoveBorrower). Mirrors the owner-side bookkeeping the FutureResolver
// drives when a remote Get completes (I3).
func (c *Counter) AddBorrower(id ids.ObjectID, addr object.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[id]
	if !ok {
		r = &record{borrowedBy: make(map[object.Address]struct{})}
		c.records[id] = r
	}
	r.borrowedBy[addr] = struct{}{}
}

// RemoveBorrower releases addr's borrow subscription on id, possibly making
// the record eligible for deletion (I3).
func (c *Counter) RemoveBorrower(id ids.ObjectID, addr object.Address) {
	c.mu.Lock()
	r, ok := c.records[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(r.borrowedBy, addr)
	c.maybeDeleteLocked(id, r)
	c.mu.Unlock()
}
