// Package workerctx holds the per-process identity and the monotonic
// counters a worker uses to mint new ids without coordination (§2 row 1).
package workerctx

import (
	"sync"
	"sync/atomic"

	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
)

// Mode distinguishes a long-lived Worker process from a short-lived Driver.
type Mode int

const (
	ModeWorker Mode = iota
	ModeDriver
)

// Context is the worker's view of its own identity: who it is, which job
// it was started for, and which task (if any) it is currently executing.
// Every id-minting call in the runtime reads from or updates this struct.
type Context struct {
	Mode     Mode
	WorkerID ids.WorkerID
	NodeID   ids.NodeID
	JobID    ids.JobID
	Address  object.Address

	mu              sync.RWMutex
	currentTaskID   ids.TaskID
	currentActorID  ids.ActorID // non-nil while executing inside an actor
	putIndex        uint32
	taskIndex       uint64
}

// New constructs a Context for a freshly started process.
func New(mode Mode, jobID ids.JobID, addr object.Address) *Context {
	return &Context{
		Mode:     mode,
		WorkerID: addr.WorkerID,
		NodeID:   addr.NodeID,
		JobID:    jobID,
		Address:  addr,
	}
}

// SetCurrentTask updates the task the worker is executing. Passing
// ids.NilTaskID clears it, matching SetCurrentTaskId's "no current task"
// state (§4.5's actor-handle GC trigger fires on this transition).
func (c *Context) SetCurrentTask(id ids.TaskID) {
	c.mu.Lock()
	c.currentTaskID = id
	c.mu.Unlock()
}

// CurrentTaskID returns the task the worker is currently executing, or
// ids.NilTaskID if none.
func (c *Context) CurrentTaskID() ids.TaskID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentTaskID
}

// SetCurrentActorID records that the worker is now (or is no longer, if
// nil) the body of actorID's execution loop.
func (c *Context) SetCurrentActorID(id ids.ActorID) {
	c.mu.Lock()
	c.currentActorID = id
	c.mu.Unlock()
}

// CurrentActorID returns the actor this worker's execution loop belongs to,
// or ids.NilActorID if this worker is not an actor.
func (c *Context) CurrentActorID() ids.ActorID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentActorID
}

// IsInActor reports whether the worker is currently running as an actor.
func (c *Context) IsInActor() bool {
	return !c.CurrentActorID().IsNil()
}

// CallerID implements GetCallerId (SPEC_FULL §12): the caller identity used
// when registering a pending task is the actor-creation task id while
// running inside an actor, and the current (or driver) task id otherwise.
func (c *Context) CallerID() ids.TaskID {
	if actorID := c.CurrentActorID(); !actorID.IsNil() {
		return ids.ForActorCreationTask(actorID)
	}
	return c.CurrentTaskID()
}

// NextPutIndex returns the next 1-based index to use when minting the
// ObjectID of a value passed to Put by the current task.
func (c *Context) NextPutIndex() uint32 {
	return uint32(atomic.AddUint32(&c.putIndex, 1))
}

// NextTaskIndex returns the next 1-based per-worker index to use when
// submitting a new normal task or actor-creation task.
func (c *Context) NextTaskIndex() uint64 {
	return atomic.AddUint64(&c.taskIndex, 1)
}

// ResetPutIndex clears the put-index counter. Called when the current task
// finishes, since put indices are scoped to the task that minted them.
func (c *Context) ResetPutIndex() {
	atomic.StoreUint32(&c.putIndex, 0)
}
