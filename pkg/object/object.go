// Package object defines the in-memory representation of task arguments and
// return values, and the sentinel error values used to signal exceptional
// object states across the store tiers.
package object

import (
	"errors"
	"fmt"

	"github.com/embercore/workerrt/pkg/ids"
)

// Object is the runtime's representation of a Ray-style object: raw data
// plus metadata (the language-level type tag) and the set of ObjectIDs
// nested inside it, which the reference counter must also track.
type Object struct {
	Data     []byte
	Metadata []byte
	// NestedIDs are ObjectIDs found serialized inside Data, e.g. because a
	// task argument contained an object ref passed by value.
	NestedIDs []ids.ObjectID
}

// IsNil reports whether the object carries no data and no metadata, the
// sentinel representation of "this task had no return value."
func (o *Object) IsNil() bool {
	return o == nil || (len(o.Data) == 0 && len(o.Metadata) == 0)
}

// Size returns the number of data bytes, used against max_direct_call_object_size.
func (o *Object) Size() int {
	if o == nil {
		return 0
	}
	return len(o.Data)
}

// Address identifies the owner of an object: the worker that created it,
// the node it started on, and the IP/port other workers use to reach it
// for ownership RPCs (ref count borrowing, wait-for-ref-removed, etc).
type Address struct {
	WorkerID ids.WorkerID
	NodeID   ids.NodeID
	IP       string
	Port     int
}

func (a Address) String() string {
	return fmt.Sprintf("%s@%s:%d", a.WorkerID, a.IP, a.Port)
}

// Sentinel object-state errors. These flow as the `error` half of a Get
// result, never as Go call-stack errors, so callers can errors.Is-switch on
// them the way the original dispatches on ErrorType.
var (
	// ErrInPlasma signals that a key looked up in the in-process memory
	// store has been promoted to plasma and must be fetched from there
	// instead (§4.3 Promotion).
	ErrInPlasma = errors.New("object: value promoted to plasma store")

	// ErrObjectUnreconstructable signals that an owned object's value is
	// permanently lost (its owner died, or a Plasma eviction could not be
	// recreated by rerunning the owning task).
	ErrObjectUnreconstructable = errors.New("object: unreconstructable")

	// ErrOwnerDied signals that Get failed because the object's owner
	// process is no longer reachable.
	ErrOwnerDied = errors.New("object: owner died")

	// ErrActorDied signals that an actor-task return value will never
	// arrive because the target actor is dead.
	ErrActorDied = errors.New("object: actor died")

	// ErrObjectNotFound signals a Contains/Get miss against a store that
	// has no entry and no pending future for the id.
	ErrObjectNotFound = errors.New("object: not found")
)

// TaskExecutionError wraps a user task's thrown/returned error so it can be
// stored as the object value of every one of a failed task's return ids.
type TaskExecutionError struct {
	TaskID  ids.TaskID
	Message string
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("object: task %s failed: %s", e.TaskID, e.Message)
}
