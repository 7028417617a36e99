// Package actorhandle defines the portable handle a caller holds to submit
// tasks to an actor, and its gob-serializable wire form (§4.5).
package actorhandle

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/embercore/workerrt/pkg/task"
)

// Handle is a caller-local view of an actor: enough to submit tasks to it
// and to track per-caller ordering via a monotonic task counter.
//
// A Handle is not safe to share across goroutines without the owning
// registry's lock; callers obtain copies, never pointers, from the
// registry.
type Handle struct {
	ActorID       ids.ActorID
	OwnerAddress  object.Address
	ActorAddress  object.Address // empty until the actor's location is known
	ActorCreationDummyID ids.ObjectID
	MaxConcurrency int
	IsDirectCall  bool

	mu      sync.Mutex
	counter uint64
}

// NewHandle constructs a Handle for an actor this worker just created or
// just received a reference to.
func NewHandle(actorID ids.ActorID, owner object.Address, maxConcurrency int, directCall bool) *Handle {
	return &Handle{
		ActorID:        actorID,
		OwnerAddress:   owner,
		ActorCreationDummyID: ids.ForActorCreationReturn(actorID, transportOf(directCall)),
		MaxConcurrency: maxConcurrency,
		IsDirectCall:   directCall,
	}
}

// Reset restarts this handle's sequence numbers from zero. Called after an
// actor transitions to Reconstructing, since the new incarnation has no
// knowledge of sequence numbers already claimed against the old one (T6).
func (h *Handle) Reset() {
	h.mu.Lock()
	h.counter = 0
	h.ActorAddress = object.Address{}
	h.mu.Unlock()
}

func transportOf(directCall bool) ids.TransportType {
	if directCall {
		return ids.Direct
	}
	return ids.Raylet
}

// NextTaskIndex returns the next sequence number to stamp on a task
// submitted to this actor through this handle, incrementing the counter.
// Each caller-local handle keeps its own sequence so the receiver can order
// tasks per caller (§4.5's per-handle ordering invariant).
func (h *Handle) NextTaskIndex() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counter++
	return h.counter
}

// wireHandle is the gob-encodable snapshot of a Handle (§4.5 Serialize).
type wireHandle struct {
	ActorID               ids.ActorID
	OwnerAddress          object.Address
	ActorAddress          object.Address
	ActorCreationDummyID  ids.ObjectID
	MaxConcurrency        int
	IsDirectCall          bool
	Counter               uint64
}

// Serialize produces the wire bytes sent when this handle is passed as a
// task argument or return value to another worker.
func (h *Handle) Serialize() ([]byte, error) {
	h.mu.Lock()
	w := wireHandle{
		ActorID:              h.ActorID,
		OwnerAddress:         h.OwnerAddress,
		ActorAddress:         h.ActorAddress,
		ActorCreationDummyID: h.ActorCreationDummyID,
		MaxConcurrency:       h.MaxConcurrency,
		IsDirectCall:         h.IsDirectCall,
		Counter:              h.counter,
	}
	h.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, fmt.Errorf("actorhandle: serialize: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize reconstructs a Handle from bytes produced by Serialize. The
// counter is carried over so that a handle forwarded between workers does
// not reuse sequence numbers already claimed by the sender (§4.5
// DeserializeAndRegisterActorHandle).
func Deserialize(b []byte) (*Handle, error) {
	var w wireHandle
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&w); err != nil {
		return nil, fmt.Errorf("actorhandle: deserialize: %w", err)
	}
	return &Handle{
		ActorID:               w.ActorID,
		OwnerAddress:          w.OwnerAddress,
		ActorAddress:          w.ActorAddress,
		ActorCreationDummyID:  w.ActorCreationDummyID,
		MaxConcurrency:        w.MaxConcurrency,
		IsDirectCall:          w.IsDirectCall,
		counter:               w.Counter,
	}, nil
}

// BuildSubmitSpec fills in the ActorHandleID/ActorCounter/Type fields of a
// partially-built task.Spec for submission through this handle.
func (h *Handle) BuildSubmitSpec(spec *task.Spec) {
	spec.Type = task.ActorMethod
	spec.ActorHandleID = h.ActorID
	spec.ActorCounter = h.NextTaskIndex()
	spec.Options.IsDirectCall = h.IsDirectCall
}
