// Package actorregistry implements the actor handle registry and its
// subscription state machine over actor lifecycle notifications (§2 row 6,
// §4.5).
package actorregistry

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/embercore/workerrt/pkg/actorhandle"
	"github.com/embercore/workerrt/pkg/ids"
)

// LifecycleState mirrors the metadata service's actor `state` field.
type LifecycleState int

const (
	Reconstructing LifecycleState = iota
	Alive
	Dead
)

func (s LifecycleState) String() string {
	switch s {
	case Alive:
		return "alive"
	case Dead:
		return "dead"
	default:
		return "reconstructing"
	}
}

// NotifyFunc receives one actor lifecycle notification: the new state and,
// when state == Alive, the address the actor is now reachable at.
type NotifyFunc func(state LifecycleState, ip string, port int)

// Subscriber receives actor lifecycle notifications from the metadata
// service. AsyncSubscribe/AsyncUnsubscribe model the out-of-scope
// MetadataService interface named in §6.
type Subscriber interface {
	AsyncSubscribe(actorID ids.ActorID, onNotify NotifyFunc) error
	AsyncUnsubscribe(actorID ids.ActorID) error
}

// Connector is the DirectActorSubmitter's lifecycle surface: connect on
// Alive, soft-disconnect on Reconstructing, hard-disconnect on Dead (§4.5
// table).
type Connector interface {
	Connect(actorID ids.ActorID, ip string, port int)
	DisconnectSoft(actorID ids.ActorID)
	DisconnectHard(actorID ids.ActorID)
}

type entry struct {
	handle *actorhandle.Handle
	state  LifecycleState
}

// Registry is the §2 row 6 ActorHandleRegistry.
type Registry struct {
	mu       sync.Mutex
	handles  map[ids.ActorID]*entry
	sub      Subscriber
	conn     Connector
	log      *slog.Logger
}

// New constructs a Registry wired to the metadata-service subscriber and
// the direct-actor submitter's connection lifecycle.
func New(sub Subscriber, conn Connector, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		handles: make(map[ids.ActorID]*entry),
		sub:     sub,
		conn:    conn,
		log:     log,
	}
}

// AddActorHandle registers handle and, on first insertion, subscribes to
// actor notifications. Returns false if an identical actor id was already
// registered (duplicate insertion is a silent success per §4.5).
func (r *Registry) AddActorHandle(handle *actorhandle.Handle) (inserted bool) {
	r.mu.Lock()
	if _, exists := r.handles[handle.ActorID]; exists {
		r.mu.Unlock()
		return false
	}
	r.handles[handle.ActorID] = &entry{handle: handle, state: Reconstructing}
	r.mu.Unlock()

	if r.sub != nil {
		err := r.sub.AsyncSubscribe(handle.ActorID, func(state LifecycleState, ip string, port int) {
			r.onNotify(handle.ActorID, state, ip, port)
		})
		if err != nil {
			r.log.Warn("actorregistry: subscribe failed", "actor_id", handle.ActorID.String(), "error", err)
		}
	}
	return true
}

// onNotify runs the §4.5 state machine for a single actor notification.
func (r *Registry) onNotify(actorID ids.ActorID, state LifecycleState, ip string, port int) {
	r.mu.Lock()
	e, ok := r.handles[actorID]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.state = state
	handle := e.handle
	r.mu.Unlock()

	switch state {
	case Reconstructing:
		if handle.IsDirectCall {
			handle.Reset()
		}
		if r.conn != nil {
			r.conn.DisconnectSoft(actorID)
		}
	case Alive:
		if r.conn != nil {
			r.conn.Connect(actorID, ip, port)
		}
	case Dead:
		if r.conn != nil {
			r.conn.DisconnectHard(actorID)
		}
		r.log.Info("actorregistry: actor marked dead, handle retained", "actor_id", actorID.String())
	}
}

// GetActorHandle returns the registered handle for actorID.
func (r *Registry) GetActorHandle(actorID ids.ActorID) (*actorhandle.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.handles[actorID]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

// IsDead reports whether actorID's last known lifecycle state is Dead. A
// caller submitting a task must fail synchronously rather than enqueue
// (§4.6 Actor task, §7 "Actor dead at submit").
func (r *Registry) IsDead(actorID ids.ActorID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.handles[actorID]
	return ok && e.state == Dead
}

// Clear unsubscribes and empties every non-dead handle, matching the
// SetCurrentTaskId(nil) boundary behavior in §4.5: dead actors are
// retained and their unsubscription deferred to process exit, to avoid
// crashing bulk-unsubscribe.
func (r *Registry) Clear() {
	r.mu.Lock()
	toUnsub := make([]ids.ActorID, 0, len(r.handles))
	for actorID, e := range r.handles {
		if e.state != Dead {
			toUnsub = append(toUnsub, actorID)
		}
	}
	for _, actorID := range toUnsub {
		delete(r.handles, actorID)
	}
	r.mu.Unlock()

	if r.sub == nil {
		return
	}
	for _, actorID := range toUnsub {
		if err := r.sub.AsyncUnsubscribe(actorID); err != nil {
			r.log.Warn("actorregistry: unsubscribe failed", "actor_id", actorID.String(), "error", err)
		}
	}
}

// SerializeActorHandle emits the stable wire form of the handle registered
// for actorID (§4.5 Serialize).
func (r *Registry) SerializeActorHandle(actorID ids.ActorID) ([]byte, error) {
	handle, ok := r.GetActorHandle(actorID)
	if !ok {
		return nil, fmt.Errorf("actorregistry: no handle for actor %s", actorID)
	}
	return handle.Serialize()
}

// DeserializeAndRegisterActorHandle reconstructs a handle from wire bytes
// and registers it. Duplicate insertion is a silent success.
func (r *Registry) DeserializeAndRegisterActorHandle(b []byte) (*actorhandle.Handle, error) {
	handle, err := actorhandle.Deserialize(b)
	if err != nil {
		return nil, fmt.Errorf("actorregistry: %w", err)
	}
	r.AddActorHandle(handle)
	return handle, nil
}
