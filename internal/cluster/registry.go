package cluster

import (
	"sync"

	"github.com/embercore/workerrt/pkg/ids"
)

// LifecycleState mirrors actorregistry.LifecycleState; duplicated here so
// this package has no dependency on the worker-side registry it notifies.
type LifecycleState int

const (
	Reconstructing LifecycleState = iota
	Alive
	Dead
)

// state is the in-memory view rebuilt from the WAL/snapshot pair and
// mutated as new events are applied. All access goes through state's
// methods, which guard the maps with state's own mu.
type state struct {
	mu            sync.RWMutex
	actors        map[ids.ActorID]ActorRecord
	pinnedObjects map[ids.ObjectID]ids.NodeID
	nodes         map[ids.NodeID]NodeRecord
}

func newState() *state {
	return &state{
		actors:        make(map[ids.ActorID]ActorRecord),
		pinnedObjects: make(map[ids.ObjectID]ids.NodeID),
		nodes:         make(map[ids.NodeID]NodeRecord),
	}
}

func (s *state) loadSnapshot(data SnapshotData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors = data.Actors
	s.pinnedObjects = data.PinnedObjects
	s.nodes = data.Nodes
}

func (s *state) snapshot() SnapshotData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data := newSnapshotData()
	for k, v := range s.actors {
		data.Actors[k] = v
	}
	for k, v := range s.pinnedObjects {
		data.PinnedObjects[k] = v
	}
	for k, v := range s.nodes {
		data.Nodes[k] = v
	}
	return data
}

// apply folds one WAL event into the in-memory view; used both for live
// events and for replay during recovery.
func (s *state) apply(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch e.Type {
	case EventNodeJoined:
		s.nodes[e.NodeID] = NodeRecord{IP: e.IP, Port: e.Port}
	case EventNodeLeft:
		delete(s.nodes, e.NodeID)
	case EventActorCreated, EventActorReconstruct:
		rec := s.actors[e.ActorID]
		rec.State = Reconstructing
		s.actors[e.ActorID] = rec
	case EventActorAlive:
		s.actors[e.ActorID] = ActorRecord{State: Alive, IP: e.IP, Port: e.Port}
	case EventActorDead:
		rec := s.actors[e.ActorID]
		rec.State = Dead
		s.actors[e.ActorID] = rec
	case EventObjectPinned:
		s.pinnedObjects[e.ObjectID] = e.NodeID
	case EventObjectUnpinned:
		delete(s.pinnedObjects, e.ObjectID)
	}
}

func (s *state) actorRecord(actorID ids.ActorID) (ActorRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.actors[actorID]
	return rec, ok
}

func (s *state) isObjectPinned(id ids.ObjectID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pinnedObjects[id]
	return ok
}
