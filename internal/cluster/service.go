package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/embercore/workerrt/internal/actorregistry"
	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/embercore/workerrt/pkg/task"
)

// Dispatcher delivers a raylet-path task spec to a specific node and
// returns its results once the node's worker finishes executing it. A real
// deployment backs this with rpc.NodeManagerWorkerClient.AssignTask; tests
// and cmd/workerd wire it directly against an in-process CoreWorker.
type Dispatcher interface {
	AssignTask(ctx context.Context, spec *task.Spec) ([]*object.Object, error)
}

type nodeEntry struct {
	addr       object.Address
	dispatcher Dispatcher
}

// Service is the local stand-in for the out-of-scope metadata service and
// per-node supervisor: a single shared authority over node membership,
// actor lifecycle, and pinned-object placement, durable across restarts.
type Service struct {
	mu   sync.Mutex
	wal  *WAL
	snap *SnapshotManager
	st   *state

	nodes    map[ids.NodeID]*nodeEntry
	nodeOrder []ids.NodeID
	nextNode int

	subs map[ids.ActorID]actorregistry.NotifyFunc

	log *slog.Logger
}

// Open recovers Service state from snap (if present) and replays any WAL
// events written since the last checkpoint.
func Open(walPath, snapPath string, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	snap := NewSnapshotManager(snapPath)
	data, err := snap.Load()
	if err != nil {
		return nil, fmt.Errorf("cluster: load snapshot: %w", err)
	}

	wal, err := OpenWAL(walPath)
	if err != nil {
		return nil, fmt.Errorf("cluster: open wal: %w", err)
	}

	st := newState()
	st.loadSnapshot(data)
	if err := wal.Replay(func(e Event) error {
		st.apply(e)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("cluster: replay wal: %w", err)
	}

	return &Service{
		wal:   wal,
		snap:  snap,
		st:    st,
		nodes: make(map[ids.NodeID]*nodeEntry),
		subs:  make(map[ids.ActorID]actorregistry.NotifyFunc),
		log:   log,
	}, nil
}

// Checkpoint snapshots current state and rotates the WAL, matching the
// teacher's "snapshot then truncate" recovery discipline.
func (s *Service) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.st.snapshot()
	data.LastSeq = s.wal.GetLastSeq()
	if err := s.snap.Write(data); err != nil {
		return err
	}
	return s.wal.Rotate()
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wal.Close()
}

// RegisterNode makes a node known for task dispatch and records its join
// in the WAL.
func (s *Service) RegisterNode(nodeID ids.NodeID, addr object.Address, dispatcher Dispatcher) error {
	s.mu.Lock()
	if _, exists := s.nodes[nodeID]; !exists {
		s.nodeOrder = append(s.nodeOrder, nodeID)
	}
	s.nodes[nodeID] = &nodeEntry{addr: addr, dispatcher: dispatcher}
	s.mu.Unlock()

	return s.wal.Append(EventNodeJoined, Event{NodeID: nodeID, IP: addr.IP, Port: addr.Port}, false)
}

func (s *Service) UnregisterNode(nodeID ids.NodeID) error {
	s.mu.Lock()
	delete(s.nodes, nodeID)
	for i, n := range s.nodeOrder {
		if n == nodeID {
			s.nodeOrder = append(s.nodeOrder[:i], s.nodeOrder[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return s.wal.Append(EventNodeLeft, Event{NodeID: nodeID}, false)
}

// NodeCount reports how many nodes are currently registered for dispatch.
func (s *Service) NodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodeOrder)
}

func (s *Service) pickNode() (ids.NodeID, *nodeEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.nodeOrder) == 0 {
		return ids.NilNodeID, nil, false
	}
	idx := s.nextNode % len(s.nodeOrder)
	s.nextNode++
	nodeID := s.nodeOrder[idx]
	return nodeID, s.nodes[nodeID], true
}

// addTask backs Client.AddTask, one of the coreworker.MetadataClient
// methods the per-worker Client implements (see client.go); it only logs
// the registration.
func (s *Service) addTask(ctx context.Context, spec *task.Spec) error {
	s.log.Debug("cluster: task registered", "task_id", spec.TaskID.String(), "job_id", spec.JobID.String())
	return nil
}

// submitTask hands spec to a chosen node's dispatcher asynchronously,
// matching the supervisor's real asynchronous scheduling (§4.6 "Normal
// task" submits and returns without waiting for completion). Actor-creation
// tasks additionally drive the §4.5 lifecycle notification once the node
// reports the actor running.
func (s *Service) submitTask(ctx context.Context, spec *task.Spec) error {
	if spec.Type == task.ActorCreation {
		if err := s.wal.Append(EventActorCreated, Event{ActorID: spec.ActorID}, false); err != nil {
			return err
		}
		s.st.apply(Event{Type: EventActorCreated, ActorID: spec.ActorID})
	}

	nodeID, entry, ok := s.pickNode()
	if !ok {
		return fmt.Errorf("cluster: no node registered to run task %s", spec.TaskID)
	}

	go func() {
		results, err := entry.dispatcher.AssignTask(context.Background(), spec)
		if err != nil {
			s.log.Warn("cluster: node execution failed", "task_id", spec.TaskID.String(), "node_id", nodeID.String(), "error", err)
			if spec.Type == task.ActorCreation {
				s.markActorDead(spec.ActorID)
			}
			return
		}
		_ = results
		if spec.Type == task.ActorCreation {
			s.markActorAlive(spec.ActorID, entry.addr.IP, entry.addr.Port)
		}
	}()
	return nil
}

func (s *Service) markActorAlive(actorID ids.ActorID, ip string, port int) {
	_ = s.wal.Append(EventActorAlive, Event{ActorID: actorID, IP: ip, Port: port}, false)
	s.st.apply(Event{Type: EventActorAlive, ActorID: actorID, IP: ip, Port: port})
	s.notify(actorID, Alive, ip, port)
}

func (s *Service) markActorDead(actorID ids.ActorID) {
	_ = s.wal.Append(EventActorDead, Event{ActorID: actorID}, false)
	s.st.apply(Event{Type: EventActorDead, ActorID: actorID})
	s.notify(actorID, Dead, "", 0)
}

func (s *Service) pinObject(ctx context.Context, owner object.Address, id ids.ObjectID) error {
	if err := s.wal.Append(EventObjectPinned, Event{ObjectID: id, NodeID: owner.NodeID}, false); err != nil {
		return err
	}
	s.st.apply(Event{Type: EventObjectPinned, ObjectID: id, NodeID: owner.NodeID})
	return nil
}

func (s *Service) subscribeActor(actorID ids.ActorID, onNotify actorregistry.NotifyFunc) error {
	s.mu.Lock()
	s.subs[actorID] = onNotify
	s.mu.Unlock()

	if rec, ok := s.st.actorRecord(actorID); ok && rec.State != Reconstructing {
		onNotify(toLifecycle(rec.State), rec.IP, rec.Port)
	}
	return nil
}

func (s *Service) unsubscribeActor(actorID ids.ActorID) error {
	s.mu.Lock()
	delete(s.subs, actorID)
	s.mu.Unlock()
	return nil
}

func (s *Service) notify(actorID ids.ActorID, state LifecycleState, ip string, port int) {
	s.mu.Lock()
	fn, ok := s.subs[actorID]
	s.mu.Unlock()
	if !ok {
		return
	}
	fn(toLifecycle(state), ip, port)
}

func toLifecycle(s LifecycleState) actorregistry.LifecycleState {
	switch s {
	case Alive:
		return actorregistry.Alive
	case Dead:
		return actorregistry.Dead
	default:
		return actorregistry.Reconstructing
	}
}

func (s *Service) pushError(jobID ids.JobID, errorType, message string, ts time.Time) {
	s.log.Warn("cluster: worker-reported error", "job_id", jobID.String(), "type", errorType, "message", message, "at", ts)
}
