// Package directactor implements the DirectActorSubmitter: a per-actor
// ordered submission queue that connects and disconnects as the actor's
// lifecycle notifications arrive (§2 row 9, §4.5, §4.6).
package directactor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/embercore/workerrt/pkg/task"
)

// PushClient sends an actor task to the actor's current address.
type PushClient interface {
	PushTask(ctx context.Context, addr object.Address, spec *task.Spec) ([]*object.Object, error)
}

// CompletionCallback is invoked once per submitted actor task.
type CompletionCallback func(spec *task.Spec, results []*object.Object, err error)

// queuedTask is one task waiting for the actor to be reachable, or already
// in flight.
type queuedTask struct {
	spec *task.Spec
	cb   CompletionCallback
}

// actorQueue holds the ordered, per-actor submission state (T5).
type actorQueue struct {
	mu        sync.Mutex
	address   object.Address
	connected bool
	queue     []*queuedTask
}

// Submitter is the §2 row 9 DirectActorSubmitter. It implements
// actorregistry.Connector so the registry's lifecycle state machine can
// drive Connect/DisconnectSoft/DisconnectHard directly.
type Submitter struct {
	push PushClient
	log  *slog.Logger

	mu     sync.Mutex
	queues map[ids.ActorID]*actorQueue
}

// New constructs a Submitter over the given push client.
func New(push PushClient, log *slog.Logger) *Submitter {
	if log == nil {
		log = slog.Default()
	}
	return &Submitter{
		push:   push,
		log:    log,
		queues: make(map[ids.ActorID]*actorQueue),
	}
}

func (s *Submitter) queueFor(actorID ids.ActorID) *actorQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[actorID]
	if !ok {
		q = &actorQueue{}
		s.queues[actorID] = q
	}
	return q
}

// Submit enqueues spec for actorID. If the actor is already connected, the
// task is flushed immediately, preserving submission order with any tasks
// already queued ahead of it (T5).
func (s *Submitter) Submit(actorID ids.ActorID, spec *task.Spec, cb CompletionCallback) {
	q := s.queueFor(actorID)
	q.mu.Lock()
	q.queue = append(q.queue, &queuedTask{spec: spec, cb: cb})
	connected, addr := q.connected, q.address
	q.mu.Unlock()

	if connected {
		s.flush(actorID, q, addr)
	}
}

// Connect implements actorregistry.Connector: marks actorID reachable at
// ip:port and flushes any tasks queued while it was unreachable, in order
// (§4.5 table, "Alive" row).
func (s *Submitter) Connect(actorID ids.ActorID, ip string, port int) {
	q := s.queueFor(actorID)
	q.mu.Lock()
	q.connected = true
	q.address = object.Address{IP: ip, Port: port}
	addr := q.address
	q.mu.Unlock()
	s.flush(actorID, q, addr)
}

// DisconnectSoft implements actorregistry.Connector: drops the open
// connection but leaves queued tasks in place for reissue on reconnect
// (§4.5 table, "Reconstructing" row).
func (s *Submitter) DisconnectSoft(actorID ids.ActorID) {
	q := s.queueFor(actorID)
	q.mu.Lock()
	q.connected = false
	q.mu.Unlock()
}

// DisconnectHard implements actorregistry.Connector: fails every queued
// task with ActorDied (§4.5 table, "Dead" row).
func (s *Submitter) DisconnectHard(actorID ids.ActorID) {
	q := s.queueFor(actorID)
	q.mu.Lock()
	q.connected = false
	pending := q.queue
	q.queue = nil
	q.mu.Unlock()

	for _, qt := range pending {
		qt.cb(qt.spec, nil, object.ErrActorDied)
	}
}

// flush drains and pushes every task queued for actorID in order.
func (s *Submitter) flush(actorID ids.ActorID, q *actorQueue, addr object.Address) {
	for {
		q.mu.Lock()
		if len(q.queue) == 0 || !q.connected {
			q.mu.Unlock()
			return
		}
		qt := q.queue[0]
		q.queue = q.queue[1:]
		q.mu.Unlock()

		results, err := s.push.PushTask(context.Background(), addr, qt.spec)
		if err != nil {
			s.log.Warn("directactor: push failed", "actor_id", actorID.String(), "task_id", qt.spec.TaskID.String(), "error", err)
			qt.cb(qt.spec, nil, fmt.Errorf("directactor: push failed: %w", err))
			continue
		}
		qt.cb(qt.spec, results, nil)
	}
}

// KillActor forwards an out-of-band kill RPC for a direct-call actor
// (§4.6 KillActor).
func (s *Submitter) KillActor(ctx context.Context, actorID ids.ActorID, killer interface {
	KillActor(ctx context.Context, addr object.Address, actorID ids.ActorID) error
}) error {
	q := s.queueFor(actorID)
	q.mu.Lock()
	addr, connected := q.address, q.connected
	q.mu.Unlock()
	if !connected {
		return fmt.Errorf("directactor: actor %s not connected", actorID)
	}
	return killer.KillActor(ctx, addr, actorID)
}
