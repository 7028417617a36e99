// Package directtask implements the DirectTaskSubmitter: it leases a
// worker for a normal task, sends the task over RPC, and tracks in-flight
// submissions (§2 row 8, §4.6). Grounded on the teacher's worker_pool.go
// task/result channel pattern.
package directtask

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/embercore/workerrt/pkg/task"
)

// LeaseClient leases a worker address to run a task, mirroring the
// supervisor's worker-lease RPC (§6 RayletClient, worker_lease_timeout_ms).
type LeaseClient interface {
	RequestWorkerLease(ctx context.Context, spec *task.Spec) (object.Address, error)
}

// PushClient sends a task to an already-leased worker over the direct-call
// wire transport (§6 CoreWorkerClient PushTask).
type PushClient interface {
	PushTask(ctx context.Context, addr object.Address, spec *task.Spec) ([]*object.Object, error)
}

// CompletionCallback is invoked once per submitted task, successful or not.
type CompletionCallback func(spec *task.Spec, results []*object.Object, err error)

// inFlight tracks one outstanding submission.
type inFlight struct {
	spec *task.Spec
	done chan struct{}
}

// Submitter is the §2 row 8 DirectTaskSubmitter.
type Submitter struct {
	lease LeaseClient
	push  PushClient
	log   *slog.Logger

	mu       sync.Mutex
	inFlight map[ids.TaskID]*inFlight
}

// New constructs a Submitter over the given lease and push clients.
func New(lease LeaseClient, push PushClient, log *slog.Logger) *Submitter {
	if log == nil {
		log = slog.Default()
	}
	return &Submitter{
		lease:    lease,
		push:     push,
		log:      log,
		inFlight: make(map[ids.TaskID]*inFlight),
	}
}

// Submit leases a worker and pushes spec to it, invoking cb on completion.
// It returns once the submission attempt has started; completion is
// asynchronous, matching §4.4's "Completion arrives via a callback from the
// submitter."
func (s *Submitter) Submit(ctx context.Context, spec *task.Spec, cb CompletionCallback) {
	f := &inFlight{spec: spec, done: make(chan struct{})}
	s.mu.Lock()
	s.inFlight[spec.TaskID] = f
	s.mu.Unlock()

	go func() {
		defer close(f.done)
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, spec.TaskID)
			s.mu.Unlock()
		}()

		addr, err := s.lease.RequestWorkerLease(ctx, spec)
		if err != nil {
			s.log.Warn("directtask: lease failed", "task_id", spec.TaskID.String(), "error", err)
			cb(spec, nil, fmt.Errorf("directtask: lease failed: %w", err))
			return
		}

		results, err := s.push.PushTask(ctx, addr, spec)
		if err != nil {
			s.log.Warn("directtask: push failed", "task_id", spec.TaskID.String(), "error", err)
			cb(spec, nil, fmt.Errorf("directtask: push failed: %w", err))
			return
		}
		cb(spec, results, nil)
	}()
}

// NumInFlight reports the number of outstanding submissions, for
// GetCoreWorkerStats.
func (s *Submitter) NumInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}
