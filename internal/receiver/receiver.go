// Package receiver decodes incoming task RPCs and enqueues them onto the
// task execution service (§2 row 10, §4.7, §6 AssignTask/PushTask). Two
// thin receivers share one Executor: RayletTaskReceiver for the supervisor
// path, DirectTaskReceiver for the worker-to-worker path.
package receiver

import (
	"fmt"
	"log/slog"

	"github.com/embercore/workerrt/internal/execsvc"
	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/embercore/workerrt/pkg/task"
)

// Executor runs one task to completion and returns its return objects.
// CoreWorker.ExecuteTask implements this; kept as an interface here so
// receiver does not import coreworker.
type Executor interface {
	ExecuteTask(spec *task.Spec) ([]*object.Object, error)
}

// ReplyFunc delivers a completed task's results (or failure) back to the
// RPC caller.
type ReplyFunc func(results []*object.Object, err error)

// base holds the shared enqueue-and-execute plumbing for both receivers.
type base struct {
	svc      *execsvc.Service
	executor Executor
	log      *slog.Logger
}

func (b *base) enqueue(spec *task.Spec, reply ReplyFunc) error {
	err := b.svc.Post(func() {
		results, execErr := b.executor.ExecuteTask(spec)
		reply(results, execErr)
	})
	if err != nil {
		return fmt.Errorf("receiver: enqueue task %s: %w", spec.TaskID, err)
	}
	return nil
}

// RayletReceiver handles the legacy path that routes through the
// supervisor (§6 AssignTask).
type RayletReceiver struct {
	base
	// directCallOnlyActor, when non-nil, rejects AssignTask with invalid
	// argument because the current actor only accepts direct-call tasks.
	directCallOnlyActor func() bool
}

// NewRayletReceiver constructs a RayletReceiver posting onto svc.
func NewRayletReceiver(svc *execsvc.Service, executor Executor, directCallOnlyActor func() bool, log *slog.Logger) *RayletReceiver {
	if log == nil {
		log = slog.Default()
	}
	return &RayletReceiver{
		base:                 base{svc: svc, executor: executor, log: log},
		directCallOnlyActor: directCallOnlyActor,
	}
}

// AssignTask handles an inbound raylet-path task assignment.
func (r *RayletReceiver) AssignTask(intendedWorkerID, selfWorkerID ids.WorkerID, spec *task.Spec, reply ReplyFunc) error {
	if intendedWorkerID != selfWorkerID {
		return fmt.Errorf("receiver: AssignTask for worker %s received by %s", intendedWorkerID, selfWorkerID)
	}
	if r.directCallOnlyActor != nil && r.directCallOnlyActor() {
		return fmt.Errorf("receiver: AssignTask rejected, actor is direct-call-only")
	}
	return r.enqueue(spec, reply)
}

// DirectReceiver handles the worker-to-worker direct-call path (§6
// PushTask, DirectActorCallArgWaitComplete).
type DirectReceiver struct {
	base
}

// NewDirectReceiver constructs a DirectReceiver posting onto svc.
func NewDirectReceiver(svc *execsvc.Service, executor Executor, log *slog.Logger) *DirectReceiver {
	if log == nil {
		log = slog.Default()
	}
	return &DirectReceiver{base: base{svc: svc, executor: executor, log: log}}
}

// PushTask handles an inbound direct-call task.
func (d *DirectReceiver) PushTask(intendedWorkerID, selfWorkerID ids.WorkerID, spec *task.Spec, reply ReplyFunc) error {
	if intendedWorkerID != selfWorkerID {
		return fmt.Errorf("receiver: PushTask for worker %s received by %s", intendedWorkerID, selfWorkerID)
	}
	return d.enqueue(spec, reply)
}

// ArgWaitComplete signals that a previously deferred by-reference argument
// for taskID is now ready. The default executor resolves arguments eagerly
// inside ExecuteTask, so this is a logging hook for deployments that defer
// argument resolution; kept to satisfy §6's handler surface.
func (d *DirectReceiver) ArgWaitComplete(taskID ids.TaskID, argIndex int) {
	d.log.Debug("receiver: arg wait complete", "task_id", taskID.String(), "arg_index", argIndex)
}
