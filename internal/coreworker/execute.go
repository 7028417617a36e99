package coreworker

import (
	"context"
	"fmt"

	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/embercore/workerrt/pkg/task"
)

// ExecuteTask runs one task to completion, implementing §4.7's execution
// loop and receiver.Executor. RayletReceiver/DirectReceiver invoke it on
// the execution service's goroutine; the in-process dispatchers in
// internal/cli and cmd/driver call it directly on their own goroutine.
func (cw *CoreWorker) ExecuteTask(spec *task.Spec) ([]*object.Object, error) {
	cw.mu.Lock()
	cw.executedCount++
	cw.mu.Unlock()

	cw.ctx.SetCurrentTask(spec.TaskID)
	if spec.IsActorTask() {
		cw.ctx.SetCurrentActorID(spec.ActorHandleID)
	}
	defer cw.clearCurrentTaskState(spec)

	if cw.cfg.ProfileEvent != nil {
		cw.cfg.ProfileEvent("execute_task:" + spec.TaskID.String())
	}

	args, argRefIDs, err := cw.buildArgsForExecutor(spec)
	if err != nil {
		return nil, fmt.Errorf("coreworker: ExecuteTask: BuildArgsForExecutor: %w", err)
	}

	returnIDs := spec.ReturnIDs()
	actualReturnIDs := returnIDs
	if spec.Type == task.ActorCreation || spec.Type == task.ActorMethod {
		// The trailing cursor id is a bookkeeping artifact, not a value the
		// callback produces (§4.7 step 4).
		if len(returnIDs) > 0 {
			actualReturnIDs = returnIDs[:len(returnIDs)-1]
		} else {
			actualReturnIDs = returnIDs
		}
	}

	if cw.cfg.TaskExecutionCallback == nil {
		return nil, fmt.Errorf("coreworker: ExecuteTask: no TaskExecutionCallback configured")
	}
	results, err := cw.cfg.TaskExecutionCallback(spec, args, actualReturnIDs)
	_ = argRefIDs
	if err != nil {
		return nil, err
	}

	if err := cw.writeBackReturnObjects(actualReturnIDs, results, spec); err != nil {
		return nil, fmt.Errorf("coreworker: ExecuteTask: writeback: %w", err)
	}

	if spec.Type == task.Normal && cw.refCounter.NumObjectIDsInScope() > 0 {
		cw.log.Debug("coreworker: reference counter non-empty after normal task, possible leak",
			"task_id", spec.TaskID.String(), "in_scope", cw.refCounter.NumObjectIDsInScope())
	}

	return results, nil
}

// buildArgsForExecutor implements §4.7 step 3: by-reference direct-call
// args are redirected to plasma via an InPlasmaError sentinel write, then
// fetched with an unlimited timeout; by-value args are wrapped as-is.
func (cw *CoreWorker) buildArgsForExecutor(spec *task.Spec) ([]task.Arg, []ids.ObjectID, error) {
	args := make([]task.Arg, len(spec.Args))
	var refIDs []ids.ObjectID

	for i, a := range spec.Args {
		if a.Kind == task.ArgByValue {
			args[i] = a
			continue
		}
		refIDs = append(refIDs, a.Ref)
		if a.Ref.IsDirectCallType() {
			cw.memStore.GetOrPromoteToPlasma(a.Ref)
		}
	}

	if len(refIDs) > 0 {
		values, err := cw.Get(context.Background(), refIDs, -1)
		if err != nil {
			return nil, nil, err
		}
		vi := 0
		for i, a := range spec.Args {
			if a.Kind == task.ArgByReference {
				args[i] = task.Arg{Kind: task.ArgByValue, Value: values[vi], Ref: a.Ref}
				vi++
			}
		}
	}
	return args, refIDs, nil
}

// writeBackReturnObjects implements §4.7 step 6 after the callback has
// returned: each non-nil return value that allocateReturnObjects routes to
// plasma (every raylet-path return, and direct-call returns that meet the
// promotion rule) is Put into plasma; other direct-call returns are Put
// into the memory store.
func (cw *CoreWorker) writeBackReturnObjects(returnIDs []ids.ObjectID, results []*object.Object, spec *task.Spec) error {
	for i, id := range returnIDs {
		if i >= len(results) {
			break
		}
		obj := results[i]
		if obj.IsNil() {
			continue // no return value; nil-passthrough (SPEC_FULL §12)
		}

		allocation := cw.allocateReturnObjects(id, obj, spec.Options.IsDirectCall)
		if allocation.usePlasma {
			if err := cw.cfg.Plasma.Put(context.Background(), id, obj.Data, obj.Metadata); err != nil {
				return err
			}
			continue
		}
		cw.memStore.Put(id, obj)
	}
	return nil
}

// returnAllocation records whether a return object's ObjectId (T4's
// promotion rule) resolved to plasma instead of the memory tier.
type returnAllocation struct {
	usePlasma bool
}

// allocateReturnObjects implements SPEC_FULL §12's AllocateReturnObjects:
// promotion rule (T4) is enforced here -- size >= max_direct_call_object_size
// or non-empty contained ids forces plasma allocation instead of the memory
// tier, even for a direct-call return id.
func (cw *CoreWorker) allocateReturnObjects(id ids.ObjectID, obj *object.Object, isDirectCall bool) returnAllocation {
	if !id.IsDirectCallType() {
		return returnAllocation{usePlasma: true}
	}
	tooLarge := cw.cfg.MaxDirectCallObjectSize > 0 && obj.Size() >= cw.cfg.MaxDirectCallObjectSize
	hasContainedIDs := len(obj.NestedIDs) > 0
	if tooLarge || hasContainedIDs {
		return returnAllocation{usePlasma: true}
	}
	return returnAllocation{usePlasma: false}
}

// clearCurrentTaskState implements §4.7 step 8 and, when leaving a
// non-actor task, the §4.5 actor-handle GC: SetCurrentTaskId(nil) with
// actor_id.IsNil() true unsubscribes and clears every actor handle.
func (cw *CoreWorker) clearCurrentTaskState(spec *task.Spec) {
	cw.ctx.SetCurrentTask(ids.NilTaskID)
	cw.ctx.ResetPutIndex()
	if spec.Type != task.ActorMethod {
		cw.ctx.SetCurrentActorID(ids.NilActorID)
		cw.actorReg.Clear()
	}
}
