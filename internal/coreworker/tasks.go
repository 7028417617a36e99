package coreworker

import (
	"context"
	"fmt"

	"github.com/embercore/workerrt/pkg/actorhandle"
	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/embercore/workerrt/pkg/task"
)

// buildCommonTaskSpec assembles the shared prefix of every task kind
// (§4.6 BuildCommonTaskSpec): a deterministic task-id and the resolved
// return-id list.
func (cw *CoreWorker) buildCommonTaskSpec(typ task.Type, fd task.FunctionDescriptor, args []task.Arg, opts task.Options) *task.Spec {
	currentTask := cw.ctx.CurrentTaskID()
	index := cw.ctx.NextTaskIndex()
	taskID := ids.ForNormalTask(cw.ctx.JobID, currentTask, index)

	return &task.Spec{
		TaskID:        taskID,
		JobID:         cw.ctx.JobID,
		Type:          typ,
		Function:      fd,
		Args:          args,
		Options:       opts,
		CallerAddress: cw.ctx.Address,
		CallerID:      cw.GetCallerId(),
	}
}

// SubmitTask submits a normal task: direct-call tasks go through
// AddPendingTask + DirectTaskSubmitter; raylet-path tasks go straight to
// the supervisor (§4.6 "Normal task").
func (cw *CoreWorker) SubmitTask(ctx context.Context, fd task.FunctionDescriptor, args []task.Arg, opts task.Options) ([]ids.ObjectID, error) {
	spec := cw.buildCommonTaskSpec(task.Normal, fd, args, opts)
	returnIDs := spec.ReturnIDs()
	for _, id := range returnIDs {
		cw.refCounter.AddOwnedObject(id, spec.TaskID, cw.ctx.Address)
	}

	if cw.cfg.ProfileEvent != nil {
		cw.cfg.ProfileEvent("submit_task:" + spec.TaskID.String())
	}

	if opts.IsDirectCall {
		if err := cw.taskMgr.AddPendingTask(spec.CallerID, spec, opts.MaxRetries); err != nil {
			return nil, fmt.Errorf("coreworker: SubmitTask: %w", err)
		}
		cw.submitViaDirectOrRaylet(ctx, spec)
		return returnIDs, nil
	}

	if cw.cfg.Raylet == nil {
		return nil, fmt.Errorf("coreworker: SubmitTask: no raylet client configured for non-direct-call task")
	}
	if err := cw.cfg.Raylet.SubmitTask(ctx, spec); err != nil {
		return nil, fmt.Errorf("coreworker: SubmitTask: %w", err)
	}
	return returnIDs, nil
}

// CreateActor builds and submits an actor-creation task with num_returns=1
// (the actor cursor), constructs and registers the ActorHandle, and
// submits like a normal task (§4.6 "Actor creation").
func (cw *CoreWorker) CreateActor(ctx context.Context, fd task.FunctionDescriptor, args []task.Arg, opts task.Options, actorOpts task.ActorCreationOptions) (ids.ActorID, error) {
	currentTask := cw.ctx.CurrentTaskID()
	index := cw.ctx.NextTaskIndex()
	actorID := ids.NewActorID(cw.ctx.JobID, currentTask, index)

	spec := cw.buildCommonTaskSpec(task.ActorCreation, fd, args, opts)
	spec.Options.NumReturns = 1
	spec.ActorID = actorID
	spec.ActorCreationOpt = actorOpts

	maxRetries := cw.cfg.ActorCreationMinRetries
	if actorOpts.MaxRestarts > maxRetries {
		maxRetries = actorOpts.MaxRestarts
	}

	returnIDs := spec.ReturnIDs()
	cw.refCounter.AddOwnedObject(returnIDs[0], spec.TaskID, cw.ctx.Address)

	handle := actorhandle.NewHandle(actorID, cw.ctx.Address, actorOpts.MaxConcurrency, opts.IsDirectCall)
	cw.actorReg.AddActorHandle(handle)

	if cw.cfg.ProfileEvent != nil {
		cw.cfg.ProfileEvent("create_actor:" + actorID.String())
	}

	if opts.IsDirectCall {
		if err := cw.taskMgr.AddPendingTask(spec.CallerID, spec, maxRetries); err != nil {
			return ids.NilActorID, fmt.Errorf("coreworker: CreateActor: %w", err)
		}
		cw.submitViaDirectOrRaylet(ctx, spec)
		return actorID, nil
	}

	if cw.cfg.Raylet == nil {
		return ids.NilActorID, fmt.Errorf("coreworker: CreateActor: no raylet client configured")
	}
	if err := cw.cfg.Raylet.SubmitTask(ctx, spec); err != nil {
		return ids.NilActorID, fmt.Errorf("coreworker: CreateActor: %w", err)
	}
	return actorID, nil
}

// SubmitActorTask looks up the handle, stamps a monotonic sequence number
// and rotates the actor cursor, and submits. A dead actor fails
// synchronously (§4.6 "Actor task", §7 "Actor dead at submit").
func (cw *CoreWorker) SubmitActorTask(ctx context.Context, actorID ids.ActorID, fd task.FunctionDescriptor, args []task.Arg, opts task.Options) ([]ids.ObjectID, error) {
	handle, ok := cw.actorReg.GetActorHandle(actorID)
	if !ok {
		return nil, fmt.Errorf("coreworker: SubmitActorTask: unknown actor %s", actorID)
	}
	if cw.actorReg.IsDead(actorID) {
		spec := cw.buildCommonTaskSpec(task.ActorMethod, fd, args, opts)
		returnIDs := spec.ReturnIDs()
		for _, id := range returnIDs {
			cw.memStore.PutError(id, object.ErrActorDied)
		}
		return nil, fmt.Errorf("coreworker: sent task to dead actor %s", actorID)
	}

	opts.NumReturns = opts.NumReturns + 1 // extra trailing cursor id
	spec := cw.buildCommonTaskSpec(task.ActorMethod, fd, args, opts)
	handle.BuildSubmitSpec(spec)

	allReturnIDs := spec.ReturnIDs()
	returnIDs := allReturnIDs[:len(allReturnIDs)-1]
	newCursor := allReturnIDs[len(allReturnIDs)-1]

	for _, id := range returnIDs {
		cw.refCounter.AddOwnedObject(id, spec.TaskID, cw.ctx.Address)
	}
	cw.refCounter.AddOwnedObject(newCursor, spec.TaskID, cw.ctx.Address)
	handle.ActorCreationDummyID = newCursor

	if cw.cfg.ProfileEvent != nil {
		cw.cfg.ProfileEvent("submit_actor_task:" + spec.TaskID.String())
	}

	if err := cw.taskMgr.AddPendingTask(spec.CallerID, spec, opts.MaxRetries); err != nil {
		return nil, fmt.Errorf("coreworker: SubmitActorTask: %w", err)
	}

	cw.directActors.Submit(actorID, spec, func(s *task.Spec, results []*object.Object, err error) {
		cw.onSubmitterResult(s, results, err)
	})
	return returnIDs, nil
}

// KillActor checks that actorID names a known direct-call actor and that a
// raylet client is configured, and returns an error otherwise. It sends no
// kill RPC: on success it returns nil without contacting the actor.
func (cw *CoreWorker) KillActor(ctx context.Context, actorID ids.ActorID) error {
	handle, ok := cw.actorReg.GetActorHandle(actorID)
	if !ok {
		return fmt.Errorf("coreworker: KillActor: unknown actor %s", actorID)
	}
	if !handle.IsDirectCall {
		return fmt.Errorf("coreworker: KillActor: actor %s is not direct-call", actorID)
	}
	if cw.cfg.Raylet == nil {
		return fmt.Errorf("coreworker: KillActor: no raylet client configured")
	}
	return nil
}

// submitViaDirectOrRaylet dispatches spec through the configured transport
// and feeds its outcome back into the TaskManager.
func (cw *CoreWorker) submitViaDirectOrRaylet(ctx context.Context, spec *task.Spec) {
	cw.directTasks.Submit(ctx, spec, func(s *task.Spec, results []*object.Object, err error) {
		cw.onSubmitterResult(s, results, err)
	})
}

// onSubmitterResult feeds a submitter's outcome into the TaskManager,
// completing it on success and deferring to the retry/failure path on
// error (§4.4 "Completion arrives via a callback from the submitter").
func (cw *CoreWorker) onSubmitterResult(spec *task.Spec, results []*object.Object, err error) {
	if err != nil {
		if ferr := cw.taskMgr.PendingTaskFailed(spec.TaskID, err); ferr != nil {
			cw.log.Warn("coreworker: PendingTaskFailed error", "task_id", spec.TaskID.String(), "error", ferr)
		}
		return
	}

	returnIDs := spec.ReturnIDs()
	for i, id := range returnIDs {
		if i < len(results) {
			cw.writeReturnValue(id, results[i])
		}
	}
	if cerr := cw.taskMgr.PendingTaskCompleted(spec.TaskID); cerr != nil {
		cw.log.Warn("coreworker: PendingTaskCompleted error", "task_id", spec.TaskID.String(), "error", cerr)
	}
}

func (cw *CoreWorker) writeReturnValue(id ids.ObjectID, obj *object.Object) {
	if id.IsDirectCallType() {
		cw.memStore.Put(id, obj)
		return
	}
	if err := cw.cfg.Plasma.Put(context.Background(), id, obj.Data, obj.Metadata); err != nil {
		cw.log.Error("coreworker: failed to write return value to plasma", "object_id", id.String(), "error", err)
	}
}

// handleTaskPermanentFailure is the TaskManager's FailureSink: fill the
// task's return ObjectIds with the failure sentinel and notify the
// reference counter (§4.4).
func (cw *CoreWorker) handleTaskPermanentFailure(spec *task.Spec, returnIDs []ids.ObjectID, err error) {
	taskErr := &object.TaskExecutionError{TaskID: spec.TaskID, Message: err.Error()}
	for _, id := range returnIDs {
		if id.IsDirectCallType() {
			cw.memStore.PutError(id, taskErr)
		} else {
			cw.refCounter.DeleteReferences([]ids.ObjectID{id})
		}
	}
}

// handleTaskCompleted is the TaskManager's CompletionSink; return-value
// writeback already happened in onSubmitterResult, so this is a
// diagnostic-only hook point.
func (cw *CoreWorker) handleTaskCompleted(spec *task.Spec, returnIDs []ids.ObjectID) {
	cw.log.Debug("coreworker: task completed", "task_id", spec.TaskID.String())
}
