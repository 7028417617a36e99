package coreworker

import (
	"context"
	"testing"
	"time"

	"github.com/embercore/workerrt/internal/plasma"
	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/embercore/workerrt/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoCallback(spec *task.Spec, args []task.Arg, returnIDs []ids.ObjectID) ([]*object.Object, error) {
	results := make([]*object.Object, len(returnIDs))
	for i := range returnIDs {
		results[i] = &object.Object{Data: []byte("ok")}
	}
	return results, nil
}

// fakeRaylet stands in for the out-of-scope node supervisor: SubmitTask is
// a no-op success, since every lease in these tests always resolves back to
// the submitting worker's own address.
type fakeRaylet struct{}

func (fakeRaylet) SubmitTask(ctx context.Context, spec *task.Spec) error           { return nil }
func (fakeRaylet) PinObjectIDs(ctx context.Context, owner object.Address, idList []ids.ObjectID) error {
	return nil
}
func (fakeRaylet) NotifyDirectCallTaskBlocked(ctx context.Context) error { return nil }
func (fakeRaylet) PushError(ctx context.Context, jobID ids.JobID, errorType, message string, ts time.Time) error {
	return nil
}
func (fakeRaylet) PrepareActorCheckpoint(ctx context.Context, actorID ids.ActorID) error { return nil }
func (fakeRaylet) NotifyActorResumedFromCheckpoint(ctx context.Context, actorID ids.ActorID) error {
	return nil
}
func (fakeRaylet) SetResource(ctx context.Context, name string, capacity float64, nodeID ids.NodeID) error {
	return nil
}
func (fakeRaylet) Disconnect(ctx context.Context) error { return nil }
func (fakeRaylet) IsAlive(ctx context.Context) bool      { return true }

func newTestWorker(t *testing.T, mode Mode) *CoreWorker {
	cw, err := New(Config{
		Mode:                  mode,
		JobID:                 ids.NewJobID(),
		Address:               object.Address{WorkerID: ids.NewWorkerID()},
		Plasma:                plasma.NewLocal(),
		Raylet:                fakeRaylet{},
		TaskExecutionCallback: echoCallback,
	})
	require.NoError(t, err)
	return cw
}

func TestNewRequiresPlasmaClient(t *testing.T) {
	_, err := New(Config{Mode: ModeWorker, JobID: ids.NewJobID()})
	assert.Error(t, err)
}

// TestStartInDriverModeStartsExecutionService is the regression test for the
// bug where Start only started execService in the non-Driver branch: a
// Driver submitting a direct-call task pushes it through the same
// rayletPushAdapter path, which posts onto execService, and that used to
// deadlock in Driver mode because the service was never started.
func TestStartInDriverModeStartsExecutionService(t *testing.T) {
	cw := newTestWorker(t, ModeDriver)
	require.NoError(t, cw.Start(context.Background()))
	defer cw.Shutdown(context.Background())

	returnIDs, err := cw.SubmitTask(context.Background(), task.FunctionDescriptor{Name: "f"}, nil,
		task.Options{NumReturns: 1, IsDirectCall: true})
	require.NoError(t, err)
	require.Len(t, returnIDs, 1)

	results, err := cw.Get(context.Background(), returnIDs, 1000)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []byte("ok"), results[0].Data)
}

// TestPushLocalRoutesThroughDirectCallOnlyWorker is the regression test for
// the bug where rayletPushAdapter.PushTask always executed on the
// submitting CoreWorker itself, ignoring the leased address: a direct-call
// submission whose lease names this worker's own address must still run
// through ExecuteTask/the execution service exactly like an inbound
// PushTask RPC would, and the submitted task's return value must be
// observable afterward.
func TestPushLocalRoutesThroughDirectCallOnlyWorker(t *testing.T) {
	cw := newTestWorker(t, ModeWorker)
	require.NoError(t, cw.Start(context.Background()))
	defer cw.Shutdown(context.Background())

	returnIDs, err := cw.SubmitTask(context.Background(), task.FunctionDescriptor{Name: "f"}, nil,
		task.Options{NumReturns: 2, IsDirectCall: true})
	require.NoError(t, err)
	require.Len(t, returnIDs, 2)

	results, err := cw.Get(context.Background(), returnIDs, 1000)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, []byte("ok"), r.Data)
	}
	assert.Equal(t, 1, cw.GetCoreWorkerStats().NumExecutedTasks)
}

func TestPushRemoteWithoutDialerErrors(t *testing.T) {
	cw := newTestWorker(t, ModeWorker)
	require.NoError(t, cw.Start(context.Background()))
	defer cw.Shutdown(context.Background())

	adapter := rayletPushAdapter{cw}
	otherWorker := object.Address{WorkerID: ids.NewWorkerID()}
	_, err := adapter.PushTask(context.Background(), otherWorker, &task.Spec{TaskID: ids.ForDriverTask(cw.ctx.JobID)})
	assert.Error(t, err)
}

// TestSubmitTaskRetriesOnFailureWithoutDuplicateTaskError is a regression
// test for the taskmanager resubmission fix: a task whose submitter
// reports failure must leave the TaskManager in a state where the
// heartbeat's resubmission path (resubmitOne's AddPendingTask call) does
// not collide with a stale pending record, and resubmission must actually
// re-invoke the submitter rather than silently no-op.
func TestSubmitTaskRetriesOnFailureWithoutDuplicateTaskError(t *testing.T) {
	var calls int
	cw, err := New(Config{
		Mode:    ModeWorker,
		JobID:   ids.NewJobID(),
		Address: object.Address{WorkerID: ids.NewWorkerID()},
		Plasma:  plasma.NewLocal(),
		Raylet:  fakeRaylet{},
		TaskExecutionCallback: func(spec *task.Spec, args []task.Arg, returnIDs []ids.ObjectID) ([]*object.Object, error) {
			calls++
			if calls == 1 {
				return nil, assertError{}
			}
			results := make([]*object.Object, len(returnIDs))
			for i := range returnIDs {
				results[i] = &object.Object{Data: []byte("ok")}
			}
			return results, nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, cw.Start(context.Background()))
	defer cw.Shutdown(context.Background())

	returnIDs, err := cw.SubmitTask(context.Background(), task.FunctionDescriptor{Name: "f"}, nil,
		task.Options{NumReturns: 1, IsDirectCall: true, MaxRetries: 2})
	require.NoError(t, err)

	// The first attempt fails; wait for scheduleResubmit to have queued the
	// retry rather than racing the execution service.
	require.Eventually(t, func() bool {
		cw.mu.Lock()
		defer cw.mu.Unlock()
		return len(cw.resubmitQueue) == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, cw.taskMgr.IsPending(returnIDs[0].TaskID()),
		"the failed task's pending record must already be gone so resubmitOne's AddPendingTask can succeed")

	cw.mu.Lock()
	spec := cw.resubmitQueue[0].spec
	cw.resubmitQueue = nil
	cw.mu.Unlock()

	cw.resubmitOne(spec)

	results, err := cw.Get(context.Background(), returnIDs, 2000)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), results[0].Data)
	assert.Equal(t, 2, calls)
}

type assertError struct{}

func (assertError) Error() string { return "transient failure" }
