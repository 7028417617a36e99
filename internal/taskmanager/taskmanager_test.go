package taskmanager

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSpec() *task.Spec {
	jobID := ids.NewJobID()
	return &task.Spec{
		TaskID:  ids.ForNormalTask(jobID, ids.NilTaskID, 1),
		JobID:   jobID,
		Options: task.Options{NumReturns: 1, MaxRetries: 2},
	}
}

func TestAddPendingTaskRejectsDuplicate(t *testing.T) {
	m := New(Config{})
	spec := newSpec()
	require.NoError(t, m.AddPendingTask(ids.NilTaskID, spec, spec.Options.MaxRetries))

	err := m.AddPendingTask(ids.NilTaskID, spec, spec.Options.MaxRetries)
	assert.ErrorIs(t, err, ErrDuplicateTask)
}

func TestPendingTaskCompletedInvokesCompletionSink(t *testing.T) {
	var got *task.Spec
	m := New(Config{OnComplete: func(spec *task.Spec, returnIDs []ids.ObjectID) { got = spec }})
	spec := newSpec()
	require.NoError(t, m.AddPendingTask(ids.NilTaskID, spec, spec.Options.MaxRetries))

	require.NoError(t, m.PendingTaskCompleted(spec.TaskID))
	assert.Equal(t, spec, got)
	assert.False(t, m.IsPending(spec.TaskID))
}

func TestPendingTaskCompletedUnknownTaskErrors(t *testing.T) {
	m := New(Config{})
	err := m.PendingTaskCompleted(ids.NilTaskID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

// TestPendingTaskFailedPermitsImmediateResubmission is the regression test
// for the bug where a retried task's record was left in m.pending: the
// heartbeat's resubmission path always calls AddPendingTask for the same
// TaskID right after a retriable failure, and that call must not collide
// with the still-present record (§4.4).
func TestPendingTaskFailedPermitsImmediateResubmission(t *testing.T) {
	var retried *task.Spec
	m := New(Config{Retry: func(readyAt time.Time, spec *task.Spec) { retried = spec }})
	spec := newSpec()
	require.NoError(t, m.AddPendingTask(spec.CallerID, spec, spec.Options.MaxRetries))

	require.NoError(t, m.PendingTaskFailed(spec.TaskID, errors.New("boom")))
	require.NotNil(t, retried)
	assert.False(t, m.IsPending(spec.TaskID), "the pending record must be gone so resubmission's AddPendingTask can succeed")

	// mirrors internal/coreworker/timers.go resubmitOne: it re-adds the
	// identical spec with the original MaxRetries right after a retry fires.
	err := m.AddPendingTask(retried.CallerID, retried, retried.Options.MaxRetries)
	assert.NoError(t, err, "resubmission must not collide with a stale pending record")
}

func TestPendingTaskFailedExhaustsRetriesThenFails(t *testing.T) {
	var failedErr error
	m := New(Config{
		Retry:     func(time.Time, *task.Spec) {},
		OnFailure: func(spec *task.Spec, returnIDs []ids.ObjectID, err error) { failedErr = err },
	})
	spec := newSpec()
	spec.Options.MaxRetries = 1
	require.NoError(t, m.AddPendingTask(spec.CallerID, spec, spec.Options.MaxRetries))

	boom := errors.New("boom")
	require.NoError(t, m.PendingTaskFailed(spec.TaskID, boom))
	require.NoError(t, m.AddPendingTask(spec.CallerID, spec, spec.Options.MaxRetries))

	require.NoError(t, m.PendingTaskFailed(spec.TaskID, boom))
	assert.ErrorIs(t, failedErr, boom)
	assert.False(t, m.IsPending(spec.TaskID))
}

func TestPendingTaskFailedUnknownTaskErrors(t *testing.T) {
	m := New(Config{})
	err := m.PendingTaskFailed(ids.NilTaskID, errors.New("boom"))
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

// TestDrainAndShutdownWaitsForPendingTasks is the regression test for the
// bug where drainCh closed the first time the pending set transiently
// reached zero, rather than only once DrainAndShutdown had actually been
// called: a manager that happens to drain and refill before shutdown must
// not let an early DrainAndShutdown call return before the outstanding
// task at call time resolves.
func TestDrainAndShutdownWaitsForPendingTasks(t *testing.T) {
	m := New(Config{OnComplete: func(*task.Spec, []ids.ObjectID) {}})

	first := newSpec()
	require.NoError(t, m.AddPendingTask(first.CallerID, first, first.Options.MaxRetries))
	require.NoError(t, m.PendingTaskCompleted(first.TaskID))
	assert.Equal(t, 0, m.NumPending(), "pending set transiently empties before shutdown is ever requested")

	second := newSpec()
	require.NoError(t, m.AddPendingTask(second.CallerID, second, second.Options.MaxRetries))

	var cbCalled atomic.Bool
	done := make(chan struct{})
	go func() {
		m.DrainAndShutdown(func() { cbCalled.Store(true) })
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("DrainAndShutdown returned before the outstanding task resolved")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, m.PendingTaskCompleted(second.TaskID))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("DrainAndShutdown never returned after the last pending task resolved")
	}
	assert.True(t, cbCalled.Load())
}

func TestDrainAndShutdownReturnsImmediatelyWhenAlreadyEmpty(t *testing.T) {
	m := New(Config{})
	done := make(chan struct{})
	go func() {
		m.DrainAndShutdown(func() {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("DrainAndShutdown never returned for an already-empty manager")
	}
}

func TestNumPendingReflectsAddAndRemove(t *testing.T) {
	m := New(Config{})
	spec := newSpec()
	assert.Equal(t, 0, m.NumPending())
	require.NoError(t, m.AddPendingTask(spec.CallerID, spec, spec.Options.MaxRetries))
	assert.Equal(t, 1, m.NumPending())
	require.NoError(t, m.PendingTaskCompleted(spec.TaskID))
	assert.Equal(t, 0, m.NumPending())
}
