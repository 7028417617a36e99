package receiver

import (
	"errors"
	"testing"
	"time"

	"github.com/embercore/workerrt/internal/execsvc"
	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/embercore/workerrt/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	results []*object.Object
	err     error
}

func (f *fakeExecutor) ExecuteTask(spec *task.Spec) ([]*object.Object, error) {
	return f.results, f.err
}

func newSpec() *task.Spec {
	return &task.Spec{TaskID: ids.ForDriverTask(ids.NewJobID())}
}

func TestRayletReceiverAssignTaskWrongWorkerErrors(t *testing.T) {
	svc := execsvc.New(1, nil)
	svc.Start()
	defer svc.Stop()
	r := NewRayletReceiver(svc, &fakeExecutor{}, nil, nil)

	err := r.AssignTask(ids.NewWorkerID(), ids.NewWorkerID(), newSpec(), func([]*object.Object, error) {})
	assert.Error(t, err)
}

func TestRayletReceiverAssignTaskRejectsDirectCallOnlyActor(t *testing.T) {
	svc := execsvc.New(1, nil)
	svc.Start()
	defer svc.Stop()
	worker := ids.NewWorkerID()
	r := NewRayletReceiver(svc, &fakeExecutor{}, func() bool { return true }, nil)

	err := r.AssignTask(worker, worker, newSpec(), func([]*object.Object, error) {})
	assert.Error(t, err)
}

func TestRayletReceiverAssignTaskEnqueuesAndReplies(t *testing.T) {
	svc := execsvc.New(1, nil)
	svc.Start()
	defer svc.Stop()
	worker := ids.NewWorkerID()
	wantResults := []*object.Object{{Data: []byte("v")}}
	r := NewRayletReceiver(svc, &fakeExecutor{results: wantResults}, nil, nil)

	replyCh := make(chan []*object.Object, 1)
	require.NoError(t, r.AssignTask(worker, worker, newSpec(), func(results []*object.Object, err error) {
		replyCh <- results
	}))

	select {
	case got := <-replyCh:
		assert.Equal(t, wantResults, got)
	case <-time.After(time.Second):
		t.Fatal("reply never arrived")
	}
}

func TestDirectReceiverPushTaskWrongWorkerErrors(t *testing.T) {
	svc := execsvc.New(1, nil)
	svc.Start()
	defer svc.Stop()
	d := NewDirectReceiver(svc, &fakeExecutor{}, nil)

	err := d.PushTask(ids.NewWorkerID(), ids.NewWorkerID(), newSpec(), func([]*object.Object, error) {})
	assert.Error(t, err)
}

func TestDirectReceiverPushTaskPropagatesExecutionError(t *testing.T) {
	svc := execsvc.New(1, nil)
	svc.Start()
	defer svc.Stop()
	worker := ids.NewWorkerID()
	execErr := errors.New("task failed")
	d := NewDirectReceiver(svc, &fakeExecutor{err: execErr}, nil)

	replyCh := make(chan error, 1)
	require.NoError(t, d.PushTask(worker, worker, newSpec(), func(results []*object.Object, err error) {
		replyCh <- err
	}))

	select {
	case got := <-replyCh:
		assert.ErrorIs(t, got, execErr)
	case <-time.After(time.Second):
		t.Fatal("reply never arrived")
	}
}

func TestEnqueueFailsWhenServiceNotStarted(t *testing.T) {
	svc := execsvc.New(1, nil)
	worker := ids.NewWorkerID()
	d := NewDirectReceiver(svc, &fakeExecutor{}, nil)

	err := d.PushTask(worker, worker, newSpec(), func([]*object.Object, error) {})
	assert.Error(t, err)
}
