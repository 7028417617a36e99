package directactor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/embercore/workerrt/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPush struct {
	mu    sync.Mutex
	calls []ids.TaskID
	err   error
}

func (r *recordingPush) PushTask(ctx context.Context, addr object.Address, spec *task.Spec) ([]*object.Object, error) {
	r.mu.Lock()
	r.calls = append(r.calls, spec.TaskID)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return []*object.Object{{Data: []byte("v")}}, nil
}

func newActorID() ids.ActorID {
	return ids.NewActorID(ids.NewJobID(), ids.NilTaskID, 1)
}

func newSpecN(n byte) *task.Spec {
	jobID := ids.NewJobID()
	return &task.Spec{TaskID: ids.ForNormalTask(jobID, ids.NilTaskID, uint64(n))}
}

func TestSubmitBeforeConnectQueuesWithoutPushing(t *testing.T) {
	push := &recordingPush{}
	s := New(push, nil)
	actorID := newActorID()

	s.Submit(actorID, newSpecN(1), func(*task.Spec, []*object.Object, error) {})

	assert.Empty(t, push.calls)
}

func TestConnectFlushesQueuedTasksInOrder(t *testing.T) {
	push := &recordingPush{}
	s := New(push, nil)
	actorID := newActorID()

	var mu sync.Mutex
	var completed []ids.TaskID
	s1, s2 := newSpecN(1), newSpecN(2)
	s.Submit(actorID, s1, func(spec *task.Spec, results []*object.Object, err error) {
		mu.Lock()
		completed = append(completed, spec.TaskID)
		mu.Unlock()
	})
	s.Submit(actorID, s2, func(spec *task.Spec, results []*object.Object, err error) {
		mu.Lock()
		completed = append(completed, spec.TaskID)
		mu.Unlock()
	})

	s.Connect(actorID, "10.0.0.1", 9000)

	assert.Equal(t, []ids.TaskID{s1.TaskID, s2.TaskID}, push.calls)
	assert.Equal(t, []ids.TaskID{s1.TaskID, s2.TaskID}, completed)
}

func TestSubmitAfterConnectFlushesImmediately(t *testing.T) {
	push := &recordingPush{}
	s := New(push, nil)
	actorID := newActorID()
	s.Connect(actorID, "10.0.0.1", 9000)

	done := make(chan struct{})
	spec := newSpecN(1)
	s.Submit(actorID, spec, func(*task.Spec, []*object.Object, error) { close(done) })

	<-done
	assert.Equal(t, []ids.TaskID{spec.TaskID}, push.calls)
}

func TestDisconnectSoftRetainsQueueForReconnect(t *testing.T) {
	push := &recordingPush{}
	s := New(push, nil)
	actorID := newActorID()
	s.Connect(actorID, "10.0.0.1", 9000)
	s.DisconnectSoft(actorID)

	spec := newSpecN(1)
	done := make(chan struct{})
	s.Submit(actorID, spec, func(*task.Spec, []*object.Object, error) { close(done) })
	assert.Empty(t, push.calls, "a disconnected actor must not be pushed to")

	s.Connect(actorID, "10.0.0.1", 9001)
	<-done
	assert.Equal(t, []ids.TaskID{spec.TaskID}, push.calls)
}

func TestDisconnectHardFailsQueuedTasksWithActorDied(t *testing.T) {
	push := &recordingPush{}
	s := New(push, nil)
	actorID := newActorID()

	errCh := make(chan error, 1)
	s.Submit(actorID, newSpecN(1), func(spec *task.Spec, results []*object.Object, err error) {
		errCh <- err
	})

	s.DisconnectHard(actorID)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, object.ErrActorDied)
	default:
		t.Fatal("callback never fired")
	}
	assert.Empty(t, push.calls)
}

func TestFlushPushFailureStillDrainsRemainingQueue(t *testing.T) {
	push := &recordingPush{err: errors.New("unreachable")}
	s := New(push, nil)
	actorID := newActorID()

	var mu sync.Mutex
	var errs []error
	s1, s2 := newSpecN(1), newSpecN(2)
	record := func(spec *task.Spec, results []*object.Object, err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}
	s.Submit(actorID, s1, record)
	s.Submit(actorID, s2, record)

	s.Connect(actorID, "10.0.0.1", 9000)

	require.Len(t, errs, 2)
	assert.Error(t, errs[0])
	assert.Error(t, errs[1])
	assert.Equal(t, []ids.TaskID{s1.TaskID, s2.TaskID}, push.calls)
}

func TestKillActorRequiresConnection(t *testing.T) {
	s := New(&recordingPush{}, nil)
	actorID := newActorID()

	err := s.KillActor(context.Background(), actorID, fakeKiller{})
	assert.Error(t, err)
}

type fakeKiller struct{}

func (fakeKiller) KillActor(ctx context.Context, addr object.Address, actorID ids.ActorID) error {
	return nil
}
