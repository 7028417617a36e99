package cluster

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/embercore/workerrt/internal/actorregistry"
	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/embercore/workerrt/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	eventuallyTimeout = 2 * time.Second
	eventuallyTick    = 10 * time.Millisecond
)

func openTestService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	svc, err := Open(filepath.Join(dir, "cluster.wal"), filepath.Join(dir, "cluster.snapshot"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestActorLifecycleNotifiesSubscriber(t *testing.T) {
	svc := openTestService(t)

	jobID := ids.NewJobID()
	actorID := ids.NewActorID(jobID, ids.NilTaskID, 1)
	nodeID := ids.NewNodeID()
	addr := object.Address{NodeID: nodeID, IP: "10.0.0.5", Port: 9001}

	var gotStates []actorregistry.LifecycleState
	var gotIP string
	var gotPort int

	client, err := NewClient(svc, ids.NewWorkerID(), nodeID, addr, AssignTaskFunc(
		func(ctx context.Context, spec *task.Spec) ([]*object.Object, error) {
			return nil, nil
		}))
	require.NoError(t, err)

	err = client.AsyncSubscribe(actorID, func(state actorregistry.LifecycleState, ip string, port int) {
		gotStates = append(gotStates, state)
		gotIP, gotPort = ip, port
	})
	require.NoError(t, err)

	spec := &task.Spec{
		TaskID:  ids.ForActorCreationTask(actorID),
		JobID:   jobID,
		Type:    task.ActorCreation,
		ActorID: actorID,
	}
	require.NoError(t, client.SubmitTask(context.Background(), spec))

	require.Eventually(t, func() bool { return len(gotStates) == 1 }, eventuallyTimeout, eventuallyTick)
	assert.Equal(t, actorregistry.Alive, gotStates[0])
	assert.Equal(t, "10.0.0.5", gotIP)
	assert.Equal(t, 9001, gotPort)
}

func TestActorCreationFailureMarksDead(t *testing.T) {
	svc := openTestService(t)

	jobID := ids.NewJobID()
	actorID := ids.NewActorID(jobID, ids.NilTaskID, 2)
	nodeID := ids.NewNodeID()
	addr := object.Address{NodeID: nodeID}

	client, err := NewClient(svc, ids.NewWorkerID(), nodeID, addr, AssignTaskFunc(
		func(ctx context.Context, spec *task.Spec) ([]*object.Object, error) {
			return nil, assert.AnError
		}))
	require.NoError(t, err)

	var gotState actorregistry.LifecycleState
	require.NoError(t, client.AsyncSubscribe(actorID, func(state actorregistry.LifecycleState, ip string, port int) {
		gotState = state
	}))

	spec := &task.Spec{TaskID: ids.ForActorCreationTask(actorID), JobID: jobID, Type: task.ActorCreation, ActorID: actorID}
	require.NoError(t, client.SubmitTask(context.Background(), spec))

	require.Eventually(t, func() bool { return gotState == actorregistry.Dead }, eventuallyTimeout, eventuallyTick)
}

func TestPinObjectIDsIsDurableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	walPath := filepath.Join(dir, "cluster.wal")
	snapPath := filepath.Join(dir, "cluster.snapshot")

	svc, err := Open(walPath, snapPath, nil)
	require.NoError(t, err)

	id := ids.ForPut(ids.NilTaskID, 1)
	owner := object.Address{NodeID: ids.NewNodeID()}
	require.NoError(t, svc.pinObject(context.Background(), owner, id))
	require.NoError(t, svc.Checkpoint())
	require.NoError(t, svc.Close())

	reopened, err := Open(walPath, snapPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	assert.True(t, reopened.st.isObjectPinned(id))
}

func TestSubmitTaskWithNoNodeFails(t *testing.T) {
	svc := openTestService(t)
	spec := &task.Spec{TaskID: ids.ForNormalTask(ids.NewJobID(), ids.NilTaskID, 1), Type: task.Normal}
	assert.Error(t, svc.submitTask(context.Background(), spec))
}
