package workerctx

import (
	"testing"

	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/stretchr/testify/assert"
)

func TestCallerIDPrefersActorCreationTaskWhileInActor(t *testing.T) {
	ctx := New(ModeWorker, ids.NewJobID(), object.Address{WorkerID: ids.NewWorkerID()})
	task := ids.ForDriverTask(ctx.JobID)
	ctx.SetCurrentTask(task)
	assert.Equal(t, task, ctx.CallerID())

	actorID := ids.NewActorID(ctx.JobID, ids.NilTaskID, 1)
	ctx.SetCurrentActorID(actorID)
	assert.Equal(t, ids.ForActorCreationTask(actorID), ctx.CallerID())
	assert.True(t, ctx.IsInActor())

	ctx.SetCurrentActorID(ids.NilActorID)
	assert.False(t, ctx.IsInActor())
	assert.Equal(t, task, ctx.CallerID())
}

func TestNextTaskIndexIsMonotonic(t *testing.T) {
	ctx := New(ModeDriver, ids.NewJobID(), object.Address{})
	assert.Equal(t, uint64(1), ctx.NextTaskIndex())
	assert.Equal(t, uint64(2), ctx.NextTaskIndex())
}

func TestPutIndexResetsPerTask(t *testing.T) {
	ctx := New(ModeWorker, ids.NewJobID(), object.Address{})
	assert.Equal(t, uint32(1), ctx.NextPutIndex())
	assert.Equal(t, uint32(2), ctx.NextPutIndex())

	ctx.ResetPutIndex()
	assert.Equal(t, uint32(1), ctx.NextPutIndex())
}

func TestNewDerivesIdentityFromAddress(t *testing.T) {
	addr := object.Address{WorkerID: ids.NewWorkerID(), NodeID: ids.NewNodeID()}
	ctx := New(ModeWorker, ids.NewJobID(), addr)
	assert.Equal(t, addr.WorkerID, ctx.WorkerID)
	assert.Equal(t, addr.NodeID, ctx.NodeID)
	assert.Equal(t, addr, ctx.Address)
}
