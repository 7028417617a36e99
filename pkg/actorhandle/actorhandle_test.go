package actorhandle

import (
	"testing"

	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/embercore/workerrt/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextTaskIndexIncrementsMonotonically(t *testing.T) {
	h := NewHandle(ids.NewActorID(ids.NewJobID(), ids.NilTaskID, 1), object.Address{}, 1, true)
	assert.Equal(t, uint64(1), h.NextTaskIndex())
	assert.Equal(t, uint64(2), h.NextTaskIndex())
	assert.Equal(t, uint64(3), h.NextTaskIndex())
}

func TestResetRestartsSequenceAndClearsAddress(t *testing.T) {
	h := NewHandle(ids.NewActorID(ids.NewJobID(), ids.NilTaskID, 1), object.Address{}, 1, true)
	h.NextTaskIndex()
	h.NextTaskIndex()
	h.ActorAddress = object.Address{IP: "1.2.3.4"}

	h.Reset()

	assert.Equal(t, uint64(1), h.NextTaskIndex())
	assert.Equal(t, object.Address{}, h.ActorAddress)
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	actorID := ids.NewActorID(ids.NewJobID(), ids.NilTaskID, 1)
	h := NewHandle(actorID, object.Address{IP: "10.0.0.1", Port: 9}, 4, true)
	h.NextTaskIndex()
	h.NextTaskIndex()

	data, err := h.Serialize()
	require.NoError(t, err)

	got, err := Deserialize(data)
	require.NoError(t, err)

	assert.Equal(t, h.ActorID, got.ActorID)
	assert.Equal(t, h.OwnerAddress, got.OwnerAddress)
	assert.Equal(t, h.MaxConcurrency, got.MaxConcurrency)
	assert.Equal(t, h.IsDirectCall, got.IsDirectCall)
	// the counter must carry over so a forwarded handle never reuses a
	// sequence number the sender already claimed (§4.5).
	assert.Equal(t, uint64(3), got.NextTaskIndex())
}

func TestBuildSubmitSpecStampsActorMethodFields(t *testing.T) {
	h := NewHandle(ids.NewActorID(ids.NewJobID(), ids.NilTaskID, 1), object.Address{}, 1, true)
	spec := &task.Spec{}
	h.BuildSubmitSpec(spec)

	assert.Equal(t, task.ActorMethod, spec.Type)
	assert.Equal(t, h.ActorID, spec.ActorHandleID)
	assert.Equal(t, uint64(1), spec.ActorCounter)
	assert.True(t, spec.Options.IsDirectCall)
}
