package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForNormalTaskIsDeterministic(t *testing.T) {
	jobID := NewJobID()
	current := ForDriverTask(jobID)

	a := ForNormalTask(jobID, current, 3)
	b := ForNormalTask(jobID, current, 3)
	assert.Equal(t, a, b, "resubmitting the identical spec must preserve the TaskID")

	c := ForNormalTask(jobID, current, 4)
	assert.NotEqual(t, a, c)
}

func TestNewActorIDEmbedsJobID(t *testing.T) {
	jobID := NewJobID()
	actorID := NewActorID(jobID, NilTaskID, 1)
	assert.Equal(t, jobID, actorID.JobID())
}

func TestObjectIDRoundTrip(t *testing.T) {
	taskID := ForDriverTask(NewJobID())
	id := ForTaskReturn(taskID, 2, Direct)

	assert.Equal(t, taskID, id.TaskID())
	assert.Equal(t, uint32(2), id.Index())
	assert.Equal(t, Direct, id.Transport())
	assert.True(t, id.IsDirectCallType())

	decoded, err := DecodeObjectID(id.Bytes())
	require.NoError(t, err)
	assert.Equal(t, id, decoded)
}

func TestForPutIsRayletTagged(t *testing.T) {
	id := ForPut(ForDriverTask(NewJobID()), 1)
	assert.False(t, id.IsDirectCallType())
	assert.Equal(t, Raylet, id.Transport())
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	_, err := DecodeObjectID([]byte{1, 2, 3})
	assert.Error(t, err)

	_, err = DecodeWorkerID([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestNodeIDTextMarshalRoundTrip(t *testing.T) {
	n := NewNodeID()
	text, err := n.MarshalText()
	require.NoError(t, err)

	var got NodeID
	require.NoError(t, got.UnmarshalText(text))
	assert.Equal(t, n, got)
}

func TestNilIDs(t *testing.T) {
	assert.True(t, NilJobID.IsNil())
	assert.True(t, NilWorkerID.IsNil())
	assert.True(t, NilTaskID.IsNil())
	assert.True(t, NilActorID.IsNil())
	assert.True(t, NilObjectID.IsNil())
	assert.False(t, NewJobID().IsNil())
}
