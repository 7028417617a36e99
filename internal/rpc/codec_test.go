package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGobCodecRoundTripsPushTaskRequest(t *testing.T) {
	c := gobCodec{}
	req := &PushTaskRequest{
		IntendedWorkerID: []byte{1, 2, 3},
		Task: TaskWire{
			TaskID:     []byte{4, 5, 6},
			FuncModule: "m",
			FuncName:   "f",
			Resources:  map[string]float64{"CPU": 2},
		},
	}

	data, err := c.Marshal(req)
	require.NoError(t, err)

	var got PushTaskRequest
	require.NoError(t, c.Unmarshal(data, &got))
	assert.Equal(t, req.IntendedWorkerID, got.IntendedWorkerID)
	assert.Equal(t, req.Task.FuncModule, got.Task.FuncModule)
	assert.Equal(t, req.Task.Resources, got.Task.Resources)
}

func TestGobCodecNameIsGob(t *testing.T) {
	assert.Equal(t, "gob", gobCodec{}.Name())
	assert.Equal(t, "gob", CodecName)
}

func TestGobCodecUnmarshalRejectsGarbage(t *testing.T) {
	c := gobCodec{}
	var got PushTaskResponse
	err := c.Unmarshal([]byte("not gob data"), &got)
	assert.Error(t, err)
}
