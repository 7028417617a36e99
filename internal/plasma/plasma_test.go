package plasma

import (
	"context"
	"testing"
	"time"

	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testID() ids.ObjectID {
	return ids.ForTaskReturn(ids.ForDriverTask(ids.NewJobID()), 1, ids.Raylet)
}

func TestLocalPutThenGet(t *testing.T) {
	l := NewLocal()
	id := testID()
	require.NoError(t, l.Put(context.Background(), id, []byte("x"), []byte("meta")))

	values, errs := l.Get(context.Background(), []ids.ObjectID{id}, time.Second)
	require.Nil(t, errs[0])
	assert.Equal(t, []byte("x"), values[0].Data)
	assert.Equal(t, []byte("meta"), values[0].Metadata)
}

func TestLocalGetTimesOutWithNotFound(t *testing.T) {
	l := NewLocal()
	id := testID()
	_, errs := l.Get(context.Background(), []ids.ObjectID{id}, 10*time.Millisecond)
	assert.ErrorIs(t, errs[0], object.ErrObjectNotFound)
}

func TestLocalCreateSealGet(t *testing.T) {
	l := NewLocal()
	id := testID()
	buf, err := l.Create(context.Background(), id, 4, []byte("m"))
	require.NoError(t, err)
	copy(buf.Data, []byte("abcd"))

	require.NoError(t, l.Seal(context.Background(), id))

	values, errs := l.Get(context.Background(), []ids.ObjectID{id}, time.Second)
	require.Nil(t, errs[0])
	assert.Equal(t, []byte("abcd"), values[0].Data)
}

func TestLocalCreateAfterSealFails(t *testing.T) {
	l := NewLocal()
	id := testID()
	require.NoError(t, l.Put(context.Background(), id, []byte("x"), nil))
	_, err := l.Create(context.Background(), id, 1, nil)
	assert.Error(t, err)
}

func TestLocalSealWithoutCreateFails(t *testing.T) {
	l := NewLocal()
	err := l.Seal(context.Background(), testID())
	assert.Error(t, err)
}

func TestLocalWaitSatisfiedByPartialSet(t *testing.T) {
	l := NewLocal()
	id1, id2 := testID(), testID()
	require.NoError(t, l.Put(context.Background(), id1, []byte("x"), nil))

	ready, err := l.Wait(context.Background(), []ids.ObjectID{id1, id2}, 1, 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ready[0])
	assert.False(t, ready[1])
}

func TestLocalContainsAndDelete(t *testing.T) {
	l := NewLocal()
	id := testID()
	require.NoError(t, l.Put(context.Background(), id, []byte("x"), nil))

	ok, err := l.Contains(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Delete(context.Background(), []ids.ObjectID{id}))
	ok, err = l.Contains(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFacadeDelegatesToClient(t *testing.T) {
	l := NewLocal()
	f := NewFacade(l)
	id := testID()
	require.NoError(t, f.Put(context.Background(), id, []byte("x"), nil))

	ok, err := f.Contains(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetClientOptionsAndMemoryUsageString(t *testing.T) {
	l := NewLocal()
	require.NoError(t, l.SetClientOptions("worker-1", 1024))
	assert.Contains(t, l.MemoryUsageString(), "worker-1")
}
