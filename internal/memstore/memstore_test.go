package memstore

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
	return ids.ForTaskReturn(ids.ForDriverTask(ids.NewJobID()), 1, ids.Direct)
}

func TestGetNonBlockingProbeMiss(t *testing.T) {
	s := New()
	id := testID()
	values, errs := s.Get(context.Background(), []ids.ObjectID{id}, 0)
	assert.Nil(t, values[0])
	assert.Nil(t, errs[0])
	assert.False(t, s.Contains(id))
}

func TestPutWakesBlockedGet(t *testing.T) {
	s := New()
	id := testID()
	done := make(chan struct{})
	var values []*object.Object
	go func() {
		values, _ = s.Get(context.Background(), []ids.ObjectID{id}, -1)
		close(done)
	}()

	s.Put(id, &object.Object{Data: []byte("hi")})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Get did not wake up after Put")
	}
	require.Len(t, values, 1)
	assert.Equal(t, []byte("hi"), values[0].Data)
	assert.True(t, s.Contains(id))
}

func TestGetDuplicateIDsFillEverySlot(t *testing.T) {
	s := New()
	id := testID()
	s.Put(id, &object.Object{Data: []byte("v")})

	values, errs := s.Get(context.Background(), []ids.ObjectID{id, id}, 0)
	require.Len(t, values, 2)
	assert.Equal(t, values[0], values[1])
	assert.Nil(t, errs[0])
	assert.Nil(t, errs[1])
}

func TestGetOrPromoteToPlasmaFirstCallReturnsValue(t *testing.T) {
	s := New()
	id := testID()
	s.Put(id, &object.Object{Data: []byte("v")})

	val, ok := s.GetOrPromoteToPlasma(id)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), val.Data)
}

func TestGetOrPromoteToPlasmaRedirectsSubsequentReaders(t *testing.T) {
	s := New()
	id := testID()

	_, ok := s.GetOrPromoteToPlasma(id)
	assert.False(t, ok, "unset value promotes to the InPlasma sentinel, nothing to copy out")

	_, errs := s.Get(context.Background(), []ids.ObjectID{id}, 0)
	assert.ErrorIs(t, errs[0], object.ErrInPlasma)
}

func TestPutErrorIsTerminal(t *testing.T) {
	s := New()
	id := testID()
	s.PutError(id, object.ErrActorDied)

	values, errs := s.Get(context.Background(), []ids.ObjectID{id}, 0)
	assert.Nil(t, values[0])
	assert.ErrorIs(t, errs[0], object.ErrActorDied)
}

func TestGetAsyncRunsCallbackOnLatePut(t *testing.T) {
	s := New()
	id := testID()
	resultCh := make(chan *object.Object, 1)
	s.GetAsync(id, func(val *object.Object, err error) {
		resultCh <- val
	})

	s.Put(id, &object.Object{Data: []byte("late")})

	select {
	case val := <-resultCh:
		assert.Equal(t, []byte("late"), val.Data)
	case <-time.After(time.Second):
		t.Fatal("GetAsync callback never fired")
	}
}

func TestDeleteDropsEntry(t *testing.T) {
	s := New()
	id := testID()
	s.Put(id, &object.Object{Data: []byte("v")})
	s.Delete(id)
	assert.False(t, s.Contains(id))
}
