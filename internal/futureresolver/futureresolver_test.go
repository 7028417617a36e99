package futureresolver

import (
	"context"
	"errors"
	"testing"

	"github.com/embercore/workerrt/internal/memstore"
	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/stretchr/testify/assert"
)

type fakeOwnerClient struct {
	status OwnerStatus
	obj    *object.Object
	err    error
}

func (f *fakeOwnerClient) GetObjectStatus(ctx context.Context, addr object.Address, id ids.ObjectID) (OwnerStatus, *object.Object, error) {
	return f.status, f.obj, f.err
}

func testID() ids.ObjectID {
	return ids.ForTaskReturn(ids.ForDriverTask(ids.NewJobID()), 1, ids.Direct)
}

func TestResolveFutureCreatedPutsValue(t *testing.T) {
	mem := memstore.New()
	id := testID()
	client := &fakeOwnerClient{status: StatusCreated, obj: &object.Object{Data: []byte("v")}}
	r := New(mem, client, nil)

	r.ResolveFuture(context.Background(), id, object.Address{})

	values, errs := mem.Get(context.Background(), []ids.ObjectID{id}, 0)
	assert.Equal(t, []byte("v"), values[0].Data)
	assert.Nil(t, errs[0])
}

func TestResolveFutureOutOfScopePutsOwnerDied(t *testing.T) {
	mem := memstore.New()
	id := testID()
	client := &fakeOwnerClient{status: StatusOutOfScope}
	r := New(mem, client, nil)

	r.ResolveFuture(context.Background(), id, object.Address{})

	_, errs := mem.Get(context.Background(), []ids.ObjectID{id}, 0)
	assert.ErrorIs(t, errs[0], object.ErrOwnerDied)
}

func TestResolveFutureUnreconstructablePutsSentinel(t *testing.T) {
	mem := memstore.New()
	id := testID()
	client := &fakeOwnerClient{status: StatusUnreconstructable}
	r := New(mem, client, nil)

	r.ResolveFuture(context.Background(), id, object.Address{})

	_, errs := mem.Get(context.Background(), []ids.ObjectID{id}, 0)
	assert.ErrorIs(t, errs[0], object.ErrObjectUnreconstructable)
}

func TestResolveFutureClientErrorLeavesFutureUnresolved(t *testing.T) {
	mem := memstore.New()
	id := testID()
	client := &fakeOwnerClient{err: errors.New("rpc down")}
	r := New(mem, client, nil)

	r.ResolveFuture(context.Background(), id, object.Address{})

	assert.False(t, mem.Contains(id))
}

func TestResolveFutureNilClientIsNoop(t *testing.T) {
	mem := memstore.New()
	id := testID()
	r := New(mem, nil, nil)

	r.ResolveFuture(context.Background(), id, object.Address{})

	assert.False(t, mem.Contains(id))
}
