package objectstore

import (
	"context"
	"testing"
	"time"

	"github.com/embercore/workerrt/internal/memstore"
	"github.com/embercore/workerrt/internal/plasma"
	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() *Store {
	return New(memstore.New(), plasma.NewFacade(plasma.NewLocal()))
}

func directID() ids.ObjectID {
	return ids.ForTaskReturn(ids.ForDriverTask(ids.NewJobID()), 1, ids.Direct)
}

func rayletID() ids.ObjectID {
	return ids.ForTaskReturn(ids.ForDriverTask(ids.NewJobID()), 1, ids.Raylet)
}

func TestGetRoutesByTransportTag(t *testing.T) {
	s := newStore()
	dID, rID := directID(), rayletID()

	s.mem.Put(dID, &object.Object{Data: []byte("direct")})
	require.NoError(t, s.plasma.Put(context.Background(), rID, []byte("raylet"), nil))

	results, gotException, err := s.Get(context.Background(), []ids.ObjectID{dID, rID}, time.Second)
	require.NoError(t, err)
	assert.False(t, gotException)
	assert.Equal(t, []byte("direct"), results[0].Data)
	assert.Equal(t, []byte("raylet"), results[1].Data)
}

func TestGetFollowsPromotionToPlasma(t *testing.T) {
	s := newStore()
	dID := directID()

	// promote before any value is ever put: GetOrPromoteToPlasma leaves the
	// InPlasma sentinel behind, and the real value only exists in plasma.
	_, ok := s.mem.GetOrPromoteToPlasma(dID)
	require.False(t, ok)
	require.NoError(t, s.plasma.Put(context.Background(), dID, []byte("promoted"), nil))

	results, gotException, err := s.Get(context.Background(), []ids.ObjectID{dID}, time.Second)
	require.NoError(t, err)
	assert.False(t, gotException)
	assert.Equal(t, []byte("promoted"), results[0].Data)
}

func TestGetUnlimitedTimeoutErrorsOnIncompleteResult(t *testing.T) {
	s := newStore()
	id := directID()
	// an unlimited Get blocks until the value arrives; a cancelled context
	// is what makes it return with the slot still empty.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := s.Get(ctx, []ids.ObjectID{id}, -1)
	assert.Error(t, err)
}

func TestWaitRejectsOutOfRangeK(t *testing.T) {
	s := newStore()
	_, err := s.Wait(context.Background(), []ids.ObjectID{directID()}, 0, time.Second)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = s.Wait(context.Background(), []ids.ObjectID{directID()}, 2, time.Second)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestWaitRejectsDuplicateIDs(t *testing.T) {
	s := newStore()
	id := directID()
	_, err := s.Wait(context.Background(), []ids.ObjectID{id, id}, 1, time.Second)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestWaitReturnsReadySubsetAcrossTiers(t *testing.T) {
	s := newStore()
	dID, rID := directID(), rayletID()
	s.mem.Put(dID, &object.Object{Data: []byte("direct")})

	ready, err := s.Wait(context.Background(), []ids.ObjectID{dID, rID}, 1, 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ready[0])
	assert.False(t, ready[1])
}

func TestContainsFallsThroughToPlasmaAfterPromotion(t *testing.T) {
	s := newStore()
	dID := directID()
	_, ok := s.mem.GetOrPromoteToPlasma(dID)
	require.False(t, ok)
	require.NoError(t, s.plasma.Put(context.Background(), dID, []byte("v"), nil))

	contained, err := s.Contains(context.Background(), dID)
	require.NoError(t, err)
	assert.True(t, contained)
}

func TestDeleteDropsFromBothTiers(t *testing.T) {
	s := newStore()
	dID, rID := directID(), rayletID()
	s.mem.Put(dID, &object.Object{Data: []byte("direct")})
	require.NoError(t, s.plasma.Put(context.Background(), rID, []byte("raylet"), nil))

	require.NoError(t, s.Delete(context.Background(), []ids.ObjectID{dID, rID}))
	assert.False(t, s.mem.Contains(dID))
	contained, err := s.plasma.Contains(context.Background(), rID)
	require.NoError(t, err)
	assert.False(t, contained)
}
