package coreworker

import (
	"context"
	"fmt"
	"time"

	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
)

// Put allocates a fresh ObjectId keyed on (current task, next put index,
// Raylet), registers this worker as owner, stores the value in plasma,
// then asks the supervisor to pin it. Failure to pin is fatal to the call,
// but the object remains in plasma (§4.1 Put).
func (cw *CoreWorker) Put(ctx context.Context, obj *object.Object, containedIDs []ids.ObjectID) (ids.ObjectID, error) {
	currentTask := cw.ctx.CurrentTaskID()
	putIndex := cw.ctx.NextPutIndex()
	id := ids.ForPut(currentTask, putIndex)

	cw.refCounter.AddOwnedObject(id, currentTask, cw.ctx.Address)
	if len(containedIDs) > 0 {
		cw.refCounter.AddContainedObjectIDs(id, containedIDs)
	}

	if err := cw.cfg.Plasma.Put(ctx, id, obj.Data, obj.Metadata); err != nil {
		return ids.NilObjectID, fmt.Errorf("coreworker: Put: plasma store failed: %w", err)
	}

	if cw.cfg.Raylet != nil {
		if err := cw.cfg.Raylet.PinObjectIDs(ctx, cw.ctx.Address, []ids.ObjectID{id}); err != nil {
			return ids.NilObjectID, fmt.Errorf("coreworker: Put: pin failed (object remains in plasma): %w", err)
		}
	}
	return id, nil
}

// Create begins a two-phase plasma write: a fresh ObjectId is minted and a
// writable buffer of size bytes is returned. The caller fills the buffer
// and calls Seal to publish it (§4.1 Create/Seal).
func (cw *CoreWorker) Create(ctx context.Context, metadata []byte, size int, containedIDs []ids.ObjectID) (ids.ObjectID, []byte, error) {
	currentTask := cw.ctx.CurrentTaskID()
	putIndex := cw.ctx.NextPutIndex()
	id := ids.ForPut(currentTask, putIndex)

	cw.refCounter.AddOwnedObject(id, currentTask, cw.ctx.Address)
	if len(containedIDs) > 0 {
		cw.refCounter.AddContainedObjectIDs(id, containedIDs)
	}

	buf, err := cw.cfg.Plasma.Create(ctx, id, size, metadata)
	if err != nil {
		return ids.NilObjectID, nil, fmt.Errorf("coreworker: Create: %w", err)
	}
	return id, buf.Data, nil
}

// Seal publishes a buffer previously returned by Create, pinning it when
// requested (§4.1 Create/Seal).
func (cw *CoreWorker) Seal(ctx context.Context, id ids.ObjectID, pin bool) error {
	if err := cw.cfg.Plasma.Seal(ctx, id); err != nil {
		return fmt.Errorf("coreworker: Seal: %w", err)
	}
	if pin && cw.cfg.Raylet != nil {
		if err := cw.cfg.Raylet.PinObjectIDs(ctx, cw.ctx.Address, []ids.ObjectID{id}); err != nil {
			return fmt.Errorf("coreworker: Seal: pin failed: %w", err)
		}
	}
	return nil
}

// Get implements §4.3's façade Get semantics over the dual-tier store.
func (cw *CoreWorker) Get(ctx context.Context, idList []ids.ObjectID, timeoutMS int) ([]*object.Object, error) {
	timeout := msToDuration(timeoutMS)
	results, _, err := cw.objStore.Get(ctx, idList, timeout)
	if err != nil {
		return nil, fmt.Errorf("coreworker: Get: %w", err)
	}
	return results, nil
}

// Wait implements §4.3's façade Wait semantics: wait for at least k of n.
func (cw *CoreWorker) Wait(ctx context.Context, idList []ids.ObjectID, k int, timeoutMS int) ([]bool, error) {
	timeout := msToDuration(timeoutMS)
	result, err := cw.objStore.Wait(ctx, idList, k, timeout)
	if err != nil {
		return nil, fmt.Errorf("coreworker: Wait: %w", err)
	}
	return result, nil
}

// Contains checks the memory tier first for direct ids, falling through to
// plasma when promoted (§4.1 Contains).
func (cw *CoreWorker) Contains(ctx context.Context, id ids.ObjectID) (bool, error) {
	return cw.objStore.Contains(ctx, id)
}

// Delete drops references, then deletes from memory and plasma
// (§4.1 Delete).
func (cw *CoreWorker) Delete(ctx context.Context, idList []ids.ObjectID, localOnly bool, deleteCreatingTasks bool) error {
	cw.refCounter.DeleteReferences(idList)
	if err := cw.objStore.Delete(ctx, idList); err != nil {
		return fmt.Errorf("coreworker: Delete: %w", err)
	}
	if deleteCreatingTasks {
		for _, id := range idList {
			cw.taskMgr.PendingTaskCompleted(id.TaskID()) //nolint:errcheck -- best-effort cleanup
		}
	}
	return nil
}

// PromoteToPlasmaAndGetOwnershipInfo forces an in-memory direct-call object
// into plasma and returns its owner identity, used when serializing an
// ObjectId out of the process. Fails loudly if the ObjectId has no
// recorded owner (I1; §7 "Object missing owner").
func (cw *CoreWorker) PromoteToPlasmaAndGetOwnershipInfo(ctx context.Context, id ids.ObjectID) (ids.TaskID, object.Address, error) {
	ownerTask, ownerAddr, ok := cw.refCounter.GetOwner(id)
	if !ok {
		panic(fmt.Sprintf("coreworker: cannot serialize object %s with unknown owner", id))
	}

	if val, hasValue := cw.memStore.GetOrPromoteToPlasma(id); hasValue {
		if err := cw.cfg.Plasma.Put(ctx, id, val.Data, val.Metadata); err != nil {
			return ids.NilTaskID, object.Address{}, fmt.Errorf("coreworker: promote: plasma put failed: %w", err)
		}
	}
	return ownerTask, ownerAddr, nil
}

// RegisterOwnershipInfoAndResolveFuture is the borrower-side counterpart:
// records the borrow and triggers the FutureResolver (§4.1).
func (cw *CoreWorker) RegisterOwnershipInfoAndResolveFuture(ctx context.Context, id ids.ObjectID, ownerTask ids.TaskID, ownerAddr object.Address) {
	cw.refCounter.AddBorrowedObject(id, ownerTask, ownerAddr)
	go cw.resolver.ResolveFuture(ctx, id, ownerAddr)
}

// GetAsync registers cb to run once id resolves, without blocking the
// caller (SPEC_FULL §12, core_worker.cc's GetAsync).
func (cw *CoreWorker) GetAsync(id ids.ObjectID, cb func(*object.Object, error)) {
	if id.IsDirectCallType() {
		cw.memStore.GetAsync(id, func(val *object.Object, err error) {
			if err != nil {
				// Promoted to plasma: fall back to a blocking plasma read.
				results, _, plasmaErr := cw.objStore.Get(context.Background(), []ids.ObjectID{id}, -1)
				var r *object.Object
				if len(results) > 0 {
					r = results[0]
				}
				cb(r, plasmaErr)
				return
			}
			cb(val, nil)
		})
		return
	}
	go func() {
		results, err := cw.Get(context.Background(), []ids.ObjectID{id}, -1)
		var r *object.Object
		if len(results) > 0 {
			r = results[0]
		}
		cb(r, err)
	}()
}

func msToDuration(ms int) time.Duration {
	if ms < 0 {
		return -1
	}
	return time.Duration(ms) * time.Millisecond
}
