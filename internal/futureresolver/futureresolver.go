// Package futureresolver asks an object's owner for its status and
// unblocks the local borrower's memory-store future once the owner reports
// the object created, lost, or promoted (§2 row 7, §4.3).
package futureresolver

import (
	"context"
	"log/slog"

	"github.com/embercore/workerrt/internal/memstore"
	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
)

// OwnerStatus is the reply shape of a GetObjectStatus RPC to an owner.
type OwnerStatus int

const (
	StatusCreated OwnerStatus = iota
	StatusOutOfScope
	StatusUnreconstructable
)

// OwnerClient is the subset of the peer-worker RPC surface FutureResolver
// needs: asking an owner for an object's status (§6 GetObjectStatus).
type OwnerClient interface {
	GetObjectStatus(ctx context.Context, addr object.Address, id ids.ObjectID) (OwnerStatus, *object.Object, error)
}

// Resolver is the §2 row 7 FutureResolver.
type Resolver struct {
	mem    *memstore.Store
	client OwnerClient
	log    *slog.Logger
}

// New constructs a Resolver over mem, using client to reach owners.
func New(mem *memstore.Store, client OwnerClient, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{mem: mem, client: client, log: log}
}

// ResolveFuture asks id's owner for its status and writes the outcome into
// the local memory store, unblocking any Get/Wait/GetAsync callers parked
// on id. This is the borrower-side half of
// RegisterOwnershipInfoAndResolveFuture (§4.1).
func (r *Resolver) ResolveFuture(ctx context.Context, id ids.ObjectID, ownerAddr object.Address) {
	if r.client == nil {
		return
	}
	status, obj, err := r.client.GetObjectStatus(ctx, ownerAddr, id)
	if err != nil {
		r.log.Warn("futureresolver: GetObjectStatus failed", "object_id", id.String(), "error", err)
		return
	}
	switch status {
	case StatusCreated:
		r.mem.Put(id, obj)
	case StatusOutOfScope:
		r.mem.PutError(id, object.ErrOwnerDied)
	case StatusUnreconstructable:
		r.mem.PutError(id, object.ErrObjectUnreconstructable)
	}
}
