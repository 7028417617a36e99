// Package plasma models the shared-memory object store client and the thin
// semantic wrapper (PlasmaStoreFacade) the CoreWorker talks to (§2 row 4,
// §4.3). The real shared-memory store is out of scope (§1); this package
// provides the Client interface the rest of the runtime depends on, plus a
// local in-process implementation so the module runs standalone.
package plasma

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
)

// Client is the raw shared-memory store surface (§6 PlasmaClient):
// put/create/seal/get/wait/contains/delete plus the two diagnostic calls.
// A real deployment implements this over a shared-memory segment; this
// package's Local type implements it over a plain Go map for the reference
// cluster.
type Client interface {
	Put(ctx context.Context, id ids.ObjectID, data, metadata []byte) error
	Create(ctx context.Context, id ids.ObjectID, size int, metadata []byte) (*Buffer, error)
	Seal(ctx context.Context, id ids.ObjectID) error
	Get(ctx context.Context, idList []ids.ObjectID, timeout time.Duration) ([]*object.Object, []error)
	Wait(ctx context.Context, idList []ids.ObjectID, numReturns int, timeout time.Duration) ([]bool, error)
	Contains(ctx context.Context, id ids.ObjectID) (bool, error)
	Delete(ctx context.Context, idList []ids.ObjectID) error
	SetClientOptions(name string, limitBytes int64) error
	MemoryUsageString() string
}

// Buffer is a writable handle returned by Create, sealed by Seal.
type Buffer struct {
	ID       ids.ObjectID
	Data     []byte
	Metadata []byte
}

// Facade is the semantic wrapper the CoreWorker façade talks to: it adds
// nothing structurally over Client but is the seam at which pin-tracking
// and metrics are recorded, matching the teacher's pattern of a thin
// wrapper struct between the public façade and the raw client.
type Facade struct {
	client Client
}

// NewFacade wraps client.
func NewFacade(client Client) *Facade {
	return &Facade{client: client}
}

func (f *Facade) Put(ctx context.Context, id ids.ObjectID, data, metadata []byte) error {
	return f.client.Put(ctx, id, data, metadata)
}

func (f *Facade) Create(ctx context.Context, id ids.ObjectID, size int, metadata []byte) (*Buffer, error) {
	return f.client.Create(ctx, id, size, metadata)
}

func (f *Facade) Seal(ctx context.Context, id ids.ObjectID) error {
	return f.client.Seal(ctx, id)
}

func (f *Facade) Get(ctx context.Context, idList []ids.ObjectID, timeout time.Duration) ([]*object.Object, []error) {
	return f.client.Get(ctx, idList, timeout)
}

func (f *Facade) Wait(ctx context.Context, idList []ids.ObjectID, numReturns int, timeout time.Duration) ([]bool, error) {
	return f.client.Wait(ctx, idList, numReturns, timeout)
}

func (f *Facade) Contains(ctx context.Context, id ids.ObjectID) (bool, error) {
	return f.client.Contains(ctx, id)
}

func (f *Facade) Delete(ctx context.Context, idList []ids.ObjectID) error {
	return f.client.Delete(ctx, idList)
}

// Local is an in-process Client implementation standing in for the
// shared-memory store, used by cmd/workerd and tests when no real plasma
// segment is configured.
type Local struct {
	mu      sync.Mutex
	objects map[ids.ObjectID]*object.Object
	sealed  map[ids.ObjectID]bool
	pending map[ids.ObjectID]*Buffer

	optName  string
	optLimit int64
}

// NewLocal constructs an empty Local store.
func NewLocal() *Local {
	return &Local{
		objects: make(map[ids.ObjectID]*object.Object),
		sealed:  make(map[ids.ObjectID]bool),
		pending: make(map[ids.ObjectID]*Buffer),
	}
}

func (l *Local) Put(ctx context.Context, id ids.ObjectID, data, metadata []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.objects[id] = &object.Object{Data: data, Metadata: metadata}
	l.sealed[id] = true
	return nil
}

func (l *Local) Create(ctx context.Context, id ids.ObjectID, size int, metadata []byte) (*Buffer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sealed[id] {
		return nil, fmt.Errorf("plasma: object %s already sealed", id)
	}
	buf := &Buffer{ID: id, Data: make([]byte, size), Metadata: metadata}
	l.pending[id] = buf
	return buf, nil
}

func (l *Local) Seal(ctx context.Context, id ids.ObjectID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	buf, ok := l.pending[id]
	if !ok {
		return fmt.Errorf("plasma: no pending create for object %s", id)
	}
	l.objects[id] = &object.Object{Data: buf.Data, Metadata: buf.Metadata}
	l.sealed[id] = true
	delete(l.pending, id)
	return nil
}

func (l *Local) Get(ctx context.Context, idList []ids.ObjectID, timeout time.Duration) ([]*object.Object, []error) {
	deadline := time.Now().Add(timeout)
	values := make([]*object.Object, len(idList))
	errs := make([]error, len(idList))
	for i, id := range idList {
		for {
			l.mu.Lock()
			obj, ok := l.objects[id]
			l.mu.Unlock()
			if ok {
				values[i] = obj
				break
			}
			if timeout >= 0 && time.Now().After(deadline) {
				errs[i] = object.ErrObjectNotFound
				break
			}
			select {
			case <-ctx.Done():
				errs[i] = ctx.Err()
				goto next
			case <-time.After(5 * time.Millisecond):
			}
		}
	next:
	}
	return values, errs
}

func (l *Local) Wait(ctx context.Context, idList []ids.ObjectID, numReturns int, timeout time.Duration) ([]bool, error) {
	deadline := time.Now().Add(timeout)
	ready := make([]bool, len(idList))
	for {
		count := 0
		l.mu.Lock()
		for i, id := range idList {
			if _, ok := l.objects[id]; ok {
				ready[i] = true
			}
			if ready[i] {
				count++
			}
		}
		l.mu.Unlock()
		if count >= numReturns {
			return ready, nil
		}
		if timeout >= 0 && time.Now().After(deadline) {
			return ready, nil
		}
		select {
		case <-ctx.Done():
			return ready, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (l *Local) Contains(ctx context.Context, id ids.ObjectID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.objects[id]
	return ok, nil
}

func (l *Local) Delete(ctx context.Context, idList []ids.ObjectID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range idList {
		delete(l.objects, id)
		delete(l.sealed, id)
	}
	return nil
}

func (l *Local) SetClientOptions(name string, limitBytes int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.optName = name
	l.optLimit = limitBytes
	return nil
}

func (l *Local) MemoryUsageString() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprintf("plasma local store %q: %d objects, limit=%d bytes", l.optName, len(l.objects), l.optLimit)
}
