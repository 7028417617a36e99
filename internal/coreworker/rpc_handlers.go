package coreworker

import (
	"context"
	"fmt"

	"github.com/embercore/workerrt/internal/futureresolver"
	"github.com/embercore/workerrt/internal/receiver"
	"github.com/embercore/workerrt/internal/rpc"
	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
)

// Server adapts CoreWorker to rpc.CoreWorkerServer and
// rpc.NodeManagerWorkerServer, implementing §6's worker-exposed RPC
// handlers. Each handler first rejects a call not addressed to this
// worker, per §6's "each must first reject if intended_worker_id != self".
type Server struct {
	rpc.UnimplementedCoreWorkerServer
	rpc.UnimplementedNodeManagerWorkerServer
	cw *CoreWorker
}

// NewServer wraps cw for gRPC registration.
func NewServer(cw *CoreWorker) *Server {
	return &Server{cw: cw}
}

func (s *Server) checkIntendedWorker(intended []byte) error {
	id, err := ids.DecodeWorkerID(intended)
	if err != nil {
		return fmt.Errorf("rpc: malformed intended_worker_id: %w", err)
	}
	if id != s.cw.ctx.WorkerID {
		return fmt.Errorf("rpc: intended_worker_id %s does not match self %s", id, s.cw.ctx.WorkerID)
	}
	return nil
}

// AssignTask implements the raylet path (§6 AssignTask).
func (s *Server) AssignTask(ctx context.Context, req *rpc.AssignTaskRequest) (*rpc.AssignTaskResponse, error) {
	if err := s.checkIntendedWorker(req.IntendedWorkerID); err != nil {
		return &rpc.AssignTaskResponse{Error: err.Error()}, nil
	}
	spec, err := rpc.FromTaskWire(req.Task)
	if err != nil {
		return &rpc.AssignTaskResponse{Error: err.Error()}, nil
	}

	replyCh := make(chan *rpc.AssignTaskResponse, 1)
	postErr := s.cw.rayletReceiver.AssignTask(
		decodeWorkerIDOrNil(req.IntendedWorkerID), s.cw.ctx.WorkerID, spec,
		func(results []*object.Object, execErr error) {
			replyCh <- &rpc.AssignTaskResponse{Results: toObjectWires(results), Error: errString(execErr)}
		})
	if postErr != nil {
		return &rpc.AssignTaskResponse{Error: postErr.Error()}, nil
	}
	return <-replyCh, nil
}

// PushTask implements the direct-call path (§6 PushTask).
func (s *Server) PushTask(ctx context.Context, req *rpc.PushTaskRequest) (*rpc.PushTaskResponse, error) {
	if err := s.checkIntendedWorker(req.IntendedWorkerID); err != nil {
		return &rpc.PushTaskResponse{Error: err.Error()}, nil
	}
	spec, err := rpc.FromTaskWire(req.Task)
	if err != nil {
		return &rpc.PushTaskResponse{Error: err.Error()}, nil
	}

	replyCh := make(chan *rpc.PushTaskResponse, 1)
	postErr := s.cw.directReceiver.PushTask(
		decodeWorkerIDOrNil(req.IntendedWorkerID), s.cw.ctx.WorkerID, spec,
		func(results []*object.Object, execErr error) {
			replyCh <- &rpc.PushTaskResponse{Results: toObjectWires(results), Error: errString(execErr)}
		})
	if postErr != nil {
		return &rpc.PushTaskResponse{Error: postErr.Error()}, nil
	}
	return <-replyCh, nil
}

// DirectActorCallArgWaitComplete implements §6's deferred-argument signal.
func (s *Server) DirectActorCallArgWaitComplete(ctx context.Context, req *rpc.DirectActorCallArgWaitCompleteRequest) (*rpc.DirectActorCallArgWaitCompleteResponse, error) {
	taskID, err := ids.DecodeTaskID(req.TaskID)
	if err != nil {
		return nil, err
	}
	s.cw.directReceiver.ArgWaitComplete(taskID, req.ArgIndex)
	return &rpc.DirectActorCallArgWaitCompleteResponse{}, nil
}

// GetObjectStatus implements §6: for an object owned by this worker,
// replies CREATED once the producing task completes, subscribing via
// MemoryStore.GetAsync if still pending.
func (s *Server) GetObjectStatus(ctx context.Context, req *rpc.GetObjectStatusRequest) (*rpc.GetObjectStatusResponse, error) {
	id, err := ids.DecodeObjectID(req.ObjectID)
	if err != nil {
		return nil, err
	}

	replyCh := make(chan *rpc.GetObjectStatusResponse, 1)
	s.cw.memStore.GetAsync(id, func(val *object.Object, getErr error) {
		if getErr != nil {
			replyCh <- &rpc.GetObjectStatusResponse{Status: int(futureresolver.StatusUnreconstructable)}
			return
		}
		replyCh <- &rpc.GetObjectStatusResponse{Status: int(futureresolver.StatusCreated), Object: rpc.ToObjectWire(val, nil)}
	})
	return <-replyCh, nil
}

// WaitForObjectEviction implements §6: parks the reply until the local
// reference record for the object is deleted; responds immediately if no
// record exists (T7).
func (s *Server) WaitForObjectEviction(ctx context.Context, req *rpc.WaitForObjectEvictionRequest) (*rpc.WaitForObjectEvictionResponse, error) {
	id, err := ids.DecodeObjectID(req.ObjectID)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	if !s.cw.refCounter.SetDeleteCallback(id, func(ids.ObjectID) { close(done) }) {
		return &rpc.WaitForObjectEvictionResponse{}, nil
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
	return &rpc.WaitForObjectEvictionResponse{}, nil
}

// KillActor implements §6: validates intended_actor_id and errors on a
// mismatch. On a match it returns an empty response; it does not flush
// logs or exit the process.
func (s *Server) KillActor(ctx context.Context, req *rpc.KillActorRequest) (*rpc.KillActorResponse, error) {
	intended, err := ids.DecodeActorID(req.IntendedActorID)
	if err != nil {
		return nil, err
	}
	if s.cw.ctx.CurrentActorID() != intended {
		return nil, fmt.Errorf("rpc: KillActor intended for %s, this worker is %s", intended, s.cw.ctx.CurrentActorID())
	}
	return &rpc.KillActorResponse{}, nil
}

// GetCoreWorkerStats implements §6's diagnostic snapshot.
func (s *Server) GetCoreWorkerStats(ctx context.Context, req *rpc.GetCoreWorkerStatsRequest) (*rpc.GetCoreWorkerStatsResponse, error) {
	stats := s.cw.GetCoreWorkerStats()
	return &rpc.GetCoreWorkerStatsResponse{
		NumPendingTasks:     stats.NumPendingTasks,
		QueueLength:         stats.QueueLength,
		NumExecutedTasks:    stats.NumExecutedTasks,
		NumObjectIDsInScope: stats.NumObjectIDsInScope,
		CurrentTaskID:       stats.CurrentTaskID.Bytes(),
		Address:             rpc.ToAddressWire(stats.Address),
		ActorID:             stats.ActorID.Bytes(),
		ActorTitle:          stats.ActorTitle,
		WebuiDisplay:        stats.WebuiDisplay,
	}, nil
}

func decodeWorkerIDOrNil(b []byte) ids.WorkerID {
	id, err := ids.DecodeWorkerID(b)
	if err != nil {
		return ids.NilWorkerID
	}
	return id
}

func toObjectWires(objs []*object.Object) []rpc.ObjectWire {
	out := make([]rpc.ObjectWire, len(objs))
	for i, o := range objs {
		out[i] = rpc.ToObjectWire(o, nil)
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var _ receiver.Executor = (*CoreWorker)(nil)
