package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/embercore/workerrt/internal/rpc"
	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/embercore/workerrt/pkg/task"
)

// AssignTaskFunc adapts a plain function to Dispatcher, letting tests and
// single-process setups hand in a CoreWorker's ExecuteTask directly instead
// of going through gRPC.
type AssignTaskFunc func(ctx context.Context, spec *task.Spec) ([]*object.Object, error)

func (f AssignTaskFunc) AssignTask(ctx context.Context, spec *task.Spec) ([]*object.Object, error) {
	return f(ctx, spec)
}

// RPCDispatcher adapts an rpc.NodeManagerWorkerClient into a Dispatcher,
// so Service.submitTask can reach a worker over a real gRPC connection
// instead of an in-process call. No command in this module constructs
// one; cmd/driver and internal/cli register AssignTaskFunc dispatchers.
type RPCDispatcher struct {
	client     *rpc.NodeManagerWorkerClient
	intendedID ids.WorkerID
}

func NewRPCDispatcher(client *rpc.NodeManagerWorkerClient, intendedID ids.WorkerID) *RPCDispatcher {
	return &RPCDispatcher{client: client, intendedID: intendedID}
}

func (d *RPCDispatcher) AssignTask(ctx context.Context, spec *task.Spec) ([]*object.Object, error) {
	resp, err := d.client.AssignTask(ctx, &rpc.AssignTaskRequest{
		IntendedWorkerID: d.intendedID.Bytes(),
		Task:             rpc.ToTaskWire(spec),
	})
	if err != nil {
		return nil, fmt.Errorf("cluster: AssignTask rpc: %w", err)
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	results := make([]*object.Object, len(resp.Results))
	for i, w := range resp.Results {
		obj, err := rpc.FromObjectWire(w)
		if err != nil {
			return nil, fmt.Errorf("cluster: AssignTask: decode result %d: %w", i, err)
		}
		results[i] = obj
	}
	return results, nil
}
