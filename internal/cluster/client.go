package cluster

import (
	"context"
	"time"

	"github.com/embercore/workerrt/internal/actorregistry"
	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/embercore/workerrt/pkg/task"
)

// Client is the per-worker handle a CoreWorker dials: it satisfies
// coreworker.RayletClient, coreworker.MetadataClient, and
// actorregistry.Subscriber against a shared Service, the way a real worker
// would hold separate gRPC stubs to its local raylet and the cluster-wide
// GCS. Declaring the dependency in the other direction (coreworker on
// cluster) would invert the module's layering, so CoreWorker depends only
// on the narrow interfaces and Client is handed in as their implementation.
type Client struct {
	svc        *Service
	workerID   ids.WorkerID
	nodeID     ids.NodeID
	dispatcher Dispatcher
}

// NewClient binds a Client to one worker's identity and its node's task
// dispatcher (how AssignTask calls reach that worker).
func NewClient(svc *Service, workerID ids.WorkerID, nodeID ids.NodeID, addr object.Address, dispatcher Dispatcher) (*Client, error) {
	if err := svc.RegisterNode(nodeID, addr, dispatcher); err != nil {
		return nil, err
	}
	return &Client{svc: svc, workerID: workerID, nodeID: nodeID, dispatcher: dispatcher}, nil
}

// -- coreworker.MetadataClient --

func (c *Client) Connect(ctx context.Context) error {
	return nil
}

func (c *Client) AddTask(ctx context.Context, spec *task.Spec) error {
	return c.svc.addTask(ctx, spec)
}

// -- coreworker.RayletClient --

func (c *Client) SubmitTask(ctx context.Context, spec *task.Spec) error {
	return c.svc.submitTask(ctx, spec)
}

func (c *Client) PinObjectIDs(ctx context.Context, owner object.Address, idList []ids.ObjectID) error {
	for _, id := range idList {
		if err := c.svc.pinObject(ctx, owner, id); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) NotifyDirectCallTaskBlocked(ctx context.Context) error {
	return nil
}

func (c *Client) PushError(ctx context.Context, jobID ids.JobID, errorType, message string, timestamp time.Time) error {
	c.svc.pushError(jobID, errorType, message, timestamp)
	return nil
}

func (c *Client) PrepareActorCheckpoint(ctx context.Context, actorID ids.ActorID) error {
	return nil // checkpoint/restore of worker-local state is an explicit non-goal
}

func (c *Client) NotifyActorResumedFromCheckpoint(ctx context.Context, actorID ids.ActorID) error {
	return nil
}

func (c *Client) SetResource(ctx context.Context, name string, capacity float64, nodeID ids.NodeID) error {
	return nil
}

// Disconnect satisfies both RayletClient and MetadataClient; the backing
// Service does not distinguish the two roles once a node has left.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.svc.UnregisterNode(c.nodeID)
}

func (c *Client) IsAlive(ctx context.Context) bool {
	return true
}

// -- actorregistry.Subscriber --

func (c *Client) AsyncSubscribe(actorID ids.ActorID, onNotify actorregistry.NotifyFunc) error {
	return c.svc.subscribeActor(actorID, onNotify)
}

func (c *Client) AsyncUnsubscribe(actorID ids.ActorID) error {
	return c.svc.unsubscribeActor(actorID)
}
