package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

// NodeManagerWorkerServer is the server-side interface a worker implements
// to receive calls from its node supervisor (§6 AssignTask, raylet path).
type NodeManagerWorkerServer interface {
	AssignTask(context.Context, *AssignTaskRequest) (*AssignTaskResponse, error)
}

type UnimplementedNodeManagerWorkerServer struct{}

func (UnimplementedNodeManagerWorkerServer) AssignTask(context.Context, *AssignTaskRequest) (*AssignTaskResponse, error) {
	return nil, fmt.Errorf("rpc: AssignTask not implemented")
}

func nodeManagerAssignTaskHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AssignTaskRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	return srv.(NodeManagerWorkerServer).AssignTask(ctx, in)
}

var NodeManagerWorkerServiceDesc = grpc.ServiceDesc{
	ServiceName: "workerrt.rpc.NodeManagerWorkerService",
	HandlerType: (*NodeManagerWorkerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AssignTask", Handler: nodeManagerAssignTaskHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "workerrt/rpc/nodemanager.proto",
}

func RegisterNodeManagerWorkerServer(s grpc.ServiceRegistrar, srv NodeManagerWorkerServer) {
	s.RegisterService(&NodeManagerWorkerServiceDesc, srv)
}

// NodeManagerWorkerClient is the worker's stub for calling the supervisor.
type NodeManagerWorkerClient struct {
	cc grpc.ClientConnInterface
}

func NewNodeManagerWorkerClient(conn grpc.ClientConnInterface) *NodeManagerWorkerClient {
	return &NodeManagerWorkerClient{cc: conn}
}

func (c *NodeManagerWorkerClient) AssignTask(ctx context.Context, in *AssignTaskRequest, opts ...grpc.CallOption) (*AssignTaskResponse, error) {
	out := new(AssignTaskResponse)
	if err := c.cc.Invoke(ctx, "/workerrt.rpc.NodeManagerWorkerService/AssignTask", in, out, withGobCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// SupervisorServer is the node supervisor's own RPC surface, named in §6's
// outbound-interfaces list (SubmitTask/RequestWorkerLease, PinObjectIDs,
// NotifyDirectCallTaskBlocked, PushError, PrepareActorCheckpoint,
// NotifyActorResumedFromCheckpoint, SetResource, Disconnect). Only the
// operations CoreWorker actually calls are given handlers; the rest are
// thin pass-throughs documented in SPEC_FULL §12.
type SupervisorServer interface {
	RequestWorkerLease(context.Context, *RequestWorkerLeaseRequest) (*RequestWorkerLeaseResponse, error)
	PinObjectIDs(context.Context, *PinObjectIDsRequest) (*PinObjectIDsResponse, error)
}

func supervisorLeaseHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RequestWorkerLeaseRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	return srv.(SupervisorServer).RequestWorkerLease(ctx, in)
}

func supervisorPinHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PinObjectIDsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	return srv.(SupervisorServer).PinObjectIDs(ctx, in)
}

var SupervisorServiceDesc = grpc.ServiceDesc{
	ServiceName: "workerrt.rpc.SupervisorService",
	HandlerType: (*SupervisorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RequestWorkerLease", Handler: supervisorLeaseHandler},
		{MethodName: "PinObjectIDs", Handler: supervisorPinHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "workerrt/rpc/supervisor.proto",
}

func RegisterSupervisorServer(s grpc.ServiceRegistrar, srv SupervisorServer) {
	s.RegisterService(&SupervisorServiceDesc, srv)
}

// SupervisorClient is the worker's stub for calling its node supervisor.
type SupervisorClient struct {
	cc grpc.ClientConnInterface
}

func NewSupervisorClient(conn grpc.ClientConnInterface) *SupervisorClient {
	return &SupervisorClient{cc: conn}
}

func (c *SupervisorClient) RequestWorkerLease(ctx context.Context, in *RequestWorkerLeaseRequest, opts ...grpc.CallOption) (*RequestWorkerLeaseResponse, error) {
	out := new(RequestWorkerLeaseResponse)
	if err := c.cc.Invoke(ctx, "/workerrt.rpc.SupervisorService/RequestWorkerLease", in, out, withGobCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SupervisorClient) PinObjectIDs(ctx context.Context, in *PinObjectIDsRequest, opts ...grpc.CallOption) (*PinObjectIDsResponse, error) {
	out := new(PinObjectIDsResponse)
	if err := c.cc.Invoke(ctx, "/workerrt.rpc.SupervisorService/PinObjectIDs", in, out, withGobCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}
