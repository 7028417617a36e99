package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

// CoreWorkerServer is the server-side interface a worker's RPC layer
// implements to satisfy §6's worker-exposed handlers that originate from
// peer workers (PushTask, DirectActorCallArgWaitComplete, GetObjectStatus,
// WaitForObjectEviction, KillActor, GetCoreWorkerStats).
type CoreWorkerServer interface {
	PushTask(context.Context, *PushTaskRequest) (*PushTaskResponse, error)
	DirectActorCallArgWaitComplete(context.Context, *DirectActorCallArgWaitCompleteRequest) (*DirectActorCallArgWaitCompleteResponse, error)
	GetObjectStatus(context.Context, *GetObjectStatusRequest) (*GetObjectStatusResponse, error)
	WaitForObjectEviction(context.Context, *WaitForObjectEvictionRequest) (*WaitForObjectEvictionResponse, error)
	KillActor(context.Context, *KillActorRequest) (*KillActorResponse, error)
	GetCoreWorkerStats(context.Context, *GetCoreWorkerStatsRequest) (*GetCoreWorkerStatsResponse, error)
}

// UnimplementedCoreWorkerServer gives zero-value implementations of every
// method, mirroring protoc-gen-go-grpc's embeddable default, so a server
// type need only override the handlers it cares about.
type UnimplementedCoreWorkerServer struct{}

func (UnimplementedCoreWorkerServer) PushTask(context.Context, *PushTaskRequest) (*PushTaskResponse, error) {
	return nil, fmt.Errorf("rpc: PushTask not implemented")
}
func (UnimplementedCoreWorkerServer) DirectActorCallArgWaitComplete(context.Context, *DirectActorCallArgWaitCompleteRequest) (*DirectActorCallArgWaitCompleteResponse, error) {
	return nil, fmt.Errorf("rpc: DirectActorCallArgWaitComplete not implemented")
}
func (UnimplementedCoreWorkerServer) GetObjectStatus(context.Context, *GetObjectStatusRequest) (*GetObjectStatusResponse, error) {
	return nil, fmt.Errorf("rpc: GetObjectStatus not implemented")
}
func (UnimplementedCoreWorkerServer) WaitForObjectEviction(context.Context, *WaitForObjectEvictionRequest) (*WaitForObjectEvictionResponse, error) {
	return nil, fmt.Errorf("rpc: WaitForObjectEviction not implemented")
}
func (UnimplementedCoreWorkerServer) KillActor(context.Context, *KillActorRequest) (*KillActorResponse, error) {
	return nil, fmt.Errorf("rpc: KillActor not implemented")
}
func (UnimplementedCoreWorkerServer) GetCoreWorkerStats(context.Context, *GetCoreWorkerStatsRequest) (*GetCoreWorkerStatsResponse, error) {
	return nil, fmt.Errorf("rpc: GetCoreWorkerStats not implemented")
}

func coreWorkerPushTaskHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PushTaskRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	return srv.(CoreWorkerServer).PushTask(ctx, in)
}

func coreWorkerArgWaitHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DirectActorCallArgWaitCompleteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	return srv.(CoreWorkerServer).DirectActorCallArgWaitComplete(ctx, in)
}

func coreWorkerGetObjectStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetObjectStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	return srv.(CoreWorkerServer).GetObjectStatus(ctx, in)
}

func coreWorkerWaitForEvictionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(WaitForObjectEvictionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	return srv.(CoreWorkerServer).WaitForObjectEviction(ctx, in)
}

func coreWorkerKillActorHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(KillActorRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	return srv.(CoreWorkerServer).KillActor(ctx, in)
}

func coreWorkerGetStatsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetCoreWorkerStatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	return srv.(CoreWorkerServer).GetCoreWorkerStats(ctx, in)
}

// CoreWorkerServiceDesc mirrors the grpc.ServiceDesc protoc-gen-go-grpc
// would emit for a "CoreWorkerService" proto service.
var CoreWorkerServiceDesc = grpc.ServiceDesc{
	ServiceName: "workerrt.rpc.CoreWorkerService",
	HandlerType: (*CoreWorkerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PushTask", Handler: coreWorkerPushTaskHandler},
		{MethodName: "DirectActorCallArgWaitComplete", Handler: coreWorkerArgWaitHandler},
		{MethodName: "GetObjectStatus", Handler: coreWorkerGetObjectStatusHandler},
		{MethodName: "WaitForObjectEviction", Handler: coreWorkerWaitForEvictionHandler},
		{MethodName: "KillActor", Handler: coreWorkerKillActorHandler},
		{MethodName: "GetCoreWorkerStats", Handler: coreWorkerGetStatsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "workerrt/rpc/coreworker.proto",
}

func RegisterCoreWorkerServer(s grpc.ServiceRegistrar, srv CoreWorkerServer) {
	s.RegisterService(&CoreWorkerServiceDesc, srv)
}

// CoreWorkerClient is the client-side stub for CoreWorkerServiceDesc.
type CoreWorkerClient struct {
	cc grpc.ClientConnInterface
}

// NewCoreWorkerClient wraps conn for calling a peer worker.
func NewCoreWorkerClient(conn grpc.ClientConnInterface) *CoreWorkerClient {
	return &CoreWorkerClient{cc: conn}
}

func (c *CoreWorkerClient) PushTask(ctx context.Context, in *PushTaskRequest, opts ...grpc.CallOption) (*PushTaskResponse, error) {
	out := new(PushTaskResponse)
	if err := c.cc.Invoke(ctx, "/workerrt.rpc.CoreWorkerService/PushTask", in, out, withGobCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CoreWorkerClient) DirectActorCallArgWaitComplete(ctx context.Context, in *DirectActorCallArgWaitCompleteRequest, opts ...grpc.CallOption) (*DirectActorCallArgWaitCompleteResponse, error) {
	out := new(DirectActorCallArgWaitCompleteResponse)
	if err := c.cc.Invoke(ctx, "/workerrt.rpc.CoreWorkerService/DirectActorCallArgWaitComplete", in, out, withGobCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CoreWorkerClient) GetObjectStatus(ctx context.Context, in *GetObjectStatusRequest, opts ...grpc.CallOption) (*GetObjectStatusResponse, error) {
	out := new(GetObjectStatusResponse)
	if err := c.cc.Invoke(ctx, "/workerrt.rpc.CoreWorkerService/GetObjectStatus", in, out, withGobCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CoreWorkerClient) WaitForObjectEviction(ctx context.Context, in *WaitForObjectEvictionRequest, opts ...grpc.CallOption) (*WaitForObjectEvictionResponse, error) {
	out := new(WaitForObjectEvictionResponse)
	if err := c.cc.Invoke(ctx, "/workerrt.rpc.CoreWorkerService/WaitForObjectEviction", in, out, withGobCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CoreWorkerClient) KillActor(ctx context.Context, in *KillActorRequest, opts ...grpc.CallOption) (*KillActorResponse, error) {
	out := new(KillActorResponse)
	if err := c.cc.Invoke(ctx, "/workerrt.rpc.CoreWorkerService/KillActor", in, out, withGobCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CoreWorkerClient) GetCoreWorkerStats(ctx context.Context, in *GetCoreWorkerStatsRequest, opts ...grpc.CallOption) (*GetCoreWorkerStatsResponse, error) {
	out := new(GetCoreWorkerStatsResponse)
	if err := c.cc.Invoke(ctx, "/workerrt.rpc.CoreWorkerService/GetCoreWorkerStats", in, out, withGobCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// withGobCodec appends the call option that selects the gob codec
// registered in codec.go, so every call over this stub negotiates the
// "gob" content-subtype instead of grpc's default proto codec.
func withGobCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
