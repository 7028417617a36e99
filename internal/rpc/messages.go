package rpc

import "time"

// Wire message types for the CoreWorkerService and NodeManagerWorkerService
// RPCs named in §6. Because internal/rpc's codec is gob-based rather than
// protobuf, these are plain exported structs -- no generated .pb.go code.

// TaskWire is the flattened, gob-friendly form of a task.Spec. CoreWorker's
// RPC layer converts to/from pkg/task.Spec at the boundary (internal/rpc
// intentionally does not import pkg/task, to keep the wire schema stable
// independent of the in-process type's evolution).
type TaskWire struct {
	TaskID        []byte
	JobID         []byte
	Type          int
	FuncModule    string
	FuncName      string
	FuncClassTag  string
	Args          []ArgWire
	NumReturns    int
	MaxRetries    int
	Resources     map[string]float64
	IsDirectCall  bool
	CallerTaskID  []byte
	CallerWorkerID []byte
	CallerNodeID  []byte
	CallerIP      string
	CallerPort    int

	ActorID           []byte
	ActorMaxConcurrency int
	ActorMaxRestarts    int
	ActorDetached       bool
	ActorName           string

	ActorHandleID []byte
	ActorCounter  uint64
}

// ArgWire is the wire form of a task.Arg.
type ArgWire struct {
	ByValue  bool
	Value    []byte
	Metadata []byte
	Ref      []byte
}

// ObjectWire is the wire form of an object.Object.
type ObjectWire struct {
	Data      []byte
	Metadata  []byte
	ErrorText string // empty unless the object resolved to a sentinel error
}

// AddressWire is the wire form of an object.Address.
type AddressWire struct {
	WorkerID []byte
	NodeID   []byte
	IP       string
	Port     int
}

// AssignTaskRequest/Response implement §6 AssignTask (raylet path).
type AssignTaskRequest struct {
	IntendedWorkerID []byte
	Task             TaskWire
}

type AssignTaskResponse struct {
	Results []ObjectWire
	Error   string
}

// PushTaskRequest/Response implement §6 PushTask (direct path).
type PushTaskRequest struct {
	IntendedWorkerID []byte
	Task             TaskWire
}

type PushTaskResponse struct {
	Results []ObjectWire
	Error   string
}

// DirectActorCallArgWaitCompleteRequest/Response implement §6.
type DirectActorCallArgWaitCompleteRequest struct {
	TaskID   []byte
	ArgIndex int
}

type DirectActorCallArgWaitCompleteResponse struct{}

// GetObjectStatusRequest/Response implement §6.
type GetObjectStatusRequest struct {
	ObjectID []byte
	OwnerID  []byte
}

type GetObjectStatusResponse struct {
	Status int // futureresolver.OwnerStatus
	Object ObjectWire
}

// WaitForObjectEvictionRequest/Response implement §6: the server parks the
// reply until the local reference record is deleted.
type WaitForObjectEvictionRequest struct {
	ObjectID []byte
}

type WaitForObjectEvictionResponse struct{}

// KillActorRequest/Response implement §6.
type KillActorRequest struct {
	IntendedActorID []byte
	NoRestart       bool
}

type KillActorResponse struct{}

// GetCoreWorkerStatsRequest/Response implement §6's stats snapshot.
type GetCoreWorkerStatsRequest struct{}

type GetCoreWorkerStatsResponse struct {
	NumPendingTasks    int
	QueueLength        int
	NumExecutedTasks   int
	NumObjectIDsInScope int
	CurrentTaskID      []byte
	Address            AddressWire
	ActorID            []byte
	ActorTitle         string
	WebuiDisplay       map[string]string
	Timestamp          time.Time
}

// RequestWorkerLeaseRequest/Response support the DirectTaskSubmitter's
// lease step (§4.6).
type RequestWorkerLeaseRequest struct {
	Task TaskWire
}

type RequestWorkerLeaseResponse struct {
	Granted bool
	Address AddressWire
	Error   string
}

// PinObjectIDsRequest/Response implement the supervisor-pinning call from
// §4.1 Put ("then request the supervisor to pin the object").
type PinObjectIDsRequest struct {
	OwnerAddress AddressWire
	ObjectIDs    [][]byte
}

type PinObjectIDsResponse struct {
	Error string
}
