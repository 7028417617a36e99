package rpc

import (
	"fmt"

	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/embercore/workerrt/pkg/task"
)

// ToTaskWire flattens a task.Spec into its gob wire form.
func ToTaskWire(spec *task.Spec) TaskWire {
	args := make([]ArgWire, len(spec.Args))
	for i, a := range spec.Args {
		if a.Kind == task.ArgByValue {
			args[i] = ArgWire{ByValue: true, Value: a.Value.Data, Metadata: a.Value.Metadata}
		} else {
			args[i] = ArgWire{ByValue: false, Ref: a.Ref.Bytes()}
		}
	}
	return TaskWire{
		TaskID:         spec.TaskID.Bytes(),
		JobID:          spec.JobID.Bytes(),
		Type:           int(spec.Type),
		FuncModule:     spec.Function.Module,
		FuncName:       spec.Function.Name,
		FuncClassTag:   spec.Function.ClassTag,
		Args:           args,
		NumReturns:     spec.Options.NumReturns,
		MaxRetries:     spec.Options.MaxRetries,
		Resources:      spec.Options.Resources,
		IsDirectCall:   spec.Options.IsDirectCall,
		CallerTaskID:   spec.CallerID.Bytes(),
		CallerWorkerID: spec.CallerAddress.WorkerID.Bytes(),
		CallerNodeID:   spec.CallerAddress.NodeID.Bytes(),
		CallerIP:       spec.CallerAddress.IP,
		CallerPort:     spec.CallerAddress.Port,

		ActorID:             spec.ActorID.Bytes(),
		ActorMaxConcurrency: spec.ActorCreationOpt.MaxConcurrency,
		ActorMaxRestarts:    spec.ActorCreationOpt.MaxRestarts,
		ActorDetached:       spec.ActorCreationOpt.IsDetached,
		ActorName:           spec.ActorCreationOpt.ActorName,

		ActorHandleID: spec.ActorHandleID.Bytes(),
		ActorCounter:  spec.ActorCounter,
	}
}

// FromTaskWire reconstructs a task.Spec from its wire form.
func FromTaskWire(w TaskWire) (*task.Spec, error) {
	taskID, err := ids.DecodeTaskID(w.TaskID)
	if err != nil {
		return nil, fmt.Errorf("rpc: decode task id: %w", err)
	}
	jobID, err := ids.DecodeJobID(w.JobID)
	if err != nil {
		return nil, fmt.Errorf("rpc: decode job id: %w", err)
	}
	callerTaskID, _ := ids.DecodeTaskID(w.CallerTaskID)
	callerWorkerID, _ := ids.DecodeWorkerID(w.CallerWorkerID)
	callerNodeID, _ := ids.DecodeNodeID(w.CallerNodeID)

	args := make([]task.Arg, len(w.Args))
	for i, a := range w.Args {
		if a.ByValue {
			args[i] = task.Arg{Kind: task.ArgByValue, Value: &object.Object{Data: a.Value, Metadata: a.Metadata}}
		} else {
			ref, derr := ids.DecodeObjectID(a.Ref)
			if derr != nil {
				return nil, fmt.Errorf("rpc: decode arg ref: %w", derr)
			}
			args[i] = task.Arg{Kind: task.ArgByReference, Ref: ref}
		}
	}

	actorID, _ := ids.DecodeActorID(w.ActorID)
	actorHandleID, _ := ids.DecodeActorID(w.ActorHandleID)

	return &task.Spec{
		TaskID:   taskID,
		JobID:    jobID,
		Type:     task.Type(w.Type),
		Function: task.FunctionDescriptor{Module: w.FuncModule, Name: w.FuncName, ClassTag: w.FuncClassTag},
		Args:     args,
		Options: task.Options{
			NumReturns:   w.NumReturns,
			MaxRetries:   w.MaxRetries,
			Resources:    w.Resources,
			IsDirectCall: w.IsDirectCall,
		},
		CallerID: callerTaskID,
		CallerAddress: object.Address{
			WorkerID: callerWorkerID,
			NodeID:   callerNodeID,
			IP:       w.CallerIP,
			Port:     w.CallerPort,
		},
		ActorID: actorID,
		ActorCreationOpt: task.ActorCreationOptions{
			MaxConcurrency: w.ActorMaxConcurrency,
			MaxRestarts:    w.ActorMaxRestarts,
			IsDetached:     w.ActorDetached,
			ActorName:      w.ActorName,
		},
		ActorHandleID: actorHandleID,
		ActorCounter:  w.ActorCounter,
	}, nil
}

// ToObjectWire converts a nilable *object.Object plus its resolution error
// into the wire form used in RPC responses.
func ToObjectWire(obj *object.Object, err error) ObjectWire {
	if err != nil {
		return ObjectWire{ErrorText: err.Error()}
	}
	if obj == nil {
		return ObjectWire{}
	}
	return ObjectWire{Data: obj.Data, Metadata: obj.Metadata}
}

// FromObjectWire reconstructs the (*object.Object, error) pair a ObjectWire
// represents.
func FromObjectWire(w ObjectWire) (*object.Object, error) {
	if w.ErrorText != "" {
		return nil, fmt.Errorf("rpc: %s", w.ErrorText)
	}
	if len(w.Data) == 0 && len(w.Metadata) == 0 {
		return nil, nil
	}
	return &object.Object{Data: w.Data, Metadata: w.Metadata}, nil
}

// ToAddressWire converts an object.Address to its wire form.
func ToAddressWire(addr object.Address) AddressWire {
	return AddressWire{
		WorkerID: addr.WorkerID.Bytes(),
		NodeID:   addr.NodeID.Bytes(),
		IP:       addr.IP,
		Port:     addr.Port,
	}
}

// FromAddressWire reconstructs an object.Address from its wire form.
func FromAddressWire(w AddressWire) object.Address {
	workerID, _ := ids.DecodeWorkerID(w.WorkerID)
	nodeID, _ := ids.DecodeNodeID(w.NodeID)
	return object.Address{WorkerID: workerID, NodeID: nodeID, IP: w.IP, Port: w.Port}
}
