// Package task defines the wire-level description of a submittable unit of
// work: its type (normal, actor-creation, or actor method), its arguments,
// and the options that govern how it is scheduled and resubmitted.
package task

import (
	"time"

	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
)

// Type discriminates the three task shapes a TaskSpec can take (§3).
type Type int

const (
	Normal Type = iota
	ActorCreation
	ActorMethod
)

func (t Type) String() string {
	switch t {
	case ActorCreation:
		return "actor_creation"
	case ActorMethod:
		return "actor_method"
	default:
		return "normal"
	}
}

// FunctionDescriptor identifies the language-level callable a task invokes.
// The runtime treats it opaquely; language bindings interpret it.
type FunctionDescriptor struct {
	Module   string
	Name     string
	ClassTag string
}

// ArgKind discriminates a by-value inlined argument from a by-reference one.
type ArgKind int

const (
	ArgByValue ArgKind = iota
	ArgByReference
)

// Arg is a single task argument, either the raw bytes of a small, inlined
// value or a reference to an object that must be resolved before the task
// can run (§4.7 step 2, BuildArgsForExecutor).
type Arg struct {
	Kind  ArgKind
	Value *object.Object // set when Kind == ArgByValue
	Ref   ids.ObjectID   // set when Kind == ArgByReference
}

// Options carries scheduling knobs common to every task type.
type Options struct {
	Name              string
	NumReturns        int
	MaxRetries        int
	Resources         map[string]float64
	PlacementGroupID  string
	IsDirectCall      bool
	MaxDirectCallSize int
}

// ActorCreationOptions additionally governs the actor this task creates.
type ActorCreationOptions struct {
	MaxConcurrency  int
	MaxRestarts     int
	IsDetached      bool
	ActorName       string
	ExtensionData   []byte
}

// Spec is the immutable, fully-resolved description of one task invocation.
// Resubmission (§4.4) reuses the identical Spec, which is why its TaskID is
// derived deterministically rather than assigned at submit time.
type Spec struct {
	TaskID   ids.TaskID
	JobID    ids.JobID
	Type     Type
	Function FunctionDescriptor
	Args     []Arg
	Options  Options

	// CallerAddress is the address of the submitting worker, used for
	// ownership of the task's return objects.
	CallerAddress object.Address
	CallerID      ids.TaskID

	// ActorCreation fields, set only when Type == ActorCreation.
	ActorID          ids.ActorID
	ActorCreationOpt ActorCreationOptions

	// ActorMethod fields, set only when Type == ActorMethod.
	ActorHandleID    ids.ActorID
	ActorCounter     uint64

	SubmittedAt time.Time
}

// ReturnIDs derives the ObjectIDs of this task's NumReturns return values.
// Actor-creation tasks always have exactly one return, the actor cursor.
func (s *Spec) ReturnIDs() []ids.ObjectID {
	transport := ids.Raylet
	if s.Options.IsDirectCall {
		transport = ids.Direct
	}
	n := s.Options.NumReturns
	if s.Type == ActorCreation {
		n = 1
	}
	ret := make([]ids.ObjectID, n)
	for i := 0; i < n; i++ {
		ret[i] = ids.ForTaskReturn(s.TaskID, uint32(i+1), transport)
	}
	return ret
}

// IsActorTask reports whether this spec targets an existing actor.
func (s *Spec) IsActorTask() bool {
	return s.Type == ActorMethod
}
