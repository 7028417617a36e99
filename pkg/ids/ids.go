// Package ids defines the opaque fixed-width identifiers shared across the
// worker runtime: WorkerID, JobID, TaskID, ActorID, NodeID, and the composite
// ObjectID.
package ids

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
)

const (
	jobIDLen    = 4
	taskIDLen   = 15
	actorIDLen  = 16
	workerIDLen = 16
	nodeIDLen   = 16
	objectIDLen = taskIDLen + 4 + 1 // TaskID || uint32 index || uint8 transport flag
)

// TransportType tags which store tier initially owns an ObjectID.
type TransportType uint8

const (
	// Raylet objects live in the shared-memory plasma store from creation.
	Raylet TransportType = 0
	// Direct objects may live in the in-process memory store, promotable to plasma.
	Direct TransportType = 1
)

func (t TransportType) String() string {
	if t == Direct {
		return "direct"
	}
	return "raylet"
}

// JobID identifies a submitted job (one driver's worth of work).
type JobID [jobIDLen]byte

// NilJobID is the zero value, used where no job is known.
var NilJobID JobID

func (j JobID) IsNil() bool    { return j == NilJobID }
func (j JobID) Bytes() []byte  { return j[:] }
func (j JobID) String() string { return hex.EncodeToString(j[:]) }

// NewJobID returns a fresh random JobID.
func NewJobID() JobID {
	var j JobID
	u := uuid.New()
	copy(j[:], u[:jobIDLen])
	return j
}

// WorkerID identifies a worker or driver process.
type WorkerID [workerIDLen]byte

var NilWorkerID WorkerID

func (w WorkerID) IsNil() bool    { return w == NilWorkerID }
func (w WorkerID) Bytes() []byte  { return w[:] }
func (w WorkerID) String() string { return hex.EncodeToString(w[:]) }

// NewWorkerID returns a fresh random WorkerID.
func NewWorkerID() WorkerID {
	var w WorkerID
	u := uuid.New()
	copy(w[:], u[:])
	return w
}

// NodeID identifies a node's supervisor (raylet) daemon.
type NodeID [nodeIDLen]byte

var NilNodeID NodeID

func (n NodeID) IsNil() bool    { return n == NilNodeID }
func (n NodeID) Bytes() []byte  { return n[:] }
func (n NodeID) String() string { return hex.EncodeToString(n[:]) }

func (n NodeID) MarshalText() ([]byte, error) { return []byte(n.String()), nil }
func (n *NodeID) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	id, err := DecodeNodeID(raw)
	if err != nil {
		return err
	}
	*n = id
	return nil
}

// NewNodeID returns a fresh random NodeID.
func NewNodeID() NodeID {
	var n NodeID
	u := uuid.New()
	copy(n[:], u[:])
	return n
}

// ActorID identifies an actor. It embeds the creating job so actors can be
// attributed to a job without a side table.
type ActorID [actorIDLen]byte

var NilActorID ActorID

func (a ActorID) IsNil() bool    { return a == NilActorID }
func (a ActorID) Bytes() []byte  { return a[:] }
func (a ActorID) String() string { return hex.EncodeToString(a[:]) }

func (a ActorID) MarshalText() ([]byte, error) { return []byte(a.String()), nil }
func (a *ActorID) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	id, err := DecodeActorID(raw)
	if err != nil {
		return err
	}
	*a = id
	return nil
}
func (a ActorID) JobID() JobID {
	var j JobID
	copy(j[:], a[:jobIDLen])
	return j
}

// NewActorID derives an actor id from its creation job, the creating task,
// and the creating task's per-task index. Deterministic so that two workers
// computing the same actor-creation call agree on the id.
func NewActorID(jobID JobID, creatorTask TaskID, taskIndex uint64) ActorID {
	h := sha256.New()
	h.Write(jobID[:])
	h.Write(creatorTask[:])
	var idxBuf [8]byte
	binary.BigEndian.PutUint64(idxBuf[:], taskIndex)
	h.Write(idxBuf[:])
	sum := h.Sum(nil)
	var a ActorID
	copy(a[:jobIDLen], jobID[:])
	copy(a[jobIDLen:], sum[:actorIDLen-jobIDLen])
	return a
}

// TaskID identifies a single task invocation (normal task, actor-creation
// task, or actor task). TaskIDs are deterministically derived so that
// resubmission of the identical TaskSpec preserves the TaskID (P2, T-property
// "resubmissions preserve the original task-id").
type TaskID [taskIDLen]byte

var NilTaskID TaskID

func (t TaskID) IsNil() bool    { return t == NilTaskID }
func (t TaskID) Bytes() []byte  { return t[:] }
func (t TaskID) String() string { return hex.EncodeToString(t[:]) }

func hashTaskID(parts ...[]byte) TaskID {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	sum := h.Sum(nil)
	var t TaskID
	copy(t[:], sum[:taskIDLen])
	return t
}

// ForNormalTask derives the TaskID of a normal (non-actor) task submitted by
// currentTask (or nil, for a driver's first submission) at per-worker index.
func ForNormalTask(jobID JobID, currentTask TaskID, index uint64) TaskID {
	var idxBuf [8]byte
	binary.BigEndian.PutUint64(idxBuf[:], index)
	return hashTaskID([]byte("normal"), jobID[:], currentTask[:], idxBuf[:])
}

// ForDriverTask derives the synthetic root TaskID registered by a Driver.
func ForDriverTask(jobID JobID) TaskID {
	return hashTaskID([]byte("driver"), jobID[:])
}

// ForActorCreationTask derives the TaskID of the task that creates actorID.
func ForActorCreationTask(actorID ActorID) TaskID {
	return hashTaskID([]byte("actor-creation"), actorID[:])
}

// ForActorTask derives the TaskID of the index'th task submitted to actorID
// by currentTask.
func ForActorTask(jobID JobID, currentTask TaskID, index uint64, actorID ActorID) TaskID {
	var idxBuf [8]byte
	binary.BigEndian.PutUint64(idxBuf[:], index)
	return hashTaskID([]byte("actor-task"), jobID[:], currentTask[:], idxBuf[:], actorID[:])
}

// ObjectID is the 20-byte composite identifier described in §3/§6:
// TaskID (15 bytes) || big-endian uint32 return/put index || uint8 transport flag.
type ObjectID [objectIDLen]byte

var NilObjectID ObjectID

func (o ObjectID) IsNil() bool   { return o == NilObjectID }
func (o ObjectID) Bytes() []byte { return o[:] }

func (o ObjectID) String() string { return hex.EncodeToString(o[:]) }

func (o ObjectID) MarshalText() ([]byte, error) { return []byte(o.String()), nil }
func (o *ObjectID) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	id, err := DecodeObjectID(raw)
	if err != nil {
		return err
	}
	*o = id
	return nil
}

// TaskID returns the task component embedded in the ObjectID.
func (o ObjectID) TaskID() TaskID {
	var t TaskID
	copy(t[:], o[:taskIDLen])
	return t
}

// Index returns the return/put index embedded in the ObjectID.
func (o ObjectID) Index() uint32 {
	return binary.BigEndian.Uint32(o[taskIDLen : taskIDLen+4])
}

// Transport returns the transport-tier flag embedded in the ObjectID.
func (o ObjectID) Transport() TransportType {
	return TransportType(o[taskIDLen+4])
}

// IsDirectCallType reports whether this id was minted with the Direct
// transport flag (may be promoted to plasma; see §4.3 Promotion).
func (o ObjectID) IsDirectCallType() bool {
	return o.Transport() == Direct
}

func newObjectID(task TaskID, index uint32, transport TransportType) ObjectID {
	var o ObjectID
	copy(o[:taskIDLen], task[:])
	binary.BigEndian.PutUint32(o[taskIDLen:taskIDLen+4], index)
	o[taskIDLen+4] = byte(transport)
	return o
}

// ForPut derives the ObjectID of the putIndex'th object `Put` by
// currentTask. Always Raylet-tagged: driver/worker `Put` calls go straight
// to plasma (§4.1 Put).
func ForPut(currentTask TaskID, putIndex uint32) ObjectID {
	return newObjectID(currentTask, putIndex, Raylet)
}

// ForTaskReturn derives the ObjectID of the returnIndex'th (1-based) return
// value of taskID, tagged with the task's transport type.
func ForTaskReturn(taskID TaskID, returnIndex uint32, transport TransportType) ObjectID {
	return newObjectID(taskID, returnIndex, transport)
}

// ForActorCreationReturn derives the actor-cursor ObjectID for actorID's
// creation task. It is always return index 1 of the creation task.
func ForActorCreationReturn(actorID ActorID, transport TransportType) ObjectID {
	return ForTaskReturn(ForActorCreationTask(actorID), 1, transport)
}

// DecodeObjectID parses a 20-byte buffer produced by ObjectID.Bytes.
func DecodeObjectID(b []byte) (ObjectID, error) {
	var o ObjectID
	if len(b) != objectIDLen {
		return o, errors.New("ids: invalid ObjectID length")
	}
	copy(o[:], b)
	return o, nil
}

// DecodeTaskID parses a 15-byte buffer produced by TaskID.Bytes.
func DecodeTaskID(b []byte) (TaskID, error) {
	var t TaskID
	if len(b) != taskIDLen {
		return t, errors.New("ids: invalid TaskID length")
	}
	copy(t[:], b)
	return t, nil
}

// DecodeActorID parses a 16-byte buffer produced by ActorID.Bytes.
func DecodeActorID(b []byte) (ActorID, error) {
	var a ActorID
	if len(b) != actorIDLen {
		return a, errors.New("ids: invalid ActorID length")
	}
	copy(a[:], b)
	return a, nil
}

// DecodeJobID parses a 4-byte buffer produced by JobID.Bytes.
func DecodeJobID(b []byte) (JobID, error) {
	var j JobID
	if len(b) != jobIDLen {
		return j, errors.New("ids: invalid JobID length")
	}
	copy(j[:], b)
	return j, nil
}

// DecodeWorkerID parses a 16-byte buffer produced by WorkerID.Bytes.
func DecodeWorkerID(b []byte) (WorkerID, error) {
	var w WorkerID
	if len(b) != workerIDLen {
		return w, errors.New("ids: invalid WorkerID length")
	}
	copy(w[:], b)
	return w, nil
}

// DecodeNodeID parses a 16-byte buffer produced by NodeID.Bytes.
func DecodeNodeID(b []byte) (NodeID, error) {
	var n NodeID
	if len(b) != nodeIDLen {
		return n, errors.New("ids: invalid NodeID length")
	}
	copy(n[:], b)
	return n, nil
}
