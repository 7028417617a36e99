// Package coreworker implements the CoreWorker façade: the single
// per-process entry point that owns worker identity, the dual object
// store, the reference counter, task submission and execution, and the RPC
// handlers that tie them together (§2 row 11, §4.1).
package coreworker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/embercore/workerrt/internal/actorregistry"
	"github.com/embercore/workerrt/internal/directactor"
	"github.com/embercore/workerrt/internal/directtask"
	"github.com/embercore/workerrt/internal/execsvc"
	"github.com/embercore/workerrt/internal/futureresolver"
	"github.com/embercore/workerrt/internal/memstore"
	"github.com/embercore/workerrt/internal/objectstore"
	"github.com/embercore/workerrt/internal/plasma"
	"github.com/embercore/workerrt/internal/receiver"
	"github.com/embercore/workerrt/internal/refcount"
	"github.com/embercore/workerrt/internal/rpc"
	"github.com/embercore/workerrt/internal/taskmanager"
	"github.com/embercore/workerrt/internal/workerctx"
	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/object"
	"github.com/embercore/workerrt/pkg/task"
	"google.golang.org/grpc"
)

// Mode mirrors workerctx.Mode at the façade boundary.
type Mode = workerctx.Mode

const (
	ModeWorker = workerctx.ModeWorker
	ModeDriver = workerctx.ModeDriver
)

// RayletClient is the out-of-scope node supervisor's RPC surface consumed
// by CoreWorker (§1, §6): submit, pin, notify-blocked, push-error,
// checkpointing, resource updates, disconnect. Only the operations the
// façade actually drives have real bodies; the rest are forwarded
// pass-throughs (SPEC_FULL §12).
type RayletClient interface {
	SubmitTask(ctx context.Context, spec *task.Spec) error
	PinObjectIDs(ctx context.Context, owner object.Address, ids []ids.ObjectID) error
	NotifyDirectCallTaskBlocked(ctx context.Context) error
	PushError(ctx context.Context, jobID ids.JobID, errorType, message string, timestamp time.Time) error
	PrepareActorCheckpoint(ctx context.Context, actorID ids.ActorID) error
	NotifyActorResumedFromCheckpoint(ctx context.Context, actorID ids.ActorID) error
	SetResource(ctx context.Context, name string, capacity float64, nodeID ids.NodeID) error
	Disconnect(ctx context.Context) error
	IsAlive(ctx context.Context) bool
}

// MetadataClient is the out-of-scope metadata service's RPC surface (§1,
// §6 GcsClient): connect, actor task bookkeeping.
type MetadataClient interface {
	Connect(ctx context.Context) error
	AddTask(ctx context.Context, spec *task.Spec) error
	Disconnect(ctx context.Context) error
}

// Config bundles every collaborator CoreWorker needs injected at
// construction, mirroring the original's constructor parameter list.
type Config struct {
	Mode    Mode
	JobID   ids.JobID
	Address object.Address

	Plasma   plasma.Client
	Raylet   RayletClient
	Metadata MetadataClient
	Actors   actorregistry.Subscriber
	Owners   futureresolver.OwnerClient

	TaskExecutionCallback func(spec *task.Spec, args []task.Arg, returnIDs []ids.ObjectID) ([]*object.Object, error)

	MaxDirectCallObjectSize int
	ActorCreationMinRetries int
	RayletLivenessInterval  time.Duration
	HeartbeatInterval       time.Duration

	// RemoteDialer resolves a gRPC connection to a peer worker's
	// CoreWorkerService for direct-call pushes that leased an address other
	// than this worker's own (§4.6). nil leaves cross-process direct calls
	// unsupported; every push then has to resolve to this worker's own
	// address or PushTask fails.
	RemoteDialer func(addr object.Address) (grpc.ClientConnInterface, error)

	// ProfileEvent is the no-op-by-default profiling hook (SPEC_FULL §12).
	ProfileEvent func(name string)

	Log *slog.Logger
}

// resubmitEntry is one (not-before-timestamp, spec) pair in the
// resubmission queue (§3 "Resubmission queue").
type resubmitEntry struct {
	readyAt time.Time
	spec    *task.Spec
}

// CoreWorker is the §2 row 11 façade and §4.1's public surface.
type CoreWorker struct {
	cfg Config
	ctx *workerctx.Context

	refCounter *refcount.Counter
	memStore   *memstore.Store
	objStore   *objectstore.Store
	resolver   *futureresolver.Resolver

	taskMgr      *taskmanager.Manager
	actorReg     *actorregistry.Registry
	directTasks  *directtask.Submitter
	directActors *directactor.Submitter

	execService    *execsvc.Service
	rayletReceiver *receiver.RayletReceiver
	directReceiver *receiver.DirectReceiver

	mu             sync.Mutex
	resubmitQueue  []resubmitEntry
	executedCount  int
	actorTitle     string
	webuiDisplay   map[string]string

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	log *slog.Logger
}

// New constructs a CoreWorker wiring every collaborator named in cfg. It
// does not start timers or register a driver root task; call Start for
// that.
func New(cfg Config) (*CoreWorker, error) {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.RayletLivenessInterval == 0 {
		cfg.RayletLivenessInterval = time.Second
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = time.Second
	}
	if cfg.Plasma == nil {
		return nil, fmt.Errorf("coreworker: Plasma client is required")
	}

	wctx := workerctx.New(cfg.Mode, cfg.JobID, cfg.Address)
	refCounter := refcount.New(cfg.Log)
	memStore := memstore.New()
	plasmaFacade := plasma.NewFacade(cfg.Plasma)
	objStore := objectstore.New(memStore, plasmaFacade)
	resolver := futureresolver.New(memStore, cfg.Owners, cfg.Log)

	cw := &CoreWorker{
		cfg:          cfg,
		ctx:          wctx,
		refCounter:   refCounter,
		memStore:     memStore,
		objStore:     objStore,
		resolver:     resolver,
		webuiDisplay: make(map[string]string),
		stopCh:       make(chan struct{}),
		log:          cfg.Log,
	}

	cw.taskMgr = taskmanager.New(taskmanager.Config{
		Retry:      cw.scheduleResubmit,
		OnFailure:  cw.handleTaskPermanentFailure,
		OnComplete: cw.handleTaskCompleted,
		Log:        cfg.Log,
	})

	cw.directTasks = directtask.New(rayletLeaseAdapter{cw}, rayletPushAdapter{cw}, cfg.Log)
	cw.directActors = directactor.New(rayletPushAdapter{cw}, cfg.Log)
	cw.actorReg = actorregistry.New(cfg.Actors, cw.directActors, cfg.Log)

	cw.execService = execsvc.New(256, cfg.Log)
	cw.rayletReceiver = receiver.NewRayletReceiver(cw.execService, cw, cw.currentActorIsDirectCallOnly, cfg.Log)
	cw.directReceiver = receiver.NewDirectReceiver(cw.execService, cw, cfg.Log)

	return cw, nil
}

func (cw *CoreWorker) currentActorIsDirectCallOnly() bool {
	actorID := cw.ctx.CurrentActorID()
	if actorID.IsNil() {
		return false
	}
	handle, ok := cw.actorReg.GetActorHandle(actorID)
	return ok && handle.IsDirectCall
}

// Start brings the façade fully online: for a Driver it additionally
// registers a synthetic root task (SPEC_FULL §12); both Driver and Worker
// start the execution service, since a Driver can submit direct-call tasks
// whose same-process push is itself posted onto it (§5), and start the
// reactor timers.
func (cw *CoreWorker) Start(ctx context.Context) error {
	if cw.cfg.Metadata != nil {
		if err := cw.cfg.Metadata.Connect(ctx); err != nil {
			return fmt.Errorf("coreworker: metadata connect: %w", err)
		}
	}

	cw.execService.Start()

	if cw.ctx.Mode == ModeDriver {
		if err := cw.registerDriverRootTask(ctx); err != nil {
			return fmt.Errorf("coreworker: register driver root task: %w", err)
		}
	}

	cw.wg.Add(2)
	go cw.runRayletLivenessLoop()
	go cw.runHeartbeatLoop()

	return nil
}

// registerDriverRootTask implements SPEC_FULL §12's "Driver root-task
// registration": a Driver-mode CoreWorker registers a synthetic task
// record keyed by TaskID.ForDriverTask(job_id) with the metadata service
// and sets it as the current task, so driver-attributable object-creation
// errors are reportable.
func (cw *CoreWorker) registerDriverRootTask(ctx context.Context) error {
	rootID := ids.ForDriverTask(cw.ctx.JobID)
	cw.ctx.SetCurrentTask(rootID)
	if cw.cfg.Metadata == nil {
		return nil
	}
	spec := &task.Spec{
		TaskID:        rootID,
		JobID:         cw.ctx.JobID,
		Type:          task.Normal,
		CallerAddress: cw.ctx.Address,
	}
	return cw.cfg.Metadata.AddTask(ctx, spec)
}

// GetCallerId implements §4.1/SPEC_FULL §12's GetCallerId.
func (cw *CoreWorker) GetCallerId() ids.TaskID {
	return cw.ctx.CallerID()
}

// Shutdown is idempotent: stops the reactor timers, stops the execution
// service, disconnects the metadata and supervisor clients (§4.1, §5
// "Shutdown is cooperative").
func (cw *CoreWorker) Shutdown(ctx context.Context) {
	cw.stopOnce.Do(func() {
		close(cw.stopCh)
	})
	cw.wg.Wait()
	cw.execService.Stop()

	if cw.cfg.Raylet != nil {
		_ = cw.cfg.Raylet.Disconnect(ctx) // best-effort (§7)
	}
	if cw.cfg.Metadata != nil {
		_ = cw.cfg.Metadata.Disconnect(ctx) // best-effort (§7)
	}
}

// ShutdownAfterDrain waits for every pending task to resolve before
// shutting down, serialized on the execution service (§4.4
// DrainAndShutdown).
func (cw *CoreWorker) ShutdownAfterDrain(ctx context.Context) {
	cw.taskMgr.DrainAndShutdown(func() {
		cw.Shutdown(ctx)
	})
}

// GetCoreWorkerStats implements §6's diagnostic snapshot RPC.
type Stats struct {
	NumPendingTasks     int
	QueueLength         int
	NumExecutedTasks    int
	NumObjectIDsInScope int
	CurrentTaskID       ids.TaskID
	Address             object.Address
	ActorID             ids.ActorID
	ActorTitle          string
	WebuiDisplay        map[string]string
}

func (cw *CoreWorker) GetCoreWorkerStats() Stats {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return Stats{
		NumPendingTasks:     cw.taskMgr.NumPending(),
		QueueLength:         0,
		NumExecutedTasks:    cw.executedCount,
		NumObjectIDsInScope: cw.refCounter.NumObjectIDsInScope(),
		CurrentTaskID:       cw.ctx.CurrentTaskID(),
		Address:             cw.ctx.Address,
		ActorID:             cw.ctx.CurrentActorID(),
		ActorTitle:          cw.actorTitle,
		WebuiDisplay:        copyStringMap(cw.webuiDisplay),
	}
}

// SetActorTitle, SetWebuiDisplay, SetActorId surface small pieces of
// worker-local metadata through GetCoreWorkerStats (SPEC_FULL §12).
func (cw *CoreWorker) SetActorTitle(title string) {
	cw.mu.Lock()
	cw.actorTitle = title
	cw.mu.Unlock()
}

func (cw *CoreWorker) SetWebuiDisplay(key, value string) {
	cw.mu.Lock()
	cw.webuiDisplay[key] = value
	cw.mu.Unlock()
}

func (cw *CoreWorker) SetActorId(actorID ids.ActorID) {
	cw.ctx.SetCurrentActorID(actorID)
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// PushError, PrepareActorCheckpoint, NotifyActorResumedFromCheckpoint, and
// SetResource are thin pass-throughs to RayletClient (§6, SPEC_FULL §12).
func (cw *CoreWorker) PushError(ctx context.Context, errorType, message string) error {
	if cw.cfg.Raylet == nil {
		return nil
	}
	return cw.cfg.Raylet.PushError(ctx, cw.ctx.JobID, errorType, message, time.Now())
}

func (cw *CoreWorker) PrepareActorCheckpoint(ctx context.Context, actorID ids.ActorID) error {
	if cw.cfg.Raylet == nil {
		return nil
	}
	return cw.cfg.Raylet.PrepareActorCheckpoint(ctx, actorID)
}

func (cw *CoreWorker) NotifyActorResumedFromCheckpoint(ctx context.Context, actorID ids.ActorID) error {
	if cw.cfg.Raylet == nil {
		return nil
	}
	return cw.cfg.Raylet.NotifyActorResumedFromCheckpoint(ctx, actorID)
}

func (cw *CoreWorker) SetResource(ctx context.Context, name string, capacity float64, nodeID ids.NodeID) error {
	if cw.cfg.Raylet == nil {
		return nil
	}
	return cw.cfg.Raylet.SetResource(ctx, name, capacity, nodeID)
}

// rayletLeaseAdapter/rayletPushAdapter adapt CoreWorker to the narrow
// interfaces directtask/directactor need, keeping those packages decoupled
// from coreworker's Config surface.
type rayletLeaseAdapter struct{ cw *CoreWorker }

func (a rayletLeaseAdapter) RequestWorkerLease(ctx context.Context, spec *task.Spec) (object.Address, error) {
	if a.cw.cfg.Raylet == nil {
		return object.Address{}, fmt.Errorf("coreworker: no raylet client configured")
	}
	if err := a.cw.cfg.Raylet.SubmitTask(ctx, spec); err != nil {
		return object.Address{}, err
	}
	return a.cw.cfg.Address, nil
}

type rayletPushAdapter struct{ cw *CoreWorker }

// PushTask implements directtask.PushClient/directactor.PushClient (§4.6).
// A lease naming this worker's own address runs locally by posting onto the
// execution service, exactly like an inbound PushTask RPC would (§5: task
// execution for a given worker must be serialized); any other address is a
// genuinely remote worker, dialed over rpc.CoreWorkerClient.
func (a rayletPushAdapter) PushTask(ctx context.Context, addr object.Address, spec *task.Spec) ([]*object.Object, error) {
	if addr.WorkerID.IsNil() || addr.WorkerID == a.cw.ctx.WorkerID {
		return a.cw.pushLocal(spec)
	}
	return a.cw.pushRemote(ctx, addr, spec)
}

// pushLocal routes a direct-call push through the same execsvc.Post +
// DirectReceiver path an inbound PushTask RPC takes (internal/coreworker/
// rpc_handlers.go PushTask), so same-process submissions never race a
// concurrently executing task on cw.ctx/cw.executedCount/cw.actorReg.
func (cw *CoreWorker) pushLocal(spec *task.Spec) ([]*object.Object, error) {
	type outcome struct {
		results []*object.Object
		err     error
	}
	replyCh := make(chan outcome, 1)
	postErr := cw.directReceiver.PushTask(cw.ctx.WorkerID, cw.ctx.WorkerID, spec, func(results []*object.Object, execErr error) {
		replyCh <- outcome{results: results, err: execErr}
	})
	if postErr != nil {
		return nil, fmt.Errorf("coreworker: push local: %w", postErr)
	}
	o := <-replyCh
	return o.results, o.err
}

// pushRemote dials the leased worker's address and sends spec over
// rpc.CoreWorkerClient.PushTask (§6), the worker-to-worker transport the
// Glossary's "Direct call" entry describes.
func (cw *CoreWorker) pushRemote(ctx context.Context, addr object.Address, spec *task.Spec) ([]*object.Object, error) {
	if cw.cfg.RemoteDialer == nil {
		return nil, fmt.Errorf("coreworker: push remote: no dialer configured for worker %s", addr.WorkerID)
	}
	conn, err := cw.cfg.RemoteDialer(addr)
	if err != nil {
		return nil, fmt.Errorf("coreworker: push remote: dial %s: %w", addr.WorkerID, err)
	}
	client := rpc.NewCoreWorkerClient(conn)
	resp, err := client.PushTask(ctx, &rpc.PushTaskRequest{
		IntendedWorkerID: addr.WorkerID.Bytes(),
		Task:             rpc.ToTaskWire(spec),
	})
	if err != nil {
		return nil, fmt.Errorf("coreworker: push remote: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("coreworker: push remote: %s", resp.Error)
	}
	results := make([]*object.Object, len(resp.Results))
	for i, w := range resp.Results {
		obj, oerr := rpc.FromObjectWire(w)
		if oerr != nil {
			return nil, fmt.Errorf("coreworker: push remote: decode result %d: %w", i, oerr)
		}
		results[i] = obj
	}
	return results, nil
}
