// Package taskmanager tracks pending task submissions and drives the
// retry/resubmission policy described in §4.4. It is grounded on the
// teacher's job_manager.go bookkeeping pattern: a single map of record
// state plus small index slices, guarded by one mutex.
package taskmanager

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/embercore/workerrt/pkg/ids"
	"github.com/embercore/workerrt/pkg/task"
)

// Sentinel errors mirroring job_manager.go's ErrDuplicateJob-style taxonomy.
var (
	ErrDuplicateTask = fmt.Errorf("taskmanager: task already pending")
	ErrTaskNotFound  = fmt.Errorf("taskmanager: task not pending")
)

// RetrySink is invoked when a retriable failure occurs; the CoreWorker
// binds it to push (readyAt, spec) onto its resubmission queue (§4.4).
type RetrySink func(readyAt time.Time, spec *task.Spec)

// FailureSink is invoked when a task's retries are exhausted; the bound
// callback fills the task's return ids with the failure sentinel and
// notifies the reference counter.
type FailureSink func(spec *task.Spec, returnIDs []ids.ObjectID, err error)

// CompletionSink is invoked when a task completes successfully.
type CompletionSink func(spec *task.Spec, returnIDs []ids.ObjectID)

// pendingTask is the §3 "Pending-task record".
type pendingTask struct {
	spec            *task.Spec
	callerID        ids.TaskID
	maxRetries      int
	retriesRemaining int
	returnIDs       []ids.ObjectID
}

// Manager is the §2 row 5 TaskManager.
type Manager struct {
	mu      sync.Mutex
	pending map[ids.TaskID]*pendingTask
	// retriesLeft carries a retried task's remaining budget from
	// PendingTaskFailed to the resubmission's AddPendingTask.
	retriesLeft map[ids.TaskID]int

	retry      RetrySink
	onFailure  FailureSink
	onComplete CompletionSink

	drainOnce      sync.Once
	drainCh        chan struct{}
	drainRequested bool

	log *slog.Logger
}

// Config bundles the three callbacks a Manager needs injected at
// construction, mirroring the CoreWorker's role of wiring submitter
// callbacks to the TaskManager (§4.4).
type Config struct {
	Retry      RetrySink
	OnFailure  FailureSink
	OnComplete CompletionSink
	Log        *slog.Logger
}

// New constructs a Manager with no pending tasks.
func New(cfg Config) *Manager {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Manager{
		pending:    make(map[ids.TaskID]*pendingTask),
		retriesLeft: make(map[ids.TaskID]int),
		retry:      cfg.Retry,
		onFailure:  cfg.OnFailure,
		onComplete: cfg.OnComplete,
		drainCh:    make(chan struct{}),
		log:        cfg.Log,
	}
}

// AddPendingTask registers spec as pending, to be called before handing it
// to a submitter (§4.4). maxRetries of 0 disables retry. When spec is a
// resubmission after a retriable failure, the budget left over from that
// failure is used instead of maxRetries.
func (m *Manager) AddPendingTask(callerID ids.TaskID, spec *task.Spec, maxRetries int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.pending[spec.TaskID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, spec.TaskID)
	}
	remaining := maxRetries
	if left, ok := m.retriesLeft[spec.TaskID]; ok {
		remaining = left
		delete(m.retriesLeft, spec.TaskID)
	}
	m.pending[spec.TaskID] = &pendingTask{
		spec:             spec,
		callerID:         callerID,
		maxRetries:       maxRetries,
		retriesRemaining: remaining,
		returnIDs:        spec.ReturnIDs(),
	}
	return nil
}

// PendingTaskCompleted removes taskID from the pending set and invokes the
// completion sink (P1).
func (m *Manager) PendingTaskCompleted(taskID ids.TaskID) error {
	m.mu.Lock()
	pt, ok := m.pending[taskID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	delete(m.pending, taskID)
	empty := len(m.pending) == 0
	m.mu.Unlock()

	if m.onComplete != nil {
		m.onComplete(pt.spec, pt.returnIDs)
	}
	m.signalIfDrained(empty)
	return nil
}

// PendingTaskFailed consults the retry budget: if retries remain, it
// decrements the counter and invokes the retry sink with a fixed 5s delay
// (P2; exponential backoff deferred per §9 Open Question c). Otherwise it
// removes the task and invokes the failure sink.
func (m *Manager) PendingTaskFailed(taskID ids.TaskID, failErr error) error {
	m.mu.Lock()
	pt, ok := m.pending[taskID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	if pt.retriesRemaining > 0 {
		retriesRemaining := pt.retriesRemaining - 1
		spec := pt.spec
		delete(m.pending, taskID)
		m.retriesLeft[taskID] = retriesRemaining
		m.mu.Unlock()
		m.log.Warn("taskmanager: task failed, scheduling resubmission",
			"task_id", taskID.String(), "retries_remaining", retriesRemaining, "error", failErr)
		if m.retry != nil {
			m.retry(time.Now().Add(5*time.Second), spec)
		}
		return nil
	}

	delete(m.pending, taskID)
	empty := len(m.pending) == 0
	m.mu.Unlock()

	m.log.Error("taskmanager: task permanently failed", "task_id", taskID.String(), "error", failErr)
	if m.onFailure != nil {
		m.onFailure(pt.spec, pt.returnIDs, failErr)
	}
	m.signalIfDrained(empty)
	return nil
}

// IsPending reports whether taskID is still outstanding.
func (m *Manager) IsPending(taskID ids.TaskID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[taskID]
	return ok
}

// NumPending returns the number of outstanding tasks, used by
// GetCoreWorkerStats.
func (m *Manager) NumPending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// signalIfDrained closes drainCh once both a drain has been requested and
// the pending set is empty. empty transiently reaching zero mid-lifetime
// (e.g. after the first task completes, long before shutdown) must never
// close drainCh on its own -- only DrainAndShutdown arms drainRequested.
func (m *Manager) signalIfDrained(empty bool) {
	m.mu.Lock()
	shouldClose := empty && m.drainRequested
	m.mu.Unlock()
	if shouldClose {
		m.drainOnce.Do(func() { close(m.drainCh) })
	}
}

// DrainAndShutdown blocks until every pending task has resolved, then
// invokes cb. Callers are expected to run this on the execution service so
// shutdown is serialized with in-flight task completions (§4.4).
func (m *Manager) DrainAndShutdown(cb func()) {
	m.mu.Lock()
	m.drainRequested = true
	empty := len(m.pending) == 0
	m.mu.Unlock()
	if empty {
		m.drainOnce.Do(func() { close(m.drainCh) })
	}
	<-m.drainCh
	cb()
}
