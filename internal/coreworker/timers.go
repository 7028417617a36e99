package coreworker

import (
	"context"
	"sort"
	"time"

	"github.com/embercore/workerrt/pkg/task"
)

// runRayletLivenessLoop polls the supervisor at a configurable cadence; on
// detecting the supervisor is gone it initiates shutdown (§4.1 Timers,
// "Raylet liveness").
func (cw *CoreWorker) runRayletLivenessLoop() {
	defer cw.wg.Done()
	if cw.cfg.Raylet == nil {
		return
	}
	ticker := time.NewTicker(cw.cfg.RayletLivenessInterval)
	defer ticker.Stop()
	for {
		select {
		case <-cw.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), cw.cfg.RayletLivenessInterval)
			alive := cw.cfg.Raylet.IsAlive(ctx)
			cancel()
			if !alive {
				cw.log.Error("coreworker: supervisor unreachable, shutting down")
				go cw.Shutdown(context.Background())
				return
			}
		}
	}
}

// runHeartbeatLoop drains due entries of the resubmission queue every
// cfg.HeartbeatInterval (§4.1 Timers, "Internal heartbeat").
func (cw *CoreWorker) runHeartbeatLoop() {
	defer cw.wg.Done()
	ticker := time.NewTicker(cw.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-cw.stopCh:
			return
		case <-ticker.C:
			cw.drainResubmissionQueue()
		}
	}
}

// scheduleResubmit is the TaskManager's RetrySink: push (now+5s, spec) onto
// the resubmission queue (§4.4).
func (cw *CoreWorker) scheduleResubmit(readyAt time.Time, spec *task.Spec) {
	cw.mu.Lock()
	cw.resubmitQueue = append(cw.resubmitQueue, resubmitEntry{readyAt: readyAt, spec: spec})
	sort.Slice(cw.resubmitQueue, func(i, j int) bool {
		return cw.resubmitQueue[i].readyAt.Before(cw.resubmitQueue[j].readyAt)
	})
	cw.mu.Unlock()
}

// drainResubmissionQueue resubmits every due entry in nondecreasing
// timestamp order via the direct submitter (P2), preserving the original
// task-id across attempts (§5 Ordering guarantees).
func (cw *CoreWorker) drainResubmissionQueue() {
	now := time.Now()
	var due []resubmitEntry

	cw.mu.Lock()
	i := 0
	for ; i < len(cw.resubmitQueue); i++ {
		if cw.resubmitQueue[i].readyAt.After(now) {
			break
		}
	}
	due = cw.resubmitQueue[:i]
	cw.resubmitQueue = cw.resubmitQueue[i:]
	cw.mu.Unlock()

	for _, entry := range due {
		cw.resubmitOne(entry.spec)
	}
}

func (cw *CoreWorker) resubmitOne(spec *task.Spec) {
	if err := cw.taskMgr.AddPendingTask(spec.CallerID, spec, spec.Options.MaxRetries); err != nil {
		cw.log.Warn("coreworker: resubmit skipped, already pending", "task_id", spec.TaskID.String())
		return
	}
	cw.submitViaDirectOrRaylet(context.Background(), spec)
}
