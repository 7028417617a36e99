// Package metrics exposes per-process CoreWorker counters over Prometheus,
// the same Collector/StartServer shape the original job-queue metrics used,
// retargeted at task submission, execution, and the object store instead of
// queue depth (§4.1 "diagnostic surface", SPEC_FULL §10 Metrics).
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is the Prometheus metrics registered by one CoreWorker
// process.
type Collector struct {
	tasksSubmitted prometheus.Counter
	tasksCompleted prometheus.Counter
	tasksFailed    prometheus.Counter
	tasksRetried   prometheus.Counter

	taskLatency prometheus.Histogram

	objectsPut    prometheus.Counter
	objectsGet    prometheus.Counter
	objectsEvicted prometheus.Counter

	pendingTasks        prometheus.Gauge
	objectIDsInScope    prometheus.Gauge
	resubmissionQueueLen prometheus.Gauge
}

// NewCollector builds and registers a Collector against the default
// Prometheus registry. Constructing more than one Collector in the same
// process panics via prometheus.MustRegister, matching the original's
// process-wide-singleton assumption.
func NewCollector() *Collector {
	c := &Collector{
		tasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workerrt_tasks_submitted_total",
			Help: "Total number of tasks submitted by this worker.",
		}),
		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workerrt_tasks_completed_total",
			Help: "Total number of tasks that completed successfully.",
		}),
		tasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workerrt_tasks_failed_total",
			Help: "Total number of tasks that exhausted their retries and failed permanently.",
		}),
		tasksRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workerrt_tasks_retried_total",
			Help: "Total number of task resubmission attempts (P2).",
		}),
		taskLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "workerrt_task_latency_seconds",
			Help:    "Task submit-to-completion latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		objectsPut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workerrt_objects_put_total",
			Help: "Total number of values written via Put/Create+Seal.",
		}),
		objectsGet: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workerrt_objects_get_total",
			Help: "Total number of Get calls resolved, successful or not.",
		}),
		objectsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workerrt_objects_evicted_total",
			Help: "Total number of objects whose local reference dropped to zero.",
		}),
		pendingTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workerrt_pending_tasks",
			Help: "Current number of tasks awaiting completion in the TaskManager.",
		}),
		objectIDsInScope: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workerrt_object_ids_in_scope",
			Help: "Current number of ObjectIds tracked by the reference counter.",
		}),
		resubmissionQueueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workerrt_resubmission_queue_length",
			Help: "Current number of tasks waiting on the resubmission timer.",
		}),
	}

	prometheus.MustRegister(
		c.tasksSubmitted, c.tasksCompleted, c.tasksFailed, c.tasksRetried,
		c.taskLatency, c.objectsPut, c.objectsGet, c.objectsEvicted,
		c.pendingTasks, c.objectIDsInScope, c.resubmissionQueueLen,
	)
	return c
}

func (c *Collector) RecordSubmit() { c.tasksSubmitted.Inc() }

func (c *Collector) RecordCompleted(latency time.Duration) {
	c.tasksCompleted.Inc()
	c.taskLatency.Observe(latency.Seconds())
}

func (c *Collector) RecordFailed() { c.tasksFailed.Inc() }

func (c *Collector) RecordRetry() { c.tasksRetried.Inc() }

func (c *Collector) RecordPut() { c.objectsPut.Inc() }

func (c *Collector) RecordGet() { c.objectsGet.Inc() }

func (c *Collector) RecordEviction() { c.objectsEvicted.Inc() }

// UpdateWorkerStats snapshots the gauges from a coreworker.Stats-shaped
// sample; called from the heartbeat loop.
func (c *Collector) UpdateWorkerStats(pendingTasks, objectIDsInScope, resubmissionQueueLen int) {
	c.pendingTasks.Set(float64(pendingTasks))
	c.objectIDsInScope.Set(float64(objectIDsInScope))
	c.resubmissionQueueLen.Set(float64(resubmissionQueueLen))
}

// StartServer exposes /metrics for Prometheus to scrape.
func StartServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
}
