package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestNewCollector(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	collector := NewCollector()

	assert.NotNil(t, collector, "NewCollector should return a non-nil collector")
	assert.NotNil(t, collector.tasksSubmitted, "tasksSubmitted counter should be initialized")
	assert.NotNil(t, collector.tasksCompleted, "tasksCompleted counter should be initialized")
	assert.NotNil(t, collector.tasksFailed, "tasksFailed counter should be initialized")
	assert.NotNil(t, collector.tasksRetried, "tasksRetried counter should be initialized")
	assert.NotNil(t, collector.taskLatency, "taskLatency histogram should be initialized")
	assert.NotNil(t, collector.objectsPut, "objectsPut counter should be initialized")
	assert.NotNil(t, collector.objectsGet, "objectsGet counter should be initialized")
	assert.NotNil(t, collector.objectsEvicted, "objectsEvicted counter should be initialized")
	assert.NotNil(t, collector.pendingTasks, "pendingTasks gauge should be initialized")
	assert.NotNil(t, collector.objectIDsInScope, "objectIDsInScope gauge should be initialized")
	assert.NotNil(t, collector.resubmissionQueueLen, "resubmissionQueueLen gauge should be initialized")
}

func TestRecordSubmit(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordSubmit()
	}, "RecordSubmit should not panic")

	for i := 0; i < 5; i++ {
		collector.RecordSubmit()
	}
}

func TestRecordCompleted(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordCompleted(150 * time.Millisecond)
	}, "RecordCompleted should not panic")
}

func TestRecordFailed(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordFailed()
	})
}

func TestRecordRetry(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordRetry()
	})
}

func TestObjectCounters(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordPut()
		collector.RecordGet()
		collector.RecordEviction()
	})
}

func TestUpdateWorkerStats(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.UpdateWorkerStats(3, 12, 1)
	}, "UpdateWorkerStats should not panic")
}
