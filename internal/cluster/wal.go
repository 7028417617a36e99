// Package cluster is the local stand-in for the out-of-scope metadata
// service (GcsClient) and per-node supervisor (RayletClient) named
// throughout §1/§6: a single in-process authority that every CoreWorker in
// a test cluster dials, so multi-worker scenarios are exercisable without a
// real GCS or raylet binary. Its actor-lifecycle bookkeeping and pinned
// object ledger are durable across restarts via a write-ahead log plus
// periodic snapshot, adapted from the same persistence pair the teacher
// uses for its job queue.
package cluster

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"sync"
	"time"

	"github.com/embercore/workerrt/pkg/ids"
)

// EventType is one kind of durable cluster-state transition.
type EventType string

const (
	EventNodeJoined        EventType = "NODE_JOINED"
	EventNodeLeft          EventType = "NODE_LEFT"
	EventActorCreated      EventType = "ACTOR_CREATED"
	EventActorAlive        EventType = "ACTOR_ALIVE"
	EventActorReconstruct  EventType = "ACTOR_RECONSTRUCTING"
	EventActorDead         EventType = "ACTOR_DEAD"
	EventObjectPinned      EventType = "OBJECT_PINNED"
	EventObjectUnpinned    EventType = "OBJECT_UNPINNED"
)

// Event is one WAL record. ActorID/ObjectID/NodeID are populated according
// to Type; the others are left at their zero value.
type Event struct {
	Seq       uint64       `json:"seq"`
	Type      EventType    `json:"type"`
	ActorID   ids.ActorID  `json:"actor_id"`
	ObjectID  ids.ObjectID `json:"object_id"`
	NodeID    ids.NodeID   `json:"node_id"`
	IP        string       `json:"ip,omitempty"`
	Port      int          `json:"port,omitempty"`
	Timestamp int64        `json:"timestamp"`
	Checksum  uint32       `json:"checksum"`
}

// EventHandler applies one replayed event to in-memory state.
type EventHandler func(event Event) error

var ErrChecksumMismatch = errors.New("cluster: wal event checksum mismatch")

// calculateChecksum covers the fields that identify the transition, not
// the timestamp, which is expected to differ between the write and any
// later inspection.
func calculateChecksum(e Event) uint32 {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%d", e.Type, e.ActorID, e.ObjectID, e.NodeID, e.IP, e.Port, e.Seq)
	return crc32.ChecksumIEEE([]byte(data))
}

func verifyChecksum(e Event) bool {
	return e.Checksum == calculateChecksum(e)
}

// WAL is an append-only, checksummed log of cluster Events, flushed in
// batches the same way the teacher's job-queue WAL does: write to a memory
// buffer, sync to disk once the buffer fills, a flush interval elapses, or
// a caller forces it.
type WAL struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	path string
	seq  uint64

	buffer        []Event
	bufferSize    int
	lastFlushTime time.Time
	flushInterval time.Duration
}

// OpenWAL creates or reopens the WAL at path, picking up seq where a
// previous run left off.
func OpenWAL(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	w := &WAL{
		file:          file,
		enc:           json.NewEncoder(file),
		path:          path,
		buffer:        make([]Event, 0, 256),
		bufferSize:    256,
		lastFlushTime: time.Now(),
		flushInterval: time.Second,
	}

	if stat, statErr := file.Stat(); statErr == nil && stat.Size() > 0 {
		last, lastErr := readLastEvent(path)
		if lastErr == nil && last != nil {
			w.seq = last.Seq
		}
	}
	return w, nil
}

// Append records one event, assigning it the next sequence number.
func (w *WAL) Append(typ EventType, fields Event, force bool) error {
	w.mu.Lock()
	w.seq++
	fields.Seq = w.seq
	fields.Type = typ
	fields.Timestamp = time.Now().UnixMilli()
	fields.Checksum = calculateChecksum(fields)

	w.buffer = append(w.buffer, fields)
	needFlush := force || len(w.buffer) >= w.bufferSize || time.Since(w.lastFlushTime) > w.flushInterval
	if !needFlush {
		w.mu.Unlock()
		return nil
	}
	err := w.flushLocked()
	w.mu.Unlock()
	return err
}

// Replay re-reads every event from the start of the file, verifying its
// checksum, and feeds it to handler in order.
func (w *WAL) Replay(handler EventHandler) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	file, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer file.Close()

	dec := json.NewDecoder(file)
	for dec.More() {
		var e Event
		if err := dec.Decode(&e); err != nil {
			return err
		}
		if !verifyChecksum(e) {
			return ErrChecksumMismatch
		}
		if err := handler(e); err != nil {
			return err
		}
	}
	return nil
}

// Rotate flushes, then truncates the log to empty (called right after a
// snapshot captures the state the log built up to).
func (w *WAL) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.flushLocked(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	backup := w.path + "." + time.Now().Format("20060102_150405")
	if err := os.Rename(w.path, backup); err != nil {
		return err
	}
	newFile, err := os.OpenFile(w.path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	w.file = newFile
	w.enc = json.NewEncoder(newFile)
	w.seq = 0
	w.buffer = w.buffer[:0]
	w.lastFlushTime = time.Now()
	return nil
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.flushLocked(); err != nil {
		return err
	}
	return w.file.Close()
}

func (w *WAL) GetLastSeq() uint64 {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

func (w *WAL) flushLocked() error {
	for _, e := range w.buffer {
		if err := w.enc.Encode(e); err != nil {
			return err
		}
	}
	w.buffer = w.buffer[:0]
	w.lastFlushTime = time.Now()
	return w.file.Sync()
}

func readLastEvent(path string) (*Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dec := json.NewDecoder(file)
	var last *Event
	for dec.More() {
		var e Event
		if err := dec.Decode(&e); err != nil {
			return last, err
		}
		ev := e
		last = &ev
	}
	return last, nil
}
