package cluster

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/embercore/workerrt/pkg/ids"
)

const snapshotSchemaVersion = 1

var (
	ErrCorruptedSnapshot   = errors.New("cluster: snapshot file is corrupted")
	ErrIncompatibleVersion = errors.New("cluster: snapshot schema version is incompatible")
)

// ActorRecord is the durable half of one actor's lifecycle state.
type ActorRecord struct {
	State LifecycleState
	IP    string
	Port  int
}

// NodeRecord tracks one registered node's last-known address.
type NodeRecord struct {
	IP   string
	Port int
}

// SnapshotData is the full durable state of the cluster service.
type SnapshotData struct {
	SchemaVer     int                           `json:"schema_ver"`
	LastSeq       uint64                        `json:"last_seq"`
	Actors        map[ids.ActorID]ActorRecord   `json:"actors"`
	PinnedObjects map[ids.ObjectID]ids.NodeID   `json:"pinned_objects"`
	Nodes         map[ids.NodeID]NodeRecord     `json:"nodes"`
}

func newSnapshotData() SnapshotData {
	return SnapshotData{
		SchemaVer:     snapshotSchemaVersion,
		Actors:        make(map[ids.ActorID]ActorRecord),
		PinnedObjects: make(map[ids.ObjectID]ids.NodeID),
		Nodes:         make(map[ids.NodeID]NodeRecord),
	}
}

// SnapshotManager persists SnapshotData atomically (temp file + rename),
// mirroring the teacher's job-queue snapshot manager.
type SnapshotManager struct {
	mu   sync.Mutex
	path string
}

func NewSnapshotManager(path string) *SnapshotManager {
	return &SnapshotManager{path: path}
}

func (m *SnapshotManager) Write(data SnapshotData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data.SchemaVer = snapshotSchemaVersion
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("cluster: marshal snapshot: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("cluster: write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cluster: rename snapshot: %w", err)
	}
	return nil
}

func (m *SnapshotManager) Load() (SnapshotData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return newSnapshotData(), nil
		}
		return SnapshotData{}, fmt.Errorf("cluster: read snapshot: %w", err)
	}

	var data SnapshotData
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("%w: %v", ErrCorruptedSnapshot, err)
	}
	if data.SchemaVer != snapshotSchemaVersion {
		return data, fmt.Errorf("%w: got %d, want %d", ErrIncompatibleVersion, data.SchemaVer, snapshotSchemaVersion)
	}
	if data.Actors == nil {
		data.Actors = make(map[ids.ActorID]ActorRecord)
	}
	if data.PinnedObjects == nil {
		data.PinnedObjects = make(map[ids.ObjectID]ids.NodeID)
	}
	if data.Nodes == nil {
		data.Nodes = make(map[ids.NodeID]NodeRecord)
	}
	return data, nil
}

func (m *SnapshotManager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}
