package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"stepflow/internal/models"
)

type SnapshotMeta struct {
	Scenario   string
	StepOrder  int
	Side       models.SnapshotSide
	CapturedAt time.Time
}

// SnapshotStore persists captured images and returns where they went.
type SnapshotStore interface {
	Save(ctx context.Context, meta SnapshotMeta, data []byte) (string, error)
}

// FileSnapshotStore writes PNGs into one folder per day under Dir.
type FileSnapshotStore struct {
	Dir string
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func (s *FileSnapshotStore) Save(_ context.Context, meta SnapshotMeta, data []byte) (string, error) {
	dateFolder := meta.CapturedAt.Format("2006-01-02")
	label := unsafeName.ReplaceAllString(meta.Scenario, "_")
	if label == "" {
		label = "scenario"
	}
	filename := fmt.Sprintf("%s_%d_%s_%s.png", label, meta.StepOrder, meta.Side, meta.CapturedAt.Format("150405.000"))

	dir := filepath.Join(s.Dir, dateFolder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return filepath.Join(dateFolder, filename), nil
}

// MemorySnapshotStore keeps images in memory. Used by the CLI dry runs and tests.
type MemorySnapshotStore struct {
	mu    sync.Mutex
	items map[string][]byte
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{items: make(map[string][]byte)}
}

func (s *MemorySnapshotStore) Save(_ context.Context, meta SnapshotMeta, data []byte) (string, error) {
	key := fmt.Sprintf("%s/%d/%s", meta.Scenario, meta.StepOrder, meta.Side)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = append([]byte(nil), data...)
	return key, nil
}

func (s *MemorySnapshotStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.items[key]
	return b, ok
}

func (s *MemorySnapshotStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

type snapshotKey struct {
	order int
	side  models.SnapshotSide
}

// SnapshotSet tracks the snapshots of one run. Each step side is written at most once.
type SnapshotSet struct {
	mu    sync.Mutex
	items map[snapshotKey]*models.Snapshot
}

func NewSnapshotSet() *SnapshotSet {
	return &SnapshotSet{items: make(map[snapshotKey]*models.Snapshot)}
}

// Record stores snap unless that step side already has one.
func (s *SnapshotSet) Record(snap *models.Snapshot) bool {
	k := snapshotKey{snap.StepOrder, snap.Side}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[k]; ok {
		return false
	}
	s.items[k] = snap
	return true
}

func (s *SnapshotSet) Has(order int, side models.SnapshotSide) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[snapshotKey{order, side}]
	return ok
}

// All returns the snapshots ordered by step, before ahead of after.
func (s *SnapshotSet) All() []*models.Snapshot {
	s.mu.Lock()
	out := make([]*models.Snapshot, 0, len(s.items))
	for _, v := range s.items {
		out = append(out, v)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StepOrder != out[j].StepOrder {
			return out[i].StepOrder < out[j].StepOrder
		}
		return out[i].Side == models.SnapshotBefore
	})
	return out
}
