package checkpoint

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// threadNS keys the per-thread, per-namespace checkpoint history.
type threadNS struct {
	threadID string
	ns       string
}

// MemorySaver is an in-memory Saver. It stores the full checkpoint history
// per (thread, namespace) in memory using maps, guarded by a single mutex.
//
// Designed for tests, examples, and single-process runs; data is lost on
// process exit and nothing here is suitable for a distributed deployment.
// Durable backends (SQLite, Postgres, ...) are external collaborators that
// implement the same Saver contract.
type MemorySaver struct {
	mu sync.RWMutex

	// history holds checkpoints newest-last per thread/namespace.
	history map[threadNS][]Tuple
	// writes holds durable pending writes keyed by checkpoint id, and a
	// per-(task,idx) idempotency set to make PutWrites replay-safe.
	writes     map[string][]PendingWrite
	writeSeen  map[string]map[string]struct{}
	versionCtr map[threadNS]uint64
}

// NewMemorySaver returns an empty MemorySaver.
func NewMemorySaver() *MemorySaver {
	return &MemorySaver{
		history:    make(map[threadNS][]Tuple),
		writes:     make(map[string][]PendingWrite),
		writeSeen:  make(map[string]map[string]struct{}),
		versionCtr: make(map[threadNS]uint64),
	}
}

func (m *MemorySaver) key(cfg Config) threadNS {
	return threadNS{threadID: cfg.ThreadID, ns: cfg.CheckpointNS}
}

func (m *MemorySaver) GetTuple(_ context.Context, cfg Config) (*Tuple, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.history[m.key(cfg)]
	if len(list) == 0 {
		return nil, nil
	}

	var found *Tuple
	if cfg.CheckpointID == "" {
		t := list[len(list)-1]
		found = &t
	} else {
		for i := range list {
			if list[i].Checkpoint.ID == cfg.CheckpointID {
				t := list[i]
				found = &t
				break
			}
		}
	}
	if found == nil {
		return nil, nil
	}

	found.PendingWrites = append([]PendingWrite(nil), m.writes[found.Checkpoint.ID]...)
	return found, nil
}

func (m *MemorySaver) List(_ context.Context, cfg Config, opts ListOptions) ([]Tuple, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.history[m.key(cfg)]
	out := make([]Tuple, 0, len(list))
	// newest-first
	for i := len(list) - 1; i >= 0; i-- {
		t := list[i]
		if opts.Before != "" && t.Checkpoint.ID >= opts.Before {
			continue
		}
		if !matchesFilter(t.Metadata, opts.Filter) {
			continue
		}
		t.PendingWrites = append([]PendingWrite(nil), m.writes[t.Checkpoint.ID]...)
		out = append(out, t)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

func matchesFilter(md Metadata, filter map[string]any) bool {
	for k, v := range filter {
		switch k {
		case "source":
			if md.Source != v {
				return false
			}
		case "step":
			if md.Step != v {
				return false
			}
		case "writes":
			if !reflect.DeepEqual(md.Writes, v) {
				return false
			}
		case "parents":
			if !reflect.DeepEqual(md.Parents, v) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (m *MemorySaver) Put(_ context.Context, cfg Config, cp Checkpoint, metadata Metadata, newVersions map[string]Version) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cp.ID == "" {
		cp.ID = uuid.Must(uuid.NewV7()).String()
	}
	cp.ChannelVersions = mergeVersions(cp.ChannelVersions, newVersions)

	k := m.key(cfg)
	var parent *Config
	if list := m.history[k]; len(list) > 0 {
		prev := list[len(list)-1].Config
		parent = &prev
	}

	out := cfg
	out.CheckpointID = cp.ID
	m.history[k] = append(m.history[k], Tuple{
		Config:       out,
		Checkpoint:   cp,
		Metadata:     metadata,
		ParentConfig: parent,
	})
	return out, nil
}

func mergeVersions(base map[string]Version, next map[string]Version) map[string]Version {
	out := make(map[string]Version, len(base)+len(next))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range next {
		out[k] = v
	}
	return out
}

func (m *MemorySaver) PutWrites(_ context.Context, cfg Config, writes []PendingWrite, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg.CheckpointID == "" {
		return fmt.Errorf("checkpoint: PutWrites requires a checkpoint id")
	}
	seen, ok := m.writeSeen[cfg.CheckpointID]
	if !ok {
		seen = make(map[string]struct{})
		m.writeSeen[cfg.CheckpointID] = seen
	}

	for _, w := range writes {
		idemKey := fmt.Sprintf("%s:%d", taskID, w.Idx)
		if _, dup := seen[idemKey]; dup {
			continue
		}
		seen[idemKey] = struct{}{}
		w.TaskID = taskID
		m.writes[cfg.CheckpointID] = append(m.writes[cfg.CheckpointID], w)
	}
	return nil
}

// GetNextVersion returns a zero-padded decimal string one greater than
// current, so lexicographic string comparison matches numeric order for
// any plausible run length.
func (m *MemorySaver) GetNextVersion(current Version, _ string) Version {
	n := uint64(0)
	if current != "" {
		fmt.Sscanf(string(current), "%d", &n)
	}
	return Version(fmt.Sprintf("%032d", n+1))
}

// Threads returns every thread ID this saver has history for, sorted, as a
// convenience for admin/debug tooling.
func (m *MemorySaver) Threads() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for k := range m.history {
		seen[k.threadID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
