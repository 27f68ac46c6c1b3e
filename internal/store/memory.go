package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryKV is an in-memory, thread-safe KV backend. It is primarily
// useful for testing and for single-process deployments that do not need
// durable persistence across restarts.
type MemoryKV struct {
	mu       sync.RWMutex
	families map[string]map[string][]byte
}

// NewMemoryKV creates a MemoryKV with all column families initialised.
func NewMemoryKV() *MemoryKV {
	families := make(map[string]map[string][]byte, len(Families()))
	for _, f := range Families() {
		families[f] = make(map[string][]byte)
	}
	return &MemoryKV{families: families}
}

func (m *MemoryKV) family(name string) map[string][]byte {
	if f, ok := m.families[name]; ok {
		return f
	}
	f := make(map[string][]byte)
	m.families[name] = f
	return f
}

// Put implements KV.
func (m *MemoryKV) Put(_ context.Context, family, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.family(family)[key] = cp
	return nil
}

// Get implements KV.
func (m *MemoryKV) Get(_ context.Context, family, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.families[family][key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, nil
}

// Delete implements KV.
func (m *MemoryKV) Delete(_ context.Context, family, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.families[family], key)
	return nil
}

// Scan implements KV. Keys are visited in byte-lexicographic order,
// strictly after `after`.
func (m *MemoryKV) Scan(_ context.Context, family, after string, limit int) ([]Pair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f := m.families[family]
	keys := make([]string, 0, len(f))
	for k := range f {
		if k > after {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	pairs := make([]Pair, 0, len(keys))
	for _, k := range keys {
		value := f[k]
		cp := make([]byte, len(value))
		copy(cp, value)
		pairs = append(pairs, Pair{Key: k, Value: cp})
	}
	return pairs, nil
}

// Count implements KV.
func (m *MemoryKV) Count(_ context.Context, family string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.families[family])), nil
}

// Close implements KV.
func (m *MemoryKV) Close() {}
