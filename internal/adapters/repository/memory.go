package repository

import (
	"context"
	"sync"

	"github.com/okian/engageboard/internal/domain/model"
)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu sync.RWMutex

	current      *model.Snapshot
	history      []HistoryItem
	keys         map[string]struct{}
	bundles      []model.DistributionBundle
	historyLimit int
	writeErr     error
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{keys: make(map[string]struct{})}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FailWrites makes every write return err. Pass nil to clear.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

// PutCurrent implements SnapshotStore.
func (m *Memory) PutCurrent(_ context.Context, snap model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.current = &snap
	return nil
}

// AppendHistory implements SnapshotStore.
func (m *Memory) AppendHistory(_ context.Context, snap model.Snapshot, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	if _, ok := m.keys[key]; ok {
		return ErrDuplicateKey
	}
	m.keys[key] = struct{}{}
	m.history = append(m.history, HistoryItem{Key: key, Snapshot: snap})
	if m.historyLimit > 0 && len(m.history) > m.historyLimit {
		drop := len(m.history) - m.historyLimit
		for _, h := range m.history[:drop] {
			delete(m.keys, h.Key)
		}
		m.history = append([]HistoryItem(nil), m.history[drop:]...)
	}
	return nil
}

// Current implements SnapshotStore.
func (m *Memory) Current(_ context.Context) (model.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return model.Snapshot{}, ErrNotFound
	}
	return *m.current, nil
}

// History implements SnapshotStore.
func (m *Memory) History(_ context.Context, limit int) ([]HistoryItem, error) {
	if err := ValidateLimit(limit); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]HistoryItem, 0, min(limit, len(m.history)))
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.history[i])
	}
	return out, nil
}

// Record implements BundleStore.
func (m *Memory) Record(_ context.Context, _ string, b model.DistributionBundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	for _, existing := range m.bundles {
		if existing.ID == b.ID {
			return ErrDuplicateKey
		}
	}
	m.bundles = append(m.bundles, b)
	return nil
}

// Bundles implements BundleStore.
func (m *Memory) Bundles(_ context.Context, limit int) ([]model.DistributionBundle, error) {
	if err := ValidateLimit(limit); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.DistributionBundle, 0, min(limit, len(m.bundles)))
	for i := len(m.bundles) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.bundles[i])
	}
	return out, nil
}
