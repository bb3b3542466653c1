package queue

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	_ Store = (*MemStore)(nil)
)

// MemStore keeps records in memory, primarily for tests and short-lived
// agents
type MemStore struct {
	mu      sync.RWMutex
	records map[string]*Message
}

func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]*Message)}
}

func (m *MemStore) Insert(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[msg.ID]; ok {
		return errors.Errorf("duplicate record %s", msg.ID)
	}

	cp := *msg
	m.records[msg.ID] = &cp

	return nil
}

func (m *MemStore) Get(_ context.Context, id string) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.records[id]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, id)
	}

	cp := *msg

	return &cp, nil
}

func (m *MemStore) Update(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[msg.ID]; !ok {
		return errors.Wrap(ErrNotFound, msg.ID)
	}

	cp := *msg
	m.records[msg.ID] = &cp

	return nil
}

func (m *MemStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, id)

	return nil
}

func (m *MemStore) List(_ context.Context, q Query) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Message
	for _, msg := range m.records {
		if q.matches(msg) {
			cp := *msg
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}

	return out, nil
}

func (m *MemStore) Count(_ context.Context, status Status) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int
	for _, msg := range m.records {
		if msg.Status == status {
			n++
		}
	}

	return n, nil
}

func (m *MemStore) Close() error {
	return nil
}
