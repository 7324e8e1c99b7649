package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/joseph-ayodele/bytelense/internal/common"
)

// MemoryStore is a process-local DocumentStore for tests and ephemeral runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: map[string]map[string]Document{}}
}

func (m *MemoryStore) Get(ctx context.Context, collection, key string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[collection][key]
	if !ok {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, key, common.ErrNotFound)
	}
	d.Body = append([]byte(nil), d.Body...)
	return d, nil
}

func (m *MemoryStore) Put(ctx context.Context, collection, key string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs[collection] == nil {
		m.docs[collection] = map[string]Document{}
	}
	m.docs[collection][key] = Document{Key: key, Body: append([]byte(nil), body...), UpdatedAt: time.Now().UTC()}
	return nil
}

func (m *MemoryStore) Range(ctx context.Context, collection, from, to string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Document
	for k, d := range m.docs[collection] {
		if k >= from && k <= to {
			d.Body = append([]byte(nil), d.Body...)
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
