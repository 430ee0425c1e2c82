// Package blob abstracts the binary store that holds captured selfies.
//
// The verification service is the only writer of selfie blobs and the
// retention sweeper is the only component allowed to destroy them after
// expiry; nothing else touches blob content. Refs are opaque strings.
package blob

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"twinsale/pkg/platform/sentinel"
)

// Store is the blob collaborator surface: Put returns an opaque ref, Delete
// is idempotent (deleting an unknown ref succeeds) so retention sweeps can
// retry without tracking which half of a cleanup already happened.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// Memory is an in-process Store for tests and dev mode.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("put blob: empty payload")
	}
	ref := uuid.NewString()
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	m.blobs[ref] = cp
	m.mu.Unlock()
	return ref, nil
}

func (m *Memory) Get(ctx context.Context, ref string) ([]byte, error) {
	m.mu.RLock()
	data, ok := m.blobs[ref]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("get blob %s: %w", ref, sentinel.ErrNotFound)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *Memory) Delete(ctx context.Context, ref string) error {
	m.mu.Lock()
	delete(m.blobs, ref)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored blobs. Test helper.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
