package storage

import (
	"context"
	"sync"

	"github.com/rl1809/marketplace-cart/internal/port"
)

// MemoryAdapter keeps slots in process memory. Contents are lost on restart.
type MemoryAdapter struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{slots: make(map[string][]byte)}
}

func (m *MemoryAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.slots[key]
	if !ok {
		return nil, port.ErrSlotNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryAdapter) Set(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.slots[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryAdapter) Ping(ctx context.Context) error {
	return nil
}
