package data

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory keeps visitors in process. Everything is lost on restart.
type Memory struct {
	mu       sync.Mutex
	nextID   uint
	visitors map[uint]Visitor
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		nextID:   1,
		visitors: make(map[uint]Visitor),
	}
}

func (m *Memory) Find(_ context.Context, id uint) (*Visitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visitors[id]
	if !ok {
		return nil, fmt.Errorf("visitor %d: %w", id, ErrNotFound)
	}
	return &v, nil
}

func (m *Memory) Save(_ context.Context, v *Visitor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if v.ID == 0 {
		v.ID = m.nextID
		m.nextID++
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	m.visitors[v.ID] = *v
	return nil
}
