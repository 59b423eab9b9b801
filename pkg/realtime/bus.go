package realtime

import (
	"context"
	"fmt"
	"sync"
)

// Bus fans change events out across API instances.
type Bus interface {
	Publish(ctx context.Context, event ChangeEvent) error
	StartForwarder(ctx context.Context, onEvent func(ChangeEvent)) error
	Close() error
}

// MemoryBus delivers events within a single process.
type MemoryBus struct {
	mu        sync.RWMutex
	listeners []func(ChangeEvent)
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(_ context.Context, event ChangeEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.listeners {
		fn(event)
	}
	return nil
}

func (b *MemoryBus) StartForwarder(_ context.Context, onEvent func(ChangeEvent)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	b.mu.Lock()
	b.listeners = append(b.listeners, onEvent)
	b.mu.Unlock()
	return nil
}

func (b *MemoryBus) Close() error { return nil }
