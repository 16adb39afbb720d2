package bus

import (
	"context"
	"sync"

	"github.com/minischools/academy-backend/internal/realtime"
)

type localBus struct {
	mu       sync.RWMutex
	handlers []func(realtime.SSEMessage)
	closed   bool
}

// NewLocalBus delivers published messages synchronously to forwarders in
// the same process.
func NewLocalBus() Bus { return &localBus{} }

func (b *localBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for _, h := range b.handlers {
		h(msg)
	}
	return nil
}

func (b *localBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if onMsg == nil {
		return nil
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, onMsg)
	b.mu.Unlock()
	return nil
}

func (b *localBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.handlers = nil
	b.mu.Unlock()
	return nil
}
