package realtime

import (
	"context"
	"errors"
	"sync"
)

// Backbone carries serialized events between processes.
type Backbone interface {
	// Publish sends msg to every subscriber, including this process.
	Publish(ctx context.Context, msg []byte) error
	// Subscribe calls handle for each received message until ctx ends.
	Subscribe(ctx context.Context, handle func(msg []byte)) error
	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// ErrNoSubscriber is returned by LocalBackbone before Subscribe is running.
var ErrNoSubscriber = errors.New("realtime: no subscriber")

// LocalBackbone loops messages back within one process.
type LocalBackbone struct {
	mu     sync.RWMutex
	handle func([]byte)
}

var _ Backbone = (*LocalBackbone)(nil)

// NewLocalBackbone returns a single-process backbone.
func NewLocalBackbone() *LocalBackbone { return &LocalBackbone{} }

func (b *LocalBackbone) Publish(_ context.Context, msg []byte) error {
	b.mu.RLock()
	h := b.handle
	b.mu.RUnlock()
	if h == nil {
		return ErrNoSubscriber
	}
	h(msg)
	return nil
}

func (b *LocalBackbone) Subscribe(ctx context.Context, handle func([]byte)) error {
	b.mu.Lock()
	b.handle = handle
	b.mu.Unlock()

	<-ctx.Done()

	b.mu.Lock()
	b.handle = nil
	b.mu.Unlock()
	return nil
}

func (b *LocalBackbone) Ping(context.Context) error { return nil }
