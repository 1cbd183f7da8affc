package channel

import (
	"sync"

	"go.uber.org/zap"

	"github.com/entrhq/tabwire/pkg/types"
)

// Handler receives one frame. Handlers run on the goroutine that published the
// frame and must not block for long.
type Handler func(types.Frame)

// Subscription is returned by Subscribe. Unsubscribe is safe to call more than once.
type Subscription interface {
	Unsubscribe()
}

type subscriber struct {
	id      uint64
	handler Handler
}

// bus is the observer registry behind Subscribe and SubscribeAll.
type bus struct {
	logger *zap.Logger

	mu     sync.RWMutex
	nextID uint64
	named  map[types.EventName][]subscriber
	all    []subscriber
}

func newBus(logger *zap.Logger) *bus {
	return &bus{
		logger: logger,
		named:  make(map[types.EventName][]subscriber),
	}
}

func (b *bus) subscribe(event types.EventName, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.named[event] = append(b.named[event], subscriber{id: id, handler: h})
	return &subscription{cancel: func() { b.remove(event, id) }}
}

func (b *bus) subscribeAll(h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscriber{id: id, handler: h})
	return &subscription{cancel: func() { b.removeAll(id) }}
}

func (b *bus) remove(event types.EventName, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.named[event]
	for i, s := range subs {
		if s.id == id {
			b.named[event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.named[event]) == 0 {
		delete(b.named, event)
	}
}

func (b *bus) removeAll(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.all {
		if s.id == id {
			b.all = append(b.all[:i:i], b.all[i+1:]...)
			return
		}
	}
}

// publish delivers f to the named subscribers first, then to the catch-all ones.
func (b *bus) publish(f types.Frame) {
	b.mu.RLock()
	targets := make([]subscriber, 0, len(b.named[f.Event])+len(b.all))
	targets = append(targets, b.named[f.Event]...)
	targets = append(targets, b.all...)
	b.mu.RUnlock()

	for _, s := range targets {
		b.call(s.handler, f)
	}
}

func (b *bus) call(h Handler, f types.Frame) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("subscriber panicked",
				zap.String("event", string(f.Event)),
				zap.Any("panic", r))
		}
	}()
	h(f)
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}
