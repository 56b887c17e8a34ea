package event

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const (
	defaultPoolSize = 1000
	defaultTimeout  = 30 * time.Second
)

type Event interface {
	Name() string
}

type Handler func(ctx context.Context, e Event) error

type Option func(*Bus)

// WithPoolSize limits how many invocations of a single handler may run at once.
func WithPoolSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.poolSize = n
		}
	}
}

// WithTimeout bounds the context given to each handler invocation.
func WithTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// Bus is an in-memory event bus. Every subscription owns its own pool,
// so a slow handler only delays its own backlog.
type Bus struct {
	poolSize int
	timeout  time.Duration

	wg       *sync.WaitGroup
	mu       sync.RWMutex
	handlers map[string][]*subscription
}

type subscription struct {
	h    Handler
	pool chan struct{}
}

// NewBus create a new event bus. Caller should call Stop for graceful shutdown the bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		poolSize: defaultPoolSize,
		timeout:  defaultTimeout,
		wg:       new(sync.WaitGroup),
		handlers: make(map[string][]*subscription),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Subscribe to an event
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[name] = append(b.handlers[name], &subscription{
		h:    h,
		pool: make(chan struct{}, b.poolSize),
	})
}

// Publish an event. Handlers run asynchronously; Publish only blocks while a handler's pool is full.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	subs := b.handlers[e.Name()]
	b.mu.RUnlock()

	for _, s := range subs {
		b.dispatch(ctx, s, e)
	}
}

func (b *Bus) dispatch(ctx context.Context, s *subscription, e Event) {
	b.wg.Add(1)

	s.pool <- struct{}{}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "event: handler panic",
					"event", e.Name(),
					"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
				)
			}

			cancel()
			<-s.pool
			b.wg.Done()
		}()

		if err := s.h(ctx, e); err != nil {
			slog.ErrorContext(ctx, "event: handle event failed",
				"event", e.Name(),
				"error", err,
			)
		}
	}()
}

// Stop waits for all handlers to finish
func (b *Bus) Stop() {
	b.wg.Wait()
}
