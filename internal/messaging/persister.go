package messaging

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/tripunite/gateway/internal/domain"
)

const (
	defaultPersistTimeout  = 10 * time.Second
	defaultPersistInFlight = 64
)

// MessageStore is the durable message store the gateway writes to. The gateway never
// reads from it.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *domain.Message) error
}

// Persister writes chat messages in the background. Submit never blocks the caller;
// failures are logged and otherwise invisible.
type Persister struct {
	store    MessageStore
	timeout  time.Duration
	sem      *semaphore.Weighted
	mu       sync.Mutex
	wg       sync.WaitGroup
	closed   bool
	failures atomic.Int64
	logger   *slog.Logger
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithPersistTimeout bounds a single store write.
func WithPersistTimeout(d time.Duration) PersisterOption {
	return func(p *Persister) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMaxInFlight bounds concurrent store writes. Writes over the limit wait in their
// own goroutine.
func WithMaxInFlight(n int) PersisterOption {
	return func(p *Persister) {
		if n > 0 {
			p.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// NewPersister creates a background persister for store.
func NewPersister(store MessageStore, logger *slog.Logger, opts ...PersisterOption) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Persister{
		store:   store,
		timeout: defaultPersistTimeout,
		sem:     semaphore.NewWeighted(defaultPersistInFlight),
		logger:  logger.With("component", "persister"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit schedules msg for storage and returns immediately.
func (p *Persister) Submit(msg *domain.Message) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Warn("persister closed, message not stored", "chat_id", msg.ChatID, "sender_id", msg.SenderID)
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := p.sem.Acquire(ctx, 1); err != nil {
			p.failures.Add(1)
			p.logger.Error("failed to store message", "chat_id", msg.ChatID, "sender_id", msg.SenderID, "error", err)
			return
		}
		defer p.sem.Release(1)

		if err := p.store.CreateMessage(ctx, msg); err != nil {
			p.failures.Add(1)
			p.logger.Error("failed to store message", "chat_id", msg.ChatID, "sender_id", msg.SenderID, "error", err)
			return
		}
		p.logger.Debug("message stored", "chat_id", msg.ChatID, "sender_id", msg.SenderID)
	}()
}

// Failures returns how many writes have failed since start.
func (p *Persister) Failures() int64 {
	return p.failures.Load()
}

// Close stops accepting messages and waits for in-flight writes until ctx is done.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
