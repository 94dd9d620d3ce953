package infrastructure

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sglre6355/jukebox/internal/modules/music_player/application/ports"
)

const (
	// DefaultEventBufferSize is the default buffer size of each worker channel.
	DefaultEventBufferSize = 100

	// DefaultEventWorkers is the default number of dispatch workers.
	DefaultEventWorkers = 4
)

// ErrEventQueueClosed is returned when publishing to a closed queue.
var ErrEventQueueClosed = errors.New("engine event queue is closed")

// Compile-time check that EngineEventQueue implements ports.EngineEventPublisher.
var _ ports.EngineEventPublisher = (*EngineEventQueue)(nil)

// EngineEventQueue moves engine callbacks off the engine's goroutines and onto
// a fixed set of workers. Events of one guild always land on the same worker,
// so they are handled in the order they were published.
type EngineEventQueue struct {
	shards  []chan ports.EngineEvent
	handler ports.EngineEventHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	mu     sync.RWMutex
}

// NewEngineEventQueue creates a queue and starts its workers.
func NewEngineEventQueue(handler ports.EngineEventHandler, workers, bufferSize int) *EngineEventQueue {
	if workers <= 0 {
		workers = DefaultEventWorkers
	}
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &EngineEventQueue{
		shards:  make([]chan ports.EngineEvent, workers),
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := range q.shards {
		q.shards[i] = make(chan ports.EngineEvent, bufferSize)
	}

	q.wg.Add(workers)
	for _, shard := range q.shards {
		go q.dispatch(shard)
	}

	return q
}

func (q *EngineEventQueue) dispatch(shard <-chan ports.EngineEvent) {
	defer q.wg.Done()
	for event := range shard {
		q.handle(event)
	}
}

func (q *EngineEventQueue) handle(event ports.EngineEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(
				"recovered from panic while handling engine event",
				"guild", event.Token.GuildID,
				"kind", event.Kind,
				"panic", r,
			)
		}
	}()

	q.handler.Handle(q.ctx, event)
}

// Publish enqueues an event. It blocks while the guild's worker is saturated;
// track end events must never be dropped.
func (q *EngineEventQueue) Publish(event ports.EngineEvent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		slog.Warn("attempted to publish to closed event queue", "kind", event.Kind)
		return ErrEventQueueClosed
	}

	shard := q.shards[uint64(event.Token.GuildID)%uint64(len(q.shards))]
	shard <- event

	slog.Debug("published engine event", "kind", event.Kind, "guild", event.Token.GuildID)
	return nil
}

// Close stops accepting events, drains the ones already queued and stops
// the workers.
func (q *EngineEventQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	for _, shard := range q.shards {
		close(shard)
	}
	q.wg.Wait()
	q.cancel()

	slog.Debug("engine event queue closed")
}
