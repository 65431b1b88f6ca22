package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/pifses/mlpipeline/internal/logging"
)

const memoryQueueCapacity = 1024

// MemoryQueue delivers messages through buffered channels inside the
// process. Messages are lost on restart and a failed handler does not
// get a second attempt.
type MemoryQueue struct {
	channels      map[string]chan []byte
	subscriptions map[string]context.CancelFunc
	wg            sync.WaitGroup
	mu            sync.RWMutex
	closed        bool
}

func newMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		channels:      make(map[string]chan []byte),
		subscriptions: make(map[string]context.CancelFunc),
	}
}

func (q *MemoryQueue) channel(subject string) (chan []byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, fmt.Errorf("memory queue closed")
	}
	if ch, exists := q.channels[subject]; exists {
		return ch, nil
	}
	ch := make(chan []byte, memoryQueueCapacity)
	q.channels[subject] = ch
	return ch, nil
}

// Publish enqueues a copy of data. It fails instead of blocking when the
// subject's buffer is full.
func (q *MemoryQueue) Publish(ctx context.Context, subject string, data []byte) error {
	ch, err := q.channel(subject)
	if err != nil {
		return err
	}

	msg := make([]byte, len(data))
	copy(msg, data)

	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("queue full for subject: %s", subject)
	}
}

// Subscribe starts one consumer goroutine for subject
func (q *MemoryQueue) Subscribe(subject string, handler MessageHandler) error {
	ch, err := q.channel(subject)
	if err != nil {
		return err
	}

	q.mu.Lock()
	if _, exists := q.subscriptions[subject]; exists {
		q.mu.Unlock()
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}
	ctx, cancel := context.WithCancel(context.Background())
	q.subscriptions[subject] = cancel
	q.wg.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case data := <-ch:
				if err := handler(data); err != nil {
					logging.Warn("Memory queue handler failed, message dropped",
						"subject", subject, "error", err)
				}
			}
		}
	}()

	return nil
}

// Unsubscribe stops the consumer for subject. Buffered messages stay
// queued for the next subscriber.
func (q *MemoryQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	cancel, exists := q.subscriptions[subject]
	if !exists {
		q.mu.Unlock()
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}
	delete(q.subscriptions, subject)
	q.mu.Unlock()

	cancel()
	return nil
}

// Close stops every consumer and waits for in-flight handlers
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for subject, cancel := range q.subscriptions {
		cancel()
		delete(q.subscriptions, subject)
	}
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

// Pending returns the number of buffered messages for subject
func (q *MemoryQueue) Pending(subject string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if ch, exists := q.channels[subject]; exists {
		return len(ch)
	}
	return 0
}
