package queue

import "context"

// InMemory hands messages between goroutines of one process. Used by the API
// in development and by tests.
type InMemory struct {
	ch chan Message
}

// NewInMemory buffers up to size messages.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

// Publish blocks while the buffer is full or until ctx ends.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume forwards buffered messages until ctx ends, then closes the channel.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			var msg Message
			select {
			case msg = <-q.ch:
			case <-ctx.Done():
				return
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
