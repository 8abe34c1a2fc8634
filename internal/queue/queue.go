// Package queue carries check-in events from the API to the notification worker.
package queue

import "context"

// Message is one queued unit of work. Body is opaque to the transport.
type Message struct {
	Type string `msgpack:"t"`
	Body []byte `msgpack:"b"`
}

// Queue is implemented by the in-process channel and by Redis lists.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}
