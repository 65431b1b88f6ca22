// Package queue carries training jobs from the API to background workers
// over NATS JetStream, Redis Streams, Kafka, or an in-process channel.
package queue

import "context"

// Publisher publishes messages to a queue
type Publisher interface {
	// Publish publishes a message to a subject/topic
	Publish(ctx context.Context, subject string, data []byte) error

	// Close closes the connection
	Close() error
}

// Subscriber subscribes to messages from a queue
type Subscriber interface {
	// Subscribe starts delivering messages on subject to handler. A handler
	// error leaves the message unacknowledged for redelivery where the
	// backend supports it.
	Subscribe(subject string, handler MessageHandler) error

	// Unsubscribe stops delivery for a subject/topic
	Unsubscribe(subject string) error

	// Close closes the connection
	Close() error
}

// MessageHandler handles incoming messages
type MessageHandler func(data []byte) error

// Queue combines Publisher and Subscriber interfaces
type Queue interface {
	Publisher
	Subscriber
}
