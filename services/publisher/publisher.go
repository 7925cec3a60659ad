package publisher

import "context"

// Publisher represents a service for publishing run summaries
type Publisher interface {
	// Publish appends a summary to the stream
	Publish(ctx context.Context, summary []byte) error

	// Close closes the publisher connection
	Close() error
}

// NopPublisher discards every summary. It is used when no stream is configured.
type NopPublisher struct{}

// Ensure NopPublisher implements Publisher
var _ Publisher = NopPublisher{}

// Publish does nothing
func (NopPublisher) Publish(ctx context.Context, summary []byte) error { return nil }

// Close does nothing
func (NopPublisher) Close() error { return nil }
