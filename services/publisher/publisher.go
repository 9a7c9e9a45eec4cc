package publisher

import "context"

// Publisher fans crawled listings out to downstream consumers
type Publisher interface {
	// Publish appends message under field key to one of the streams
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams caps every stream at the configured length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}
