package eventstream

import "context"

// Publisher publishes context events to an event stream backend.
type Publisher interface {
	PublishContextStored(ctx context.Context, event *ContextStoredEvent) error
	Close() error
}
