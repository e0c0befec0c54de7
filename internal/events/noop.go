package events

import "context"

// NoopPublisher discards every event. It satisfies Publisher when no
// Redis address is configured, so callers never branch on whether the
// bus is live.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event *Event) error { return nil }
func (NoopPublisher) Close() error                                    { return nil }
