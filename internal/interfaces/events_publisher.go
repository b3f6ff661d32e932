package interfaces

import "context"

// EventPublisher delivers post-commit events to an external broker.
// Publishing is best effort: a failed publish never affects a committed
// transfer.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}
