package port

import "context"

// StatusPublisher announces job state changes. msg is an encoded
// entity.InterpolationStatusMessage.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg []byte) error
}

// DLQPublisher parks a delivery that must not be retried, keeping its body
// as received.
type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}
