package outbound

import (
	"context"

	"troffee-marketplace-client/internal/domain/message"
)

// ThreadUpdate is a fresh snapshot of one winning pair's message thread.
type ThreadUpdate struct {
	PairID   int64
	Messages []message.Message
	// OK is false when the payload had an unexpected shape and was coerced
	// to an empty list.
	OK bool
}

// MessageStream delivers message-thread snapshots for an open conversation.
// The polling adapter is the default implementation; a websocket adapter is
// available where the deployment exposes a push endpoint.
type MessageStream interface {
	// Subscribe starts delivering snapshots of the pair's thread to updates
	// until ctx is done. Delivery cadence and de-duplication are
	// implementation concerns; consumers must tolerate snapshots identical
	// to the state they already hold.
	Subscribe(ctx context.Context, pairID int64, clientID string, updates chan<- ThreadUpdate) error
}
