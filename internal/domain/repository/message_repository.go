package repository

import (
	"context"

	"clubportal/internal/domain/entity"
)

// MessageFilter selects messages by sender, receiver, or both. A zero field
// is unconstrained; at least one field must be set.
type MessageFilter struct {
	SenderID   string
	ReceiverID string
}

// MessageStream is a live query. Every emission on Updates is the full
// current result set for the subscribed filter, never a delta; consumers
// replace any prior state with each emission. The channel is closed when the
// stream fails or is closed, and a failed stream stays silent for the rest
// of the mount (no retries).
type MessageStream interface {
	Updates() <-chan []*entity.Message
	Close()
}

type MessageRepository interface {
	// Subscribe opens a live query for the filter.
	Subscribe(ctx context.Context, filter MessageFilter) (MessageStream, error)

	// Fetch is the one-shot form of Subscribe.
	Fetch(ctx context.Context, filter MessageFilter) ([]*entity.Message, error)

	// Create stores one message record and returns its assigned ID. The
	// store assigns sentAt. Each call is an independent fan-out unit.
	Create(ctx context.Context, message *entity.Message) (string, error)

	GetByID(ctx context.Context, id string) (*entity.Message, error)

	// MarkRead sets read = true. Idempotent; read never reverts.
	MarkRead(ctx context.Context, id string) error
}
