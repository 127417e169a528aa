package entity

// Conversation is a derived, non-persisted grouping of all messages between
// the viewer and one counterpart. It is recomputed from full message
// snapshots and has no identity beyond the (viewer, counterpart) pair.
type Conversation struct {
	Counterpart *UserProfile `json:"counterpart"`

	// Messages holds both directions, reverse-chronological for list display.
	Messages []*Message `json:"messages"`

	// UnreadCount counts inbound messages (viewer is the receiver) that are
	// still unread. Outbound messages never count.
	UnreadCount int `json:"unread_count"`

	// LastMessage is the message with the maximum sentAt across both
	// directions, nil only for an empty bucket.
	LastMessage *Message `json:"last_message,omitempty"`
}
