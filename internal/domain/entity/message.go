package entity

import "time"

// Message is the atomic messaging unit. A message is always one-to-one at
// the storage level; sending to several recipients creates one independent
// record per recipient.
type Message struct {
	ID         string    `json:"id" firestore:"id"`
	SenderID   string    `json:"sender_id" firestore:"senderId"`
	ReceiverID string    `json:"receiver_id" firestore:"receiverId"`
	Text       string    `json:"text,omitempty" firestore:"text,omitempty"`
	FileURL    string    `json:"file_url,omitempty" firestore:"fileUrl,omitempty"`
	FileName   string    `json:"file_name,omitempty" firestore:"fileName,omitempty"`
	SentAt     time.Time `json:"sent_at" firestore:"sentAt,serverTimestamp"`
	Read       bool      `json:"read" firestore:"read"`
}

// Attachment is the result of uploading a file blob: a retrievable URL plus
// the original filename.
type Attachment struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
}

func (m *Message) HasAttachment() bool {
	return m.FileURL != ""
}

// OrderKey is the authoritative ordering key relative to now. The server
// assigns sentAt on write; until that assignment is visible the message
// orders as "now" so a just-sent message lands at the tail of its thread.
func (m *Message) OrderKey(now time.Time) time.Time {
	if m.SentAt.IsZero() {
		return now
	}
	return m.SentAt
}
