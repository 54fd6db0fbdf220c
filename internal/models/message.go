package models

import "time"

// Sender tags which side of the conversation produced a message.
type Sender string

const (
	SenderSelf Sender = "user"
	SenderPeer Sender = "contact"
)

// AttachmentKind discriminates the attachment variants. Every consumer
// switches on it exhaustively; there is no open-ended type field.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentDocument AttachmentKind = "document"
	AttachmentAudio    AttachmentKind = "audio"
)

// Attachment is a non-text payload embedded by value in a message.
// It has no lifecycle of its own.
type Attachment struct {
	Kind AttachmentKind `json:"type"`
	URL  string         `json:"url"`
	Name string         `json:"name"`
}

// Message is one unit of conversation content. A message always has
// content or an attachment, never neither. IDs are strictly increasing
// within a conversation; edits never move a message, deletes preserve
// the relative order of the remainder.
type Message struct {
	ID         int64       `json:"id"`
	Content    string      `json:"content"`
	Sender     Sender      `json:"sender"`
	SentAt     time.Time   `json:"sent_at"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Timestamp renders the wall-clock label shown next to the message.
func (m Message) Timestamp() string {
	return m.SentAt.Format("15:04")
}

// Contact is a peer entry in the conversation list, with a denormalized
// preview of the most recent message.
type Contact struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	AvatarURL       string    `json:"avatar"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
}
