package domain

import "time"

// MaxMessageLength bounds the content of a single realtime chat message.
const MaxMessageLength = 10000

// Message is the durable record of a chat message handed to the message store.
// The realtime (wire) representation lives in the messaging package.
type Message struct {
	Content   string    `json:"content" bson:"content"`
	SenderID  string    `json:"sender" bson:"sender"`
	ChatID    string    `json:"chat" bson:"chat"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}
