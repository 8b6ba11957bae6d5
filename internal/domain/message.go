package domain

import "time"

// StoredMessage is a durable text-room message. Negotiation payloads are
// never stored; only text-kind room traffic lands here.
type StoredMessage struct {
	Room      RoomID    `json:"room"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
