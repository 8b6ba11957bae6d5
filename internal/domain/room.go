package domain

import (
	"errors"

	"github.com/google/uuid"
)

type RoomID string

// RoomKind is immutable after creation.
type RoomKind string

const (
	RoomText  RoomKind = "text"
	RoomVoice RoomKind = "voice"
)

var ErrInvalidRoomKind = errors.New("invalid room kind")

type Room struct {
	ID   RoomID   `json:"id"`
	Name string   `json:"name"`
	Kind RoomKind `json:"kind"`
}

func NewRoom(name string, kind RoomKind) Room {
	return Room{ID: RoomID(uuid.NewString()), Name: name, Kind: kind}
}

func ParseRoomKind(s string) (RoomKind, error) {
	switch RoomKind(s) {
	case RoomText, RoomVoice:
		return RoomKind(s), nil
	}
	return "", ErrInvalidRoomKind
}
