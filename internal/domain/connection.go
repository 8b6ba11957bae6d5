// Package domain contains entities without logic, just meta-data.
package domain

import "errors"

const MaxDisplayNameLen = 36

var (
	ErrNameEmpty   = errors.New("display name empty")
	ErrNameTooLong = errors.New("display name too long")
)

// ConnID identifies one live transport session. It is minted by the
// adapter when the websocket is accepted and dies with it.
type ConnID string

// Connection is the ephemeral per-session record. CurrentGroup and
// CurrentRoom are empty until the connection joins something; Name is
// empty until an identity is claimed.
type Connection struct {
	ID           ConnID
	Name         string
	CurrentGroup GroupID
	CurrentRoom  RoomID
	MicEnabled   bool
	SelfDeafened bool
}

func NewConnection(id ConnID) *Connection {
	return &Connection{ID: id, MicEnabled: true}
}

func ValidDisplayName(name string) error {
	if len(name) == 0 {
		return ErrNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrNameTooLong
	}
	return nil
}
