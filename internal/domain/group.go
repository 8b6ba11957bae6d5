package domain

import "github.com/google/uuid"

type GroupID string

// Group is the durable community unit. Owner is a display name, not a
// connection: ownership survives the owner going offline.
type Group struct {
	ID    GroupID `json:"id"`
	Name  string  `json:"name"`
	Owner string  `json:"owner"`
}

func NewGroup(name, owner string) Group {
	return Group{ID: GroupID(uuid.NewString()), Name: name, Owner: owner}
}
