package core

import (
	"context"

	"github.com/Meloken/voicehub/internal/domain"
)

// Frame is a serialized outbound message.
type Frame []byte

// SignalConnection abstracts the system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Bridge is the durable store for accounts, groups, rooms and text
// messages. Every call either completes or fails explicitly; the
// in-memory directory mirrors a structural change only after the
// bridge confirmed it.
type Bridge interface {
	AllGroups(ctx context.Context) ([]domain.Group, error)
	FindGroup(ctx context.Context, id domain.GroupID) (*domain.Group, error)
	FindRoomsOfGroup(ctx context.Context, id domain.GroupID) ([]domain.Room, error)
	FindGroupMembers(ctx context.Context, id domain.GroupID) ([]string, error)

	CreateGroup(ctx context.Context, g domain.Group) error
	RenameGroup(ctx context.Context, id domain.GroupID, name string) error
	DeleteGroup(ctx context.Context, id domain.GroupID) error
	AddGroupMember(ctx context.Context, id domain.GroupID, username string) error
	GroupsOfUser(ctx context.Context, username string) ([]domain.Group, error)

	CreateRoom(ctx context.Context, group domain.GroupID, r domain.Room) error
	RenameRoom(ctx context.Context, group domain.GroupID, room domain.RoomID, name string) error
	DeleteRoom(ctx context.Context, group domain.GroupID, room domain.RoomID) error

	CreateAccount(ctx context.Context, a domain.Account) error
	FindAccount(ctx context.Context, username string) (*domain.Account, error)

	AppendMessage(ctx context.Context, m domain.StoredMessage) error
	RecentMessages(ctx context.Context, room domain.RoomID, limit int) ([]domain.StoredMessage, error)
}
