package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Meloken/voicehub/internal/domain"
)

// Structural mutations: create/rename/delete of groups and rooms.
// Durability before visibility: the bridge write completes first, and a
// failed write leaves the directory untouched.

// CreateGroup persists a new group owned by the caller's identity and
// mirrors it. The creator becomes a durable member but does not join
// live presence; that stays an explicit join.
func (h *Hub) CreateGroup(ctx context.Context, id domain.ConnID, name string) (domain.Group, error) {
	conn, ok := h.reg.Get(id)
	if !ok {
		return domain.Group{}, domain.ErrUnknownConnection
	}
	if conn.Name == "" {
		return domain.Group{}, domain.ErrNoIdentity
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Group{}, domain.ErrNameEmpty
	}

	g := domain.NewGroup(name, conn.Name)
	if err := h.bridge.CreateGroup(ctx, g); err != nil {
		return domain.Group{}, fmt.Errorf("create group: %w", err)
	}

	h.mu.Lock()
	h.dir.Seed(g, nil)
	h.mu.Unlock()
	log.Info().Str("module", "app.hub").Str("group", string(g.ID)).Str("owner", conn.Name).Msg("group created")

	h.pushGroupsList(ctx, id, conn.Name)
	return g, nil
}

// CreateRoom adds a room to the caller's current group; any live member
// may create rooms, matching group-level chat conventions.
func (h *Hub) CreateRoom(ctx context.Context, id domain.ConnID, group domain.GroupID, name, kind string) (domain.Room, error) {
	rk, err := domain.ParseRoomKind(kind)
	if err != nil {
		return domain.Room{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Room{}, domain.ErrNameEmpty
	}

	h.mu.Lock()
	conn, ok := h.reg.Get(id)
	if !ok {
		h.mu.Unlock()
		return domain.Room{}, domain.ErrUnknownConnection
	}
	if _, ok := h.dir.Group(group); !ok {
		h.mu.Unlock()
		return domain.Room{}, domain.ErrUnknownGroup
	}
	if conn.CurrentGroup != group {
		h.mu.Unlock()
		return domain.Room{}, domain.ErrNotAMember
	}
	h.mu.Unlock()

	r := domain.NewRoom(name, rk)
	if err := h.bridge.CreateRoom(ctx, group, r); err != nil {
		return domain.Room{}, fmt.Errorf("create room: %w", err)
	}

	h.mu.Lock()
	h.dir.AddRoom(group, r)
	h.fan.RoomsList(group)
	h.fan.Channels(group)
	h.mu.Unlock()
	log.Info().Str("module", "app.hub").Str("group", string(group)).Str("room", string(r.ID)).Str("kind", kind).Msg("room created")
	return r, nil
}

// ownerCheck returns ErrUnauthorized unless the caller's identity owns
// the group.
func (h *Hub) ownerCheck(id domain.ConnID, group domain.GroupID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.reg.Get(id)
	if !ok {
		return domain.ErrUnknownConnection
	}
	if conn.Name == "" {
		return domain.ErrNoIdentity
	}
	g, ok := h.dir.Group(group)
	if !ok {
		return domain.ErrUnknownGroup
	}
	if g.Owner != conn.Name {
		return domain.ErrUnauthorized
	}
	return nil
}

func (h *Hub) RenameGroup(ctx context.Context, id domain.ConnID, group domain.GroupID, name string) error {
	if err := h.ownerCheck(id, group); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrNameEmpty
	}
	if err := h.bridge.RenameGroup(ctx, group, name); err != nil {
		return fmt.Errorf("rename group: %w", err)
	}
	h.mu.Lock()
	h.dir.RenameGroup(group, name)
	h.fan.GroupRenamed(group, name)
	h.mu.Unlock()
	return nil
}

// DeleteGroup removes the group durably, then clears every member's
// dangling location in the same transition as the directory removal.
func (h *Hub) DeleteGroup(ctx context.Context, id domain.ConnID, group domain.GroupID) error {
	if err := h.ownerCheck(id, group); err != nil {
		return err
	}
	if err := h.bridge.DeleteGroup(ctx, group); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	h.mu.Lock()
	members := h.dir.GroupMembers(group)
	for _, m := range members {
		h.reg.SetLocation(m.Handle, "", "")
	}
	h.dir.RemoveGroup(group)
	h.fan.GroupDeleted(group, members)
	h.mu.Unlock()
	log.Info().Str("module", "app.hub").Str("group", string(group)).Msg("group deleted")
	return nil
}

func (h *Hub) RenameRoom(ctx context.Context, id domain.ConnID, group domain.GroupID, room domain.RoomID, name string) error {
	if err := h.ownerCheck(id, group); err != nil {
		return err
	}
	h.mu.Lock()
	_, ok := h.dir.Room(group, room)
	h.mu.Unlock()
	if !ok {
		return domain.ErrUnknownRoom
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrNameEmpty
	}
	if err := h.bridge.RenameRoom(ctx, group, room, name); err != nil {
		return fmt.Errorf("rename room: %w", err)
	}
	h.mu.Lock()
	h.dir.RenameRoom(group, room, name)
	h.fan.RoomsList(group)
	h.fan.Channels(group)
	h.mu.Unlock()
	return nil
}

// DeleteRoom removes the room durably, then drops it from the directory
// with every member's currentRoom cleared in the same transition.
func (h *Hub) DeleteRoom(ctx context.Context, id domain.ConnID, group domain.GroupID, room domain.RoomID) error {
	if err := h.ownerCheck(id, group); err != nil {
		return err
	}
	h.mu.Lock()
	_, ok := h.dir.Room(group, room)
	h.mu.Unlock()
	if !ok {
		return domain.ErrUnknownRoom
	}
	if err := h.bridge.DeleteRoom(ctx, group, room); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	h.mu.Lock()
	for _, m := range h.dir.RoomMembers(group, room) {
		h.reg.ClearRoom(m.Handle)
	}
	h.dir.RemoveRoom(group, room)
	h.fan.RoomsList(group)
	h.fan.Channels(group)
	h.mu.Unlock()
	log.Info().Str("module", "app.hub").Str("group", string(group)).Str("room", string(room)).Msg("room deleted")
	return nil
}
