package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Meloken/voicehub/internal/core"
	"github.com/Meloken/voicehub/internal/domain"
)

type HubConfig struct {
	RelayRetry     time.Duration
	HistoryLimit   int
	TextRateLimit  int
	TextRateWindow time.Duration
}

func (c *HubConfig) defaults() {
	if c.RelayRetry <= 0 {
		c.RelayRetry = 200 * time.Millisecond
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 50
	}
	if c.TextRateLimit <= 0 {
		c.TextRateLimit = 10
	}
	if c.TextRateWindow <= 0 {
		c.TextRateWindow = 10 * time.Second
	}
}

// Hub is the membership manager: every registry/directory transition is
// funneled through it, and its mutex is the single sequencer of the
// process. Bridge calls are the only suspending operations and never
// happen with the mutex held; the directory mirrors a structural change
// only after the bridge confirmed it.
type Hub struct {
	mu      sync.Mutex
	reg     *Registry
	dir     *Directory
	bridge  core.Bridge
	fan     *Fanout
	relay   *Relay
	limiter *TextRateLimiter
	cfg     HubConfig
}

func NewHub(reg *Registry, dir *Directory, bridge core.Bridge, cfg HubConfig) *Hub {
	cfg.defaults()
	h := &Hub{
		reg:     reg,
		dir:     dir,
		bridge:  bridge,
		fan:     NewFanout(reg, dir),
		limiter: NewTextRateLimiter(cfg.TextRateLimit, cfg.TextRateWindow),
		cfg:     cfg,
	}
	h.relay = newRelay(&h.mu, reg, cfg.RelayRetry)
	return h
}

// Relay exposes the signaling relay sharing the hub's sequencer.
func (h *Hub) Relay() *Relay { return h.relay }

// Connection returns a copy of the live record for a handle.
func (h *Hub) Connection(id domain.ConnID) (domain.Connection, bool) {
	return h.reg.Get(id)
}

// Seed loads durable groups and rooms into the directory at startup.
func (h *Hub) Seed(ctx context.Context) error {
	groups, err := h.bridge.AllGroups(ctx)
	if err != nil {
		return fmt.Errorf("seed groups: %w", err)
	}
	for _, g := range groups {
		rooms, err := h.bridge.FindRoomsOfGroup(ctx, g.ID)
		if err != nil {
			return fmt.Errorf("seed rooms of %s: %w", g.ID, err)
		}
		h.mu.Lock()
		h.dir.Seed(g, rooms)
		h.mu.Unlock()
	}
	log.Info().Str("module", "app.hub").Int("groups", len(groups)).Msg("directory seeded")
	return nil
}

// Connect registers a fresh connection with default audio flags.
func (h *Hub) Connect(id domain.ConnID, sig core.SignalConnection) {
	h.reg.Register(id, sig)
}

// Disconnect tears the connection down: pending relay traffic addressed
// to it is discarded first, then membership is removed everywhere before
// the record goes away, so no later event can see it as a member.
func (h *Hub) Disconnect(ctx context.Context, id domain.ConnID) {
	h.relay.DiscardFor(id)
	h.limiter.Forget(id)

	conn, ok := h.reg.Get(id)
	if !ok {
		return
	}
	h.mu.Lock()
	h.leaveAllLocked(conn)
	h.reg.Unregister(id)
	h.mu.Unlock()

	if conn.Name == "" {
		return
	}
	groups, err := h.bridge.GroupsOfUser(ctx, conn.Name)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("name", conn.Name).Msg("groups of user on disconnect")
		return
	}
	for _, g := range groups {
		h.broadcastPresence(ctx, g.ID)
	}
}

// SetIdentity claims a display name, then pushes the durable groups list
// to the claimant and refreshed presence to each of those groups. A
// rename while the connection holds membership refreshes the member
// lists so no snapshot carries the stale name.
func (h *Hub) SetIdentity(ctx context.Context, id domain.ConnID, name string) error {
	if err := h.reg.SetIdentity(id, name); err != nil {
		return err
	}
	conn, _ := h.reg.Get(id)
	if conn.CurrentGroup != "" {
		h.mu.Lock()
		h.dir.UpdateMemberName(conn.CurrentGroup, id, name)
		if conn.CurrentRoom != "" {
			h.fan.Room(conn.CurrentGroup, conn.CurrentRoom)
		}
		h.fan.Channels(conn.CurrentGroup)
		h.mu.Unlock()
	}
	groups := h.pushGroupsList(ctx, id, name)
	for _, g := range groups {
		h.broadcastPresence(ctx, g.ID)
	}
	return nil
}

// SetAudioState updates the connection record only; the owning group, if
// any, gets a channel snapshot so mute/deafen icons update everywhere.
func (h *Hub) SetAudioState(id domain.ConnID, mic, deaf bool) {
	if !h.reg.SetAudio(id, mic, deaf) {
		return
	}
	conn, _ := h.reg.Get(id)
	if conn.CurrentGroup == "" {
		return
	}
	h.mu.Lock()
	h.fan.Channels(conn.CurrentGroup)
	h.mu.Unlock()
}

// JoinGroup makes the directory-known group the connection's current
// one. Already-current is a no-op; any prior membership is fully left
// first.
func (h *Hub) JoinGroup(ctx context.Context, id domain.ConnID, group domain.GroupID) error {
	return h.enterGroup(ctx, id, group)
}

// JoinGroupByID additionally records durable membership through the
// bridge and seeds the directory when the group exists only durably.
func (h *Hub) JoinGroupByID(ctx context.Context, id domain.ConnID, group domain.GroupID) error {
	conn, ok := h.reg.Get(id)
	if !ok {
		return domain.ErrUnknownConnection
	}
	if conn.Name == "" {
		return domain.ErrNoIdentity
	}

	g, err := h.bridge.FindGroup(ctx, group)
	if err != nil {
		return fmt.Errorf("find group: %w", err)
	}
	if g == nil {
		return domain.ErrUnknownGroup
	}
	if err := h.bridge.AddGroupMember(ctx, group, conn.Name); err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	rooms, err := h.bridge.FindRoomsOfGroup(ctx, group)
	if err != nil {
		return fmt.Errorf("rooms of group: %w", err)
	}

	h.mu.Lock()
	h.dir.Seed(*g, rooms)
	h.mu.Unlock()

	if err := h.enterGroup(ctx, id, group); err != nil {
		return err
	}
	h.pushGroupsList(ctx, id, conn.Name)
	return nil
}

func (h *Hub) enterGroup(ctx context.Context, id domain.ConnID, group domain.GroupID) error {
	h.mu.Lock()
	conn, ok := h.reg.Get(id)
	if !ok {
		h.mu.Unlock()
		return domain.ErrUnknownConnection
	}
	if conn.Name == "" {
		h.mu.Unlock()
		return domain.ErrNoIdentity
	}
	if _, ok := h.dir.Group(group); !ok {
		h.mu.Unlock()
		return domain.ErrUnknownGroup
	}
	if conn.CurrentGroup == group {
		h.mu.Unlock()
		return nil
	}

	prev := h.leaveAllLocked(conn)
	h.dir.AddGroupMember(group, core.MemberDTO{Handle: id, Name: conn.Name})
	h.reg.SetLocation(id, group, "")
	h.fan.RoomsListTo(id, group)
	h.fan.Channels(group)
	h.mu.Unlock()

	log.Info().Str("module", "app.hub").Str("cid", string(id)).Str("group", string(group)).Msg("joined group")

	if prev != "" {
		h.broadcastPresence(ctx, prev)
	}
	h.broadcastPresence(ctx, group)
	return nil
}

// JoinRoom moves the connection into a room. The returned bool is false
// for the idempotent already-there case, where nothing is fanned out and
// no acknowledgement is due. On a same-group switch the old room's
// membership is removed and rebroadcast before the new room gains the
// member, so no snapshot ever shows the connection in both.
func (h *Hub) JoinRoom(ctx context.Context, id domain.ConnID, group domain.GroupID, room domain.RoomID) (bool, error) {
	h.mu.Lock()
	conn, ok := h.reg.Get(id)
	if !ok {
		h.mu.Unlock()
		return false, domain.ErrUnknownConnection
	}
	if conn.Name == "" {
		h.mu.Unlock()
		return false, domain.ErrNoIdentity
	}
	if _, ok := h.dir.Group(group); !ok {
		h.mu.Unlock()
		return false, domain.ErrUnknownGroup
	}
	if _, ok := h.dir.Room(group, room); !ok {
		h.mu.Unlock()
		return false, domain.ErrUnknownRoom
	}
	if conn.CurrentGroup == group && conn.CurrentRoom == room {
		h.mu.Unlock()
		return false, nil
	}

	var prev domain.GroupID
	switch {
	case conn.CurrentGroup == group && conn.CurrentRoom != "":
		// Direct switch: the old room's snapshot goes out without the
		// member before the new room's list gains it.
		if h.dir.RemoveRoomMember(group, conn.CurrentRoom, id) {
			h.fan.Room(group, conn.CurrentRoom)
		}
	case conn.CurrentGroup != group:
		prev = h.leaveAllLocked(conn)
		h.dir.AddGroupMember(group, core.MemberDTO{Handle: id, Name: conn.Name})
	}

	h.dir.AddRoomMember(group, room, core.MemberDTO{Handle: id, Name: conn.Name})
	h.reg.SetLocation(id, group, room)
	h.fan.Room(group, room)
	h.fan.Channels(group)
	h.mu.Unlock()

	log.Info().Str("module", "app.hub").Str("cid", string(id)).Str("group", string(group)).Str("room", string(room)).Msg("joined room")

	if prev != "" {
		h.broadcastPresence(ctx, prev)
	}
	if prev != "" || conn.CurrentGroup != group {
		h.broadcastPresence(ctx, group)
	}
	return true, nil
}

// LeaveRoom removes the connection from the room if it is in fact a
// member; anything else is ignorable.
func (h *Hub) LeaveRoom(id domain.ConnID, group domain.GroupID, room domain.RoomID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.dir.Room(group, room); !ok {
		return domain.ErrUnknownRoom
	}
	if !h.dir.RemoveRoomMember(group, room, id) {
		return nil
	}
	h.reg.ClearRoom(id)
	h.fan.Room(group, room)
	h.fan.Channels(group)
	return nil
}

// BrowseGroup pushes a group's rooms, channel snapshot and presence to
// one connection without joining anything.
func (h *Hub) BrowseGroup(ctx context.Context, id domain.ConnID, group domain.GroupID) error {
	h.mu.Lock()
	if _, ok := h.dir.Group(group); !ok {
		h.mu.Unlock()
		return domain.ErrUnknownGroup
	}
	h.fan.RoomsListTo(id, group)
	h.fan.ChannelsTo(id, group)
	h.mu.Unlock()

	durable, err := h.bridge.FindGroupMembers(ctx, group)
	if err != nil {
		return fmt.Errorf("group members: %w", err)
	}
	h.mu.Lock()
	h.fan.PresenceTo(id, group, durable)
	h.mu.Unlock()
	return nil
}

// leaveAllLocked removes the connection from its (at most one) group and
// room, fans out the affected scopes, and returns the group it left for
// the caller's presence rebroadcast. Hub mutex must be held.
func (h *Hub) leaveAllLocked(conn domain.Connection) domain.GroupID {
	group := conn.CurrentGroup
	if group == "" {
		return ""
	}
	if conn.CurrentRoom != "" {
		if h.dir.RemoveRoomMember(group, conn.CurrentRoom, conn.ID) {
			h.fan.Room(group, conn.CurrentRoom)
		}
	}
	h.dir.RemoveGroupMember(group, conn.ID)
	h.reg.SetLocation(conn.ID, "", "")
	h.fan.Channels(group)
	return group
}

// broadcastPresence fetches the durable member list (bridge, outside the
// lock) and fans out the online/offline split at send time.
func (h *Hub) broadcastPresence(ctx context.Context, group domain.GroupID) {
	durable, err := h.bridge.FindGroupMembers(ctx, group)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("group", string(group)).Msg("presence fetch")
		return
	}
	h.mu.Lock()
	h.fan.Presence(group, durable)
	h.mu.Unlock()
}

func (h *Hub) pushGroupsList(ctx context.Context, id domain.ConnID, username string) []domain.Group {
	groups, err := h.bridge.GroupsOfUser(ctx, username)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("name", username).Msg("groups of user")
		return nil
	}
	infos := make([]core.GroupInfo, 0, len(groups))
	for _, g := range groups {
		infos = append(infos, core.GroupInfo{ID: g.ID, Name: g.Name, Owner: g.Owner})
	}
	h.mu.Lock()
	h.fan.GroupsListTo(id, infos)
	h.mu.Unlock()
	return groups
}
