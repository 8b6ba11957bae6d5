package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/Meloken/voicehub/internal/core"
	"github.com/Meloken/voicehub/internal/domain"
)

// Fanout pushes full authoritative snapshots to the current observers of
// a scope. It never buffers and never redelivers: a slow or gone
// observer simply misses the snapshot and converges on the next one.
//
// Every method expects the hub mutex to be held by the caller, so the
// snapshot it serializes is the directory's state at one instant.
type Fanout struct {
	reg *Registry
	dir *Directory
}

func NewFanout(reg *Registry, dir *Directory) *Fanout {
	return &Fanout{reg: reg, dir: dir}
}

func (f *Fanout) send(id domain.ConnID, v any) {
	sig, ok := f.reg.Signal(id)
	if !ok {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.fanout").Msg("marshal snapshot")
		return
	}
	if err := sig.TrySend(core.Frame(b)); err != nil {
		log.Debug().Str("module", "app.fanout").Str("cid", string(id)).Msg("dropped snapshot for slow observer")
	}
}

func (f *Fanout) toGroup(group domain.GroupID, v any) {
	for _, m := range f.dir.GroupMembers(group) {
		f.send(m.Handle, v)
	}
}

// Room pushes the room's ordered member list to its current members.
func (f *Fanout) Room(group domain.GroupID, room domain.RoomID) {
	v := struct {
		Type    string           `json:"type"`
		Group   domain.GroupID   `json:"group"`
		Room    domain.RoomID    `json:"room"`
		Members []core.MemberDTO `json:"members"`
	}{"room_members", group, room, f.dir.RoomMembers(group, room)}
	for _, m := range v.Members {
		f.send(m.Handle, v)
	}
}

func (f *Fanout) channelSnapshot(group domain.GroupID) map[domain.RoomID]core.ChannelDTO {
	out := make(map[domain.RoomID]core.ChannelDTO)
	for _, r := range f.dir.Rooms(group) {
		members := f.dir.RoomMembers(group, r.ID)
		annotated := make([]core.ChannelMemberDTO, 0, len(members))
		for _, m := range members {
			cm := core.ChannelMemberDTO{Handle: m.Handle, Name: m.Name, MicEnabled: true}
			if c, ok := f.reg.Get(m.Handle); ok {
				cm.MicEnabled = c.MicEnabled
				cm.SelfDeafened = c.SelfDeafened
			}
			annotated = append(annotated, cm)
		}
		out[r.ID] = core.ChannelDTO{Name: r.Name, Kind: r.Kind, Members: annotated}
	}
	return out
}

type channelStateMsg struct {
	Type     string                           `json:"type"`
	Group    domain.GroupID                   `json:"group"`
	Channels map[domain.RoomID]core.ChannelDTO `json:"channels"`
}

// Channels pushes the group-wide channel snapshot (who is in which room,
// with audio flags) to every group member.
func (f *Fanout) Channels(group domain.GroupID) {
	f.toGroup(group, channelStateMsg{"channel_state", group, f.channelSnapshot(group)})
}

func (f *Fanout) ChannelsTo(id domain.ConnID, group domain.GroupID) {
	f.send(id, channelStateMsg{"channel_state", group, f.channelSnapshot(group)})
}

type roomsListMsg struct {
	Type  string          `json:"type"`
	Group domain.GroupID  `json:"group"`
	Rooms []core.RoomInfo `json:"rooms"`
}

func (f *Fanout) RoomsList(group domain.GroupID) {
	f.toGroup(group, roomsListMsg{"rooms_list", group, f.dir.Rooms(group)})
}

func (f *Fanout) RoomsListTo(id domain.ConnID, group domain.GroupID) {
	f.send(id, roomsListMsg{"rooms_list", group, f.dir.Rooms(group)})
}

type presenceMsg struct {
	Type  string         `json:"type"`
	Group domain.GroupID `json:"group"`
	core.Presence
}

func (f *Fanout) presence(durable []string) core.Presence {
	p := core.Presence{Online: []string{}, Offline: []string{}}
	for _, name := range durable {
		if f.reg.Online(name) {
			p.Online = append(p.Online, name)
		} else {
			p.Offline = append(p.Offline, name)
		}
	}
	return p
}

// Presence pushes the online/offline split of the group's durable member
// identities. The durable list comes from the bridge and is fetched by
// the hub outside the lock.
func (f *Fanout) Presence(group domain.GroupID, durable []string) {
	f.toGroup(group, presenceMsg{"group_members", group, f.presence(durable)})
}

func (f *Fanout) PresenceTo(id domain.ConnID, group domain.GroupID, durable []string) {
	f.send(id, presenceMsg{"group_members", group, f.presence(durable)})
}

func (f *Fanout) GroupsListTo(id domain.ConnID, groups []core.GroupInfo) {
	f.send(id, struct {
		Type   string           `json:"type"`
		Groups []core.GroupInfo `json:"groups"`
	}{"groups_list", groups})
}

func (f *Fanout) GroupRenamed(group domain.GroupID, name string) {
	f.toGroup(group, struct {
		Type  string         `json:"type"`
		Group domain.GroupID `json:"group"`
		Name  string         `json:"name"`
	}{"group_renamed", group, name})
}

// GroupDeleted is pushed to the members captured before the directory
// entry went away.
func (f *Fanout) GroupDeleted(group domain.GroupID, members []core.MemberDTO) {
	v := struct {
		Type  string         `json:"type"`
		Group domain.GroupID `json:"group"`
	}{"group_deleted", group}
	for _, m := range members {
		f.send(m.Handle, v)
	}
}

// Text pushes a stored text message to the room's current members.
func (f *Fanout) Text(group domain.GroupID, room domain.RoomID, m domain.StoredMessage) {
	v := struct {
		Type string               `json:"type"`
		Room domain.RoomID        `json:"room"`
		Data domain.StoredMessage `json:"data"`
	}{"text", room, m}
	for _, member := range f.dir.RoomMembers(group, room) {
		f.send(member.Handle, v)
	}
}
