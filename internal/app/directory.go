package app

import (
	"github.com/samber/lo"

	"github.com/Meloken/voicehub/internal/core"
	"github.com/Meloken/voicehub/internal/domain"
)

type roomState struct {
	info    domain.Room
	members []core.MemberDTO // ordered by join time
}

type groupState struct {
	info    domain.Group
	members []core.MemberDTO
	rooms   map[domain.RoomID]*roomState
}

// Directory is the in-memory group/room mapping. It has no lock of its
// own: all mutation is funneled through the Hub, whose mutex is the
// single sequencer for directory state.
type Directory struct {
	groups map[domain.GroupID]*groupState
}

func NewDirectory() *Directory {
	return &Directory{groups: make(map[domain.GroupID]*groupState)}
}

// Seed mirrors durable state at startup and after structural mutations
// discovered through the bridge. Existing live membership is kept.
func (d *Directory) Seed(g domain.Group, rooms []domain.Room) {
	gs, ok := d.groups[g.ID]
	if !ok {
		gs = &groupState{info: g, rooms: make(map[domain.RoomID]*roomState)}
		d.groups[g.ID] = gs
	}
	gs.info = g
	for _, r := range rooms {
		if _, ok := gs.rooms[r.ID]; !ok {
			gs.rooms[r.ID] = &roomState{info: r}
		}
	}
}

func (d *Directory) Group(id domain.GroupID) (domain.Group, bool) {
	gs, ok := d.groups[id]
	if !ok {
		return domain.Group{}, false
	}
	return gs.info, true
}

func (d *Directory) Room(group domain.GroupID, room domain.RoomID) (domain.Room, bool) {
	gs, ok := d.groups[group]
	if !ok {
		return domain.Room{}, false
	}
	rs, ok := gs.rooms[room]
	if !ok {
		return domain.Room{}, false
	}
	return rs.info, true
}

func (d *Directory) AddRoom(group domain.GroupID, r domain.Room) {
	if gs, ok := d.groups[group]; ok {
		gs.rooms[r.ID] = &roomState{info: r}
	}
}

func (d *Directory) RenameGroup(id domain.GroupID, name string) {
	if gs, ok := d.groups[id]; ok {
		gs.info.Name = name
	}
}

func (d *Directory) RenameRoom(group domain.GroupID, room domain.RoomID, name string) {
	if gs, ok := d.groups[group]; ok {
		if rs, ok := gs.rooms[room]; ok {
			rs.info.Name = name
		}
	}
}

func (d *Directory) RemoveGroup(id domain.GroupID) {
	delete(d.groups, id)
}

func (d *Directory) RemoveRoom(group domain.GroupID, room domain.RoomID) {
	if gs, ok := d.groups[group]; ok {
		delete(gs.rooms, room)
	}
}

// AddGroupMember is a no-op when the handle is already present; a group
// member list never carries duplicates.
func (d *Directory) AddGroupMember(id domain.GroupID, m core.MemberDTO) {
	gs, ok := d.groups[id]
	if !ok {
		return
	}
	if lo.ContainsBy(gs.members, func(x core.MemberDTO) bool { return x.Handle == m.Handle }) {
		return
	}
	gs.members = append(gs.members, m)
}

// UpdateMemberName refreshes the display name a handle carries in the
// group's member lists after a mid-session rename.
func (d *Directory) UpdateMemberName(id domain.GroupID, handle domain.ConnID, name string) {
	gs, ok := d.groups[id]
	if !ok {
		return
	}
	for i := range gs.members {
		if gs.members[i].Handle == handle {
			gs.members[i].Name = name
		}
	}
	for _, rs := range gs.rooms {
		for i := range rs.members {
			if rs.members[i].Handle == handle {
				rs.members[i].Name = name
			}
		}
	}
}

func (d *Directory) RemoveGroupMember(id domain.GroupID, handle domain.ConnID) {
	if gs, ok := d.groups[id]; ok {
		gs.members = lo.Filter(gs.members, func(x core.MemberDTO, _ int) bool { return x.Handle != handle })
	}
}

func (d *Directory) AddRoomMember(group domain.GroupID, room domain.RoomID, m core.MemberDTO) {
	gs, ok := d.groups[group]
	if !ok {
		return
	}
	rs, ok := gs.rooms[room]
	if !ok {
		return
	}
	if lo.ContainsBy(rs.members, func(x core.MemberDTO) bool { return x.Handle == m.Handle }) {
		return
	}
	rs.members = append(rs.members, m)
}

// RemoveRoomMember reports whether the handle was in fact a member.
func (d *Directory) RemoveRoomMember(group domain.GroupID, room domain.RoomID, handle domain.ConnID) bool {
	gs, ok := d.groups[group]
	if !ok {
		return false
	}
	rs, ok := gs.rooms[room]
	if !ok {
		return false
	}
	before := len(rs.members)
	rs.members = lo.Filter(rs.members, func(x core.MemberDTO, _ int) bool { return x.Handle != handle })
	return len(rs.members) != before
}

func (d *Directory) GroupMembers(id domain.GroupID) []core.MemberDTO {
	gs, ok := d.groups[id]
	if !ok {
		return nil
	}
	out := make([]core.MemberDTO, len(gs.members))
	copy(out, gs.members)
	return out
}

func (d *Directory) RoomMembers(group domain.GroupID, room domain.RoomID) []core.MemberDTO {
	gs, ok := d.groups[group]
	if !ok {
		return nil
	}
	rs, ok := gs.rooms[room]
	if !ok {
		return nil
	}
	out := make([]core.MemberDTO, len(rs.members))
	copy(out, rs.members)
	return out
}

func (d *Directory) Rooms(id domain.GroupID) []core.RoomInfo {
	gs, ok := d.groups[id]
	if !ok {
		return nil
	}
	out := make([]core.RoomInfo, 0, len(gs.rooms))
	for _, rs := range gs.rooms {
		out = append(out, core.RoomInfo{ID: rs.info.ID, Name: rs.info.Name, Kind: rs.info.Kind})
	}
	return out
}
