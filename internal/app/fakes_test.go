package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/Meloken/voicehub/internal/core"
	"github.com/Meloken/voicehub/internal/domain"
)

// fakeConn records every frame pushed to a connection, in order.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("closed")
	}
	cp := make(core.Frame, len(fr))
	copy(cp, fr)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// byType decodes the recorded frames of one envelope type, in order.
func (f *fakeConn) byType(t *testing.T, tp string) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, fr := range f.frames {
		var m map[string]any
		if err := json.Unmarshal(fr, &m); err != nil {
			t.Fatalf("bad frame %q: %v", fr, err)
		}
		if m["type"] == tp {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// fakeBridge is an in-memory persistence bridge. Setting fail makes
// every mutating call error, simulating a durable-store outage.
type fakeBridge struct {
	mu       sync.Mutex
	groups   map[domain.GroupID]domain.Group
	members  map[domain.GroupID][]string
	rooms    map[domain.GroupID]map[domain.RoomID]domain.Room
	accounts map[string]domain.Account
	msgs     map[domain.RoomID][]domain.StoredMessage
	fail     bool
}

var errBridgeDown = errors.New("bridge down")

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		groups:   make(map[domain.GroupID]domain.Group),
		members:  make(map[domain.GroupID][]string),
		rooms:    make(map[domain.GroupID]map[domain.RoomID]domain.Room),
		accounts: make(map[string]domain.Account),
		msgs:     make(map[domain.RoomID][]domain.StoredMessage),
	}
}

func (b *fakeBridge) seedGroup(g domain.Group, members []string, rooms ...domain.Room) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.groups[g.ID] = g
	b.members[g.ID] = members
	b.rooms[g.ID] = make(map[domain.RoomID]domain.Room)
	for _, r := range rooms {
		b.rooms[g.ID][r.ID] = r
	}
}

func (b *fakeBridge) AllGroups(context.Context) ([]domain.Group, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Group
	for _, g := range b.groups {
		out = append(out, g)
	}
	return out, nil
}

func (b *fakeBridge) FindGroup(_ context.Context, id domain.GroupID) (*domain.Group, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.groups[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (b *fakeBridge) FindRoomsOfGroup(_ context.Context, id domain.GroupID) ([]domain.Room, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Room
	for _, r := range b.rooms[id] {
		out = append(out, r)
	}
	return out, nil
}

func (b *fakeBridge) FindGroupMembers(_ context.Context, id domain.GroupID) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.members[id]...), nil
}

func (b *fakeBridge) CreateGroup(_ context.Context, g domain.Group) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errBridgeDown
	}
	b.groups[g.ID] = g
	b.members[g.ID] = []string{g.Owner}
	b.rooms[g.ID] = make(map[domain.RoomID]domain.Room)
	return nil
}

func (b *fakeBridge) RenameGroup(_ context.Context, id domain.GroupID, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errBridgeDown
	}
	g := b.groups[id]
	g.Name = name
	b.groups[id] = g
	return nil
}

func (b *fakeBridge) DeleteGroup(_ context.Context, id domain.GroupID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errBridgeDown
	}
	delete(b.groups, id)
	delete(b.members, id)
	delete(b.rooms, id)
	return nil
}

func (b *fakeBridge) AddGroupMember(_ context.Context, id domain.GroupID, username string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errBridgeDown
	}
	for _, m := range b.members[id] {
		if m == username {
			return nil
		}
	}
	b.members[id] = append(b.members[id], username)
	return nil
}

func (b *fakeBridge) GroupsOfUser(_ context.Context, username string) ([]domain.Group, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Group
	for id, members := range b.members {
		for _, m := range members {
			if m == username {
				out = append(out, b.groups[id])
			}
		}
	}
	return out, nil
}

func (b *fakeBridge) CreateRoom(_ context.Context, group domain.GroupID, r domain.Room) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errBridgeDown
	}
	if _, ok := b.rooms[group]; !ok {
		b.rooms[group] = make(map[domain.RoomID]domain.Room)
	}
	b.rooms[group][r.ID] = r
	return nil
}

func (b *fakeBridge) RenameRoom(_ context.Context, group domain.GroupID, room domain.RoomID, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errBridgeDown
	}
	r := b.rooms[group][room]
	r.Name = name
	b.rooms[group][room] = r
	return nil
}

func (b *fakeBridge) DeleteRoom(_ context.Context, group domain.GroupID, room domain.RoomID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errBridgeDown
	}
	delete(b.rooms[group], room)
	return nil
}

func (b *fakeBridge) CreateAccount(_ context.Context, a domain.Account) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errBridgeDown
	}
	if _, ok := b.accounts[a.Username]; ok {
		return domain.ErrUsernameTaken
	}
	b.accounts[a.Username] = a
	return nil
}

func (b *fakeBridge) FindAccount(_ context.Context, username string) (*domain.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.accounts[username]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (b *fakeBridge) AppendMessage(_ context.Context, m domain.StoredMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errBridgeDown
	}
	b.msgs[m.Room] = append(b.msgs[m.Room], m)
	return nil
}

func (b *fakeBridge) RecentMessages(_ context.Context, room domain.RoomID, limit int) ([]domain.StoredMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.msgs[room]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]domain.StoredMessage(nil), msgs...), nil
}

var _ core.Bridge = (*fakeBridge)(nil)
