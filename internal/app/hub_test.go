package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Meloken/voicehub/internal/domain"
)

func newTestHub(t *testing.T) (*Hub, *fakeBridge) {
	t.Helper()
	b := newFakeBridge()
	b.seedGroup(
		domain.Group{ID: "g1", Name: "general", Owner: "alice"},
		[]string{"alice", "bob"},
		domain.Room{ID: "r1", Name: "lounge", Kind: domain.RoomVoice},
		domain.Room{ID: "r2", Name: "study", Kind: domain.RoomVoice},
		domain.Room{ID: "rt", Name: "chat", Kind: domain.RoomText},
	)
	b.seedGroup(
		domain.Group{ID: "g2", Name: "gaming", Owner: "bob"},
		[]string{"bob"},
		domain.Room{ID: "r3", Name: "arena", Kind: domain.RoomVoice},
	)
	h := NewHub(NewRegistry(), NewDirectory(), b, HubConfig{RelayRetry: 40 * time.Millisecond})
	require.NoError(t, h.Seed(context.Background()))
	return h, b
}

func connect(t *testing.T, h *Hub, id domain.ConnID, name string) *fakeConn {
	t.Helper()
	c := &fakeConn{}
	h.Connect(id, c)
	require.NoError(t, h.SetIdentity(context.Background(), id, name))
	return c
}

func TestHub_Seed(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)

	g, ok := h.dir.Group("g1")
	req.True(ok)
	req.Equal("general", g.Name)
	req.Equal("alice", g.Owner)

	r, ok := h.dir.Room("g1", "rt")
	req.True(ok)
	req.Equal(domain.RoomText, r.Kind)
	req.Len(h.dir.Rooms("g1"), 3)
	req.Len(h.dir.Rooms("g2"), 1)
}

func TestHub_JoinGroup_Unknown(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	connect(t, h, "x", "alice")

	req.ErrorIs(h.JoinGroup(context.Background(), "x", "nope"), domain.ErrUnknownGroup)
}

func TestHub_JoinGroup_RequiresIdentity(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	h.Connect("x", &fakeConn{})

	req.ErrorIs(h.JoinGroup(context.Background(), "x", "g1"), domain.ErrNoIdentity)
}

func TestHub_JoinGroup_IdempotentNoFanout(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	ctx := context.Background()
	cx := connect(t, h, "x", "alice")

	req.NoError(h.JoinGroup(ctx, "x", "g1"))
	before := cx.count()

	req.NoError(h.JoinGroup(ctx, "x", "g1"))
	req.Equal(before, cx.count())
}

func TestHub_JoinGroup_SwitchLeavesPrevious(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	ctx := context.Background()
	connect(t, h, "x", "bob")

	req.NoError(h.JoinGroup(ctx, "x", "g1"))
	_, err := h.JoinRoom(ctx, "x", "g1", "r1")
	req.NoError(err)

	req.NoError(h.JoinGroup(ctx, "x", "g2"))

	req.Empty(h.dir.RoomMembers("g1", "r1"))
	req.Empty(h.dir.GroupMembers("g1"))
	req.Len(h.dir.GroupMembers("g2"), 1)

	conn, _ := h.Connection("x")
	req.Equal(domain.GroupID("g2"), conn.CurrentGroup)
	req.Empty(conn.CurrentRoom)
}

func TestHub_JoinRoom_Unknown(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	ctx := context.Background()
	connect(t, h, "x", "alice")
	req.NoError(h.JoinGroup(ctx, "x", "g1"))

	_, err := h.JoinRoom(ctx, "x", "g1", "nope")
	req.ErrorIs(err, domain.ErrUnknownRoom)
	_, err = h.JoinRoom(ctx, "x", "nope", "r1")
	req.ErrorIs(err, domain.ErrUnknownGroup)
}

func TestHub_JoinRoom_Idempotent(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	ctx := context.Background()
	cx := connect(t, h, "x", "alice")
	req.NoError(h.JoinGroup(ctx, "x", "g1"))

	joined, err := h.JoinRoom(ctx, "x", "g1", "r1")
	req.NoError(err)
	req.True(joined)
	before := cx.count()

	joined, err = h.JoinRoom(ctx, "x", "g1", "r1")
	req.NoError(err)
	req.False(joined)
	req.Equal(before, cx.count())
	req.Len(h.dir.RoomMembers("g1", "r1"), 1)
}

func TestHub_JoinRoom_SwitchNeverInBothNorNeither(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	ctx := context.Background()

	// Observers pinned in each room watch the snapshots.
	c1 := connect(t, h, "w1", "w1")
	req.NoError(h.JoinGroup(ctx, "w1", "g1"))
	_, err := h.JoinRoom(ctx, "w1", "g1", "r1")
	req.NoError(err)
	c2 := connect(t, h, "w2", "w2")
	req.NoError(h.JoinGroup(ctx, "w2", "g1"))
	_, err = h.JoinRoom(ctx, "w2", "g1", "r2")
	req.NoError(err)

	connect(t, h, "x", "alice")
	req.NoError(h.JoinGroup(ctx, "x", "g1"))
	_, err = h.JoinRoom(ctx, "x", "g1", "r1")
	req.NoError(err)

	_, err = h.JoinRoom(ctx, "x", "g1", "r2")
	req.NoError(err)

	// Final state: exactly one membership, consistent with the record.
	inR1 := false
	for _, m := range h.dir.RoomMembers("g1", "r1") {
		if m.Handle == "x" {
			inR1 = true
		}
	}
	req.False(inR1)
	found := 0
	for _, m := range h.dir.RoomMembers("g1", "r2") {
		if m.Handle == "x" {
			found++
		}
	}
	req.Equal(1, found)
	conn, _ := h.Connection("x")
	req.Equal(domain.RoomID("r2"), conn.CurrentRoom)

	// No r1 snapshot ever contained x together with an r2 snapshot
	// containing x before the removal: the last r1 snapshot excludes x,
	// and every r2 snapshot that includes x came after it.
	r1Snaps := c1.byType(t, "room_members")
	req.NotEmpty(r1Snaps)
	last := r1Snaps[len(r1Snaps)-1]
	for _, m := range last["members"].([]any) {
		req.NotEqual("x", m.(map[string]any)["id"])
	}
	r2Snaps := c2.byType(t, "room_members")
	req.NotEmpty(r2Snaps)
	seen := false
	for _, m := range r2Snaps[len(r2Snaps)-1]["members"].([]any) {
		if m.(map[string]any)["id"] == "x" {
			seen = true
		}
	}
	req.True(seen)
}

func TestHub_JoinRoom_AcrossGroups(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	ctx := context.Background()
	connect(t, h, "x", "bob")
	req.NoError(h.JoinGroup(ctx, "x", "g1"))
	_, err := h.JoinRoom(ctx, "x", "g1", "r1")
	req.NoError(err)

	// Entering a room of a different group runs the full leave path.
	joined, err := h.JoinRoom(ctx, "x", "g2", "r3")
	req.NoError(err)
	req.True(joined)

	req.Empty(h.dir.RoomMembers("g1", "r1"))
	req.Empty(h.dir.GroupMembers("g1"))
	req.Len(h.dir.RoomMembers("g2", "r3"), 1)
	conn, _ := h.Connection("x")
	req.Equal(domain.GroupID("g2"), conn.CurrentGroup)
	req.Equal(domain.RoomID("r3"), conn.CurrentRoom)
}

func TestHub_LeaveRoom(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	ctx := context.Background()
	connect(t, h, "x", "alice")
	req.NoError(h.JoinGroup(ctx, "x", "g1"))
	_, err := h.JoinRoom(ctx, "x", "g1", "r1")
	req.NoError(err)

	req.NoError(h.LeaveRoom("x", "g1", "r1"))
	req.Empty(h.dir.RoomMembers("g1", "r1"))
	conn, _ := h.Connection("x")
	req.Equal(domain.GroupID("g1"), conn.CurrentGroup)
	req.Empty(conn.CurrentRoom)

	// Leaving a room you are not in is ignorable; an unknown room is not.
	req.NoError(h.LeaveRoom("x", "g1", "r2"))
	req.ErrorIs(h.LeaveRoom("x", "g1", "nope"), domain.ErrUnknownRoom)
}

func TestHub_Disconnect_Cascade(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	ctx := context.Background()
	connect(t, h, "x", "alice")
	cy := connect(t, h, "y", "bob")
	req.NoError(h.JoinGroup(ctx, "x", "g1"))
	req.NoError(h.JoinGroup(ctx, "y", "g1"))
	_, err := h.JoinRoom(ctx, "x", "g1", "r1")
	req.NoError(err)
	_, err = h.JoinRoom(ctx, "y", "g1", "r1")
	req.NoError(err)

	h.Disconnect(ctx, "x")

	req.Len(h.dir.RoomMembers("g1", "r1"), 1)
	req.Len(h.dir.GroupMembers("g1"), 1)
	_, ok := h.Connection("x")
	req.False(ok)

	snaps := cy.byType(t, "room_members")
	req.NotEmpty(snaps)
	for _, m := range snaps[len(snaps)-1]["members"].([]any) {
		req.NotEqual("x", m.(map[string]any)["id"])
	}

	// The freed name shows offline in the post-disconnect presence push.
	pres := cy.byType(t, "group_members")
	req.NotEmpty(pres)
	lastPres := pres[len(pres)-1]
	req.Contains(lastPres["offline"], "alice")
	req.Contains(lastPres["online"], "bob")
}

func TestHub_StructuralFailure_DirectoryUnchanged(t *testing.T) {
	req := require.New(t)
	h, b := newTestHub(t)
	ctx := context.Background()
	connect(t, h, "x", "alice")
	req.NoError(h.JoinGroup(ctx, "x", "g1"))
	_, err := h.JoinRoom(ctx, "x", "g1", "r1")
	req.NoError(err)

	b.fail = true

	req.Error(h.RenameRoom(ctx, "x", "g1", "r1", "renamed"))
	r, _ := h.dir.Room("g1", "r1")
	req.Equal("lounge", r.Name)

	req.Error(h.DeleteRoom(ctx, "x", "g1", "r1"))
	_, ok := h.dir.Room("g1", "r1")
	req.True(ok)
	req.Len(h.dir.RoomMembers("g1", "r1"), 1)

	req.Error(h.DeleteGroup(ctx, "x", "g1"))
	_, ok = h.dir.Group("g1")
	req.True(ok)
	conn, _ := h.Connection("x")
	req.Equal(domain.GroupID("g1"), conn.CurrentGroup)
	req.Equal(domain.RoomID("r1"), conn.CurrentRoom)
}

func TestHub_DeleteGroup_ClearsMemberPointers(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	ctx := context.Background()
	cx := connect(t, h, "x", "alice")
	connect(t, h, "y", "bob")
	req.NoError(h.JoinGroup(ctx, "x", "g1"))
	req.NoError(h.JoinGroup(ctx, "y", "g1"))
	_, err := h.JoinRoom(ctx, "y", "g1", "r1")
	req.NoError(err)

	req.NoError(h.DeleteGroup(ctx, "x", "g1"))

	_, ok := h.dir.Group("g1")
	req.False(ok)
	for _, id := range []domain.ConnID{"x", "y"} {
		conn, _ := h.Connection(id)
		req.Empty(conn.CurrentGroup)
		req.Empty(conn.CurrentRoom)
	}
	req.NotEmpty(cx.byType(t, "group_deleted"))
}

func TestHub_DeleteRoom_ClearsOccupants(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	ctx := context.Background()
	connect(t, h, "x", "alice")
	req.NoError(h.JoinGroup(ctx, "x", "g1"))
	_, err := h.JoinRoom(ctx, "x", "g1", "r1")
	req.NoError(err)

	req.NoError(h.DeleteRoom(ctx, "x", "g1", "r1"))

	_, ok := h.dir.Room("g1", "r1")
	req.False(ok)
	conn, _ := h.Connection("x")
	req.Equal(domain.GroupID("g1"), conn.CurrentGroup)
	req.Empty(conn.CurrentRoom)
}

func TestHub_StructuralMutation_OwnerOnly(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	ctx := context.Background()
	connect(t, h, "y", "bob")
	req.NoError(h.JoinGroup(ctx, "y", "g1"))

	req.ErrorIs(h.RenameGroup(ctx, "y", "g1", "mine"), domain.ErrUnauthorized)
	req.ErrorIs(h.DeleteGroup(ctx, "y", "g1"), domain.ErrUnauthorized)
	req.ErrorIs(h.RenameRoom(ctx, "y", "g1", "r1", "mine"), domain.ErrUnauthorized)
	req.ErrorIs(h.DeleteRoom(ctx, "y", "g1", "r1"), domain.ErrUnauthorized)
}

func TestHub_RenameGroup_Fanout(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	ctx := context.Background()
	connect(t, h, "x", "alice")
	cy := connect(t, h, "y", "bob")
	req.NoError(h.JoinGroup(ctx, "x", "g1"))
	req.NoError(h.JoinGroup(ctx, "y", "g1"))

	req.NoError(h.RenameGroup(ctx, "x", "g1", "renamed"))

	g, _ := h.dir.Group("g1")
	req.Equal("renamed", g.Name)
	renames := cy.byType(t, "group_renamed")
	req.NotEmpty(renames)
	req.Equal("renamed", renames[len(renames)-1]["name"])
}

func TestHub_Rename_RefreshesMemberLists(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	ctx := context.Background()
	cx := connect(t, h, "x", "alice")
	cy := connect(t, h, "y", "bob")
	req.NoError(h.JoinGroup(ctx, "x", "g1"))
	req.NoError(h.JoinGroup(ctx, "y", "g1"))
	_, err := h.JoinRoom(ctx, "x", "g1", "r1")
	req.NoError(err)

	req.NoError(h.SetIdentity(ctx, "x", "alicia"))

	for _, m := range h.dir.GroupMembers("g1") {
		if m.Handle == "x" {
			req.Equal("alicia", m.Name)
		}
	}
	members := h.dir.RoomMembers("g1", "r1")
	req.Len(members, 1)
	req.Equal("alicia", members[0].Name)

	// Snapshots after the rename carry the new name everywhere.
	snaps := cx.byType(t, "room_members")
	req.NotEmpty(snaps)
	last := snaps[len(snaps)-1]["members"].([]any)
	req.Equal("alicia", last[0].(map[string]any)["name"])

	states := cy.byType(t, "channel_state")
	req.NotEmpty(states)
	channels := states[len(states)-1]["channels"].(map[string]any)
	r1 := channels["r1"].(map[string]any)["members"].([]any)
	req.Equal("alicia", r1[0].(map[string]any)["name"])
}

func TestHub_SetAudioState_SnapshotsWholeGroup(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	ctx := context.Background()
	connect(t, h, "x", "alice")
	cy := connect(t, h, "y", "bob")
	req.NoError(h.JoinGroup(ctx, "x", "g1"))
	req.NoError(h.JoinGroup(ctx, "y", "g1"))
	_, err := h.JoinRoom(ctx, "x", "g1", "r1")
	req.NoError(err)
	// y stays outside any room but still gets the snapshot.

	h.SetAudioState("x", false, true)

	snaps := cy.byType(t, "channel_state")
	req.NotEmpty(snaps)
	channels := snaps[len(snaps)-1]["channels"].(map[string]any)
	members := channels["r1"].(map[string]any)["members"].([]any)
	req.Len(members, 1)
	m := members[0].(map[string]any)
	req.Equal(false, m["mic_enabled"])
	req.Equal(true, m["self_deafened"])
}

func TestHub_CreateGroupAndRoom(t *testing.T) {
	req := require.New(t)
	h, b := newTestHub(t)
	ctx := context.Background()
	cx := connect(t, h, "x", "carol")

	g, err := h.CreateGroup(ctx, "x", "  new place ")
	req.NoError(err)
	req.Equal("new place", g.Name)
	req.Equal("carol", g.Owner)
	_, ok := h.dir.Group(g.ID)
	req.True(ok)
	members, _ := b.FindGroupMembers(ctx, g.ID)
	req.Equal([]string{"carol"}, members)
	req.NotEmpty(cx.byType(t, "groups_list"))

	req.NoError(h.JoinGroup(ctx, "x", g.ID))

	r, err := h.CreateRoom(ctx, "x", g.ID, "den", "voice")
	req.NoError(err)
	req.Equal(domain.RoomVoice, r.Kind)
	_, ok = h.dir.Room(g.ID, r.ID)
	req.True(ok)

	_, err = h.CreateRoom(ctx, "x", g.ID, "den", "video")
	req.ErrorIs(err, domain.ErrInvalidRoomKind)
}

func TestHub_CreateRoom_RequiresMembership(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	ctx := context.Background()
	connect(t, h, "x", "carol")

	_, err := h.CreateRoom(ctx, "x", "g1", "den", "voice")
	req.ErrorIs(err, domain.ErrNotAMember)
}

func TestHub_JoinGroupByID_SeedsAndPersists(t *testing.T) {
	req := require.New(t)
	h, b := newTestHub(t)
	ctx := context.Background()

	// A group known only durably: simulate another process creating it.
	b.seedGroup(domain.Group{ID: "g3", Name: "fresh", Owner: "dave"}, []string{"dave"},
		domain.Room{ID: "r9", Name: "hall", Kind: domain.RoomVoice})

	connect(t, h, "x", "carol")
	req.NoError(h.JoinGroupByID(ctx, "x", "g3"))

	_, ok := h.dir.Group("g3")
	req.True(ok)
	_, ok = h.dir.Room("g3", "r9")
	req.True(ok)
	members, _ := b.FindGroupMembers(ctx, "g3")
	req.Contains(members, "carol")
	conn, _ := h.Connection("x")
	req.Equal(domain.GroupID("g3"), conn.CurrentGroup)

	req.ErrorIs(h.JoinGroupByID(ctx, "x", "nope"), domain.ErrUnknownGroup)
}

func TestHub_BrowseGroup_ReadOnly(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	ctx := context.Background()
	cx := connect(t, h, "x", "carol")

	req.NoError(h.BrowseGroup(ctx, "x", "g1"))

	req.NotEmpty(cx.byType(t, "rooms_list"))
	req.NotEmpty(cx.byType(t, "channel_state"))
	req.NotEmpty(cx.byType(t, "group_members"))
	conn, _ := h.Connection("x")
	req.Empty(conn.CurrentGroup)
	req.Empty(h.dir.GroupMembers("g1"))
}

func TestHub_Text_RoomRules(t *testing.T) {
	req := require.New(t)
	h, b := newTestHub(t)
	ctx := context.Background()
	connect(t, h, "x", "alice")
	cy := connect(t, h, "y", "bob")
	req.NoError(h.JoinGroup(ctx, "x", "g1"))
	req.NoError(h.JoinGroup(ctx, "y", "g1"))
	_, err := h.JoinRoom(ctx, "x", "g1", "rt")
	req.NoError(err)
	_, err = h.JoinRoom(ctx, "y", "g1", "rt")
	req.NoError(err)

	req.NoError(h.Text(ctx, "x", "g1", "rt", "hello"))

	texts := cy.byType(t, "text")
	req.Len(texts, 1)
	data := texts[0]["data"].(map[string]any)
	req.Equal("alice", data["author"])
	req.Equal("hello", data["content"])
	req.Len(b.msgs["rt"], 1)

	// Voice rooms carry no text; outsiders cannot post.
	req.ErrorIs(h.Text(ctx, "x", "g1", "r1", "hi"), domain.ErrNotTextRoom)
	connect(t, h, "z", "carol")
	req.ErrorIs(h.Text(ctx, "z", "g1", "rt", "hi"), domain.ErrNotAMember)
}

func TestHub_History_TextOnlyChronological(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)
	ctx := context.Background()
	connect(t, h, "x", "alice")
	req.NoError(h.JoinGroup(ctx, "x", "g1"))
	_, err := h.JoinRoom(ctx, "x", "g1", "rt")
	req.NoError(err)

	req.NoError(h.Text(ctx, "x", "g1", "rt", "one"))
	req.NoError(h.Text(ctx, "x", "g1", "rt", "two"))

	msgs, err := h.History(ctx, "g1", "rt")
	req.NoError(err)
	req.Len(msgs, 2)
	req.Equal("one", msgs[0].Content)
	req.Equal("two", msgs[1].Content)

	_, err = h.History(ctx, "g1", "r1")
	req.ErrorIs(err, domain.ErrNotTextRoom)
}
