package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/Meloken/voicehub/internal/domain"
)

type roomRef struct {
	Type  string         `json:"type"`
	Group domain.GroupID `json:"group"`
	Room  domain.RoomID  `json:"room"`
}

func (ctl *Controller) handleCreateRoom(ctx context.Context, cid domain.ConnID, c *WsConn, data []byte) {
	var p struct {
		Type  string         `json:"type"`
		Group domain.GroupID `json:"group"`
		Name  string         `json:"name"`
		Kind  string         `json:"kind"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	r, err := ctl.Hub.CreateRoom(ctx, cid, p.Group, p.Name, p.Kind)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.sendJSON(c, struct {
		Type string          `json:"type"`
		Room domain.RoomID   `json:"room"`
		Name string          `json:"name"`
		Kind domain.RoomKind `json:"kind"`
	}{"room_created", r.ID, r.Name, r.Kind})
}

func (ctl *Controller) handleJoinRoom(ctx context.Context, cid domain.ConnID, c *WsConn, data []byte) {
	var p roomRef
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	joined, err := ctl.Hub.JoinRoom(ctx, cid, p.Group, p.Room)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	if !joined {
		return
	}

	// The ack is issued after the membership rebroadcast and independent
	// of it; the joiner's peer discovery only needs the current member
	// set already fanned out above.
	ctl.sendJSON(c, struct {
		Type  string         `json:"type"`
		Group domain.GroupID `json:"group"`
		Room  domain.RoomID  `json:"room"`
	}{"join_ack", p.Group, p.Room})

	ctl.replayHistory(ctx, c, p.Group, p.Room)
}

func (ctl *Controller) replayHistory(ctx context.Context, c *WsConn, group domain.GroupID, room domain.RoomID) {
	msgs, err := ctl.Hub.History(ctx, group, room)
	if err != nil {
		if !errors.Is(err, domain.ErrNotTextRoom) {
			log.Error().Err(err).Str("module", "signal").Str("room", string(room)).Msg("history replay")
		}
		return
	}
	ctl.sendJSON(c, struct {
		Type     string                 `json:"type"`
		Room     domain.RoomID          `json:"room"`
		Messages []domain.StoredMessage `json:"messages"`
	}{"history", room, msgs})
}

func (ctl *Controller) handleLeaveRoom(cid domain.ConnID, c *WsConn, data []byte) {
	var p roomRef
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	if err := ctl.Hub.LeaveRoom(cid, p.Group, p.Room); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleRenameRoom(ctx context.Context, cid domain.ConnID, c *WsConn, data []byte) {
	var p struct {
		Type  string         `json:"type"`
		Group domain.GroupID `json:"group"`
		Room  domain.RoomID  `json:"room"`
		Name  string         `json:"name"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	if err := ctl.Hub.RenameRoom(ctx, cid, p.Group, p.Room, p.Name); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleDeleteRoom(ctx context.Context, cid domain.ConnID, c *WsConn, data []byte) {
	var p roomRef
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	if err := ctl.Hub.DeleteRoom(ctx, cid, p.Group, p.Room); err != nil {
		ctl.sendError(c, err)
	}
}
