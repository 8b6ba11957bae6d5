package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/Meloken/voicehub/internal/domain"
)

type groupRef struct {
	Type  string         `json:"type"`
	Group domain.GroupID `json:"group"`
}

func (ctl *Controller) handleCreateGroup(ctx context.Context, cid domain.ConnID, c *WsConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	g, err := ctl.Hub.CreateGroup(ctx, cid, p.Name)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.sendJSON(c, struct {
		Type  string         `json:"type"`
		Group domain.GroupID `json:"group"`
		Name  string         `json:"name"`
	}{"group_created", g.ID, g.Name})
}

func (ctl *Controller) handleJoinGroup(ctx context.Context, cid domain.ConnID, c *WsConn, data []byte) {
	var p groupRef
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	if err := ctl.Hub.JoinGroup(ctx, cid, p.Group); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleJoinGroupByID(ctx context.Context, cid domain.ConnID, c *WsConn, data []byte) {
	var p groupRef
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	log.Info().Str("module", "signal").Str("cid", string(cid)).Str("group", string(p.Group)).Msg("join group by id")
	if err := ctl.Hub.JoinGroupByID(ctx, cid, p.Group); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleBrowseGroup(ctx context.Context, cid domain.ConnID, c *WsConn, data []byte) {
	var p groupRef
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	if err := ctl.Hub.BrowseGroup(ctx, cid, p.Group); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleRenameGroup(ctx context.Context, cid domain.ConnID, c *WsConn, data []byte) {
	var p struct {
		Type  string         `json:"type"`
		Group domain.GroupID `json:"group"`
		Name  string         `json:"name"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	if err := ctl.Hub.RenameGroup(ctx, cid, p.Group, p.Name); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleDeleteGroup(ctx context.Context, cid domain.ConnID, c *WsConn, data []byte) {
	var p groupRef
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	if err := ctl.Hub.DeleteGroup(ctx, cid, p.Group); err != nil {
		ctl.sendError(c, err)
	}
}
