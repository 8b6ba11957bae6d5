package signal

import (
	"context"
	"encoding/json"

	"github.com/Meloken/voicehub/internal/domain"
)

func (ctl *Controller) handleText(ctx context.Context, cid domain.ConnID, c *WsConn, data []byte) {
	var p struct {
		Type    string         `json:"type"`
		Group   domain.GroupID `json:"group"`
		Room    domain.RoomID  `json:"room"`
		Content string         `json:"content"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	if p.Content == "" {
		return
	}
	if err := ctl.Hub.Text(ctx, cid, p.Group, p.Room, p.Content); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleHistory(ctx context.Context, cid domain.ConnID, c *WsConn, data []byte) {
	var p roomRef
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	msgs, err := ctl.Hub.History(ctx, p.Group, p.Room)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.sendJSON(c, struct {
		Type     string                 `json:"type"`
		Room     domain.RoomID          `json:"room"`
		Messages []domain.StoredMessage `json:"messages"`
	}{"history", p.Room, msgs})
}
