package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Meloken/voicehub/internal/app"
	"github.com/Meloken/voicehub/internal/domain"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsConn) {
	pingPeriod := ctl.Cfg.PingPeriod
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cid domain.ConnID, c *WsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("readPump closing")
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("readPump read error")
				return
			}
			ctl.dispatch(ctx, cid, c, data)
		}
	}
}

func (ctl *Controller) dispatch(ctx context.Context, cid domain.ConnID, c *WsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "login":
		ctl.handleLogin(ctx, cid, c, data)
	case "register":
		ctl.handleRegister(ctx, cid, c, data)
	case "set_name":
		ctl.handleSetName(ctx, cid, c, data)
	case "whoami":
		ctl.handleWhoAmI(cid, c)
	case "audio_state":
		ctl.handleAudioState(cid, c, data)
	case "create_group":
		ctl.handleCreateGroup(ctx, cid, c, data)
	case "join_group":
		ctl.handleJoinGroup(ctx, cid, c, data)
	case "join_group_id":
		ctl.handleJoinGroupByID(ctx, cid, c, data)
	case "browse_group":
		ctl.handleBrowseGroup(ctx, cid, c, data)
	case "rename_group":
		ctl.handleRenameGroup(ctx, cid, c, data)
	case "delete_group":
		ctl.handleDeleteGroup(ctx, cid, c, data)
	case "create_room":
		ctl.handleCreateRoom(ctx, cid, c, data)
	case "join_room":
		ctl.handleJoinRoom(ctx, cid, c, data)
	case "leave_room":
		ctl.handleLeaveRoom(cid, c, data)
	case "rename_room":
		ctl.handleRenameRoom(ctx, cid, c, data)
	case "delete_room":
		ctl.handleDeleteRoom(ctx, cid, c, data)
	case "text":
		ctl.handleText(ctx, cid, c, data)
	case "history":
		ctl.handleHistory(ctx, cid, c, data)
	case "signal":
		ctl.handleRelay(cid, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown message type")
	}
}

func (ctl *Controller) sendJSON(c *WsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c *WsConn, err error) {
	ctl.sendJSON(c, map[string]any{
		"type":  "error",
		"error": errCode(err),
	})
}

// errCode flattens the rejection taxonomy into stable wire codes; any
// error outside it (bridge failures included) surfaces generically.
func errCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownGroup):
		return "unknown_group"
	case errors.Is(err, domain.ErrUnknownRoom):
		return "unknown_room"
	case errors.Is(err, domain.ErrDuplicateIdentity):
		return "duplicate_identity"
	case errors.Is(err, domain.ErrNotAMember):
		return "not_a_member"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrNoIdentity):
		return "identity_required"
	case errors.Is(err, domain.ErrInvalidRoomKind):
		return "invalid_room_kind"
	case errors.Is(err, domain.ErrNotTextRoom):
		return "not_text_room"
	case errors.Is(err, domain.ErrNameEmpty), errors.Is(err, domain.ErrNameTooLong):
		return "invalid_name"
	case errors.Is(err, app.ErrRateLimited):
		return "rate_limited"
	default:
		return "operation_failed"
	}
}
