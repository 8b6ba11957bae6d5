package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/Meloken/voicehub/internal/app"
	"github.com/Meloken/voicehub/internal/domain"
)

func (ctl *Controller) handleLogin(ctx context.Context, cid domain.ConnID, c *WsConn, data []byte) {
	var p struct {
		Type     string `json:"type"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}

	type result struct {
		Type     string `json:"type"`
		Success  bool   `json:"success"`
		Username string `json:"username,omitempty"`
		Message  string `json:"message,omitempty"`
	}
	if err := ctl.Auth.Login(ctx, p.Username, p.Password); err != nil {
		msg := "login failed"
		if errors.Is(err, domain.ErrInvalidCredentials) {
			msg = "invalid credentials"
		} else {
			log.Error().Err(err).Str("module", "signal").Msg("login")
		}
		ctl.sendJSON(c, result{Type: "login_result", Message: msg})
		return
	}
	ctl.sendJSON(c, result{Type: "login_result", Success: true, Username: p.Username})
}

func (ctl *Controller) handleRegister(ctx context.Context, cid domain.ConnID, c *WsConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		app.RegisterParams
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}

	type result struct {
		Type    string `json:"type"`
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
	}
	if err := ctl.Auth.Register(ctx, p.RegisterParams); err != nil {
		switch {
		case errors.Is(err, domain.ErrIncompleteProfile),
			errors.Is(err, domain.ErrUsernameNotLower),
			errors.Is(err, domain.ErrPasswordMismatch),
			errors.Is(err, domain.ErrUsernameTaken):
			ctl.sendJSON(c, result{Type: "register_result", Message: err.Error()})
		default:
			log.Error().Err(err).Str("module", "signal").Msg("register")
			ctl.sendJSON(c, result{Type: "register_result", Message: "registration failed"})
		}
		return
	}
	ctl.sendJSON(c, result{Type: "register_result", Success: true})
}

func (ctl *Controller) handleSetName(ctx context.Context, cid domain.ConnID, c *WsConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	if err := ctl.Hub.SetIdentity(ctx, cid, p.Name); err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.sendJSON(c, struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}{"name_set", p.Name})
}

func (ctl *Controller) handleWhoAmI(cid domain.ConnID, c *WsConn) {
	conn, ok := ctl.Hub.Connection(cid)
	if !ok {
		return
	}
	ctl.sendJSON(c, struct {
		Type  string         `json:"type"`
		Name  string         `json:"name,omitempty"`
		Group domain.GroupID `json:"group,omitempty"`
		Room  domain.RoomID  `json:"room,omitempty"`
	}{"whoami", conn.Name, conn.CurrentGroup, conn.CurrentRoom})
}
