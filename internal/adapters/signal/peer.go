package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/Meloken/voicehub/internal/domain"
)

// handleRelay forwards an opaque negotiation payload. Relay failures
// never surface to the sender; a bad envelope is the only local error.
func (ctl *Controller) handleRelay(cid domain.ConnID, data []byte) {
	var p struct {
		Type    string          `json:"type"`
		To      domain.ConnID   `json:"to"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad signal envelope")
		return
	}
	ctl.Hub.Relay().Send(cid, p.To, p.Payload)
}

func (ctl *Controller) handleAudioState(cid domain.ConnID, c *WsConn, data []byte) {
	var p struct {
		Type         string `json:"type"`
		MicEnabled   bool   `json:"mic_enabled"`
		SelfDeafened bool   `json:"self_deafened"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.Hub.SetAudioState(cid, p.MicEnabled, p.SelfDeafened)
}
