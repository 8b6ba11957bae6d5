package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Meloken/voicehub/internal/app"
	"github.com/Meloken/voicehub/internal/config"
	"github.com/Meloken/voicehub/internal/core"
	"github.com/Meloken/voicehub/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Controller terminates one websocket per connection and translates its
// JSON envelopes into hub, auth and relay calls.
type Controller struct {
	Hub  *app.Hub
	Auth *app.Auth
	Cfg  *config.Config
}

func NewController(hub *app.Hub, auth *app.Auth, cfg *config.Config) *Controller {
	return &Controller{Hub: hub, Auth: auth, Cfg: cfg}
}

// WsConn pairs the websocket with a bounded send queue. TrySend never
// blocks: a full queue counts as backpressure and the frame is dropped.
type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and runs the connection until the
// transport drops, at which point the disconnect cascade fires.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	cid := domain.ConnID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.Cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.Cfg.ReadLimit)
	}

	conn := &WsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctl.Hub.Connect(cid, conn)

	connCtx, cancel := context.WithCancel(ctx)
	go ctl.writePump(connCtx, conn)
	go func() {
		defer cancel()
		ctl.readPump(connCtx, cid, conn)
		ctl.Hub.Disconnect(ctx, cid)
	}()
}
