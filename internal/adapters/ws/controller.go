package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/huddlehq/huddle/internal/app"
	"github.com/huddlehq/huddle/internal/domain"
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller upgrades signaling connections and runs their pumps. Each
// socket gets a fresh connection id; ids are never reused, a reconnect is a
// new connection.
type Controller struct {
	Handler   *app.Handler
	ReadLimit int64
}

func NewController(h *app.Handler, readLimit int64) *Controller {
	return &Controller{Handler: h, ReadLimit: readLimit}
}

func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	connID := domain.ConnID(uuid.NewString())
	log.Info().Str("module", "ws").Str("conn", string(connID)).Msg("new WS connection")

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		sock.SetReadLimit(ctl.ReadLimit)
	}

	conn := newWSConn(sock, sendBuffer)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Handler.Conns.Bind(connID, conn, cancel)

	go ctl.writePump(ctx, connID, conn)
	go ctl.readPump(ctx, connID, conn)
}

func (ctl *Controller) writePump(ctx context.Context, connID domain.ConnID, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "ws").Str("conn", string(connID)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "ws").Str("conn", string(connID)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, connID domain.ConnID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "ws").Str("conn", string(connID)).Msg("readPump closing")
		ctl.Handler.OnDisconnect(connID)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "ws").Str("conn", string(connID)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "ws").Str("conn", string(connID)).Msg("readPump read error")
				return
			}
			ctl.Handler.HandleEvent(connID, data)
		}
	}
}
