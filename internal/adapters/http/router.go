package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/huddlehq/huddle/internal/adapters/ws"
	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/core"
	"github.com/huddlehq/huddle/internal/history"
)

// HistoryReader is the optional read side of the meeting-history store.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Session, error)
	ForRoom(ctx context.Context, roomID string, limit int) ([]history.Session, error)
}

// ClientTokenMiddleware hands every browser a long-lived advisory identity
// cookie. It is not the connection id; connection ids are minted per socket.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	rooms *core.RoomRegistry,
	ctl *ws.Controller,
	hist HistoryReader,
) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("HuddleSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	// GET /api/rooms — active rooms with member counts.
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": rooms.List()})
	})

	// GET /api/ice — the ICE servers clients should use for the peer
	// connections whose negotiation this service relays.
	api.GET("/ice", func(c *gin.Context) {
		servers := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
		for _, s := range cfg.ICEServers {
			servers = append(servers, webrtc.ICEServer{
				URLs:       s.URLs,
				Username:   s.Username,
				Credential: s.Credential,
			})
		}
		c.JSON(http.StatusOK, gin.H{"iceServers": servers})
	})

	if hist != nil {
		api.GET("/history", func(c *gin.Context) {
			limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
			out, err := hist.Recent(c.Request.Context(), limit)
			if err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("history query")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"sessions": out})
		})

		api.GET("/rooms/:id/history", func(c *gin.Context) {
			limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
			out, err := hist.ForRoom(c.Request.Context(), c.Param("id"), limit)
			if err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("room history query")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"sessions": out})
		})
	}

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("token", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	return r
}
