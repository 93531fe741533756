package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pcba-mpi-api-server/internal/apperr"
	"pcba-mpi-api-server/internal/auth"
	"pcba-mpi-api-server/internal/logger"
	"pcba-mpi-api-server/internal/service"
	"pcba-mpi-api-server/internal/socket"
)

const (
	// Maximum time to wait for any frame from the client, pongs included.
	defaultPongWait = 30 * time.Second
	// Server pings go out well inside the pong wait.
	defaultPingPeriod = defaultPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler upgrades authenticated clients and registers them with the hub.
// Browsers cannot set headers on the upgrade request, so the token comes from ?token=.
type WebSocketHandler struct {
	Hub    *socket.Hub
	Tokens *auth.TokenManager
	Log    *logger.Logger
	// Zero values use the defaults.
	PongWait   time.Duration
	PingPeriod time.Duration
}

func (h *WebSocketHandler) timings() (pongWait, pingPeriod time.Duration) {
	pongWait, pingPeriod = h.PongWait, h.PingPeriod
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	if pingPeriod <= 0 || pingPeriod >= pongWait {
		pingPeriod = pongWait * 9 / 10
	}
	return pongWait, pingPeriod
}

func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		respondError(c, h.Log, apperr.New(apperr.KindUnauthenticated, "Token is required"))
		return
	}
	claims, err := h.Tokens.Parse(tokenString)
	if errors.Is(err, auth.ErrExpiredToken) {
		respondError(c, h.Log, apperr.New(apperr.KindExpiredToken, "Token has expired"))
		return
	}
	if err != nil {
		respondError(c, h.Log, apperr.New(apperr.KindInvalidToken, "Invalid token"))
		return
	}
	actor, err := service.ActorFromClaims(claims)
	if err != nil {
		respondError(c, h.Log, apperr.New(apperr.KindInvalidToken, "Invalid token"))
		return
	}
	userID := actor.ID.Hex()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.Hub.Register(userID, conn)
	defer func() {
		h.Hub.Unregister(userID, conn)
		conn.Close()
	}()

	// Any frame from the client extends the deadline. Browsers cannot send pings, so the server
	// pings and their pongs keep listen-only clients alive.
	pongWait, pingPeriod := h.timings()
	extend := func() { _ = conn.SetReadDeadline(time.Now().Add(pongWait)) }
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})
	conn.SetPingHandler(func(appData string) error {
		extend()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Log.Warn("websocket closed unexpectedly", "userId", userID, "error", err)
			}
			break
		}
		extend()
	}
}
