package realtime

import (
	"net/http"
	"time"

	"restohub-be/internal/logger"
	"restohub-be/internal/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client is one connected display. The socket is receive-only: frames sent
// by the client are read and discarded.
type Client struct {
	ID           string
	RestaurantID int64
	UserID       int64

	conn *websocket.Conn
	send chan []byte
}

func (h *Hub) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if h.allowedOrigin == "" || origin == "" {
				return true
			}
			return origin == h.allowedOrigin
		},
	}
}

// ServeWS upgrades an authenticated request and attaches the socket to the
// caller's restaurant.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context()).With(zap.String("layer", "realtime"))

	p, ok := utils.GetPrincipalFromContext(r.Context())
	if !ok {
		utils.WriteJSONError(w, "missing token", http.StatusUnauthorized)
		return
	}

	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c, err := h.newClient(p.RestaurantID, p.UserID)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	c.conn = conn

	log.Info("realtime client connected",
		zap.String("client_id", c.ID),
		zap.Int64("user_id", c.UserID),
	)

	go h.writePump(c)
	go h.readPump(c)
}

// readPump drains client frames so control messages are processed and a
// closed socket is noticed.
func (h *Hub) readPump(c *Client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
		logger.L().Info("realtime client disconnected", zap.String("client_id", c.ID))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.L().Debug("realtime read error", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
