// Package ws is the WebSocket transport for the realtime channel. It
// owns the upgrade handshake, the per-connection read/write pumps, and
// nothing else; all routing decisions live in the realtime package.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatlink-backend/internal/realtime"
	"chatlink-backend/pkg/constants"
	"chatlink-backend/pkg/jwt"
	"chatlink-backend/pkg/logger"
	"chatlink-backend/pkg/metrics"
)

// Handler upgrades authenticated requests into realtime channels
type Handler struct {
	hub        *realtime.Hub
	jwtManager *jwt.Manager
	metrics    *metrics.Metrics
	upgrader   websocket.Upgrader

	// Semaphore limiting concurrent connections
	semaphore chan struct{}
}

// NewHandler creates the WebSocket handler. maxConnections <= 0 falls
// back to the default cap.
func NewHandler(hub *realtime.Hub, jwtManager *jwt.Manager, m *metrics.Metrics, maxConnections int) *Handler {
	if maxConnections <= 0 {
		maxConnections = constants.DefaultMaxConnections
	}

	return &Handler{
		hub:        hub,
		jwtManager: jwtManager,
		metrics:    m,
		semaphore:  make(chan struct{}, maxConnections),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// allowedOrigins builds the origin whitelist from CORS_ALLOWED_ORIGINS,
// with localhost defaults for development.
func allowedOrigins() map[string]bool {
	origins := map[string]bool{
		"http://localhost:3000": true,
		"http://localhost:8080": true,
		"http://127.0.0.1:3000": true,
		"http://127.0.0.1:8080": true,
	}
	if extra := os.Getenv("CORS_ALLOWED_ORIGINS"); extra != "" {
		for _, origin := range strings.Split(extra, ",") {
			origins[strings.TrimSpace(origin)] = true
		}
	}
	return origins
}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients send no Origin; the JWT is the gate.
		return true
	}
	return allowedOrigins()[origin]
}

// ServeWS handles the realtime channel upgrade. The user identity comes
// from the JWT (query token or bearer header), never from the client's
// add-user frame.
func (h *Handler) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
		return
	}

	claims, err := h.jwtManager.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	select {
	case h.semaphore <- struct{}{}:
	default:
		logger.Warn("realtime connection rejected: at capacity",
			zap.Int("max_connections", cap(h.semaphore)))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server at capacity, please try again later"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		<-h.semaphore
		logger.Warn("websocket upgrade failed",
			zap.String("user_id", claims.UserID.String()),
			zap.Error(err))
		return
	}

	client := &Client{
		hub:    h.hub,
		conn:   conn,
		send:   make(chan []byte, constants.WebSocketSendBuffer),
		closed: make(chan struct{}),
		userID: claims.UserID,
	}

	if h.metrics != nil {
		h.metrics.ConnectionOpened()
	}

	go client.writePump()
	go client.readPump(h)
}

// Client is one realtime channel. It implements realtime.Conn: Send
// never blocks, and the connection is dropped rather than letting a
// slow reader stall the relay.
type Client struct {
	hub    *realtime.Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID

	closeOnce sync.Once
	closed    chan struct{}
}

// Send enqueues an encoded frame. It reports false when the connection
// is closed or the outbound queue is full; the frame is dropped.
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close tears down the channel; safe to call more than once
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// readPump reads inbound frames and hands them to the hub. A connection
// close is the only cancellation signal: the deferred teardown removes
// the registration, which in turn cleans up call state and broadcasts
// offline presence.
func (c *Client) readPump(h *Handler) {
	registered := false

	defer func() {
		if registered {
			c.hub.Unregister(c.userID, c)
		}
		c.Close()
		if h.metrics != nil {
			h.metrics.ConnectionClosed()
		}
		<-h.semaphore
	}()

	c.conn.SetReadLimit(constants.WebSocketMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("websocket closed",
					zap.String("user_id", c.userID.String()),
					zap.Error(err))
			}
			return
		}

		var frame realtime.Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			logger.Debug("invalid frame",
				zap.String("user_id", c.userID.String()),
				zap.Error(err))
			continue
		}

		if frame.Event == realtime.EventAddUser {
			if !registered {
				c.hub.Register(c.userID, c)
				registered = true
			}
			continue
		}

		if !registered {
			// Events before add-user have no presence context; drop them.
			continue
		}

		c.hub.Dispatch(context.Background(), c.userID, c, &frame)
	}
}

// writePump drains the outbound queue and keeps the connection alive
// with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.closed:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
