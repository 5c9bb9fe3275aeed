package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"campus_parking/internal/domain"
	"campus_parking/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 5 * time.Second
	broadcastBacklog = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketManager is the hub for dashboard clients. Start's goroutine is the only owner of
// the client set.
type WebSocketManager struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	count      atomic.Int64
}

func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, broadcastBacklog),
		done:       make(chan struct{}),
	}
}

func (wsm *WebSocketManager) Start(ctx context.Context) {
	defer close(wsm.done)
	for {
		select {
		case <-ctx.Done():
			for client := range wsm.clients {
				_ = client.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				client.Close()
				delete(wsm.clients, client)
			}
			wsm.count.Store(0)
			return

		case client := <-wsm.register:
			wsm.clients[client] = true
			wsm.count.Store(int64(len(wsm.clients)))
			logging.Debugf(ctx, "WebSocket client connected. Total: %d", len(wsm.clients))

		case client := <-wsm.unregister:
			if _, ok := wsm.clients[client]; ok {
				delete(wsm.clients, client)
				client.Close()
			}
			wsm.count.Store(int64(len(wsm.clients)))
			logging.Debugf(ctx, "WebSocket client disconnected. Total: %d", len(wsm.clients))

		case message := <-wsm.broadcast:
			for client := range wsm.clients {
				_ = client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					logging.Warnf(ctx, "WebSocket: dropping client after write error: %v", err)
					client.Close()
					delete(wsm.clients, client)
				}
			}
			wsm.count.Store(int64(len(wsm.clients)))
		}
	}
}

// ClientCount is the number of connected clients.
func (wsm *WebSocketManager) ClientCount() int {
	return int(wsm.count.Load())
}

func (wsm *WebSocketManager) BroadcastOccupancy(n domain.OccupancyNotification) {
	message, err := json.Marshal(n)
	if err != nil {
		logging.Errorf(context.Background(), "WebSocket: marshal occupancy update: %v", err)
		return
	}

	select {
	case wsm.broadcast <- message:
	default:
		logging.Warnf(context.Background(), "WebSocket: broadcast channel is full, dropping update for lot %q", n.State.LotID)
	}
}

type WebSocketHandler struct {
	wsManager *WebSocketManager
}

func NewWebSocketHandler(wsManager *WebSocketManager) *WebSocketHandler {
	return &WebSocketHandler{wsManager: wsManager}
}

// GET /ws
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warnf(c.Request.Context(), "WebSocket: upgrade failed: %v", err)
		return
	}

	select {
	case h.wsManager.register <- conn:
	case <-h.wsManager.done:
		conn.Close()
		return
	}

	// Clients never send; reading only detects the close.
	go func() {
		defer func() {
			select {
			case h.wsManager.unregister <- conn:
			case <-h.wsManager.done:
			}
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logging.Warnf(context.Background(), "WebSocket: read error: %v", err)
				}
				return
			}
		}
	}()
}
