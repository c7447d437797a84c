package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/groceries-api/internal/model"
)

// FeedPath is the route of the change feed WebSocket.
const FeedPath = GroceriesPath + "/feed"

// WebSocket configuration constants.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendQueueSize  = 16
)

// feedClient is a single WebSocket subscriber.
type feedClient struct {
	send     chan model.ChangeEvent
	cancel   context.CancelFunc
	dropOnce sync.Once
}

// FeedHandler streams grocery change events to WebSocket clients.
// It implements Notifier.
type FeedHandler struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger
	mu       sync.RWMutex
	clients  map[*websocket.Conn]*feedClient
}

// NewFeedHandler creates a new FeedHandler instance.
func NewFeedHandler(logger *zap.Logger) *FeedHandler {
	return &FeedHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		logger:  logger,
		clients: make(map[*websocket.Conn]*feedClient),
	}
}

// RegisterRoutes registers the feed route with the router.
func (h *FeedHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(FeedPath, h.HandleWebSocket).Methods(http.MethodGet)
}

// Publish queues event for every connected client. Clients whose queue is
// full are disconnected.
func (h *FeedHandler) Publish(event model.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn, client := range h.clients {
		select {
		case client.send <- event:
		default:
			h.drop(conn, client, "send queue full")
		}
	}
}

// drop disconnects a client without waiting for its writer. Closing the
// connection unblocks both pumps, and readPump then removes the client.
func (h *FeedHandler) drop(conn *websocket.Conn, client *feedClient, reason string) {
	client.dropOnce.Do(func() {
		h.logger.Warn("dropping feed client",
			zap.String("reason", reason),
			zap.String("remote_addr", conn.RemoteAddr().String()))
		client.cancel()
		if err := conn.Close(); err != nil {
			h.logger.Debug("error closing connection", zap.Error(err))
		}
	})
}

// ClientCount returns the number of connected clients.
func (h *FeedHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// HandleWebSocket handles WebSocket connection requests.
//
//nolint:contextcheck // WebSocket connections outlive the HTTP request context
func (h *FeedHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	// The request context ends when this handler returns.
	ctx, cancel := context.WithCancel(context.Background())
	client := &feedClient{
		send:   make(chan model.ChangeEvent, sendQueueSize),
		cancel: cancel,
	}

	h.mu.Lock()
	h.clients[conn] = client
	h.mu.Unlock()

	h.logger.Info("feed client connected", zap.String("remote_addr", conn.RemoteAddr().String()))

	go h.writePump(ctx, conn, client)
	go h.readPump(ctx, conn, cancel)
}

// readPump drains incoming frames so that pong and close frames are handled.
func (h *FeedHandler) readPump(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	defer func() {
		cancel()
		h.removeClient(conn)
		if err := conn.Close(); err != nil {
			h.logger.Debug("error closing connection", zap.Error(err))
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.logger.Error("failed to set read deadline", zap.Error(err))
		return
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Warn("websocket read error", zap.Error(err))
				}
				return
			}
			h.logger.Debug("received message", zap.ByteString("message", message))
		}
	}
}

// writePump is the only writer on conn. It forwards queued events and keeps
// the connection alive with pings.
func (h *FeedHandler) writePump(ctx context.Context, conn *websocket.Conn, client *feedClient) {
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.sendCloseMessage(conn)
			if err := conn.Close(); err != nil {
				h.logger.Debug("error closing connection", zap.Error(err))
			}
			return
		case event := <-client.send:
			if err := h.sendEvent(conn, event); err != nil {
				h.drop(conn, client, "send failed: "+err.Error())
				return
			}
		case <-pingTicker.C:
			if err := h.sendPing(conn); err != nil {
				h.drop(conn, client, "ping failed: "+err.Error())
				return
			}
		}
	}
}

// sendEvent writes a change event as a JSON text frame.
func (h *FeedHandler) sendEvent(conn *websocket.Conn, event model.ChangeEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}

// sendPing sends a ping message to the connection.
func (h *FeedHandler) sendPing(conn *websocket.Conn) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.PingMessage, nil)
}

// sendCloseMessage sends a close message to the connection.
func (h *FeedHandler) sendCloseMessage(conn *websocket.Conn) {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		h.logger.Debug("failed to set write deadline for close", zap.Error(err))
		return
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down")
	if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		h.logger.Debug("failed to send close message", zap.Error(err))
	}
}

// removeClient removes a client from the clients map.
func (h *FeedHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, exists := h.clients[conn]; exists {
		client.cancel()
		delete(h.clients, conn)
		h.logger.Info("feed client disconnected", zap.String("remote_addr", conn.RemoteAddr().String()))
	}
}

// CloseAllConnections closes all active WebSocket connections.
func (h *FeedHandler) CloseAllConnections() {
	h.mu.Lock()
	clients := make(map[*websocket.Conn]*feedClient, len(h.clients))
	for conn, client := range h.clients {
		clients[conn] = client
	}
	h.mu.Unlock()

	// Cancelling makes each writePump send a close frame.
	for _, client := range clients {
		client.cancel()
	}

	time.Sleep(100 * time.Millisecond)

	h.mu.Lock()
	for conn := range h.clients {
		if err := conn.Close(); err != nil {
			h.logger.Debug("error closing connection", zap.Error(err))
		}
		delete(h.clients, conn)
	}
	h.mu.Unlock()

	h.logger.Info("all feed connections closed")
}
