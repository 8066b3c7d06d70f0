// Package websocket streams gate progress events of troubleshoot requests to
// subscribed clients.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/domain"
	"github.com/satriahrh/fixit/server/internal/pipeline"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send small control messages.
	maxMessageSize = 4 * 1024

	sendBufferSize = 64

	// Events kept per request for late subscribers
	backlogSize = 32

	defaultBacklogTTL = 10 * time.Minute
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WriteData is one frame queued for a client
type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// requestLog holds the recent events of one request
type requestLog struct {
	events  [][]byte
	updated time.Time
	done    bool
}

// Hub fans gate events out to the clients subscribed to each request
type Hub struct {
	// Registered clients.
	clients map[*Client]struct{}

	// Clients per request ID
	subscribers map[string]map[*Client]struct{}

	// Recent events per request ID
	backlog map[string]*requestLog

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Guards clients, subscribers, backlog and every send on a client channel
	mu sync.RWMutex

	backlogTTL time.Duration
	now        func() time.Time

	logger *zap.Logger
}

var _ pipeline.EventSink = (*Hub)(nil)

// NewHub creates a new progress hub. A non-positive backlogTTL uses the default.
func NewHub(backlogTTL time.Duration, logger *zap.Logger) *Hub {
	if backlogTTL <= 0 {
		backlogTTL = defaultBacklogTTL
		logger.Info("Using default progress backlog TTL", zap.Duration("backlogTTL", backlogTTL))
	}
	return &Hub{
		clients:     make(map[*Client]struct{}),
		subscribers: make(map[string]map[*Client]struct{}),
		backlog:     make(map[string]*requestLog),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		backlogTTL:  backlogTTL,
		now:         time.Now,
		logger:      logger,
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled, closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Progress client registered", zap.String("remoteAddr", client.remoteAddr))

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
			h.logger.Info("Progress client unregistered", zap.String("remoteAddr", client.remoteAddr))

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	if client.closed {
		return
	}
	client.closed = true
	delete(h.clients, client)
	for requestID, subs := range h.subscribers {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscribers, requestID)
		}
	}
	close(client.send)
}

// Publish records the event and forwards it to the request's subscribers
func (h *Hub) Publish(event domain.GateEventMessage) {
	if event.RequestID == "" {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to encode gate event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	log, ok := h.backlog[event.RequestID]
	if !ok {
		log = &requestLog{}
		h.backlog[event.RequestID] = log
	}
	log.events = append(log.events, payload)
	if len(log.events) > backlogSize {
		log.events = log.events[len(log.events)-backlogSize:]
	}
	log.updated = h.now()
	if event.Type == domain.EventAnalysisDone {
		log.done = true
	}

	for client := range h.subscribers[event.RequestID] {
		h.enqueueLocked(client, payload)
	}
}

// Subscribe makes client receive the events of requestID, replaying the
// events already published for it
func (h *Hub) Subscribe(client *Client, requestID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.closed {
		return
	}
	// registration is asynchronous; a subscribe may arrive first
	h.clients[client] = struct{}{}
	subs, ok := h.subscribers[requestID]
	if !ok {
		subs = make(map[*Client]struct{})
		h.subscribers[requestID] = subs
	}
	subs[client] = struct{}{}

	if log, ok := h.backlog[requestID]; ok {
		for _, payload := range log.events {
			h.enqueueLocked(client, payload)
		}
	}
	h.logger.Debug("Progress subscription added", zap.String("requestID", requestID))
}

// Unsubscribe stops delivering requestID events to client
func (h *Hub) Unsubscribe(client *Client, requestID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subscribers[requestID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscribers, requestID)
		}
	}
}

// Subscribers returns how many clients follow requestID
func (h *Hub) Subscribers(requestID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[requestID])
}

// PruneBacklog drops the events of finished requests idle for longer than the
// backlog TTL, and of unfinished ones idle for twice that. It returns how many
// requests were dropped.
func (h *Hub) PruneBacklog() int {
	now := h.now()
	finishedCutoff := now.Add(-h.backlogTTL)
	abandonedCutoff := now.Add(-2 * h.backlogTTL)

	h.mu.Lock()
	defer h.mu.Unlock()
	pruned := 0
	for requestID, log := range h.backlog {
		cutoff := abandonedCutoff
		if log.done {
			cutoff = finishedCutoff
		}
		if log.updated.Before(cutoff) {
			delete(h.backlog, requestID)
			pruned++
		}
	}
	return pruned
}

// send queues a message for one client
func (h *Hub) send(client *Client, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.enqueueLocked(client, payload)
}

// enqueueLocked never blocks; slow clients lose events
func (h *Hub) enqueueLocked(client *Client, payload []byte) {
	if client.closed {
		return
	}
	select {
	case client.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		h.logger.Warn("Progress client too slow, dropping event", zap.String("remoteAddr", client.remoteAddr))
	}
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	remoteAddr string

	// Set by the hub under its lock once send is closed
	closed bool

	validator *MessageValidator

	logger *zap.Logger
}

// HandleProgress upgrades the request and streams events of the request_id
// query parameter, if given. Further requests can be followed by sending
// subscribe messages.
func HandleProgress(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan WriteData, sendBufferSize),
		remoteAddr: c.RealIP(),
		validator:  NewMessageValidator(),
		logger:     logger,
	}

	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		conn.Close()
		return nil
	}

	if requestID := c.QueryParam("request_id"); requestID != "" {
		hub.Subscribe(client, requestID)
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn("Received unsupported message type", zap.Int("type", messageType))
			continue
		}
		c.processMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage handles a control message from the client
func (c *Client) processMessage(message []byte) {
	msg, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid progress message", zap.Error(err))
		c.reply(CreateErrorMessage("invalid_message", "Invalid message", err.Error()))
		return
	}

	switch m := msg.(type) {
	case *SubscribeMessage:
		if m.Type == MessageTypeUnsubscribe {
			c.hub.Unsubscribe(c, m.RequestID)
			return
		}
		c.reply(CreateSubscribedMessage(m.RequestID))
		c.hub.Subscribe(c, m.RequestID)
	case *PingMessage:
		c.reply(CreatePongMessage(m.Data))
	}
}

func (c *Client) reply(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode reply", zap.Error(err))
		return
	}
	c.hub.send(c, payload)
}
