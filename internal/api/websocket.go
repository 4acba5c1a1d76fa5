package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-appliances/internal/entity"
	"github.com/nerrad567/gray-logic-appliances/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-appliances/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound queue length.
	wsSendBufferSize = 256
)

// WSMessage is the envelope for every frame in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe.
//
// Platforms and Entities narrow entity events. Entities holds keys in
// "platform/unique_id" form. With both empty, every entity matches; otherwise
// an event matches when its platform or its key is listed.
type WSSubscribePayload struct {
	Channels  []string `json:"channels"`
	Platforms []string `json:"platforms,omitempty"`
	Entities  []string `json:"entities,omitempty"`
}

// subscription is a client's current interest set.
type subscription struct {
	channels  map[string]struct{}
	platforms map[entity.Platform]struct{}
	entities  map[string]struct{}
}

func newSubscription() subscription {
	return subscription{
		channels:  make(map[string]struct{}),
		platforms: make(map[entity.Platform]struct{}),
		entities:  make(map[string]struct{}),
	}
}

// matches reports whether an event on channel about key (nil for events not
// tied to an entity) should be delivered.
func (s subscription) matches(channel string, key *entity.Key) bool {
	if _, ok := s.channels[channel]; !ok {
		return false
	}
	if key == nil || (len(s.platforms) == 0 && len(s.entities) == 0) {
		return true
	}
	if _, ok := s.platforms[key.Platform]; ok {
		return true
	}
	_, ok := s.entities[key.String()]
	return ok
}

// Hub tracks connected clients and fans events out to them.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex

	// current returns the entity views replayed to a client when it
	// subscribes to channelStateChanged.
	current func() []EntityView
}

// WSClient is one connected socket.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu  sync.RWMutex
	sub subscription
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// CORS middleware owns origin policy.
		return true
	},
}

// NewHub creates a hub with no clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// SetCurrentState installs the source of entity views sent to new
// state subscribers. Call before Run.
func (h *Hub) SetCurrentState(fn func() []EntityView) {
	h.current = fn
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client. Only the caller that actually removed it
// closes the send channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// Broadcast sends an event that is not tied to an entity to every client
// subscribed to channel.
func (h *Hub) Broadcast(channel string, payload any) {
	h.publish(channel, nil, payload)
}

// BroadcastEntity sends an entity event to clients whose subscription
// covers channel and key.
func (h *Hub) BroadcastEntity(channel string, key entity.Key, payload any) {
	h.publish(channel, &key, payload)
}

func (h *Hub) publish(channel string, key *entity.Key, payload any) {
	data, err := encodeEvent(channel, payload)
	if err != nil {
		h.logger.Error("failed to marshal websocket event", "channel", channel, "error", err)
		return
	}

	// The hub lock is released before any client lock is taken.
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if c.wants(channel, key) {
			c.trySend(data)
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debug("websocket event sent", "channel", channel, "recipients", sent)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
		delete(h.clients, c)
	}
}

func encodeEvent(channel string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
}

// handleWebSocket upgrades the connection and starts the client pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
		sub:  newSubscription(),
	}
	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(deadline)) }

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	extend() //nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Application messages count as liveness too.
		extend() //nolint:errcheck // a failed deadline surfaces as a read error
		c.handleMessage(data)
	}
}

func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write error caught below
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write error caught below
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.handleSubscribe(msg)
	case WSTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// decodeSubscribe re-decodes the generic payload into WSSubscribePayload and
// checks any platform names.
func decodeSubscribe(msg WSMessage) (WSSubscribePayload, string) {
	var sub WSSubscribePayload
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return sub, "invalid payload"
	}
	if err := json.Unmarshal(raw, &sub); err != nil {
		return sub, "invalid " + msg.Type + " payload"
	}
	for _, p := range sub.Platforms {
		if !entity.Platform(p).Valid() {
			return sub, "unknown platform: " + p
		}
	}
	return sub, ""
}

// handleSubscribe widens the subscription, acknowledges it, and replays the
// current state of matching entities when channelStateChanged is included.
func (c *WSClient) handleSubscribe(msg WSMessage) {
	sub, problem := decodeSubscribe(msg)
	if problem != "" {
		c.sendError(msg.ID, problem)
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		c.sub.channels[ch] = struct{}{}
	}
	for _, p := range sub.Platforms {
		c.sub.platforms[entity.Platform(p)] = struct{}{}
	}
	for _, k := range sub.Entities {
		c.sub.entities[k] = struct{}{}
	}
	c.mu.Unlock()

	c.hub.logger.Debug("websocket client subscribed",
		"channels", sub.Channels,
		"platforms", sub.Platforms,
		"entities", sub.Entities,
	)
	c.reply(msg.ID, WSTypeResponse, map[string]any{"subscribed": sub.Channels})

	if c.hub.current == nil || !slices.Contains(sub.Channels, channelStateChanged) {
		return
	}
	for _, view := range c.hub.current() {
		key := view.Key()
		if !c.wants(channelStateChanged, &key) {
			continue
		}
		if data, err := encodeEvent(channelStateChanged, view); err == nil {
			c.trySend(data)
		}
	}
}

// handleUnsubscribe drops channels and entity filters.
func (c *WSClient) handleUnsubscribe(msg WSMessage) {
	sub, problem := decodeSubscribe(msg)
	if problem != "" {
		c.sendError(msg.ID, problem)
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		delete(c.sub.channels, ch)
	}
	for _, p := range sub.Platforms {
		delete(c.sub.platforms, entity.Platform(p))
	}
	for _, k := range sub.Entities {
		delete(c.sub.entities, k)
	}
	c.mu.Unlock()

	c.reply(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": sub.Channels})
}

func (c *WSClient) wants(channel string, key *entity.Key) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sub.matches(channel, key)
}

// trySend queues data without blocking. Frames for a slow client are
// dropped, as are sends racing a disconnect.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on a channel closed by Unregister
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}
