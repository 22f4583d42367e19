package brackets

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Change-class events pushed to stage subscribers. The notifier carries no
// payload: on receipt clients re-fetch the resource that went stale.
const (
	EventConnected          = "connected"
	EventHeartbeat          = "heartbeat"
	EventMatchesUpdated     = "matches.updated"
	EventLeaderboardUpdated = "leaderboard.updated"
	EventStageUpdated       = "stage.updated"
	EventError              = "error"
)

type Event struct {
	Type    string    `json:"type"`
	StageID int       `json:"stage_id,omitempty"`
	At      time.Time `json:"at"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	heartbeatEvery = 25 * time.Second
	maxMessageSize = 512
)

// Client is one subscribed viewer of a single stage.
type Client struct {
	ID      string
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	StageID int

	closed bool
	mu     sync.Mutex
}

func NewClient(hub *Hub, conn *websocket.Conn, stageID int) *Client {
	return &Client{
		ID:      uuid.NewString(),
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		StageID: stageID,
	}
}

// Hub fans change-class events out to per-stage subscriber sets. Stages are
// independent broadcast domains; a slow subscriber in one stage never blocks
// a writer or another stage.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	rooms map[int]map[*Client]bool
	mu    sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[int]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.StageID]; !ok {
				h.rooms[client.StageID] = make(map[*Client]bool)
			}
			h.rooms[client.StageID][client] = true
			total := len(h.rooms[client.StageID])
			h.mu.Unlock()
			log.Printf("client %s subscribed to stage %d (%d subscribers)", client.ID, client.StageID, total)
			client.deliver(Event{Type: EventConnected, StageID: client.StageID, At: time.Now().UTC()})

		case client := <-h.Unregister:
			h.mu.Lock()
			if room, ok := h.rooms[client.StageID]; ok {
				if room[client] {
					delete(room, client)
					client.closeSend()
					if len(room) == 0 {
						delete(h.rooms, client.StageID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("client %s unsubscribed from stage %d", client.ID, client.StageID)
		}
	}
}

// Publish sends one change-class event to every subscriber of the stage.
// Full or closed client channels are skipped, never waited on.
func (h *Hub) Publish(stageID int, eventType string) {
	event := Event{Type: eventType, StageID: stageID, At: time.Now().UTC()}

	h.mu.RLock()
	room, ok := h.rooms[stageID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	clients := make([]*Client, 0, len(room))
	for c := range room {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.deliver(event)
	}
}

// SubscriberCount reports the current number of subscribers for a stage.
func (h *Hub) SubscriberCount(stageID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[stageID])
}

func (c *Client) deliver(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal %s event for stage %d: %v", event.Type, event.StageID, err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- payload:
	default:
		log.Printf("client %s send buffer full, dropping %s event", c.ID, event.Type)
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.Send)
		c.closed = true
	}
}

// ReadPump drains the connection until the client goes away. Inbound
// messages are ignored: the protocol is one-way.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("client %s read error: %v", c.ID, err)
			}
			break
		}
	}
}

// WritePump flushes queued events to the connection and keeps it alive with
// protocol pings plus application-level heartbeat events, so clients behind
// proxies that swallow pings can still detect a dead stream.
func (c *Client) WritePump() {
	ping := time.NewTicker(pingPeriod)
	heartbeat := time.NewTicker(heartbeatEvery)
	defer func() {
		ping.Stop()
		heartbeat.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("client %s write error: %v", c.ID, err)
				return
			}
		case <-heartbeat.C:
			c.deliver(Event{Type: EventHeartbeat, StageID: c.StageID, At: time.Now().UTC()})
		case <-ping.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
