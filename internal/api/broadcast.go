package api

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/reconpilot/reconpilotd/internal/events"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, 64)}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans out live events to connected WebSocket clients and
// replays recent history to new ones. A slow client is disconnected
// rather than allowed to block the others.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	maxConns int
	bus      *events.Bus
	seq      atomic.Uint64
}

// NewBroadcaster creates a Broadcaster that subscribes to every event
// type on bus and relays each one as it's published.
func NewBroadcaster(bus *events.Bus, maxConns int) *Broadcaster {
	b := &Broadcaster{
		clients:  make(map[*client]bool),
		maxConns: maxConns,
		bus:      bus,
	}
	for _, typ := range allEventTypes {
		bus.Subscribe(typ, b.onEvent)
	}
	return b
}

var allEventTypes = []events.Type{
	events.ScanStarted, events.ScanCompleted,
	events.TaskStarted, events.TaskProgress, events.TaskCompleted, events.TaskFailed,
	events.AssetDiscovered, events.FindingDiscovered,
	events.ScanPaused, events.ScanResumed, events.LogMessage,
}

func (b *Broadcaster) onEvent(ev events.Event) {
	b.broadcast(WSMessage{Type: MsgEvent, Payload: EventPayload{Event: ev}})
}

// AddClient registers conn, sends it a history snapshot, and returns
// the handle used to RemoveClient later. Returns false if the
// connection cap has been reached, in which case conn is closed.
func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, bool) {
	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many connections"))
		conn.Close()
		return nil, false
	}
	c := newClient(conn)
	b.clients[c] = true
	b.mu.Unlock()

	b.sendSnapshot(c)
	return c, true
}

// RemoveClient unregisters a client previously returned by AddClient.
func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

func (b *Broadcaster) sendSnapshot(c *client) {
	var history []events.Event
	for _, typ := range allEventTypes {
		history = append(history, b.bus.History(typ, 0)...)
	}
	msg := WSMessage{Type: MsgSnapshot, Seq: b.seq.Add(1), Payload: SnapshotPayload{History: history}}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("api: snapshot marshal error: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	msg.Seq = b.seq.Add(1)
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("api: broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			log.Printf("api: client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}

// ClientCount reports how many WebSocket clients are currently connected.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
