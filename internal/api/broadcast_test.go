package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/reconpilot/reconpilotd/internal/events"
)

func newTestBroadcaster(bus *events.Bus, maxConns int) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*client]bool),
		maxConns: maxConns,
		bus:      bus,
	}
}

func TestOnEventBroadcastsToClients(t *testing.T) {
	bus := events.New()
	b := newTestBroadcaster(bus, 0)

	c := &client{send: make(chan []byte, 4)}
	b.clients[c] = true

	b.onEvent(events.Event{Type: events.TaskStarted, Source: "orchestrator"})

	select {
	case data := <-c.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal broadcast message: %v", err)
		}
		if msg.Type != MsgEvent {
			t.Errorf("msg.Type = %v, want %v", msg.Type, MsgEvent)
		}
	case <-time.After(time.Second):
		t.Fatal("client did not receive broadcast message")
	}
}

func TestBroadcastDisconnectsSlowClient(t *testing.T) {
	bus := events.New()
	b := newTestBroadcaster(bus, 0)

	slow := &client{send: make(chan []byte)} // unbuffered, never drained
	b.clients[slow] = true

	b.broadcast(WSMessage{Type: MsgEvent})

	if _, ok := b.clients[slow]; ok {
		t.Error("slow client was not disconnected after a blocked send")
	}
}

func TestSequenceNumberIncrementsPerBroadcast(t *testing.T) {
	bus := events.New()
	b := newTestBroadcaster(bus, 0)

	var last uint64
	for i := 0; i < 5; i++ {
		b.broadcast(WSMessage{Type: MsgEvent})
		cur := b.seq.Load()
		if cur <= last {
			t.Errorf("sequence number did not increase: last=%d cur=%d", last, cur)
		}
		last = cur
	}
}

func TestSendSnapshotAggregatesAllEventTypes(t *testing.T) {
	bus := events.New()
	bus.Publish(events.Event{Type: events.ScanStarted})
	bus.Publish(events.Event{Type: events.TaskStarted})
	bus.Publish(events.Event{Type: events.FindingDiscovered})

	b := newTestBroadcaster(bus, 0)
	c := &client{send: make(chan []byte, 1)}

	b.sendSnapshot(c)

	select {
	case data := <-c.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal snapshot: %v", err)
		}
		if msg.Type != MsgSnapshot {
			t.Errorf("msg.Type = %v, want %v", msg.Type, MsgSnapshot)
		}
	default:
		t.Fatal("sendSnapshot did not enqueue a message")
	}
}

func TestClientCount(t *testing.T) {
	bus := events.New()
	b := newTestBroadcaster(bus, 0)
	if b.ClientCount() != 0 {
		t.Fatalf("ClientCount() = %d, want 0", b.ClientCount())
	}

	c := &client{send: make(chan []byte, 1)}
	b.clients[c] = true
	if b.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", b.ClientCount())
	}

	b.RemoveClient(c)
	if b.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0 after RemoveClient", b.ClientCount())
	}
}
