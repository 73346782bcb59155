// Package api exposes scan sessions over HTTP and streams live events
// to connected clients over a WebSocket.
package api

import "github.com/reconpilot/reconpilotd/internal/events"

// MessageType is the WebSocket envelope's discriminator.
type MessageType string

const (
	MsgSnapshot MessageType = "snapshot"
	MsgEvent    MessageType = "event"
	MsgError    MessageType = "error"
)

// WSMessage is the envelope every WebSocket frame is wrapped in.
type WSMessage struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload any         `json:"payload"`
}

// SnapshotPayload is sent once, when a client connects, carrying the
// full event history replay. It is not resent afterwards.
type SnapshotPayload struct {
	History []events.Event `json:"history"`
}

// EventPayload wraps a single live event for delta delivery.
type EventPayload struct {
	Event events.Event `json:"event"`
}
