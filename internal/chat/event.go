package chat

import (
	"github.com/instrugate/api/internal/domain"
)

// EventType discriminates the JSON envelopes exchanged over the socket.
type EventType string

const (
	// EventMessage carries a user-authored chat message.
	EventMessage EventType = "message"
	// EventSystem carries a typed assignment/presence notice.
	EventSystem EventType = "system"
	// EventMarkRead asks the hub to mark the listed messages read.
	EventMarkRead EventType = "mark_read"
	// EventReadConfirmation reports which messages were marked read.
	EventReadConfirmation EventType = "read_confirmation"
)

// SystemEventType enumerates the assignment bookkeeping notices. These are
// explicit payloads; receivers never infer state from message text.
type SystemEventType string

const (
	// SystemAssigned announces that an engineer claimed a client.
	SystemAssigned SystemEventType = "assigned"
	// SystemUnassigned announces that a claim was released.
	SystemUnassigned SystemEventType = "unassigned"
	// SystemAvailable announces a client waiting in the pool.
	SystemAvailable SystemEventType = "available"
	// SystemClientDisconnected announces that a client dropped.
	SystemClientDisconnected SystemEventType = "client_disconnected"
	// SystemEngineerDisconnected announces that an engineer dropped.
	SystemEngineerDisconnected SystemEventType = "engineer_disconnected"
)

// SystemEvent is the typed payload of an EventSystem envelope.
type SystemEvent struct {
	Type     SystemEventType `json:"type"`
	Engineer string          `json:"engineer,omitempty"`
	Client   string          `json:"client,omitempty"`
}

// Envelope is the wire format for every socket frame.
type Envelope struct {
	Type       EventType             `json:"type"`
	ID         string                `json:"id,omitempty"`
	Message    string                `json:"message,omitempty"`
	Sender     string                `json:"sender,omitempty"`
	SenderType domain.ChatSenderType `json:"sender_type,omitempty"`
	Receiver   string                `json:"receiver,omitempty"`
	MessageIDs []string              `json:"message_ids,omitempty"`
	System     *SystemEvent          `json:"system,omitempty"`
}
