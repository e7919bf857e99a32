package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/instrugate/api/internal/domain"
)

var (
	// ErrHubInvalidInput indicates a malformed inbound frame.
	ErrHubInvalidInput = errors.New("chat: invalid input")
	// ErrNotConnected indicates an operation for a user without a registered socket.
	ErrNotConnected = errors.New("chat: user is not connected")
	// ErrReceiverRequired indicates an engineer message without a target client.
	ErrReceiverRequired = errors.New("chat: receiver is required")
)

// Conn is the minimal write surface the hub needs from a socket.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// MessageStore persists chat traffic per room. Rooms are keyed by the client
// username the conversation belongs to.
type MessageStore interface {
	SaveMessage(ctx context.Context, message domain.ChatMessage) error
	MarkRead(ctx context.Context, room string, messageIDs []string) error
	ListRoom(ctx context.Context, room string, limit int) ([]domain.ChatMessage, error)
}

// HubDeps bundles the dependencies required by the hub.
type HubDeps struct {
	Messages MessageStore

	// HistoryLimit caps room history reads when the caller does not ask for
	// a smaller window. Defaults to 50.
	HistoryLimit int

	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, msg string, fields map[string]any)
}

// Hub routes support-chat traffic: one socket per user, a shared engineer
// pool for unclaimed clients, and direct delivery once a claim exists.
type Hub struct {
	messages MessageStore

	historyLimit int

	clock     func() time.Time
	idGen     func() string
	logger    func(ctx context.Context, msg string, fields map[string]any)
	sanitizer *bluemonday.Policy

	mu     sync.Mutex
	conns  map[string]*subscriber
	claims map[string]string
}

type subscriber struct {
	username string
	role     string

	writeMu sync.Mutex
	conn    Conn
}

func (s *subscriber) send(env Envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(env)
}

// NewHub validates dependencies and constructs a Hub.
func NewHub(deps HubDeps) (*Hub, error) {
	if deps.Messages == nil {
		return nil, errors.New("chat: message store is required")
	}

	hub := &Hub{
		messages:     deps.Messages,
		historyLimit: deps.HistoryLimit,
		clock:        deps.Clock,
		idGen:        deps.IDGenerator,
		logger:       deps.Logger,
		sanitizer:    bluemonday.StrictPolicy(),
		conns:        make(map[string]*subscriber),
		claims:       make(map[string]string),
	}
	if hub.historyLimit <= 0 {
		hub.historyLimit = 50
	}
	if hub.clock == nil {
		hub.clock = time.Now
	}
	if hub.idGen == nil {
		hub.idGen = func() string { return ulid.Make().String() }
	}
	if hub.logger == nil {
		hub.logger = func(context.Context, string, map[string]any) {}
	}
	return hub, nil
}

// Connect registers the user's socket. A previous socket for the same user is
// closed and replaced. Engineers receive a bootstrap of current pool state;
// client arrivals are announced to the pool.
func (h *Hub) Connect(ctx context.Context, username, role string, conn Conn) error {
	username = strings.TrimSpace(username)
	if username == "" || conn == nil {
		return ErrHubInvalidInput
	}

	sub := &subscriber{username: username, role: role, conn: conn}

	h.mu.Lock()
	if existing, ok := h.conns[username]; ok {
		_ = existing.conn.Close()
	}
	h.conns[username] = sub

	var bootstrap []Envelope
	if role == string(domain.RoleProposalEngineer) {
		for client, engineer := range h.claims {
			bootstrap = append(bootstrap, systemEnvelope(SystemAssigned, engineer, client))
		}
		for user, other := range h.conns {
			if other.role != string(domain.RoleClient) {
				continue
			}
			if _, claimed := h.claims[user]; !claimed {
				bootstrap = append(bootstrap, systemEnvelope(SystemAvailable, "", user))
			}
		}
	}
	h.mu.Unlock()

	for _, env := range bootstrap {
		if err := sub.send(env); err != nil {
			h.logger(ctx, "chat bootstrap write failed", map[string]any{"username": username, "error": err.Error()})
			break
		}
	}

	if role == string(domain.RoleClient) {
		h.mu.Lock()
		engineer, claimed := h.claims[username]
		h.mu.Unlock()
		if claimed {
			h.broadcastToEngineers(ctx, systemEnvelope(SystemAssigned, engineer, username))
		} else {
			h.broadcastToEngineers(ctx, systemEnvelope(SystemAvailable, "", username))
		}
	}

	h.logger(ctx, "chat connected", map[string]any{"username": username, "role": role})
	return nil
}

// Disconnect unregisters the user's socket and announces the departure.
// Claims held by a departing engineer are released; a departing client's
// claim is dropped so the next visit starts unassigned. The conn must be
// the one registered for the user: after a reconnect replaced the socket,
// the stale handler's deferred Disconnect is a no-op.
func (h *Hub) Disconnect(ctx context.Context, username string, conn Conn) {
	h.mu.Lock()
	sub, ok := h.conns[username]
	if !ok || sub.conn != conn {
		h.mu.Unlock()
		return
	}
	delete(h.conns, username)

	var notices []Envelope
	switch sub.role {
	case string(domain.RoleClient):
		if engineer, claimed := h.claims[username]; claimed {
			delete(h.claims, username)
			notices = append(notices, systemEnvelope(SystemUnassigned, engineer, username))
		}
		notices = append(notices, systemEnvelope(SystemClientDisconnected, "", username))
	case string(domain.RoleProposalEngineer):
		notices = append(notices, systemEnvelope(SystemEngineerDisconnected, username, ""))
		for client, engineer := range h.claims {
			if engineer != username {
				continue
			}
			delete(h.claims, client)
			notices = append(notices, systemEnvelope(SystemUnassigned, username, client))
			if _, online := h.conns[client]; online {
				notices = append(notices, systemEnvelope(SystemAvailable, "", client))
			}
		}
	}
	h.mu.Unlock()

	_ = sub.conn.Close()
	for _, env := range notices {
		h.broadcastToEngineers(ctx, env)
	}
	h.logger(ctx, "chat disconnected", map[string]any{"username": username})
}

// Inbound applies one frame received from the user's socket.
func (h *Hub) Inbound(ctx context.Context, sender string, env Envelope) error {
	h.mu.Lock()
	sub, ok := h.conns[sender]
	h.mu.Unlock()
	if !ok {
		return ErrNotConnected
	}

	switch env.Type {
	case EventMessage:
		return h.handleMessage(ctx, sub, env)
	case EventMarkRead:
		return h.handleMarkRead(ctx, sub, env)
	default:
		return ErrHubInvalidInput
	}
}

// History returns the most recent messages of the client's room.
func (h *Hub) History(ctx context.Context, room string, limit int) ([]domain.ChatMessage, error) {
	room = strings.TrimSpace(room)
	if room == "" {
		return nil, ErrHubInvalidInput
	}
	if limit <= 0 || limit > h.historyLimit {
		limit = h.historyLimit
	}
	return h.messages.ListRoom(ctx, room, limit)
}

func (h *Hub) handleMessage(ctx context.Context, sub *subscriber, env Envelope) error {
	body := h.sanitizer.Sanitize(strings.TrimSpace(env.Message))
	if body == "" {
		return ErrHubInvalidInput
	}

	switch sub.role {
	case string(domain.RoleClient):
		return h.clientMessage(ctx, sub.username, body)
	case string(domain.RoleProposalEngineer):
		receiver := strings.TrimSpace(env.Receiver)
		if receiver == "" {
			return ErrReceiverRequired
		}
		return h.engineerMessage(ctx, sub.username, receiver, body)
	default:
		return ErrHubInvalidInput
	}
}

// clientMessage persists under the client's own room and delivers to the
// claiming engineer, or to the whole pool while unclaimed.
func (h *Hub) clientMessage(ctx context.Context, client, body string) error {
	message := domain.ChatMessage{
		ID:         h.idGen(),
		Room:       client,
		Sender:     client,
		SenderType: domain.ChatSenderClient,
		Body:       body,
		CreatedAt:  h.clock().UTC(),
	}
	if err := h.messages.SaveMessage(ctx, message); err != nil {
		return err
	}

	out := Envelope{
		Type:       EventMessage,
		ID:         message.ID,
		Message:    body,
		Sender:     client,
		SenderType: domain.ChatSenderClient,
	}

	h.mu.Lock()
	engineer, claimed := h.claims[client]
	var target *subscriber
	if claimed {
		target = h.conns[engineer]
	}
	h.mu.Unlock()

	if claimed && target != nil {
		if err := target.send(out); err != nil {
			h.dropConn(ctx, target)
		}
		return nil
	}
	h.broadcastToEngineers(ctx, out)
	return nil
}

// engineerMessage claims the client when not already claimed by the sender
// and delivers directly. A claim change is announced to the pool so other
// consoles drop the client.
func (h *Hub) engineerMessage(ctx context.Context, engineer, client, body string) error {
	message := domain.ChatMessage{
		ID:         h.idGen(),
		Room:       client,
		Sender:     engineer,
		SenderType: domain.ChatSenderAgent,
		Receiver:   client,
		Body:       body,
		CreatedAt:  h.clock().UTC(),
	}
	if err := h.messages.SaveMessage(ctx, message); err != nil {
		return err
	}

	h.mu.Lock()
	previous, claimed := h.claims[client]
	h.claims[client] = engineer
	target := h.conns[client]
	h.mu.Unlock()

	if !claimed || previous != engineer {
		h.broadcastToEngineers(ctx, systemEnvelope(SystemAssigned, engineer, client))
	}

	if target != nil {
		out := Envelope{
			Type:       EventMessage,
			ID:         message.ID,
			Message:    body,
			Sender:     engineer,
			SenderType: domain.ChatSenderAgent,
			Receiver:   client,
		}
		if err := target.send(out); err != nil {
			h.dropConn(ctx, target)
		}
	}
	return nil
}

// handleMarkRead flips the read flag on the listed messages and confirms to
// both parties of the room.
func (h *Hub) handleMarkRead(ctx context.Context, sub *subscriber, env Envelope) error {
	if len(env.MessageIDs) == 0 {
		return ErrHubInvalidInput
	}

	room := sub.username
	if sub.role == string(domain.RoleProposalEngineer) {
		room = strings.TrimSpace(env.Receiver)
		if room == "" {
			return ErrReceiverRequired
		}
	}

	if err := h.messages.MarkRead(ctx, room, env.MessageIDs); err != nil {
		return err
	}

	confirmation := Envelope{
		Type:       EventReadConfirmation,
		Sender:     sub.username,
		Receiver:   room,
		MessageIDs: env.MessageIDs,
	}
	_ = sub.send(confirmation)

	h.mu.Lock()
	var counterpart *subscriber
	if sub.role == string(domain.RoleProposalEngineer) {
		counterpart = h.conns[room]
	} else if engineer, claimed := h.claims[room]; claimed {
		counterpart = h.conns[engineer]
	}
	h.mu.Unlock()

	if counterpart != nil {
		if err := counterpart.send(confirmation); err != nil {
			h.dropConn(ctx, counterpart)
		}
	}
	return nil
}

func (h *Hub) broadcastToEngineers(ctx context.Context, env Envelope) {
	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.conns))
	for _, sub := range h.conns {
		if sub.role == string(domain.RoleProposalEngineer) {
			targets = append(targets, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range targets {
		if err := sub.send(env); err != nil {
			h.dropConn(ctx, sub)
		}
	}
}

func (h *Hub) dropConn(ctx context.Context, sub *subscriber) {
	h.logger(ctx, "chat write failed, dropping connection", map[string]any{"username": sub.username})
	h.Disconnect(ctx, sub.username, sub.conn)
}

func systemEnvelope(eventType SystemEventType, engineer, client string) Envelope {
	return Envelope{
		Type:   EventSystem,
		System: &SystemEvent{Type: eventType, Engineer: engineer, Client: client},
	}
}
