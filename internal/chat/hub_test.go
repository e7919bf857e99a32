package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/instrugate/api/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []Envelope
	closed bool
	fail   bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("write failed")
	}
	env, ok := v.(Envelope)
	if !ok {
		return errors.New("unexpected frame type")
	}
	c.frames = append(c.frames, env)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) systemEvents() []SystemEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []SystemEvent
	for _, env := range c.frames {
		if env.Type == EventSystem && env.System != nil {
			out = append(out, *env.System)
		}
	}
	return out
}

func (c *fakeConn) messages() []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Envelope
	for _, env := range c.frames {
		if env.Type == EventMessage {
			out = append(out, env)
		}
	}
	return out
}

type fakeMessageStore struct {
	mu        sync.Mutex
	saved     []domain.ChatMessage
	markRead  map[string][]string
	saveErr   error
	lastLimit int
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{markRead: make(map[string][]string)}
}

func (s *fakeMessageStore) SaveMessage(_ context.Context, message domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, message)
	return nil
}

func (s *fakeMessageStore) MarkRead(_ context.Context, room string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markRead[room] = append(s.markRead[room], ids...)
	return nil
}

func (s *fakeMessageStore) ListRoom(_ context.Context, room string, limit int) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit = limit
	var out []domain.ChatMessage
	for _, msg := range s.saved {
		if msg.Room == room {
			out = append(out, msg)
		}
	}
	return out, nil
}

func newTestHub(t *testing.T) (*Hub, *fakeMessageStore) {
	t.Helper()
	store := newFakeMessageStore()
	seq := 0
	hub, err := NewHub(HubDeps{
		Messages:    store,
		Clock:       func() time.Time { return time.Date(2026, time.August, 10, 12, 0, 0, 0, time.UTC) },
		IDGenerator: func() string { seq++; return fmt.Sprintf("msg-%d", seq) },
	})
	if err != nil {
		t.Fatalf("NewHub returned error: %v", err)
	}
	return hub, store
}

func connect(t *testing.T, hub *Hub, username, role string) *fakeConn {
	t.Helper()
	conn := &fakeConn{}
	if err := hub.Connect(context.Background(), username, role, conn); err != nil {
		t.Fatalf("Connect(%s) returned error: %v", username, err)
	}
	return conn
}

func TestClientMessageBroadcastsToPoolWhileUnclaimed(t *testing.T) {
	hub, store := newTestHub(t)
	eng1 := connect(t, hub, "eng1", string(domain.RoleProposalEngineer))
	eng2 := connect(t, hub, "eng2", string(domain.RoleProposalEngineer))
	connect(t, hub, "clientY", string(domain.RoleClient))

	if err := hub.Inbound(context.Background(), "clientY", Envelope{Type: EventMessage, Message: "need a quote"}); err != nil {
		t.Fatalf("Inbound returned error: %v", err)
	}

	if got := len(eng1.messages()); got != 1 {
		t.Fatalf("expected broadcast to eng1, got %d messages", got)
	}
	if got := len(eng2.messages()); got != 1 {
		t.Fatalf("expected broadcast to eng2, got %d messages", got)
	}
	if len(store.saved) != 1 || store.saved[0].Room != "clientY" {
		t.Fatalf("expected message persisted under client room, got %+v", store.saved)
	}
}

func TestEngineerReplyClaimsClientAndAnnounces(t *testing.T) {
	hub, _ := newTestHub(t)
	connect(t, hub, "eng1", string(domain.RoleProposalEngineer))
	eng2 := connect(t, hub, "eng2", string(domain.RoleProposalEngineer))
	client := connect(t, hub, "clientY", string(domain.RoleClient))

	if err := hub.Inbound(context.Background(), "eng1", Envelope{Type: EventMessage, Message: "hello", Receiver: "clientY"}); err != nil {
		t.Fatalf("Inbound returned error: %v", err)
	}

	if got := len(client.messages()); got != 1 {
		t.Fatalf("expected direct delivery to client, got %d", got)
	}

	var sawAssignment bool
	for _, event := range eng2.systemEvents() {
		if event.Type == SystemAssigned && event.Engineer == "eng1" && event.Client == "clientY" {
			sawAssignment = true
		}
	}
	if !sawAssignment {
		t.Fatalf("expected assignment broadcast to other engineers, got %+v", eng2.systemEvents())
	}
}

func TestClaimedClientMessagesGoDirectToEngineer(t *testing.T) {
	hub, _ := newTestHub(t)
	eng1 := connect(t, hub, "eng1", string(domain.RoleProposalEngineer))
	eng2 := connect(t, hub, "eng2", string(domain.RoleProposalEngineer))
	connect(t, hub, "clientY", string(domain.RoleClient))

	if err := hub.Inbound(context.Background(), "eng1", Envelope{Type: EventMessage, Message: "hello", Receiver: "clientY"}); err != nil {
		t.Fatalf("Inbound returned error: %v", err)
	}
	if err := hub.Inbound(context.Background(), "clientY", Envelope{Type: EventMessage, Message: "thanks"}); err != nil {
		t.Fatalf("Inbound returned error: %v", err)
	}

	if got := len(eng1.messages()); got != 1 {
		t.Fatalf("expected claimed engineer to receive the reply, got %d", got)
	}
	if got := len(eng2.messages()); got != 0 {
		t.Fatalf("expected no pool broadcast after claim, got %d", got)
	}
}

func TestEngineerMessageRequiresReceiver(t *testing.T) {
	hub, _ := newTestHub(t)
	connect(t, hub, "eng1", string(domain.RoleProposalEngineer))

	err := hub.Inbound(context.Background(), "eng1", Envelope{Type: EventMessage, Message: "hello"})
	if !errors.Is(err, ErrReceiverRequired) {
		t.Fatalf("expected ErrReceiverRequired, got %v", err)
	}
}

func TestMessageBodiesAreSanitized(t *testing.T) {
	hub, store := newTestHub(t)
	connect(t, hub, "eng1", string(domain.RoleProposalEngineer))
	connect(t, hub, "clientY", string(domain.RoleClient))

	if err := hub.Inbound(context.Background(), "clientY", Envelope{Type: EventMessage, Message: "<script>alert(1)</script>hi"}); err != nil {
		t.Fatalf("Inbound returned error: %v", err)
	}
	if len(store.saved) != 1 || store.saved[0].Body != "hi" {
		t.Fatalf("expected sanitized body, got %+v", store.saved)
	}
}

func TestClientDisconnectReleasesClaimAndNotifiesPool(t *testing.T) {
	hub, _ := newTestHub(t)
	eng1 := connect(t, hub, "eng1", string(domain.RoleProposalEngineer))
	client := connect(t, hub, "clientY", string(domain.RoleClient))

	if err := hub.Inbound(context.Background(), "eng1", Envelope{Type: EventMessage, Message: "hello", Receiver: "clientY"}); err != nil {
		t.Fatalf("Inbound returned error: %v", err)
	}

	hub.Disconnect(context.Background(), "clientY", client)

	var sawDisconnect, sawUnassigned bool
	for _, event := range eng1.systemEvents() {
		if event.Type == SystemClientDisconnected && event.Client == "clientY" {
			sawDisconnect = true
		}
		if event.Type == SystemUnassigned && event.Client == "clientY" {
			sawUnassigned = true
		}
	}
	if !sawDisconnect || !sawUnassigned {
		t.Fatalf("expected disconnect and unassigned notices, got %+v", eng1.systemEvents())
	}
}

func TestEngineerDisconnectFreesClients(t *testing.T) {
	hub, _ := newTestHub(t)
	eng1 := connect(t, hub, "eng1", string(domain.RoleProposalEngineer))
	eng2 := connect(t, hub, "eng2", string(domain.RoleProposalEngineer))
	connect(t, hub, "clientY", string(domain.RoleClient))

	if err := hub.Inbound(context.Background(), "eng1", Envelope{Type: EventMessage, Message: "hello", Receiver: "clientY"}); err != nil {
		t.Fatalf("Inbound returned error: %v", err)
	}

	hub.Disconnect(context.Background(), "eng1", eng1)

	var sawAvailable bool
	for _, event := range eng2.systemEvents() {
		if event.Type == SystemAvailable && event.Client == "clientY" {
			sawAvailable = true
		}
	}
	if !sawAvailable {
		t.Fatalf("expected client returned to pool, got %+v", eng2.systemEvents())
	}
}

func TestMarkReadConfirmsToBothParties(t *testing.T) {
	hub, store := newTestHub(t)
	eng1 := connect(t, hub, "eng1", string(domain.RoleProposalEngineer))
	client := connect(t, hub, "clientY", string(domain.RoleClient))

	if err := hub.Inbound(context.Background(), "eng1", Envelope{Type: EventMessage, Message: "hello", Receiver: "clientY"}); err != nil {
		t.Fatalf("Inbound returned error: %v", err)
	}

	if err := hub.Inbound(context.Background(), "clientY", Envelope{Type: EventMarkRead, MessageIDs: []string{"msg-1"}}); err != nil {
		t.Fatalf("Inbound returned error: %v", err)
	}

	if got := store.markRead["clientY"]; len(got) != 1 || got[0] != "msg-1" {
		t.Fatalf("expected mark read persisted, got %v", got)
	}

	confirmed := func(conn *fakeConn) bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		for _, env := range conn.frames {
			if env.Type == EventReadConfirmation && len(env.MessageIDs) == 1 {
				return true
			}
		}
		return false
	}
	if !confirmed(client) || !confirmed(eng1) {
		t.Fatalf("expected read confirmation to both parties")
	}
}

func TestInboundRejectsUnknownSender(t *testing.T) {
	hub, _ := newTestHub(t)
	err := hub.Inbound(context.Background(), "ghost", Envelope{Type: EventMessage, Message: "hi"})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestHistoryClampsLimit(t *testing.T) {
	store := newFakeMessageStore()
	hub, err := NewHub(HubDeps{Messages: store, HistoryLimit: 10})
	if err != nil {
		t.Fatalf("NewHub returned error: %v", err)
	}

	if _, err := hub.History(context.Background(), "acme-buyer", 500); err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if store.lastLimit != 10 {
		t.Fatalf("expected oversized limit clamped to 10, got %d", store.lastLimit)
	}

	if _, err := hub.History(context.Background(), "acme-buyer", 3); err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if store.lastLimit != 3 {
		t.Fatalf("expected requested limit 3, got %d", store.lastLimit)
	}
}

func TestReconnectSurvivesStaleHandlerDisconnect(t *testing.T) {
	hub, _ := newTestHub(t)
	connect(t, hub, "eng1", string(domain.RoleProposalEngineer))

	stale := connect(t, hub, "clientY", string(domain.RoleClient))
	fresh := connect(t, hub, "clientY", string(domain.RoleClient))
	if !stale.closed {
		t.Fatalf("expected replaced socket closed")
	}

	// The old handler goroutine tears down after its read loop fails; it
	// must not unregister the replacement socket.
	hub.Disconnect(context.Background(), "clientY", stale)

	if fresh.closed {
		t.Fatalf("fresh connection was closed by the stale disconnect")
	}
	if err := hub.Inbound(context.Background(), "clientY", Envelope{Type: EventMessage, Message: "still here"}); err != nil {
		t.Fatalf("Inbound after reconnect returned error: %v", err)
	}
}
