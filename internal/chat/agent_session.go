package chat

import (
	"sort"
	"sync"
)

// Conversation is the per-client buffer an engineer console keeps.
type Conversation struct {
	Client   string
	Messages []Envelope
	Unread   int
	Assigned bool
}

// AgentSession is the engineer console's view of the pool: which clients are
// waiting, which are claimed by this engineer, and buffered traffic per
// client. Assignment state is driven exclusively by typed system events.
type AgentSession struct {
	mu sync.Mutex

	engineer      string
	conversations map[string]*Conversation
	selected      string
}

// NewAgentSession creates the console state for the named engineer.
func NewAgentSession(engineer string) *AgentSession {
	return &AgentSession{
		engineer:      engineer,
		conversations: make(map[string]*Conversation),
	}
}

// Apply folds one received envelope into the console state.
func (s *AgentSession) Apply(env Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch env.Type {
	case EventSystem:
		if env.System != nil {
			s.applySystem(*env.System)
		}
	case EventMessage:
		s.applyMessage(env)
	case EventReadConfirmation:
		s.applyReadConfirmation(env)
	}
}

func (s *AgentSession) applySystem(event SystemEvent) {
	switch event.Type {
	case SystemAssigned:
		if event.Engineer == s.engineer {
			conv := s.conversation(event.Client)
			conv.Assigned = true
			return
		}
		// Another engineer claimed the client: drop the conversation and
		// any buffered messages.
		delete(s.conversations, event.Client)
		if s.selected == event.Client {
			s.selected = ""
		}
	case SystemAvailable:
		conv := s.conversation(event.Client)
		conv.Assigned = false
	case SystemUnassigned:
		if conv, ok := s.conversations[event.Client]; ok {
			conv.Assigned = false
		}
	case SystemClientDisconnected:
		delete(s.conversations, event.Client)
		if s.selected == event.Client {
			s.selected = ""
		}
	}
}

func (s *AgentSession) applyMessage(env Envelope) {
	client := env.Sender
	if env.SenderType != "" && env.Receiver != "" && env.Sender == s.engineer {
		client = env.Receiver
	}
	if client == "" {
		return
	}
	conv := s.conversation(client)
	conv.Messages = append(conv.Messages, env)
	if s.selected != client && env.Sender != s.engineer {
		conv.Unread++
	}
}

func (s *AgentSession) applyReadConfirmation(env Envelope) {
	if conv, ok := s.conversations[env.Receiver]; ok && env.Sender == s.engineer {
		conv.Unread = 0
	}
}

// Select focuses a client conversation and clears its unread counter.
func (s *AgentSession) Select(client string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[client]; ok {
		s.selected = client
		conv.Unread = 0
	}
}

// Selected returns the focused client, if any.
func (s *AgentSession) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Clients lists the visible client usernames in stable order.
func (s *AgentSession) Clients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.conversations))
	for client := range s.conversations {
		out = append(out, client)
	}
	sort.Strings(out)
	return out
}

// Conversation returns a copy of the buffered state for a client.
func (s *AgentSession) Conversation(client string) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[client]
	if !ok {
		return Conversation{}, false
	}
	out := Conversation{
		Client:   conv.Client,
		Messages: append([]Envelope(nil), conv.Messages...),
		Unread:   conv.Unread,
		Assigned: conv.Assigned,
	}
	return out, true
}

func (s *AgentSession) conversation(client string) *Conversation {
	conv, ok := s.conversations[client]
	if !ok {
		conv = &Conversation{Client: client}
		s.conversations[client] = conv
	}
	return conv
}
