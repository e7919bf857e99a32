package chat

import (
	"sync"
)

// ClientSession is the client widget's view of its single conversation.
type ClientSession struct {
	mu sync.Mutex

	username string
	engineer string
	messages []Envelope
	unread   int
}

// NewClientSession creates the widget state for the named client.
func NewClientSession(username string) *ClientSession {
	return &ClientSession{username: username}
}

// Apply folds one received envelope into the widget state.
func (s *ClientSession) Apply(env Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch env.Type {
	case EventSystem:
		if env.System == nil {
			return
		}
		switch env.System.Type {
		case SystemAssigned:
			if env.System.Client == s.username {
				s.engineer = env.System.Engineer
			}
		case SystemUnassigned, SystemEngineerDisconnected:
			if env.System.Engineer == s.engineer {
				s.engineer = ""
			}
		}
	case EventMessage:
		s.messages = append(s.messages, env)
		if env.Sender != s.username {
			s.unread++
		}
	case EventReadConfirmation:
		s.unread = 0
	}
}

// Engineer returns the currently assigned engineer, empty while unassigned.
func (s *ClientSession) Engineer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engineer
}

// Messages returns a copy of the conversation log.
func (s *ClientSession) Messages() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Envelope(nil), s.messages...)
}

// Unread returns the count of messages received since the last read
// confirmation.
func (s *ClientSession) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}
