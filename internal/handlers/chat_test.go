package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/instrugate/api/internal/chat"
	"github.com/instrugate/api/internal/domain"
)

type memoryMessageStore struct {
	messages map[string][]domain.ChatMessage
}

func newMemoryMessageStore() *memoryMessageStore {
	return &memoryMessageStore{messages: map[string][]domain.ChatMessage{}}
}

func (s *memoryMessageStore) SaveMessage(_ context.Context, message domain.ChatMessage) error {
	s.messages[message.Room] = append(s.messages[message.Room], message)
	return nil
}

func (s *memoryMessageStore) MarkRead(_ context.Context, room string, messageIDs []string) error {
	ids := make(map[string]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		ids[id] = struct{}{}
	}
	for i, message := range s.messages[room] {
		if _, ok := ids[message.ID]; ok {
			s.messages[room][i].Read = true
		}
	}
	return nil
}

func (s *memoryMessageStore) ListRoom(_ context.Context, room string, limit int) ([]domain.ChatMessage, error) {
	messages := s.messages[room]
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

func chatTestRouter(t *testing.T, store chat.MessageStore) (http.Handler, func(id, username, role string) string) {
	t.Helper()
	hub, err := chat.NewHub(chat.HubDeps{Messages: store})
	if err != nil {
		t.Fatalf("NewHub returned error: %v", err)
	}
	authenticator, issue := newTestAuth(t)
	handlers, err := NewChatHandlers(ChatHandlersDeps{Hub: hub, Auth: authenticator})
	if err != nil {
		t.Fatalf("NewChatHandlers returned error: %v", err)
	}
	return NewRouter(WithChatRoutes(handlers.Routes)), issue
}

func TestChatHistoryScopesClientsToOwnRoom(t *testing.T) {
	store := newMemoryMessageStore()
	created := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	_ = store.SaveMessage(context.Background(), domain.ChatMessage{
		ID: "m-1", Room: "acme-buyer", Sender: "acme-buyer",
		SenderType: domain.ChatSenderClient, Body: "need a quote", CreatedAt: created,
	})
	_ = store.SaveMessage(context.Background(), domain.ChatMessage{
		ID: "m-2", Room: "other-client", Sender: "other-client",
		SenderType: domain.ChatSenderClient, Body: "unrelated", CreatedAt: created,
	})
	router, issue := chatTestRouter(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/history?room=other-client", nil)
	req.Header.Set("Authorization", "Bearer "+issue("user-1", "acme-buyer", "client"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string][]chatMessageResponse
	decodeResponse(t, rec, &body)
	messages := body["messages"]
	if len(messages) != 1 || messages[0].Room != "acme-buyer" {
		t.Fatalf("expected only the client's own room, got %+v", messages)
	}
}

func TestChatHistoryEngineerPicksRoom(t *testing.T) {
	store := newMemoryMessageStore()
	_ = store.SaveMessage(context.Background(), domain.ChatMessage{
		ID: "m-1", Room: "acme-buyer", Sender: "acme-buyer",
		SenderType: domain.ChatSenderClient, Body: "need a quote",
	})
	router, issue := chatTestRouter(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/history?room=acme-buyer", nil)
	req.Header.Set("Authorization", "Bearer "+issue("eng-1", "engineer", "proposal_engineer"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string][]chatMessageResponse
	decodeResponse(t, rec, &body)
	if len(body["messages"]) != 1 {
		t.Fatalf("expected one message, got %+v", body)
	}
}

func TestChatHistoryEngineerRequiresRoom(t *testing.T) {
	router, issue := chatTestRouter(t, newMemoryMessageStore())

	req := httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	req.Header.Set("Authorization", "Bearer "+issue("eng-1", "engineer", "proposal_engineer"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without room, got %d", rec.Code)
	}
}

func TestChatAcceptsQueryToken(t *testing.T) {
	router, issue := chatTestRouter(t, newMemoryMessageStore())

	req := httptest.NewRequest(http.MethodGet, "/api/chat/history?token="+issue("user-1", "acme-buyer", "client"), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with query token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChatRejectsAdminRole(t *testing.T) {
	router, issue := chatTestRouter(t, newMemoryMessageStore())

	req := httptest.NewRequest(http.MethodGet, "/api/chat/history?room=acme-buyer", nil)
	req.Header.Set("Authorization", "Bearer "+issue("admin-1", "admin", "admin"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for admin, got %d", rec.Code)
	}
}
