package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/instrugate/api/internal/chat"
	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/platform/auth"
	"github.com/instrugate/api/internal/platform/httpx"
)

// ChatHandlersDeps bundles the dependencies of the support-chat endpoints.
type ChatHandlersDeps struct {
	Hub  *chat.Hub
	Auth *auth.Authenticator

	// CheckOrigin overrides the upgrader's origin policy. Optional; the
	// default accepts any origin and relies on token auth instead.
	CheckOrigin func(r *http.Request) bool
}

// ChatHandlers upgrades sockets into the hub and serves room history.
type ChatHandlers struct {
	hub      *chat.Hub
	auth     *auth.Authenticator
	upgrader websocket.Upgrader
}

// NewChatHandlers validates dependencies and constructs the handlers.
func NewChatHandlers(deps ChatHandlersDeps) (*ChatHandlers, error) {
	if deps.Hub == nil {
		return nil, errors.New("handlers: chat hub is required")
	}
	if deps.Auth == nil {
		return nil, errors.New("handlers: authenticator is required")
	}

	checkOrigin := deps.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	return &ChatHandlers{
		hub:  deps.Hub,
		auth: deps.Auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}, nil
}

// Routes registers the chat endpoints on the provided router.
func (h *ChatHandlers) Routes(r chi.Router) {
	r.Use(promoteQueryToken)
	r.Use(h.auth.RequireAuth(auth.RoleClient, auth.RoleEngineer))
	r.Get("/ws", h.serveSocket)
	r.Get("/history", h.history)
}

// promoteQueryToken lifts a ?token= query parameter into the Authorization
// header. Browsers cannot attach headers to websocket upgrade requests.
func promoteQueryToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *ChatHandlers) serveSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake failure.
		return
	}

	if err := h.hub.Connect(ctx, identity.Username, identity.Role, conn); err != nil {
		_ = conn.Close()
		return
	}
	defer h.hub.Disconnect(ctx, identity.Username, conn)

	for {
		var env chat.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		if err := h.hub.Inbound(ctx, identity.Username, env); err != nil {
			_ = conn.WriteJSON(chat.Envelope{
				Type:    chat.EventSystem,
				Message: err.Error(),
			})
		}
	}
}

// history returns the most recent messages of a room. Clients always read
// their own room; engineers pass ?room= to read a client's.
func (h *ChatHandlers) history(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	room := identity.Username
	if identity.HasRole(auth.RoleEngineer) {
		room = strings.TrimSpace(r.URL.Query().Get("room"))
		if room == "" {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "room is required", http.StatusBadRequest))
			return
		}
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	messages, err := h.hub.History(ctx, room, limit)
	if err != nil {
		if errors.Is(err, chat.ErrHubInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "room is required", http.StatusBadRequest))
			return
		}
		writeRepoError(ctx, w, err)
		return
	}

	payload := make([]chatMessageResponse, 0, len(messages))
	for _, message := range messages {
		payload = append(payload, renderChatMessage(message))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"messages": payload})
}

type chatMessageResponse struct {
	ID         string `json:"id"`
	Room       string `json:"room"`
	Sender     string `json:"sender"`
	SenderType string `json:"sender_type"`
	Receiver   string `json:"receiver,omitempty"`
	Body       string `json:"body"`
	Read       bool   `json:"read"`
	CreatedAt  string `json:"created_at"`
}

func renderChatMessage(message domain.ChatMessage) chatMessageResponse {
	return chatMessageResponse{
		ID:         message.ID,
		Room:       message.Room,
		Sender:     message.Sender,
		SenderType: string(message.SenderType),
		Receiver:   message.Receiver,
		Body:       message.Body,
		Read:       message.Read,
		CreatedAt:  formatTime(message.CreatedAt),
	}
}
