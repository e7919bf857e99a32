package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/repositories"
	pfirestore "github.com/instrugate/api/internal/platform/firestore"
)

const collectionChatMessages = "chat_messages"

type chatMessageDocument struct {
	Room       string    `firestore:"room"`
	Sender     string    `firestore:"sender"`
	SenderType string    `firestore:"sender_type"`
	Receiver   string    `firestore:"receiver,omitempty"`
	Body       string    `firestore:"body"`
	Read       bool      `firestore:"read"`
	CreatedAt  time.Time `firestore:"created_at"`
}

// ChatMessageRepository persists the support-chat transcript, one document
// per message keyed by message ID.
type ChatMessageRepository struct {
	base *pfirestore.BaseRepository[chatMessageDocument]
}

// NewChatMessageRepository binds the chat transcript collection to the provider.
func NewChatMessageRepository(provider *pfirestore.Provider) (*ChatMessageRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore: provider is required")
	}
	return &ChatMessageRepository{
		base: pfirestore.NewBaseRepository[chatMessageDocument](provider, collectionChatMessages, nil, nil),
	}, nil
}

func (r *ChatMessageRepository) SaveMessage(ctx context.Context, message domain.ChatMessage) error {
	if strings.TrimSpace(message.ID) == "" {
		return errors.New("firestore: message id is required")
	}
	ref, err := r.base.DocumentRef(ctx, message.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, chatMessageToDocument(message)); err != nil {
		return pfirestore.WrapError("chat_messages.create", err)
	}
	return nil
}

// MarkRead flips the read flag on each listed message. Missing IDs are
// ignored so a confirmation arriving after pruning is not an error.
func (r *ChatMessageRepository) MarkRead(ctx context.Context, room string, messageIDs []string) error {
	for _, id := range messageIDs {
		if strings.TrimSpace(id) == "" {
			continue
		}
		_, err := r.base.Update(ctx, id, []firestore.Update{{Path: "read", Value: true}})
		if err != nil && !isNotFound(err) {
			return err
		}
	}
	return nil
}

// ListRoom returns the newest messages of a room in chronological order,
// capped at limit.
func (r *ChatMessageRepository) ListRoom(ctx context.Context, room string, limit int) ([]domain.ChatMessage, error) {
	trimmed := strings.TrimSpace(room)
	if trimmed == "" {
		return nil, errors.New("firestore: room is required")
	}
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		query = query.Where("room", "==", trimmed)
		if limit > 0 {
			query = query.OrderBy("created_at", firestore.Desc).Limit(limit)
		}
		return query
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.ChatMessage, 0, len(docs))
	for _, doc := range docs {
		messages = append(messages, chatMessageFromDocument(doc.ID, doc.Data))
	}
	sort.SliceStable(messages, func(i, j int) bool { return messages[i].CreatedAt.Before(messages[j].CreatedAt) })
	return messages, nil
}

func chatMessageToDocument(message domain.ChatMessage) chatMessageDocument {
	return chatMessageDocument{
		Room:       message.Room,
		Sender:     message.Sender,
		SenderType: string(message.SenderType),
		Receiver:   message.Receiver,
		Body:       message.Body,
		Read:       message.Read,
		CreatedAt:  message.CreatedAt,
	}
}

func chatMessageFromDocument(id string, doc chatMessageDocument) domain.ChatMessage {
	return domain.ChatMessage{
		ID:         id,
		Room:       doc.Room,
		Sender:     doc.Sender,
		SenderType: domain.ChatSenderType(doc.SenderType),
		Receiver:   doc.Receiver,
		Body:       doc.Body,
		Read:       doc.Read,
		CreatedAt:  doc.CreatedAt,
	}
}

var _ repositories.ChatMessageRepository = (*ChatMessageRepository)(nil)
