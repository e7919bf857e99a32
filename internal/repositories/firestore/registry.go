package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	"github.com/instrugate/api/internal/repositories"
	pfirestore "github.com/instrugate/api/internal/platform/firestore"
)

// Registry bundles every Firestore-backed repository behind the
// repositories.Registry interface.
type Registry struct {
	provider *pfirestore.Provider

	catalog      *CatalogRepository
	quotations   *QuotationRepository
	users        *UserRepository
	cartMirrors  *CartMirrorRepository
	chatMessages *ChatMessageRepository
	health       *HealthRepository
}

// NewRegistry constructs all repositories against one shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore: provider is required")
	}

	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		return nil, err
	}
	quotations, err := NewQuotationRepository(provider)
	if err != nil {
		return nil, err
	}
	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, err
	}
	cartMirrors, err := NewCartMirrorRepository(provider)
	if err != nil {
		return nil, err
	}
	chatMessages, err := NewChatMessageRepository(provider)
	if err != nil {
		return nil, err
	}
	health, err := NewHealthRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:     provider,
		catalog:      catalog,
		quotations:   quotations,
		users:        users,
		cartMirrors:  cartMirrors,
		chatMessages: chatMessages,
		health:       health,
	}, nil
}

func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }
func (r *Registry) Quotations() repositories.QuotationRepository { return r.quotations }
func (r *Registry) Users() repositories.UserRepository { return r.users }
func (r *Registry) CartMirrors() repositories.CartMirrorRepository { return r.cartMirrors }
func (r *Registry) ChatMessages() repositories.ChatMessageRepository { return r.chatMessages }
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx executes fn with Firestore's optimistic retry loop. Contention
// aborts the attempt and fn runs again against fresh snapshots.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	})
}

// Close releases the shared client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

var _ repositories.Registry = (*Registry)(nil)
