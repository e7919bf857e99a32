package di

import (
	"context"
	"testing"
	"time"

	"github.com/instrugate/api/internal/platform/config"
	"github.com/instrugate/api/internal/repositories"
)

type stubRegistry struct {
	catalog    struct{ repositories.CatalogRepository }
	quotations struct{ repositories.QuotationRepository }
	users      struct{ repositories.UserRepository }
	carts      struct{ repositories.CartMirrorRepository }
	chats      struct{ repositories.ChatMessageRepository }
	health     struct{ repositories.HealthRepository }

	closed bool
}

func (s *stubRegistry) Catalog() repositories.CatalogRepository { return &s.catalog }

func (s *stubRegistry) Quotations() repositories.QuotationRepository { return &s.quotations }

func (s *stubRegistry) Users() repositories.UserRepository { return &s.users }

func (s *stubRegistry) CartMirrors() repositories.CartMirrorRepository { return &s.carts }

func (s *stubRegistry) ChatMessages() repositories.ChatMessageRepository { return &s.chats }

func (s *stubRegistry) Health() repositories.HealthRepository { return &s.health }

func (s *stubRegistry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *stubRegistry) Close(context.Context) error {
	s.closed = true
	return nil
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.Auth.SigningSecret = "container-test-secret"
	cfg.Auth.Issuer = "instrugate-test"
	cfg.Auth.AccessTTL = 15 * time.Minute
	cfg.Auth.RefreshTTL = 24 * time.Hour
	cfg.Auth.BcryptCost = 4
	cfg.Storage.ImagesBucket = "test-bucket"
	return cfg
}

func TestNewContainerWiresServices(t *testing.T) {
	registry := &stubRegistry{}

	container, err := NewContainer(context.Background(), testConfig(), ContainerDeps{Registry: registry})
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}

	if container.Services.Catalog == nil || container.Services.Quotations == nil ||
		container.Services.Users == nil || container.Services.Tokens == nil ||
		container.Services.Carts == nil {
		t.Fatalf("expected all services wired, got %+v", container.Services)
	}
	if container.Issuer == nil || container.Authenticator == nil {
		t.Fatalf("expected auth components wired")
	}
	if container.Hub == nil {
		t.Fatalf("expected chat hub wired")
	}

	if err := container.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !registry.closed {
		t.Fatalf("expected Close to release the registry")
	}
}

func TestNewContainerRequiresRegistry(t *testing.T) {
	if _, err := NewContainer(context.Background(), testConfig(), ContainerDeps{}); err == nil {
		t.Fatalf("expected error when registry is missing")
	}
}
