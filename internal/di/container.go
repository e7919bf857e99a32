package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/instrugate/api/internal/chat"
	"github.com/instrugate/api/internal/platform/auth"
	"github.com/instrugate/api/internal/platform/config"
	"github.com/instrugate/api/internal/repositories"
	"github.com/instrugate/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Catalog    services.CatalogService
	Quotations services.QuotationService
	Users      services.UserService
	Tokens     services.TokenService
	Carts      services.CartService
}

// ContainerDeps carries the external infrastructure the container wires
// services around. Registry is mandatory; the rest degrade gracefully.
type ContainerDeps struct {
	Registry repositories.Registry

	// Publisher emits quotation lifecycle events. Optional.
	Publisher services.QuotationEventPublisher
	// ImageSigner issues signed upload URLs for catalog images. Optional.
	ImageSigner services.ImageSigner

	Logger *zap.Logger
	Clock  func() time.Time
}

// Container wires repositories, services, auth, and the chat hub for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services

	Issuer        *auth.Issuer
	Authenticator *auth.Authenticator
	Hub           *chat.Hub
}

// NewContainer constructs the runtime dependencies. Production wiring provides
// Firestore-backed registries; tests can supply in-memory ones.
func NewContainer(ctx context.Context, cfg config.Config, deps ContainerDeps) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("di: repositories registry is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := func() string { return ulid.Make().String() }

	issuer, err := auth.NewIssuer([]byte(cfg.Auth.SigningSecret),
		auth.WithIssuerName(cfg.Auth.Issuer),
		auth.WithAccessTTL(cfg.Auth.AccessTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL),
		auth.WithClock(clock),
	)
	if err != nil {
		return nil, fmt.Errorf("di: build token issuer: %w", err)
	}

	svc, err := buildServices(cfg, deps, logger, clock, newID, issuer)
	if err != nil {
		return nil, err
	}

	hub, err := chat.NewHub(chat.HubDeps{
		Messages:     deps.Registry.ChatMessages(),
		HistoryLimit: cfg.Chat.HistoryLimit,
		Clock:        clock,
		IDGenerator:  newID,
		Logger:       zapFieldLogger(logger.Named("chat")),
	})
	if err != nil {
		return nil, fmt.Errorf("di: build chat hub: %w", err)
	}

	return &Container{
		Config:        cfg,
		Repositories:  deps.Registry,
		Services:      svc,
		Issuer:        issuer,
		Authenticator: auth.NewAuthenticator(issuer),
		Hub:           hub,
	}, nil
}

// Close releases resources held by the underlying repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(cfg config.Config, deps ContainerDeps, logger *zap.Logger, clock func() time.Time, newID func() string, issuer *auth.Issuer) (Services, error) {
	reg := deps.Registry

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Catalog:     reg.Catalog(),
		Images:      deps.ImageSigner,
		ImageBucket: cfg.Storage.ImagesBucket,
		Clock:       clock,
		IDGenerator: newID,
	})
	if err != nil {
		return Services{}, fmt.Errorf("di: build catalog service: %w", err)
	}

	quotationSvc, err := services.NewQuotationService(services.QuotationServiceDeps{
		Quotations:  reg.Quotations(),
		Tx:          reg,
		Publisher:   deps.Publisher,
		Clock:       clock,
		IDGenerator: newID,
		Logger:      zapFieldLogger(logger.Named("quotations")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("di: build quotation service: %w", err)
	}

	userSvc, err := services.NewUserService(services.UserServiceDeps{
		Users:       reg.Users(),
		BcryptCost:  cfg.Auth.BcryptCost,
		Clock:       clock,
		IDGenerator: newID,
	})
	if err != nil {
		return Services{}, fmt.Errorf("di: build user service: %w", err)
	}

	tokenSvc, err := services.NewTokenService(services.TokenServiceDeps{
		Users:  userSvc,
		Lookup: reg.Users(),
		Issuer: issuer,
	})
	if err != nil {
		return Services{}, fmt.Errorf("di: build token service: %w", err)
	}

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Mirrors: reg.CartMirrors(),
		Clock:   clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("di: build cart service: %w", err)
	}

	return Services{
		Catalog:    catalogSvc,
		Quotations: quotationSvc,
		Users:      userSvc,
		Tokens:     tokenSvc,
		Carts:      cartSvc,
	}, nil
}

func zapFieldLogger(logger *zap.Logger) func(ctx context.Context, msg string, fields map[string]any) {
	return func(_ context.Context, msg string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Info(msg, zFields...)
	}
}
