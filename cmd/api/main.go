package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/instrugate/api/internal/di"
	"github.com/instrugate/api/internal/handlers"
	"github.com/instrugate/api/internal/platform/config"
	"github.com/instrugate/api/internal/platform/events"
	pfirestore "github.com/instrugate/api/internal/platform/firestore"
	"github.com/instrugate/api/internal/platform/idempotency"
	"github.com/instrugate/api/internal/platform/observability"
	"github.com/instrugate/api/internal/platform/secrets"
	platformstorage "github.com/instrugate/api/internal/platform/storage"
	firestoreRepo "github.com/instrugate/api/internal/repositories/firestore"
	"github.com/instrugate/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
	)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to connect firestore", zap.Error(err))
	}
	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyGuard := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go cleanupIdempotencyRecords(janitorCtx, idempotencyStore, logger.Named("idempotency"))

	publisher, cleanupEvents, err := newEventPublisher(ctx, cfg.Events)
	if err != nil {
		logger.Fatal("failed to initialise event publisher", zap.Error(err))
	}
	defer cleanupEvents()

	imageSigner, err := newImageSigner(logger)
	if err != nil {
		logger.Fatal("failed to initialise image signer", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, di.ContainerDeps{
		Registry:    registry,
		Publisher:   publisher,
		ImageSigner: imageSigner,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}

	tokenHandlers, err := handlers.NewTokenHandlers(handlers.TokenHandlersDeps{
		Tokens:  container.Services.Tokens,
		Limiter: handlers.NewSimpleRateLimiter(cfg.RateLimits.DefaultPerMinute, time.Minute, nil),
	})
	if err != nil {
		logger.Fatal("failed to build token handlers", zap.Error(err))
	}
	userHandlers, err := handlers.NewUserHandlers(handlers.UserHandlersDeps{
		Users: container.Services.Users,
		Auth:  container.Authenticator,
	})
	if err != nil {
		logger.Fatal("failed to build user handlers", zap.Error(err))
	}
	catalogHandlers, err := handlers.NewCatalogHandlers(handlers.CatalogHandlersDeps{
		Catalog: container.Services.Catalog,
	})
	if err != nil {
		logger.Fatal("failed to build catalog handlers", zap.Error(err))
	}
	cartHandlers, err := handlers.NewCartHandlers(handlers.CartHandlersDeps{
		Carts: container.Services.Carts,
		Auth:  container.Authenticator,
	})
	if err != nil {
		logger.Fatal("failed to build cart handlers", zap.Error(err))
	}
	quotationHandlers, err := handlers.NewQuotationHandlers(handlers.QuotationHandlersDeps{
		Quotations:  container.Services.Quotations,
		Carts:       container.Services.Carts,
		Auth:        container.Authenticator,
		Idempotency: idempotencyGuard,
	})
	if err != nil {
		logger.Fatal("failed to build quotation handlers", zap.Error(err))
	}
	adminHandlers, err := handlers.NewAdminHandlers(handlers.AdminHandlersDeps{
		Catalog:    container.Services.Catalog,
		Users:      container.Services.Users,
		Quotations: container.Services.Quotations,
		Auth:       container.Authenticator,
	})
	if err != nil {
		logger.Fatal("failed to build admin handlers", zap.Error(err))
	}
	chatHandlers, err := handlers.NewChatHandlers(handlers.ChatHandlersDeps{
		Hub:  container.Hub,
		Auth: container.Authenticator,
	})
	if err != nil {
		logger.Fatal("failed to build chat handlers", zap.Error(err))
	}

	projectID := strings.TrimSpace(cfg.Firestore.ProjectID)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(registry.Health())),
		handlers.WithTokenRoutes(tokenHandlers.Routes),
		handlers.WithUserRoutes(userHandlers.Routes),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithQuotationRoutes(quotationHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
		handlers.WithChatRoutes(chatHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("instrugate api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// cleanupIdempotencyRecords drops expired idempotency records in the
// background; Firestore has no TTL on this collection.
func cleanupIdempotencyRecords(ctx context.Context, store idempotency.Store, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.CleanupExpired(ctx, time.Now().UTC(), 500)
			if err != nil {
				logger.Warn("idempotency cleanup failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Info("idempotency records cleaned", zap.Int("removed", removed))
			}
		}
	}
}

// newEventPublisher connects the quotation event topic. Returns a nil
// publisher when events are not configured so the API can run without them.
func newEventPublisher(ctx context.Context, cfg config.EventsConfig) (services.QuotationEventPublisher, func(), error) {
	noop := func() {}
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, noop, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, noop, fmt.Errorf("pubsub client: %w", err)
	}

	topic := client.Topic(cfg.TopicID)
	publisher, err := events.NewPubSubQuotationPublisher(topic)
	if err != nil {
		_ = client.Close()
		return nil, noop, err
	}

	cleanup := func() {
		topic.Stop()
		_ = client.Close()
	}
	return publisher, cleanup, nil
}

// newImageSigner loads the signed-URL service account key when configured.
// Without a key the catalog service rejects image upload requests.
func newImageSigner(logger *zap.Logger) (services.ImageSigner, error) {
	keyFile := strings.TrimSpace(os.Getenv("API_STORAGE_SIGNER_KEY_FILE"))
	if keyFile == "" {
		logger.Warn("storage signer key not configured; image uploads disabled")
		return nil, nil
	}
	signer, err := platformstorage.NewServiceAccountSignerFromFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("storage signer: %w", err)
	}
	client, err := platformstorage.NewClient(signer)
	if err != nil {
		return nil, fmt.Errorf("storage signed url client: %w", err)
	}
	return client, nil
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	defaultProject := strings.TrimSpace(os.Getenv("API_SECRET_DEFAULT_PROJECT_ID"))
	if defaultProject == "" {
		defaultProject = strings.TrimSpace(os.Getenv("API_FIRESTORE_PROJECT_ID"))
	}
	fallbackPath := strings.TrimSpace(os.Getenv("API_SECRET_FALLBACK_FILE"))
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile := strings.TrimSpace(os.Getenv("API_SECRET_CREDENTIALS_FILE")); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}
