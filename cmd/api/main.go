package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/kharidari/api/internal/handlers"
	"github.com/kharidari/api/internal/platform/auth"
	"github.com/kharidari/api/internal/platform/config"
	pfirestore "github.com/kharidari/api/internal/platform/firestore"
	"github.com/kharidari/api/internal/platform/idempotency"
	"github.com/kharidari/api/internal/platform/jobs"
	"github.com/kharidari/api/internal/platform/observability"
	platformstorage "github.com/kharidari/api/internal/platform/storage"
	"github.com/kharidari/api/internal/repositories"
	firestoreRepo "github.com/kharidari/api/internal/repositories/firestore"
	"github.com/kharidari/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

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

	cfg, err := config.Load()
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	storageClient, err := cloudstorage.NewClient(ctx)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	defer func() {
		if err := storageClient.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()

	objectWriter, err := platformstorage.NewGCSObjectWriter(storageClient)
	if err != nil {
		logger.Fatal("failed to initialise storage writer", zap.Error(err))
	}
	var uploaderOpts []platformstorage.UploaderOption
	if keyFile := strings.TrimSpace(os.Getenv("API_STORAGE_SIGNER_KEY_FILE")); keyFile != "" {
		signer, err := platformstorage.NewServiceAccountSignerFromFile(keyFile)
		if err != nil {
			logger.Fatal("failed to load storage signer key", zap.Error(err))
		}
		uploaderOpts = append(uploaderOpts, platformstorage.WithSigner(signer))
	}
	reportUploader, err := platformstorage.NewUploader(objectWriter, uploaderOpts...)
	if err != nil {
		logger.Fatal("failed to initialise report uploader", zap.Error(err))
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()
	orderEventsTopic := pubsubClient.Topic(cfg.PubSub.OrderEventsTopic)
	defer orderEventsTopic.Stop()
	orderEventsPublisher, err := jobs.NewPubSubOrderEventsPublisher(orderEventsTopic)
	if err != nil {
		logger.Fatal("failed to initialise order events publisher", zap.Error(err))
	}

	systemService, err := newSystemService(firestoreClient, buildInfo)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			cleanupLogger := logger.Named("idempotency")
			for {
				select {
				case <-cleanupTicker.C:
					runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-cleanupCtx.Done():
					return
				}
			}
		}()
	}

	authenticator := auth.NewAuthenticator(
		auth.WithUserIDHeader(cfg.Gateway.UserIDHeader),
		auth.WithRolesHeader(cfg.Gateway.RolesHeader),
	)

	cartRepo, err := firestoreRepo.NewCartRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.Error(err))
	}
	offerRepo, err := firestoreRepo.NewOfferRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise offer repository", zap.Error(err))
	}
	discountRepo, err := firestoreRepo.NewDiscountRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise discount repository", zap.Error(err))
	}
	discountUsageRepo, err := firestoreRepo.NewDiscountUsageRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise discount usage repository", zap.Error(err))
	}
	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	walletRepo, err := firestoreRepo.NewWalletRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise wallet repository", zap.Error(err))
	}
	counterRepo, err := firestoreRepo.NewCounterRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise counter repository", zap.Error(err))
	}

	pricingEngine, err := services.NewPricingEngine(services.PricingEngineDeps{
		Shipping: &services.ShippingPolicy{
			FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
			FlatFee:               cfg.Pricing.ShippingFee,
		},
		Logger: newEventLogger(logger.Named("pricing"), "pricing log"),
	})
	if err != nil {
		logger.Fatal("failed to initialise pricing engine", zap.Error(err))
	}

	offerService, err := services.NewOfferService(services.OfferServiceDeps{
		Repository: offerRepo,
		Clock:      time.Now,
		Logger:     newEventLogger(logger.Named("offers"), "offer log"),
	})
	if err != nil {
		logger.Fatal("failed to initialise offer service", zap.Error(err))
	}

	discountService, err := services.NewDiscountService(services.DiscountServiceDeps{
		Discounts: discountRepo,
		Usage:     discountUsageRepo,
		Clock:     time.Now,
		Logger:    newEventLogger(logger.Named("discounts"), "discount log"),
	})
	if err != nil {
		logger.Fatal("failed to initialise discount service", zap.Error(err))
	}

	walletService, err := services.NewWalletService(services.WalletServiceDeps{
		Repository: walletRepo,
		Clock:      time.Now,
		Logger:     newEventLogger(logger.Named("wallet"), "wallet log"),
	})
	if err != nil {
		logger.Fatal("failed to initialise wallet service", zap.Error(err))
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Repository:         cartRepo,
		Offers:             offerService,
		Discounts:          discountService,
		Engine:             pricingEngine,
		Clock:              time.Now,
		Logger:             newEventLogger(logger.Named("cart"), "cart log"),
		DefaultCurrency:    cfg.Pricing.DefaultCurrency,
		MaxQuantityPerItem: cfg.Pricing.MaxQuantityPerItem,
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Carts:     cartService,
		Wallets:   walletService,
		Clock:     time.Now,
		Logger:    newEventLogger(logger.Named("checkout"), "checkout log"),
		CODLimit:  cfg.Pricing.CODLimit,
		EnableCOD: cfg.Features.EnableCOD,
		WalletsOn: cfg.Features.EnableWallet,
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:    orderRepo,
		Carts:     cartService,
		Discounts: discountService,
		Wallets:   walletService,
		Counters:  counterRepo,
		Publisher: orderEventsPublisher,
		Clock:     time.Now,
		Logger:    newEventLogger(logger.Named("orders"), "order log"),
		CODLimit:  cfg.Pricing.CODLimit,
		EnableCOD: cfg.Features.EnableCOD,
		WalletsOn: cfg.Features.EnableWallet,
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	reportService, err := services.NewReportService(services.ReportServiceDeps{
		Orders:        orderRepo,
		Uploader:      reportUploader,
		ReportsBucket: cfg.Storage.ReportsBucket,
		Clock:         time.Now,
		Logger:        newEventLogger(logger.Named("reports"), "report log"),
	})
	if err != nil {
		logger.Fatal("failed to initialise report service", zap.Error(err))
	}

	offerHandlers := handlers.NewOfferHandlers(offerService)
	cartHandlers := handlers.NewCartHandlers(authenticator, cartService)
	checkoutHandlers := handlers.NewCheckoutHandlers(authenticator, checkoutService)
	orderHandlers := handlers.NewOrderHandlers(authenticator, orderService,
		handlers.WithSubmitMiddleware(idempotencyMiddleware),
	)
	meHandlers := handlers.NewMeHandlers(authenticator, walletService, discountService, cartService)
	adminHandlers := handlers.NewAdminHandlers(authenticator, offerService, discountService, orderService, reportService)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithSystemService(systemService),
	)

	projectID := strings.TrimSpace(cfg.Firestore.ProjectID)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithOfferRoutes(offerHandlers.Routes),
		handlers.WithMeRoutes(meHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
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
		serverLogger.Info("kharidari api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newEventLogger adapts a zap logger to the event-style logger the services accept.
func newEventLogger(logger *zap.Logger, message string) func(context.Context, string, map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug(message, zFields...)
	}
}

func buildInfoFromEnv(started time.Time) services.BuildInfo {
	version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("API_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(os.Getenv("API_ENVIRONMENT"))
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func newSystemService(client *firestore.Client, build services.BuildInfo) (services.SystemService, error) {
	if client == nil {
		return nil, errors.New("health: firestore client is required")
	}
	checks := []repositories.DependencyCheck{
		{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := client.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		},
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            time.Now,
		Build:            build,
	})
}
