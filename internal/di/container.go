package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kharidari/api/internal/platform/config"
	"github.com/kharidari/api/internal/repositories"
	"github.com/kharidari/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Offers    services.OfferService
	Discounts services.DiscountService
	Wallets   services.WalletService
	Carts     services.CartService
	Checkout  services.CheckoutService
	Orders    services.OrderService
	Reports   services.ReportService
	Counters  services.CounterService
	System    services.SystemService
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides a Firestore-backed
// registry, while tests can supply in-memory registries. Services whose repositories are absent
// from the registry are left nil.
func NewContainer(cfg config.Config, reg repositories.Registry, build services.BuildInfo) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(reg, cfg, build)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(reg repositories.Registry, cfg config.Config, build services.BuildInfo) (Services, error) {
	var svc Services

	if offerRepo := reg.Offers(); offerRepo != nil {
		offerSvc, err := services.NewOfferService(services.OfferServiceDeps{
			Repository: offerRepo,
			Clock:      time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build offer service: %w", err)
		}
		svc.Offers = offerSvc
	}

	if discountRepo := reg.Discounts(); discountRepo != nil {
		usageRepo := reg.DiscountUsage()
		if usageRepo != nil {
			discountSvc, err := services.NewDiscountService(services.DiscountServiceDeps{
				Discounts: discountRepo,
				Usage:     usageRepo,
				Clock:     time.Now,
			})
			if err != nil {
				return Services{}, fmt.Errorf("build discount service: %w", err)
			}
			svc.Discounts = discountSvc
		}
	}

	if walletRepo := reg.Wallets(); walletRepo != nil {
		walletSvc, err := services.NewWalletService(services.WalletServiceDeps{
			Repository: walletRepo,
			Clock:      time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build wallet service: %w", err)
		}
		svc.Wallets = walletSvc
	}

	if cartRepo := reg.Carts(); cartRepo != nil && svc.Offers != nil && svc.Discounts != nil {
		engine, err := services.NewPricingEngine(services.PricingEngineDeps{
			Shipping: &services.ShippingPolicy{
				FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
				FlatFee:               cfg.Pricing.ShippingFee,
			},
		})
		if err != nil {
			return Services{}, fmt.Errorf("build pricing engine: %w", err)
		}
		cartSvc, err := services.NewCartService(services.CartServiceDeps{
			Repository:         cartRepo,
			Offers:             svc.Offers,
			Discounts:          svc.Discounts,
			Engine:             engine,
			Clock:              time.Now,
			DefaultCurrency:    cfg.Pricing.DefaultCurrency,
			MaxQuantityPerItem: cfg.Pricing.MaxQuantityPerItem,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build cart service: %w", err)
		}
		svc.Carts = cartSvc
	}

	if svc.Carts != nil {
		checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
			Carts:     svc.Carts,
			Wallets:   svc.Wallets,
			Clock:     time.Now,
			CODLimit:  cfg.Pricing.CODLimit,
			EnableCOD: cfg.Features.EnableCOD,
			WalletsOn: cfg.Features.EnableWallet && svc.Wallets != nil,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build checkout service: %w", err)
		}
		svc.Checkout = checkoutSvc
	}

	counterRepo := reg.Counters()
	if counterRepo != nil {
		counterSvc, err := services.NewCounterService(services.CounterServiceDeps{
			Repository: counterRepo,
			Clock:      time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build counter service: %w", err)
		}
		svc.Counters = counterSvc
	}

	ordersRepo := reg.Orders()
	if ordersRepo != nil && counterRepo != nil && svc.Carts != nil && svc.Discounts != nil {
		orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
			Orders:    ordersRepo,
			Carts:     svc.Carts,
			Discounts: svc.Discounts,
			Wallets:   svc.Wallets,
			Counters:  counterRepo,
			Clock:     time.Now,
			CODLimit:  cfg.Pricing.CODLimit,
			EnableCOD: cfg.Features.EnableCOD,
			WalletsOn: cfg.Features.EnableWallet && svc.Wallets != nil,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build order service: %w", err)
		}
		svc.Orders = orderSvc
	}

	if ordersRepo != nil {
		reportSvc, err := services.NewReportService(services.ReportServiceDeps{
			Orders:        ordersRepo,
			ReportsBucket: cfg.Storage.ReportsBucket,
			Clock:         time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build report service: %w", err)
		}
		svc.Reports = reportSvc
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}
