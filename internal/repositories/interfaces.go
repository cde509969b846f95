package repositories

import (
	"context"
	"time"

	domain "github.com/kharidari/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartRepository
	Offers() OfferRepository
	Discounts() DiscountRepository
	DiscountUsage() DiscountUsageRepository
	Orders() OrderRepository
	Wallets() WalletRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CartRepository owns cart persistence with optimistic locking guarantees.
type CartRepository interface {
	// UpsertCart writes the cart document. A non-nil expectedUpdate guards the
	// write with a last-update-time precondition; a stale value yields a
	// conflict error.
	UpsertCart(ctx context.Context, cart domain.Cart, expectedUpdate *time.Time) (domain.Cart, error)
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	DeleteCart(ctx context.Context, userID string) error
}

// OfferRepository maintains per-product offer definitions.
type OfferRepository interface {
	Insert(ctx context.Context, offer domain.Offer) error
	Update(ctx context.Context, offer domain.Offer) error
	Delete(ctx context.Context, offerID string) error
	FindByID(ctx context.Context, offerID string) (domain.Offer, error)
	List(ctx context.Context, filter OfferListFilter) (domain.CursorPage[domain.Offer], error)
	// ListActiveByProducts returns the active offers covering any of the given
	// product ids, keyed by product id. An offer scoped to several products
	// appears under each.
	ListActiveByProducts(ctx context.Context, productIDs []string, now time.Time) (map[string][]domain.Offer, error)
}

// DiscountRepository maintains coupon and account discount definitions.
type DiscountRepository interface {
	Insert(ctx context.Context, discount domain.Discount) error
	Update(ctx context.Context, discount domain.Discount) error
	Delete(ctx context.Context, discountID string) error
	FindByID(ctx context.Context, discountID string) (domain.Discount, error)
	FindByCode(ctx context.Context, code string) (domain.Discount, error)
	List(ctx context.Context, filter DiscountListFilter) (domain.CursorPage[domain.Discount], error)
	// ListActiveByKind returns active discounts of the given kind whose
	// validity window contains now.
	ListActiveByKind(ctx context.Context, kind domain.DiscountKind, now time.Time) ([]domain.Discount, error)
}

// DiscountUsageRepository records per-user redemption counts to enforce limits.
type DiscountUsageRepository interface {
	Get(ctx context.Context, discountID string, userID string) (domain.DiscountUsage, error)
	Increment(ctx context.Context, discountID string, userID string, now time.Time) (domain.DiscountUsage, error)
}

// OrderRepository persists order snapshots and provides query helpers for users and admins.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// ListPlacedBetween streams orders placed inside the range for reporting.
	ListPlacedBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error)
}

// WalletRepository stores the per-user store-credit ledger. Balance mutations
// are transactional: the ledger entry and the balance document move together.
type WalletRepository interface {
	GetWallet(ctx context.Context, userID string) (domain.Wallet, error)
	ListEntries(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.WalletEntry], error)
	// Append records the entry and adjusts the balance atomically. Debits that
	// would push the balance negative fail with a conflict error.
	Append(ctx context.Context, entry domain.WalletEntry) (domain.Wallet, domain.WalletEntry, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type OfferListFilter struct {
	ProductID  *string
	ActiveOnly bool
	Now        time.Time
	Pagination domain.Pagination
}

type DiscountListFilter struct {
	Kind       *domain.DiscountKind
	ActiveOnly bool
	Now        time.Time
	Pagination domain.Pagination
}

type OrderListFilter struct {
	UserID     string
	Status     []domain.OrderStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
