package services

import (
	"context"
	"time"

	domain "github.com/kharidari/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination        = domain.Pagination
	SortOrder         = domain.SortOrder
	DiscountType      = domain.DiscountType
	DiscountKind      = domain.DiscountKind
	Offer             = domain.Offer
	Discount          = domain.Discount
	DiscountUsage     = domain.DiscountUsage
	DiscountSelection = domain.DiscountSelection
	Cart              = domain.Cart
	LineItem          = domain.LineItem
	PricingResult     = domain.PricingResult
	LinePricing       = domain.LinePricing
	AppliedOffer      = domain.AppliedOffer
	AppliedDiscount   = domain.AppliedDiscount
	Order             = domain.Order
	OrderLineItem     = domain.OrderLineItem
	OrderStatus       = domain.OrderStatus
	OrderEvent        = domain.OrderEvent
	PaymentMethod     = domain.PaymentMethod
	Address           = domain.Address
	Wallet            = domain.Wallet
	WalletEntry       = domain.WalletEntry
	SalesReport       = domain.SalesReport
)

// Shorthand constants re-exported for service-layer switch statements.
const (
	DiscountTypePercentage = domain.DiscountTypePercentage
	DiscountTypeFixed      = domain.DiscountTypeFixed
	DiscountKindCoupon     = domain.DiscountKindCoupon
	DiscountKindAccount    = domain.DiscountKindAccount

	PaymentMethodCOD     = domain.PaymentMethodCOD
	PaymentMethodPrepaid = domain.PaymentMethodPrepaid
	PaymentMethodWallet  = domain.PaymentMethodWallet

	OrderStatusPlaced    = domain.OrderStatusPlaced
	OrderStatusConfirmed = domain.OrderStatusConfirmed
	OrderStatusShipped   = domain.OrderStatusShipped
	OrderStatusDelivered = domain.OrderStatusDelivered
	OrderStatusCancelled = domain.OrderStatusCancelled
	OrderStatusReturned  = domain.OrderStatusReturned
)

// OfferService manages per-product offers and resolves the single best offer
// per product for pricing.
type OfferService interface {
	ListOffers(ctx context.Context, filter OfferListFilter) (domain.CursorPage[Offer], error)
	GetOffer(ctx context.Context, offerID string) (Offer, error)
	CreateOffer(ctx context.Context, cmd UpsertOfferCommand) (Offer, error)
	UpdateOffer(ctx context.Context, cmd UpsertOfferCommand) (Offer, error)
	DeleteOffer(ctx context.Context, offerID string) error
	// BestOffersForProducts resolves at most one offer per product id, picking
	// the offer with the largest reduction against that product's unit price.
	BestOffersForProducts(ctx context.Context, unitPrices map[string]int64) (map[string]Offer, error)
}

// DiscountService validates coupons, lists account discounts, tracks usage,
// and exposes admin CRUD.
type DiscountService interface {
	ValidateCoupon(ctx context.Context, cmd ValidateCouponCommand) (Discount, error)
	ListAccountDiscounts(ctx context.Context, cmd AccountDiscountQuery) ([]Discount, error)
	GetEligibleDiscount(ctx context.Context, cmd EligibleDiscountQuery) (Discount, error)
	RecordUsage(ctx context.Context, discountID, userID string) error
	ListDiscounts(ctx context.Context, filter DiscountListFilter) (domain.CursorPage[Discount], error)
	GetDiscount(ctx context.Context, discountID string) (Discount, error)
	CreateDiscount(ctx context.Context, cmd UpsertDiscountCommand) (Discount, error)
	UpdateDiscount(ctx context.Context, cmd UpsertDiscountCommand) (Discount, error)
	DeleteDiscount(ctx context.Context, discountID string) error
}

// CartService manages mutable cart state, the discount selection state
// machine, and pricing estimates.
type CartService interface {
	GetOrCreateCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	UpdateItemQuantity(ctx context.Context, cmd UpdateCartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error)
	ClearCart(ctx context.Context, userID string) error
	ApplyCoupon(ctx context.Context, cmd ApplyCouponCommand) (Cart, error)
	SelectAccountDiscount(ctx context.Context, cmd SelectAccountDiscountCommand) (Cart, error)
	RemoveDiscount(ctx context.Context, userID string) (Cart, error)
	Estimate(ctx context.Context, userID string) (PricingResult, error)
}

// CheckoutService assembles the checkout page quote: pricing, COD
// eligibility, and wallet application preview.
type CheckoutService interface {
	Quote(ctx context.Context, cmd CheckoutQuoteCommand) (CheckoutQuote, error)
}

// OrderService owns order submission (with server-side re-pricing), reads,
// admin transitions, and cancellation with wallet refunds.
type OrderService interface {
	SubmitOrder(ctx context.Context, cmd SubmitOrderCommand) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	GetOrder(ctx context.Context, cmd GetOrderQuery) (Order, error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
}

// WalletService maintains the per-user store-credit ledger. Balances never go negative.
type WalletService interface {
	GetWallet(ctx context.Context, userID string) (Wallet, error)
	ListEntries(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[WalletEntry], error)
	Credit(ctx context.Context, cmd WalletCreditCommand) (WalletEntry, error)
	Debit(ctx context.Context, cmd WalletDebitCommand) (WalletEntry, error)
}

// ReportService aggregates order history for admin sales reporting and CSV export.
type ReportService interface {
	SalesReport(ctx context.Context, query SalesReportQuery) (SalesReport, error)
	ExportSalesReportCSV(ctx context.Context, query SalesReportQuery) (ReportExport, error)
}

// OrderEventsPublisher delivers order lifecycle notifications to downstream consumers.
type OrderEventsPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// ErrorTranslator converts repository or platform errors into domain-aware sentinel errors.
type ErrorTranslator interface {
	Translate(err error) error
}

// Command and DTO definitions ------------------------------------------------

type OfferListFilter struct {
	ProductID  *string
	ActiveOnly bool
	Pagination Pagination
}

type UpsertOfferCommand struct {
	OfferID *string
	Offer   Offer
	ActorID string
}

type ValidateCouponCommand struct {
	UserID   string
	Code     string
	Subtotal int64
}

type AccountDiscountQuery struct {
	UserID   string
	Subtotal int64
}

// EligibleDiscountQuery re-checks a previously selected discount against the
// current subtotal; used at estimate and submission time.
type EligibleDiscountQuery struct {
	UserID     string
	DiscountID string
	Kind       DiscountKind
	Subtotal   int64
}

type DiscountListFilter struct {
	Kind       *DiscountKind
	ActiveOnly bool
	Pagination Pagination
}

type UpsertDiscountCommand struct {
	DiscountID *string
	Discount   Discount
	ActorID    string
}

type AddCartItemCommand struct {
	UserID    string
	ProductID string
	VariantID string
	Name      string
	UnitPrice int64
	Quantity  int
}

type UpdateCartItemCommand struct {
	UserID   string
	ItemID   string
	Quantity int
}

type RemoveCartItemCommand struct {
	UserID string
	ItemID string
}

type ApplyCouponCommand struct {
	UserID string
	Code   string
}

type SelectAccountDiscountCommand struct {
	UserID     string
	DiscountID string
}

type CheckoutQuoteCommand struct {
	UserID        string
	PaymentMethod PaymentMethod
	UseWallet     bool
}

// CheckoutQuote is what the checkout page renders: the full pricing
// breakdown plus payment options derived from it.
type CheckoutQuote struct {
	CartID        string
	Pricing       PricingResult
	CODAvailable  bool
	CODLimit      int64
	WalletBalance int64
	WalletApplied int64
	AmountDue     int64
	QuotedAt      time.Time
}

type SubmitOrderCommand struct {
	UserID          string
	PaymentMethod   PaymentMethod
	UseWallet       bool
	ShippingAddress Address
	Metadata        map[string]any
}

type OrderListFilter struct {
	UserID     string
	Status     []OrderStatus
	PlacedFrom *time.Time
	PlacedTo   *time.Time
	Pagination Pagination
}

type GetOrderQuery struct {
	OrderID string
	// UserID scopes the read to the owner; empty means an admin read.
	UserID string
}

type OrderStatusTransitionCommand struct {
	OrderID        string
	TargetStatus   OrderStatus
	ActorID        string
	Reason         string
	ExpectedStatus *OrderStatus
}

type CancelOrderCommand struct {
	OrderID string
	ActorID string
	// UserID is set for customer-initiated cancellations and enforces ownership.
	UserID string
	Reason string
}

type WalletCreditCommand struct {
	UserID   string
	Amount   int64
	Reason   string
	OrderRef *string
}

type WalletDebitCommand struct {
	UserID   string
	Amount   int64
	Reason   string
	OrderRef *string
}

type SalesReportQuery struct {
	From time.Time
	To   time.Time
	// TopProductLimit bounds the top-products table; zero uses the default.
	TopProductLimit int
}

// ReportExport describes a CSV written to the reports bucket.
type ReportExport struct {
	Bucket      string
	ObjectPath  string
	RowCount    int
	GeneratedAt time.Time
}
