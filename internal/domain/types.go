package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// DiscountType distinguishes how a reduction is computed from its base amount.
type DiscountType string

const (
	// DiscountTypePercentage computes the reduction as a percentage of the base amount.
	DiscountTypePercentage DiscountType = "percentage"
	// DiscountTypeFixed subtracts a fixed amount.
	DiscountTypeFixed DiscountType = "fixed"
)

// DiscountKind separates user-entered coupons from pre-authorized account discounts.
type DiscountKind string

const (
	// DiscountKindCoupon is redeemed by entering a code at checkout.
	DiscountKindCoupon DiscountKind = "coupon"
	// DiscountKindAccount is granted to the account and selected from a list.
	DiscountKindAccount DiscountKind = "account"
)

// Offer is a per-product price reduction managed by admins. The offer service
// resolves at most one best offer per product; the pricing engine consumes the
// already-resolved offer and performs no comparison of its own.
type Offer struct {
	ID            string
	Name          string
	DiscountType  DiscountType
	DiscountValue int64
	// MaximumDiscount caps the computed reduction. Only meaningful for
	// percentage offers; fixed offers already name their exact amount.
	MaximumDiscount *int64
	ProductIDs      []string
	Active          bool
	StartsAt        time.Time
	EndsAt          time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Discount is an order-level reduction: a coupon or an account discount.
// At most one discount is active on a cart at any time.
type Discount struct {
	ID            string
	Code          string
	Name          string
	Kind          DiscountKind
	DiscountType  DiscountType
	DiscountValue int64
	// MinimumAmount is the smallest order subtotal the discount applies to.
	MinimumAmount int64
	// MaximumDiscount caps percentage discounts; ignored for fixed.
	MaximumDiscount *int64
	MaxUsagePerUser *int
	Active          bool
	StartsAt        time.Time
	EndsAt          time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DiscountUsage tracks per-user redemption counts used to enforce usage caps.
type DiscountUsage struct {
	DiscountID string
	UserID     string
	Count      int
	LastUsedAt time.Time
}

// DiscountSelection is the cart's snapshot of the single active discount.
type DiscountSelection struct {
	DiscountID string
	Code       string
	Name       string
	Kind       DiscountKind
	SelectedAt time.Time
}

// Cart aggregates the mutable shopping cart state for a user.
type Cart struct {
	ID        string
	UserID    string
	Currency  string
	Items     []LineItem
	Discount  *DiscountSelection
	Estimate  *PricingResult
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineItem stores a single product variant entry within a cart.
type LineItem struct {
	ID        string
	ProductID string
	VariantID string
	Name      string
	UnitPrice int64
	Quantity  int
	AddedAt   time.Time
	UpdatedAt *time.Time
}

// PaymentMethod enumerates how an order is settled.
type PaymentMethod string

const (
	// PaymentMethodCOD settles on delivery in cash.
	PaymentMethodCOD PaymentMethod = "cod"
	// PaymentMethodPrepaid settles online before fulfilment.
	PaymentMethodPrepaid PaymentMethod = "prepaid"
	// PaymentMethodWallet settles fully from the store wallet.
	PaymentMethodWallet PaymentMethod = "wallet"
)

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPlaced indicates the order was accepted.
	OrderStatusPlaced OrderStatus = "placed"
	// OrderStatusConfirmed indicates the order passed review and is queued for fulfilment.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusShipped indicates the order has been handed to the carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled before delivery.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusReturned indicates the order was returned after delivery.
	OrderStatusReturned OrderStatus = "returned"
)

// Order captures the immutable snapshot taken at submission time: line items
// with the offers actually applied, the discount applied, and the totals the
// pricing engine produced.
type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	Status          OrderStatus
	Currency        string
	Items           []OrderLineItem
	Discount        *AppliedDiscount
	Totals          PricingResult
	PaymentMethod   PaymentMethod
	WalletApplied   int64
	AmountDue       int64
	ShippingAddress *Address
	CancelReason    *string
	PlacedAt        time.Time
	UpdatedAt       time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
}

// OrderLineItem mirrors cart items at the time of submission, recording the
// offer id/name/amount actually applied for audit and invoice display.
type OrderLineItem struct {
	ProductID      string
	VariantID      string
	Name           string
	Quantity       int
	UnitPrice      int64
	FinalUnitPrice int64
	LineTotal      int64
	Offer          *AppliedOffer
}

// Address represents the postal address attached to an order.
type Address struct {
	Recipient  string
	Line1      string
	Line2      *string
	City       string
	State      *string
	PostalCode string
	Country    string
	Phone      *string
}

// WalletEntry is one row of the per-user wallet ledger.
type WalletEntry struct {
	ID        string
	UserID    string
	Amount    int64 // positive credit, negative debit
	Reason    string
	OrderRef  *string
	CreatedAt time.Time
}

// Wallet summarises the user's balance alongside its ledger.
type Wallet struct {
	UserID    string
	Balance   int64
	UpdatedAt time.Time
}

// OrderEventType names the order lifecycle notifications published to Pub/Sub.
type OrderEventType string

const (
	// OrderEventPlaced fires once when an order is accepted.
	OrderEventPlaced OrderEventType = "order.placed"
	// OrderEventCancelled fires when an order is cancelled.
	OrderEventCancelled OrderEventType = "order.cancelled"
)

// OrderEvent is the payload published to the order events topic for
// downstream consumers (notifications, fulfilment, analytics).
type OrderEvent struct {
	Type        OrderEventType `json:"type"`
	OrderID     string         `json:"orderId"`
	OrderNumber string         `json:"orderNumber"`
	UserID      string         `json:"userId"`
	Total       int64          `json:"total"`
	Currency    string         `json:"currency"`
	OccurredAt  time.Time      `json:"occurredAt"`
}

// SalesReport aggregates order figures over a date range for admin reporting.
type SalesReport struct {
	From           time.Time
	To             time.Time
	OrderCount     int
	GrossSales     int64
	OfferSavings   int64
	DiscountsGiven int64
	ShippingFees   int64
	NetSales       int64
	ByDay          []SalesReportRow
	TopProducts    []ProductSales
}

// SalesReportRow is a single day's slice of the report.
type SalesReportRow struct {
	Date       string
	OrderCount int
	NetSales   int64
}

// ProductSales tallies units and revenue per product for the report period.
type ProductSales struct {
	ProductID string
	Name      string
	Units     int
	Revenue   int64
}

// HealthStatus grades the outcome of a dependency probe.
type HealthStatus string

const (
	// HealthStatusOK means the dependency responded normally.
	HealthStatusOK HealthStatus = "ok"
	// HealthStatusDegraded means the dependency responded with an error.
	HealthStatusDegraded HealthStatus = "degraded"
	// HealthStatusError means the dependency timed out or was unreachable.
	HealthStatusError HealthStatus = "error"
)

// SystemHealthCheck records one dependency probe result.
type SystemHealthCheck struct {
	Status    HealthStatus
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency probes for readiness endpoints.
type SystemHealthReport struct {
	Status      HealthStatus
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
