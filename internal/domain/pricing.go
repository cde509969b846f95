package domain

// PricingResult captures the aggregated monetary results of pricing a cart.
// All amounts are in the smallest currency unit.
type PricingResult struct {
	Currency string
	// UndiscountedSubtotal is the naive sum of unit price times quantity
	// before any offer is applied.
	UndiscountedSubtotal int64
	// Subtotal is the sum after per-product offers.
	Subtotal int64
	// OfferSavings is UndiscountedSubtotal minus Subtotal.
	OfferSavings int64
	// DiscountAmount is the order-level coupon or account discount.
	DiscountAmount        int64
	SubtotalAfterDiscount int64
	Shipping              int64
	Total                 int64
	Items                 []LinePricing
	Discount              *AppliedDiscount
}

// LinePricing stores the per-item pricing outputs after running the engine.
type LinePricing struct {
	ItemID         string
	ProductID      string
	VariantID      string
	Quantity       int
	UnitPrice      int64
	FinalUnitPrice int64
	LineSubtotal   int64
	LineTotal      int64
	Offer          *AppliedOffer
}

// AppliedOffer records which offer reduced a line and by how much per unit.
type AppliedOffer struct {
	OfferID    string
	OfferName  string
	UnitAmount int64
	LineAmount int64
}

// AppliedDiscount records the order-level discount actually applied.
type AppliedDiscount struct {
	DiscountID string
	Code       string
	Name       string
	Kind       DiscountKind
	Amount     int64
}
