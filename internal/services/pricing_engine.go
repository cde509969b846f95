package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrPricingInvalidInput signals bad request data such as non-positive quantities or negative prices.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
)

// ShippingPolicy names the flat-rate shipping rule: orders at or above the
// threshold ship free, everything else pays the flat fee. Both values are
// configuration, not business rules baked into the engine.
type ShippingPolicy struct {
	FreeShippingThreshold int64
	FlatFee               int64
}

// DefaultShippingPolicy mirrors the storefront defaults (amounts in paise).
var DefaultShippingPolicy = ShippingPolicy{
	FreeShippingThreshold: 100_000,
	FlatFee:               10_000,
}

// PricingEngine computes order totals from cart lines, resolved per-product
// offers, and at most one order-level discount. It is pure: no I/O, no hidden
// state, and identical inputs always produce an identical PricingResult.
type PricingEngine struct {
	shipping ShippingPolicy
	logger   func(context.Context, string, map[string]any)
}

// PricingEngineDeps bundles construction parameters for the engine.
type PricingEngineDeps struct {
	Shipping *ShippingPolicy
	Logger   func(context.Context, string, map[string]any)
}

// NewPricingEngine constructs the engine, falling back to default shipping policy.
func NewPricingEngine(deps PricingEngineDeps) (*PricingEngine, error) {
	shipping := DefaultShippingPolicy
	if deps.Shipping != nil {
		if deps.Shipping.FreeShippingThreshold < 0 || deps.Shipping.FlatFee < 0 {
			return nil, errors.New("pricing engine: shipping policy amounts cannot be negative")
		}
		shipping = *deps.Shipping
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &PricingEngine{shipping: shipping, logger: logger}, nil
}

// QuoteCommand carries everything the engine needs for one calculation.
// Offers maps product id to the already-resolved best offer for that product;
// a missing entry means no offer applies to the line. Discount is the single
// active coupon or account discount, already validated for eligibility by the
// caller, or nil.
type QuoteCommand struct {
	Currency string
	Items    []LineItem
	Offers   map[string]Offer
	Discount *Discount
}

// ApplyOffer returns the effective unit price after the offer. A nil offer or
// a zero discount value leaves the base price unchanged; the result is never
// negative and never exceeds the base price.
func (e *PricingEngine) ApplyOffer(basePrice int64, offer *Offer) int64 {
	if basePrice <= 0 {
		return 0
	}
	reduction := offerReduction(basePrice, offer)
	if reduction >= basePrice {
		return 0
	}
	return basePrice - reduction
}

func offerReduction(basePrice int64, offer *Offer) int64 {
	if offer == nil || basePrice <= 0 {
		return 0
	}
	switch offer.DiscountType {
	case DiscountTypePercentage:
		raw := percentOf(basePrice, offer.DiscountValue)
		if offer.MaximumDiscount != nil && raw > *offer.MaximumDiscount {
			raw = *offer.MaximumDiscount
		}
		if raw < 0 {
			return 0
		}
		return raw
	case DiscountTypeFixed:
		if offer.DiscountValue < 0 {
			return 0
		}
		return offer.DiscountValue
	default:
		return 0
	}
}

// ResolveDiscount computes the order-level discount amount for the given
// subtotal. Eligibility (minimum amount, usage caps, validity window) is the
// caller's responsibility; this function only computes and clamps so the
// result never exceeds the subtotal.
func (e *PricingEngine) ResolveDiscount(subtotal int64, discount *Discount) int64 {
	if discount == nil || subtotal <= 0 {
		return 0
	}
	var raw int64
	switch discount.DiscountType {
	case DiscountTypePercentage:
		raw = percentOf(subtotal, discount.DiscountValue)
		if discount.MaximumDiscount != nil && raw > *discount.MaximumDiscount {
			raw = *discount.MaximumDiscount
		}
	case DiscountTypeFixed:
		raw = discount.DiscountValue
	default:
		return 0
	}
	if raw < 0 {
		return 0
	}
	if raw > subtotal {
		return subtotal
	}
	return raw
}

// ShippingFee applies the flat threshold rule to the discounted subtotal.
func (e *PricingEngine) ShippingFee(subtotalAfterDiscount int64) int64 {
	if subtotalAfterDiscount >= e.shipping.FreeShippingThreshold {
		return 0
	}
	return e.shipping.FlatFee
}

// Subtotal computes the discounted and undiscounted subtotals for the given
// lines without building a full quote. Used by callers that need the current
// subtotal for discount eligibility checks.
func (e *PricingEngine) Subtotal(items []LineItem, offers map[string]Offer) (subtotal, undiscounted int64, err error) {
	for _, item := range items {
		if err := validateLine(item); err != nil {
			return 0, 0, err
		}
		quantity := int64(item.Quantity)
		if item.UnitPrice > 0 && item.UnitPrice > math.MaxInt64/quantity {
			return 0, 0, fmt.Errorf("%w: line %s subtotal overflow", ErrPricingInvalidInput, item.ID)
		}
		lineBase := item.UnitPrice * quantity
		finalUnit := e.ApplyOffer(item.UnitPrice, offerFor(offers, item.ProductID))
		if undiscounted > math.MaxInt64-lineBase {
			return 0, 0, fmt.Errorf("%w: cart subtotal overflow", ErrPricingInvalidInput)
		}
		undiscounted += lineBase
		subtotal += finalUnit * quantity
	}
	return subtotal, undiscounted, nil
}

// Quote runs the full calculation: per-line offer application, subtotal,
// order-level discount, shipping, and grand total. The result also carries
// per-line applied-offer records for the order payload and invoice display.
func (e *PricingEngine) Quote(ctx context.Context, cmd QuoteCommand) (PricingResult, error) {
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = "INR"
	}

	result := PricingResult{
		Currency: currency,
		Items:    make([]LinePricing, 0, len(cmd.Items)),
	}

	for _, item := range cmd.Items {
		if err := validateLine(item); err != nil {
			return PricingResult{}, err
		}
		quantity := int64(item.Quantity)
		if item.UnitPrice > 0 && item.UnitPrice > math.MaxInt64/quantity {
			return PricingResult{}, fmt.Errorf("%w: line %s subtotal overflow", ErrPricingInvalidInput, item.ID)
		}

		offer := offerFor(cmd.Offers, item.ProductID)
		finalUnit := e.ApplyOffer(item.UnitPrice, offer)
		lineBase := item.UnitPrice * quantity
		lineTotal := finalUnit * quantity

		line := LinePricing{
			ItemID:         item.ID,
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			FinalUnitPrice: finalUnit,
			LineSubtotal:   lineBase,
			LineTotal:      lineTotal,
		}
		if offer != nil && finalUnit < item.UnitPrice {
			line.Offer = &AppliedOffer{
				OfferID:    offer.ID,
				OfferName:  offer.Name,
				UnitAmount: item.UnitPrice - finalUnit,
				LineAmount: lineBase - lineTotal,
			}
		}

		if result.UndiscountedSubtotal > math.MaxInt64-lineBase {
			return PricingResult{}, fmt.Errorf("%w: cart subtotal overflow", ErrPricingInvalidInput)
		}
		result.UndiscountedSubtotal += lineBase
		result.Subtotal += lineTotal
		result.Items = append(result.Items, line)
	}

	result.OfferSavings = result.UndiscountedSubtotal - result.Subtotal

	discountAmount := e.ResolveDiscount(result.Subtotal, cmd.Discount)
	if cmd.Discount != nil && discountAmount < computeRawDiscount(result.Subtotal, cmd.Discount) {
		e.logger(ctx, "pricing_discount_clamped", map[string]any{
			"discountId": cmd.Discount.ID,
			"subtotal":   result.Subtotal,
		})
	}
	result.DiscountAmount = discountAmount
	if cmd.Discount != nil && discountAmount >= 0 {
		result.Discount = &AppliedDiscount{
			DiscountID: cmd.Discount.ID,
			Code:       cmd.Discount.Code,
			Name:       cmd.Discount.Name,
			Kind:       cmd.Discount.Kind,
			Amount:     discountAmount,
		}
	}

	result.SubtotalAfterDiscount = result.Subtotal - discountAmount
	if result.SubtotalAfterDiscount < 0 {
		result.SubtotalAfterDiscount = 0
	}

	if len(result.Items) > 0 {
		result.Shipping = e.ShippingFee(result.SubtotalAfterDiscount)
	}

	result.Total = result.SubtotalAfterDiscount + result.Shipping
	if result.Total < 0 {
		result.Total = 0
	}

	return result, nil
}

func validateLine(item LineItem) error {
	if item.Quantity <= 0 {
		return fmt.Errorf("%w: line %s quantity must be positive", ErrPricingInvalidInput, item.ID)
	}
	if item.UnitPrice < 0 {
		return fmt.Errorf("%w: line %s unit price cannot be negative", ErrPricingInvalidInput, item.ID)
	}
	return nil
}

func offerFor(offers map[string]Offer, productID string) *Offer {
	if len(offers) == 0 {
		return nil
	}
	offer, ok := offers[productID]
	if !ok {
		return nil
	}
	return &offer
}

func computeRawDiscount(subtotal int64, discount *Discount) int64 {
	if discount == nil {
		return 0
	}
	switch discount.DiscountType {
	case DiscountTypePercentage:
		raw := percentOf(subtotal, discount.DiscountValue)
		if discount.MaximumDiscount != nil && raw > *discount.MaximumDiscount {
			raw = *discount.MaximumDiscount
		}
		return raw
	case DiscountTypeFixed:
		return discount.DiscountValue
	default:
		return 0
	}
}

// percentOf rounds half-up at currency precision.
func percentOf(base, percent int64) int64 {
	if base <= 0 || percent <= 0 {
		return 0
	}
	if base > (math.MaxInt64-50)/percent {
		return math.MaxInt64
	}
	return (base*percent + 50) / 100
}
