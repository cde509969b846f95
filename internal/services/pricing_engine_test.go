package services

import (
	"context"
	"errors"
	"testing"

	"github.com/kharidari/api/internal/domain"
)

func newTestEngine(t *testing.T) *PricingEngine {
	t.Helper()
	engine, err := NewPricingEngine(PricingEngineDeps{})
	if err != nil {
		t.Fatalf("NewPricingEngine: %v", err)
	}
	return engine
}

func int64Ptr(v int64) *int64 { return &v }

func TestApplyOfferPercentage(t *testing.T) {
	engine := newTestEngine(t)

	offer := &domain.Offer{ID: "off-1", DiscountType: domain.DiscountTypePercentage, DiscountValue: 20}
	if got := engine.ApplyOffer(50_000, offer); got != 40_000 {
		t.Fatalf("expected 40000, got %d", got)
	}
}

func TestApplyOfferPercentageRoundsHalfUp(t *testing.T) {
	engine := newTestEngine(t)

	// 15% of 333 paise = 49.95 -> rounds to 50.
	offer := &domain.Offer{ID: "off-1", DiscountType: domain.DiscountTypePercentage, DiscountValue: 15}
	if got := engine.ApplyOffer(333, offer); got != 283 {
		t.Fatalf("expected 283, got %d", got)
	}
}

func TestApplyOfferPercentageCap(t *testing.T) {
	engine := newTestEngine(t)

	offer := &domain.Offer{
		ID:              "off-1",
		DiscountType:    domain.DiscountTypePercentage,
		DiscountValue:   50,
		MaximumDiscount: int64Ptr(10_000),
	}
	if got := engine.ApplyOffer(50_000, offer); got != 40_000 {
		t.Fatalf("expected cap to limit reduction to 10000, got final price %d", got)
	}
}

func TestApplyOfferFixedClampsAtZero(t *testing.T) {
	engine := newTestEngine(t)

	offer := &domain.Offer{ID: "off-1", DiscountType: domain.DiscountTypeFixed, DiscountValue: 75_000}
	if got := engine.ApplyOffer(50_000, offer); got != 0 {
		t.Fatalf("expected price floor of zero, got %d", got)
	}
}

func TestApplyOfferNilAndZeroValueAreNoOps(t *testing.T) {
	engine := newTestEngine(t)

	if got := engine.ApplyOffer(50_000, nil); got != 50_000 {
		t.Fatalf("nil offer changed price: %d", got)
	}
	zero := &domain.Offer{ID: "off-1", DiscountType: domain.DiscountTypePercentage, DiscountValue: 0}
	if got := engine.ApplyOffer(50_000, zero); got != 50_000 {
		t.Fatalf("zero-value offer changed price: %d", got)
	}
}

func TestResolveDiscountClampsToSubtotal(t *testing.T) {
	engine := newTestEngine(t)

	discount := &domain.Discount{ID: "disc-1", DiscountType: domain.DiscountTypeFixed, DiscountValue: 10_000}
	if got := engine.ResolveDiscount(5_000, discount); got != 5_000 {
		t.Fatalf("expected discount clamped to subtotal, got %d", got)
	}
}

func TestResolveDiscountPercentageWithCap(t *testing.T) {
	engine := newTestEngine(t)

	discount := &domain.Discount{
		ID:              "disc-1",
		DiscountType:    domain.DiscountTypePercentage,
		DiscountValue:   50,
		MaximumDiscount: int64Ptr(10_000),
	}
	if got := engine.ResolveDiscount(50_000, discount); got != 10_000 {
		t.Fatalf("expected capped discount 10000, got %d", got)
	}
}

func TestShippingFeeThreshold(t *testing.T) {
	engine := newTestEngine(t)

	if got := engine.ShippingFee(100_000); got != 0 {
		t.Fatalf("expected free shipping at threshold, got %d", got)
	}
	if got := engine.ShippingFee(99_999); got != 10_000 {
		t.Fatalf("expected flat fee below threshold, got %d", got)
	}
}

func TestQuoteTwoItemsNoOfferFreeShipping(t *testing.T) {
	engine := newTestEngine(t)

	result, err := engine.Quote(context.Background(), QuoteCommand{
		Items: []domain.LineItem{
			{ID: "li-1", ProductID: "prod-1", UnitPrice: 100_000, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if result.Subtotal != 200_000 {
		t.Fatalf("subtotal = %d, want 200000", result.Subtotal)
	}
	if result.Shipping != 0 {
		t.Fatalf("shipping = %d, want 0", result.Shipping)
	}
	if result.Total != 200_000 {
		t.Fatalf("total = %d, want 200000", result.Total)
	}
}

func TestQuotePercentageOfferBelowThreshold(t *testing.T) {
	engine := newTestEngine(t)

	result, err := engine.Quote(context.Background(), QuoteCommand{
		Items: []domain.LineItem{
			{ID: "li-1", ProductID: "prod-1", UnitPrice: 50_000, Quantity: 1},
		},
		Offers: map[string]domain.Offer{
			"prod-1": {ID: "off-1", Name: "Monsoon 20", DiscountType: domain.DiscountTypePercentage, DiscountValue: 20},
		},
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if result.Subtotal != 40_000 {
		t.Fatalf("subtotal = %d, want 40000", result.Subtotal)
	}
	if result.Shipping != 10_000 {
		t.Fatalf("shipping = %d, want 10000", result.Shipping)
	}
	if result.Total != 50_000 {
		t.Fatalf("total = %d, want 50000", result.Total)
	}
	if len(result.Items) != 1 || result.Items[0].Offer == nil {
		t.Fatalf("expected applied offer on the line")
	}
	if result.Items[0].Offer.UnitAmount != 10_000 {
		t.Fatalf("offer unit amount = %d, want 10000", result.Items[0].Offer.UnitAmount)
	}
}

func TestQuoteFixedCouponKeepsFreeShipping(t *testing.T) {
	engine := newTestEngine(t)

	result, err := engine.Quote(context.Background(), QuoteCommand{
		Items: []domain.LineItem{
			{ID: "li-1", ProductID: "prod-1", UnitPrice: 100_000, Quantity: 2},
		},
		Discount: &domain.Discount{
			ID:            "disc-1",
			Code:          "FLAT300",
			Kind:          domain.DiscountKindCoupon,
			DiscountType:  domain.DiscountTypeFixed,
			DiscountValue: 30_000,
		},
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if result.DiscountAmount != 30_000 {
		t.Fatalf("discount = %d, want 30000", result.DiscountAmount)
	}
	if result.SubtotalAfterDiscount != 170_000 {
		t.Fatalf("after discount = %d, want 170000", result.SubtotalAfterDiscount)
	}
	if result.Shipping != 0 {
		t.Fatalf("shipping = %d, want 0", result.Shipping)
	}
	if result.Total != 170_000 {
		t.Fatalf("total = %d, want 170000", result.Total)
	}
}

func TestQuoteCappedPercentageDiscount(t *testing.T) {
	engine := newTestEngine(t)

	result, err := engine.Quote(context.Background(), QuoteCommand{
		Items: []domain.LineItem{
			{ID: "li-1", ProductID: "prod-1", UnitPrice: 50_000, Quantity: 1},
		},
		Discount: &domain.Discount{
			ID:              "disc-1",
			Code:            "HALF",
			Kind:            domain.DiscountKindCoupon,
			DiscountType:    domain.DiscountTypePercentage,
			DiscountValue:   50,
			MaximumDiscount: int64Ptr(10_000),
		},
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if result.DiscountAmount != 10_000 {
		t.Fatalf("discount = %d, want 10000", result.DiscountAmount)
	}
	if result.Total != 50_000 {
		t.Fatalf("total = %d, want 50000", result.Total)
	}
}

func TestQuoteOversizedFixedDiscountStillChargesShipping(t *testing.T) {
	engine := newTestEngine(t)

	result, err := engine.Quote(context.Background(), QuoteCommand{
		Items: []domain.LineItem{
			{ID: "li-1", ProductID: "prod-1", UnitPrice: 5_000, Quantity: 1},
		},
		Discount: &domain.Discount{
			ID:            "disc-1",
			Code:          "FLAT100",
			Kind:          domain.DiscountKindCoupon,
			DiscountType:  domain.DiscountTypeFixed,
			DiscountValue: 10_000,
		},
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if result.DiscountAmount != 5_000 {
		t.Fatalf("discount = %d, want clamp to 5000", result.DiscountAmount)
	}
	if result.SubtotalAfterDiscount != 0 {
		t.Fatalf("after discount = %d, want 0", result.SubtotalAfterDiscount)
	}
	if result.Shipping != 10_000 {
		t.Fatalf("shipping = %d, want 10000", result.Shipping)
	}
	if result.Total != 10_000 {
		t.Fatalf("total = %d, want 10000", result.Total)
	}
}

func TestQuoteEmptyCartIsAllZero(t *testing.T) {
	engine := newTestEngine(t)

	result, err := engine.Quote(context.Background(), QuoteCommand{})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if result.Subtotal != 0 || result.Shipping != 0 || result.Total != 0 {
		t.Fatalf("expected zero result, got %+v", result)
	}
}

func TestQuoteRejectsInvalidLines(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Quote(context.Background(), QuoteCommand{
		Items: []domain.LineItem{{ID: "li-1", ProductID: "prod-1", UnitPrice: 1_000, Quantity: 0}},
	})
	if !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected ErrPricingInvalidInput, got %v", err)
	}

	_, err = engine.Quote(context.Background(), QuoteCommand{
		Items: []domain.LineItem{{ID: "li-1", ProductID: "prod-1", UnitPrice: -1, Quantity: 1}},
	})
	if !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected ErrPricingInvalidInput, got %v", err)
	}
}

func TestQuoteIsDeterministic(t *testing.T) {
	engine := newTestEngine(t)

	cmd := QuoteCommand{
		Items: []domain.LineItem{
			{ID: "li-1", ProductID: "prod-1", UnitPrice: 33_333, Quantity: 3},
			{ID: "li-2", ProductID: "prod-2", UnitPrice: 12_345, Quantity: 2},
		},
		Offers: map[string]domain.Offer{
			"prod-1": {ID: "off-1", DiscountType: domain.DiscountTypePercentage, DiscountValue: 17},
		},
		Discount: &domain.Discount{
			ID:            "disc-1",
			DiscountType:  domain.DiscountTypePercentage,
			DiscountValue: 10,
		},
	}

	first, err := engine.Quote(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := engine.Quote(context.Background(), cmd)
		if err != nil {
			t.Fatalf("Quote run %d: %v", i, err)
		}
		if again.Total != first.Total || again.Subtotal != first.Subtotal || again.DiscountAmount != first.DiscountAmount {
			t.Fatalf("non-deterministic result on run %d: %+v vs %+v", i, again, first)
		}
	}
}

func TestQuoteInvariants(t *testing.T) {
	engine := newTestEngine(t)

	prices := []int64{0, 1, 99, 5_000, 33_333, 100_000, 250_000}
	quantities := []int{1, 2, 5}
	offers := []*domain.Offer{
		nil,
		{ID: "off-a", DiscountType: domain.DiscountTypePercentage, DiscountValue: 35},
		{ID: "off-b", DiscountType: domain.DiscountTypePercentage, DiscountValue: 80, MaximumDiscount: int64Ptr(7_500)},
		{ID: "off-c", DiscountType: domain.DiscountTypeFixed, DiscountValue: 40_000},
	}
	discounts := []*domain.Discount{
		nil,
		{ID: "d-a", DiscountType: domain.DiscountTypeFixed, DiscountValue: 60_000},
		{ID: "d-b", DiscountType: domain.DiscountTypePercentage, DiscountValue: 25, MaximumDiscount: int64Ptr(20_000)},
	}

	for _, price := range prices {
		for _, qty := range quantities {
			for _, offer := range offers {
				for _, discount := range discounts {
					cmd := QuoteCommand{
						Items: []domain.LineItem{{ID: "li-1", ProductID: "prod-1", UnitPrice: price, Quantity: qty}},
					}
					if offer != nil {
						cmd.Offers = map[string]domain.Offer{"prod-1": *offer}
					}
					cmd.Discount = discount

					result, err := engine.Quote(context.Background(), cmd)
					if err != nil {
						t.Fatalf("Quote(price=%d qty=%d): %v", price, qty, err)
					}
					if result.Total < 0 {
						t.Fatalf("negative total %d for price=%d qty=%d", result.Total, price, qty)
					}
					if result.DiscountAmount > result.Subtotal {
						t.Fatalf("discount %d exceeds subtotal %d", result.DiscountAmount, result.Subtotal)
					}
					if result.Subtotal > result.UndiscountedSubtotal {
						t.Fatalf("offers increased subtotal: %d > %d", result.Subtotal, result.UndiscountedSubtotal)
					}
					for _, line := range result.Items {
						if line.FinalUnitPrice < 0 || line.FinalUnitPrice > line.UnitPrice {
							t.Fatalf("line final unit price out of range: %+v", line)
						}
					}
				}
			}
		}
	}
}

func TestQuoteCustomShippingPolicy(t *testing.T) {
	engine, err := NewPricingEngine(PricingEngineDeps{
		Shipping: &ShippingPolicy{FreeShippingThreshold: 50_000, FlatFee: 5_000},
	})
	if err != nil {
		t.Fatalf("NewPricingEngine: %v", err)
	}

	result, err := engine.Quote(context.Background(), QuoteCommand{
		Items: []domain.LineItem{{ID: "li-1", ProductID: "prod-1", UnitPrice: 50_000, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if result.Shipping != 0 {
		t.Fatalf("expected free shipping under custom threshold, got %d", result.Shipping)
	}
}
