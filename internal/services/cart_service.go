package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/kharidari/api/internal/domain"
	"github.com/kharidari/api/internal/repositories"
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartNotFound indicates the requested cart does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartItemNotFound indicates the referenced line item is not in the cart.
var ErrCartItemNotFound = errors.New("cart service: item not found")

// ErrCartConflict indicates the cart changed concurrently and the write was rejected.
var ErrCartConflict = errors.New("cart service: conflict")

// ErrCartUnavailable indicates the cart backend cannot fulfil the request.
var ErrCartUnavailable = errors.New("cart service: unavailable")

const (
	defaultMaxQuantityPerItem = 5
	maxCartItemNameLength     = 300
)

// CartServiceDeps wires persistence, offer resolution, discount validation,
// and the pricing engine behind cart operations.
type CartServiceDeps struct {
	Repository         repositories.CartRepository
	Offers             OfferService
	Discounts          DiscountService
	Engine             *PricingEngine
	Clock              func() time.Time
	Logger             func(context.Context, string, map[string]any)
	IDGenerator        func() string
	DefaultCurrency    string
	MaxQuantityPerItem int
}

type cartService struct {
	repo      repositories.CartRepository
	offers    OfferService
	discounts DiscountService
	engine    *PricingEngine
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
	newID     func() string
	currency  string
	maxQty    int
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errors.New("cart service: repository is required")
	}
	if deps.Offers == nil {
		return nil, errors.New("cart service: offer service is required")
	}
	if deps.Discounts == nil {
		return nil, errors.New("cart service: discount service is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("cart service: pricing engine is required")
	}
	if deps.Clock == nil {
		return nil, errors.New("cart service: clock is required")
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "INR"
	}
	maxQty := deps.MaxQuantityPerItem
	if maxQty <= 0 {
		maxQty = defaultMaxQuantityPerItem
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &cartService{
		repo:      deps.Repository,
		offers:    deps.Offers,
		discounts: deps.Discounts,
		engine:    deps.Engine,
		now:       func() time.Time { return deps.Clock().UTC() },
		logger:    logger,
		newID:     idGen,
		currency:  currency,
		maxQty:    maxQty,
	}, nil
}

// GetOrCreateCart loads the active cart for the user, creating an empty cart when absent.
func (s *cartService) GetOrCreateCart(ctx context.Context, userID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, _, err := s.loadOrCreate(ctx, uid)
	if err != nil {
		return Cart{}, err
	}
	return s.withEstimate(ctx, cart)
}

// AddItem appends the product to the cart, merging quantities when the same
// product variant is already present.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	name := strings.TrimSpace(cmd.Name)
	if uid == "" || productID == "" {
		return Cart{}, ErrCartInvalidInput
	}
	if name == "" || len(name) > maxCartItemNameLength {
		return Cart{}, fmt.Errorf("%w: item name is required and must be at most %d characters", ErrCartInvalidInput, maxCartItemNameLength)
	}
	if cmd.UnitPrice < 0 {
		return Cart{}, fmt.Errorf("%w: unit price cannot be negative", ErrCartInvalidInput)
	}
	if cmd.Quantity < 1 || cmd.Quantity > s.maxQty {
		return Cart{}, fmt.Errorf("%w: quantity must be between 1 and %d", ErrCartInvalidInput, s.maxQty)
	}

	cart, existed, err := s.loadOrCreate(ctx, uid)
	if err != nil {
		return Cart{}, err
	}

	now := s.now()
	variantID := strings.TrimSpace(cmd.VariantID)
	merged := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID && cart.Items[i].VariantID == variantID {
			total := cart.Items[i].Quantity + cmd.Quantity
			if total > s.maxQty {
				return Cart{}, fmt.Errorf("%w: quantity for %s would exceed the limit of %d", ErrCartInvalidInput, productID, s.maxQty)
			}
			cart.Items[i].Quantity = total
			cart.Items[i].UnitPrice = cmd.UnitPrice
			cart.Items[i].Name = name
			updated := now
			cart.Items[i].UpdatedAt = &updated
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, domain.LineItem{
			ID:        s.newID(),
			ProductID: productID,
			VariantID: variantID,
			Name:      name,
			UnitPrice: cmd.UnitPrice,
			Quantity:  cmd.Quantity,
			AddedAt:   now,
		})
	}

	return s.persist(ctx, cart, existed)
}

// UpdateItemQuantity sets the quantity of an existing line.
func (s *cartService) UpdateItemQuantity(ctx context.Context, cmd UpdateCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	itemID := strings.TrimSpace(cmd.ItemID)
	if uid == "" || itemID == "" {
		return Cart{}, ErrCartInvalidInput
	}
	if cmd.Quantity < 1 || cmd.Quantity > s.maxQty {
		return Cart{}, fmt.Errorf("%w: quantity must be between 1 and %d", ErrCartInvalidInput, s.maxQty)
	}

	cart, err := s.load(ctx, uid)
	if err != nil {
		return Cart{}, err
	}

	found := false
	now := s.now()
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			cart.Items[i].Quantity = cmd.Quantity
			updated := now
			cart.Items[i].UpdatedAt = &updated
			found = true
			break
		}
	}
	if !found {
		return Cart{}, ErrCartItemNotFound
	}

	return s.persist(ctx, cart, true)
}

// RemoveItem drops the line from the cart.
func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	itemID := strings.TrimSpace(cmd.ItemID)
	if uid == "" || itemID == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.load(ctx, uid)
	if err != nil {
		return Cart{}, err
	}

	items := cart.Items[:0]
	found := false
	for _, item := range cart.Items {
		if item.ID == itemID {
			found = true
			continue
		}
		items = append(items, item)
	}
	if !found {
		return Cart{}, ErrCartItemNotFound
	}
	cart.Items = items

	return s.persist(ctx, cart, true)
}

// ClearCart removes the cart document entirely.
func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	if s == nil || s.repo == nil {
		return ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ErrCartInvalidInput
	}
	if err := s.repo.DeleteCart(ctx, uid); err != nil {
		if isRepoNotFound(err) {
			return nil
		}
		return s.translateRepoError(err)
	}
	return nil
}

// ApplyCoupon validates the code against the current subtotal and records the
// selection. A coupon replaces any previously selected discount: at most one
// order-level discount is ever active.
func (s *cartService) ApplyCoupon(ctx context.Context, cmd ApplyCouponCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.load(ctx, uid)
	if err != nil {
		return Cart{}, err
	}
	if len(cart.Items) == 0 {
		return Cart{}, fmt.Errorf("%w: cannot apply a coupon to an empty cart", ErrCartInvalidInput)
	}

	subtotal, err := s.currentSubtotal(ctx, cart)
	if err != nil {
		return Cart{}, err
	}

	discount, err := s.discounts.ValidateCoupon(ctx, ValidateCouponCommand{
		UserID:   uid,
		Code:     cmd.Code,
		Subtotal: subtotal,
	})
	if err != nil {
		return Cart{}, err
	}

	cart.Discount = &domain.DiscountSelection{
		DiscountID: discount.ID,
		Code:       discount.Code,
		Name:       discount.Name,
		Kind:       domain.DiscountKindCoupon,
		SelectedAt: s.now(),
	}

	return s.persist(ctx, cart, true)
}

// SelectAccountDiscount records an account discount selection, replacing any
// coupon already applied.
func (s *cartService) SelectAccountDiscount(ctx context.Context, cmd SelectAccountDiscountCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	discountID := strings.TrimSpace(cmd.DiscountID)
	if uid == "" || discountID == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.load(ctx, uid)
	if err != nil {
		return Cart{}, err
	}
	if len(cart.Items) == 0 {
		return Cart{}, fmt.Errorf("%w: cannot select a discount on an empty cart", ErrCartInvalidInput)
	}

	subtotal, err := s.currentSubtotal(ctx, cart)
	if err != nil {
		return Cart{}, err
	}

	discount, err := s.discounts.GetEligibleDiscount(ctx, EligibleDiscountQuery{
		UserID:     uid,
		DiscountID: discountID,
		Kind:       domain.DiscountKindAccount,
		Subtotal:   subtotal,
	})
	if err != nil {
		return Cart{}, err
	}

	cart.Discount = &domain.DiscountSelection{
		DiscountID: discount.ID,
		Name:       discount.Name,
		Kind:       domain.DiscountKindAccount,
		SelectedAt: s.now(),
	}

	return s.persist(ctx, cart, true)
}

// RemoveDiscount clears the active discount selection.
func (s *cartService) RemoveDiscount(ctx context.Context, userID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.load(ctx, uid)
	if err != nil {
		return Cart{}, err
	}
	cart.Discount = nil

	return s.persist(ctx, cart, true)
}

// Estimate prices the cart as it stands without mutating it.
func (s *cartService) Estimate(ctx context.Context, userID string) (PricingResult, error) {
	if s == nil || s.repo == nil {
		return PricingResult{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return PricingResult{}, ErrCartInvalidInput
	}

	cart, err := s.load(ctx, uid)
	if err != nil {
		return PricingResult{}, err
	}
	return s.price(ctx, cart)
}

func (s *cartService) load(ctx context.Context, userID string) (Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, ErrCartNotFound
		}
		return Cart{}, s.translateRepoError(err)
	}
	return s.normalise(cart, userID), nil
}

func (s *cartService) loadOrCreate(ctx context.Context, userID string) (Cart, bool, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return s.newCart(userID), false, nil
		}
		return Cart{}, false, s.translateRepoError(err)
	}
	return s.normalise(cart, userID), true, nil
}

func (s *cartService) newCart(userID string) Cart {
	now := s.now()
	return Cart{
		ID:        userID,
		UserID:    userID,
		Currency:  s.currency,
		Items:     []domain.LineItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *cartService) normalise(cart Cart, userID string) Cart {
	cart.ID = userID
	cart.UserID = userID
	if strings.TrimSpace(cart.Currency) == "" {
		cart.Currency = s.currency
	}
	if cart.Items == nil {
		cart.Items = []domain.LineItem{}
	}
	return cart
}

// persist prices the cart, stores the estimate snapshot, and writes with an
// optimistic-concurrency guard when the cart already existed.
func (s *cartService) persist(ctx context.Context, cart Cart, existed bool) (Cart, error) {
	estimate, err := s.price(ctx, cart)
	if err != nil {
		return Cart{}, err
	}
	cart.Estimate = &estimate

	var expected *time.Time
	if existed && !cart.UpdatedAt.IsZero() {
		expectedAt := cart.UpdatedAt
		expected = &expectedAt
	}
	cart.UpdatedAt = s.now()

	saved, err := s.repo.UpsertCart(ctx, cart, expected)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	saved.Estimate = &estimate
	return saved, nil
}

func (s *cartService) withEstimate(ctx context.Context, cart Cart) (Cart, error) {
	estimate, err := s.price(ctx, cart)
	if err != nil {
		return Cart{}, err
	}
	cart.Estimate = &estimate
	return cart, nil
}

// price resolves best offers, re-checks the selected discount against the
// current subtotal, and runs the engine. An ineligible selection is excluded
// from the quote but left on the cart so the storefront can surface why.
func (s *cartService) price(ctx context.Context, cart Cart) (PricingResult, error) {
	offers, err := s.resolveOffers(ctx, cart)
	if err != nil {
		return PricingResult{}, err
	}

	var discount *Discount
	if cart.Discount != nil {
		subtotal, _, err := s.engine.Subtotal(cart.Items, offers)
		if err != nil {
			return PricingResult{}, translateEngineError(err)
		}
		eligible, err := s.discounts.GetEligibleDiscount(ctx, EligibleDiscountQuery{
			UserID:     cart.UserID,
			DiscountID: cart.Discount.DiscountID,
			Kind:       cart.Discount.Kind,
			Subtotal:   subtotal,
		})
		switch {
		case err == nil:
			discount = &eligible
		case errors.Is(err, ErrDiscountUnavailable):
			return PricingResult{}, ErrCartUnavailable
		default:
			s.logger(ctx, "cart_discount_ineligible", map[string]any{
				"userId":     cart.UserID,
				"discountId": cart.Discount.DiscountID,
				"reason":     err.Error(),
			})
		}
	}

	result, err := s.engine.Quote(ctx, QuoteCommand{
		Currency: cart.Currency,
		Items:    cart.Items,
		Offers:   offers,
		Discount: discount,
	})
	if err != nil {
		return PricingResult{}, translateEngineError(err)
	}
	return result, nil
}

func (s *cartService) currentSubtotal(ctx context.Context, cart Cart) (int64, error) {
	offers, err := s.resolveOffers(ctx, cart)
	if err != nil {
		return 0, err
	}
	subtotal, _, err := s.engine.Subtotal(cart.Items, offers)
	if err != nil {
		return 0, translateEngineError(err)
	}
	return subtotal, nil
}

func (s *cartService) resolveOffers(ctx context.Context, cart Cart) (map[string]Offer, error) {
	if len(cart.Items) == 0 {
		return map[string]Offer{}, nil
	}
	unitPrices := make(map[string]int64, len(cart.Items))
	for _, item := range cart.Items {
		unitPrices[item.ProductID] = item.UnitPrice
	}
	offers, err := s.offers.BestOffersForProducts(ctx, unitPrices)
	if err != nil {
		return nil, ErrCartUnavailable
	}
	return offers, nil
}

func translateEngineError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPricingInvalidInput) {
		return ErrCartInvalidInput
	}
	return ErrCartUnavailable
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartNotFound
		case repoErr.IsConflict():
			return ErrCartConflict
		case repoErr.IsUnavailable():
			return ErrCartUnavailable
		}
	}
	return ErrCartUnavailable
}
