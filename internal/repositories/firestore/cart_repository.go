package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/kharidari/api/internal/domain"
	pfirestore "github.com/kharidari/api/internal/platform/firestore"
	"github.com/kharidari/api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists carts within Firestore, one document per user.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)
	return &CartRepository{base: base}, nil
}

// UpsertCart persists the cart document using the user ID as document identifier.
func (r *CartRepository) UpsertCart(ctx context.Context, cart domain.Cart, expectedUpdate *time.Time) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}

	cartID := strings.TrimSpace(cart.UserID)
	if cartID == "" {
		cartID = strings.TrimSpace(cart.ID)
	}
	if cartID == "" {
		return domain.Cart{}, errors.New("cart repository: cart id is required")
	}

	now := time.Now().UTC()
	if !cart.UpdatedAt.IsZero() {
		now = cart.UpdatedAt.UTC()
	}
	createdAt := cart.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := encodeCartDocument(cart, createdAt, now)

	if expectedUpdate == nil || expectedUpdate.IsZero() {
		result, err := r.base.Set(ctx, cartID, doc)
		if err != nil {
			return domain.Cart{}, err
		}
		saved := decodeCartDocument(cartID, doc, createdAt, result.UpdateTime)
		return saved, nil
	}

	updates := []firestore.Update{
		{Path: "currency", Value: doc.Currency},
		{Path: "updatedAt", Value: doc.UpdatedAt},
	}

	if len(doc.Items) == 0 {
		updates = append(updates, firestore.Update{Path: "items", Value: firestore.Delete})
	} else {
		updates = append(updates, firestore.Update{Path: "items", Value: doc.Items})
	}
	if doc.Discount == nil {
		updates = append(updates, firestore.Update{Path: "discount", Value: firestore.Delete})
	} else {
		updates = append(updates, firestore.Update{Path: "discount", Value: doc.Discount})
	}
	if doc.Estimate == nil {
		updates = append(updates, firestore.Update{Path: "estimate", Value: firestore.Delete})
	} else {
		updates = append(updates, firestore.Update{Path: "estimate", Value: doc.Estimate})
	}
	if len(doc.Metadata) == 0 {
		updates = append(updates, firestore.Update{Path: "metadata", Value: firestore.Delete})
	} else {
		updates = append(updates, firestore.Update{Path: "metadata", Value: doc.Metadata})
	}

	result, err := r.base.Update(ctx, cartID, updates, firestore.LastUpdateTime(expectedUpdate.UTC()))
	if err != nil {
		return domain.Cart{}, err
	}

	saved := decodeCartDocument(cartID, doc, createdAt, result.UpdateTime)
	return saved, nil
}

// GetCart loads the cart for the given user ID.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}

	createdAt := doc.Data.CreatedAt
	if createdAt.IsZero() {
		createdAt = doc.CreateTime
	}
	updatedAt := doc.UpdateTime
	if updatedAt.IsZero() {
		updatedAt = doc.Data.UpdatedAt
	}
	return decodeCartDocument(doc.ID, doc.Data, createdAt, updatedAt), nil
}

// DeleteCart removes the cart document, typically after order submission.
func (r *CartRepository) DeleteCart(ctx context.Context, userID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("cart repository: user id is required")
	}
	_, err := r.base.Delete(ctx, uid)
	return err
}

func encodeCartDocument(cart domain.Cart, createdAt, updatedAt time.Time) cartDocument {
	doc := cartDocument{
		Currency:  strings.ToUpper(strings.TrimSpace(cart.Currency)),
		Metadata:  cloneAnyMap(cart.Metadata),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	for _, item := range cart.Items {
		doc.Items = append(doc.Items, cartItemDocument{
			ID:        item.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt.UTC(),
			UpdatedAt: item.UpdatedAt,
		})
	}
	if cart.Discount != nil {
		doc.Discount = &cartDiscountDocument{
			DiscountID: cart.Discount.DiscountID,
			Code:       cart.Discount.Code,
			Name:       cart.Discount.Name,
			Kind:       string(cart.Discount.Kind),
			SelectedAt: cart.Discount.SelectedAt.UTC(),
		}
	}
	if cart.Estimate != nil {
		doc.Estimate = &cartEstimateDocument{
			Subtotal:              cart.Estimate.Subtotal,
			UndiscountedSubtotal:  cart.Estimate.UndiscountedSubtotal,
			OfferSavings:          cart.Estimate.OfferSavings,
			DiscountAmount:        cart.Estimate.DiscountAmount,
			SubtotalAfterDiscount: cart.Estimate.SubtotalAfterDiscount,
			Shipping:              cart.Estimate.Shipping,
			Total:                 cart.Estimate.Total,
		}
	}
	return doc
}

func decodeCartDocument(id string, doc cartDocument, createdAt, updatedAt time.Time) domain.Cart {
	cart := domain.Cart{
		ID:        id,
		UserID:    id,
		Currency:  strings.ToUpper(strings.TrimSpace(doc.Currency)),
		Items:     make([]domain.LineItem, 0, len(doc.Items)),
		Metadata:  cloneAnyMap(doc.Metadata),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	for _, item := range doc.Items {
		cart.Items = append(cart.Items, domain.LineItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
			UpdatedAt: item.UpdatedAt,
		})
	}
	if doc.Discount != nil {
		cart.Discount = &domain.DiscountSelection{
			DiscountID: doc.Discount.DiscountID,
			Code:       doc.Discount.Code,
			Name:       doc.Discount.Name,
			Kind:       domain.DiscountKind(doc.Discount.Kind),
			SelectedAt: doc.Discount.SelectedAt,
		}
	}
	if doc.Estimate != nil {
		cart.Estimate = &domain.PricingResult{
			Currency:              cart.Currency,
			Subtotal:              doc.Estimate.Subtotal,
			UndiscountedSubtotal:  doc.Estimate.UndiscountedSubtotal,
			OfferSavings:          doc.Estimate.OfferSavings,
			DiscountAmount:        doc.Estimate.DiscountAmount,
			SubtotalAfterDiscount: doc.Estimate.SubtotalAfterDiscount,
			Shipping:              doc.Estimate.Shipping,
			Total:                 doc.Estimate.Total,
		}
	}
	return cart
}

type cartDocument struct {
	Currency  string                `firestore:"currency"`
	Items     []cartItemDocument    `firestore:"items,omitempty"`
	Discount  *cartDiscountDocument `firestore:"discount,omitempty"`
	Estimate  *cartEstimateDocument `firestore:"estimate,omitempty"`
	Metadata  map[string]any        `firestore:"metadata,omitempty"`
	CreatedAt time.Time             `firestore:"createdAt"`
	UpdatedAt time.Time             `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ID        string     `firestore:"id"`
	ProductID string     `firestore:"productId"`
	VariantID string     `firestore:"variantId,omitempty"`
	Name      string     `firestore:"name,omitempty"`
	UnitPrice int64      `firestore:"unitPrice"`
	Quantity  int        `firestore:"quantity"`
	AddedAt   time.Time  `firestore:"addedAt"`
	UpdatedAt *time.Time `firestore:"updatedAt,omitempty"`
}

type cartDiscountDocument struct {
	DiscountID string    `firestore:"discountId"`
	Code       string    `firestore:"code,omitempty"`
	Name       string    `firestore:"name,omitempty"`
	Kind       string    `firestore:"kind"`
	SelectedAt time.Time `firestore:"selectedAt"`
}

type cartEstimateDocument struct {
	Subtotal              int64 `firestore:"subtotal"`
	UndiscountedSubtotal  int64 `firestore:"undiscountedSubtotal"`
	OfferSavings          int64 `firestore:"offerSavings"`
	DiscountAmount        int64 `firestore:"discountAmount"`
	SubtotalAfterDiscount int64 `firestore:"subtotalAfterDiscount"`
	Shipping              int64 `firestore:"shipping"`
	Total                 int64 `firestore:"total"`
}

var _ repositories.CartRepository = (*CartRepository)(nil)
