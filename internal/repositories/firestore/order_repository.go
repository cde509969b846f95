package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/kharidari/api/internal/domain"
	pfirestore "github.com/kharidari/api/internal/platform/firestore"
	"github.com/kharidari/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists order snapshots taken at submission time.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{base: base}, nil
}

// Insert stores a new order document. The ID must be unique.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}
	doc := encodeOrderDocument(order)
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update replaces the persisted order state with the provided snapshot.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	doc := encodeOrderDocument(order)
	if _, err := r.base.Set(ctx, orderID, doc); err != nil {
		return err
	}
	return nil
}

// FindByID fetches a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrderDocument(orderID, doc.Data, doc.UpdateTime), nil
}

// List returns orders sorted by placement time, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	userID := strings.TrimSpace(filter.UserID)
	statuses := normaliseOrderStatuses(filter.Status)

	var placedFrom, placedTo *time.Time
	if filter.DateRange.From != nil {
		value := filter.DateRange.From.UTC()
		if !value.IsZero() {
			placedFrom = &value
		}
	}
	if filter.DateRange.To != nil {
		value := filter.DateRange.To.UTC()
		if !value.IsZero() {
			placedTo = &value
		}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if userID != "" {
			q = q.Where("userId", "==", userID)
		}
		if len(statuses) == 1 {
			q = q.Where("status", "==", statuses[0])
		} else if len(statuses) > 1 {
			if len(statuses) > firestoreClauseLimit {
				statuses = statuses[:firestoreClauseLimit]
			}
			q = q.Where("status", "in", statuses)
		}
		if placedFrom != nil {
			q = q.Where("placedAt", ">=", *placedFrom)
		}
		if placedTo != nil {
			q = q.Where("placedAt", "<=", *placedTo)
		}
		q = q.OrderBy("placedAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		tokenTime := last.Data.PlacedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = encodeListToken(tokenTime, last.ID)
		docs = docs[:limit]
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrderDocument(doc.ID, doc.Data, doc.UpdateTime))
	}
	return domain.CursorPage[domain.Order]{Items: orders, NextPageToken: nextToken}, nil
}

// ListPlacedBetween streams every order placed inside the inclusive range,
// oldest first, for reporting aggregation.
func (r *OrderRepository) ListPlacedBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	if from.IsZero() || to.IsZero() {
		return nil, errors.New("order repository: range bounds are required")
	}
	if to.Before(from) {
		return nil, errors.New("order repository: range end precedes start")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.
			Where("placedAt", ">=", from.UTC()).
			Where("placedAt", "<=", to.UTC()).
			OrderBy("placedAt", firestore.Asc).
			OrderBy(firestore.DocumentID, firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrderDocument(doc.ID, doc.Data, doc.UpdateTime))
	}
	return orders, nil
}

func normaliseOrderStatuses(statuses []domain.OrderStatus) []string {
	if len(statuses) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(statuses))
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		value := strings.TrimSpace(string(status))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func encodeOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber:   strings.TrimSpace(order.OrderNumber),
		UserID:        strings.TrimSpace(order.UserID),
		Status:        string(order.Status),
		Currency:      strings.ToUpper(strings.TrimSpace(order.Currency)),
		Totals:        encodePricingTotals(order.Totals),
		PaymentMethod: string(order.PaymentMethod),
		WalletApplied: order.WalletApplied,
		AmountDue:     order.AmountDue,
		PlacedAt:      order.PlacedAt.UTC(),
		UpdatedAt:     order.UpdatedAt.UTC(),
	}
	for _, item := range order.Items {
		line := orderLineDocument{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			FinalUnitPrice: item.FinalUnitPrice,
			LineTotal:      item.LineTotal,
		}
		if item.Offer != nil {
			line.Offer = &appliedOfferDocument{
				OfferID:    item.Offer.OfferID,
				OfferName:  item.Offer.OfferName,
				UnitAmount: item.Offer.UnitAmount,
				LineAmount: item.Offer.LineAmount,
			}
		}
		doc.Items = append(doc.Items, line)
	}
	if order.Discount != nil {
		doc.Discount = &appliedDiscountDocument{
			DiscountID: order.Discount.DiscountID,
			Code:       order.Discount.Code,
			Name:       order.Discount.Name,
			Kind:       string(order.Discount.Kind),
			Amount:     order.Discount.Amount,
		}
	}
	if order.ShippingAddress != nil {
		addr := *order.ShippingAddress
		doc.ShippingAddress = &orderAddressDocument{
			Recipient:  addr.Recipient,
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
			Phone:      addr.Phone,
		}
	}
	if order.CancelReason != nil {
		reason := strings.TrimSpace(*order.CancelReason)
		if reason != "" {
			doc.CancelReason = &reason
		}
	}
	if order.DeliveredAt != nil {
		value := order.DeliveredAt.UTC()
		doc.DeliveredAt = &value
	}
	if order.CancelledAt != nil {
		value := order.CancelledAt.UTC()
		doc.CancelledAt = &value
	}
	return doc
}

func decodeOrderDocument(id string, doc orderDocument, updateTime time.Time) domain.Order {
	order := domain.Order{
		ID:            id,
		OrderNumber:   doc.OrderNumber,
		UserID:        doc.UserID,
		Status:        domain.OrderStatus(doc.Status),
		Currency:      doc.Currency,
		Totals:        decodePricingTotals(doc.Currency, doc.Totals),
		PaymentMethod: domain.PaymentMethod(doc.PaymentMethod),
		WalletApplied: doc.WalletApplied,
		AmountDue:     doc.AmountDue,
		PlacedAt:      doc.PlacedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = updateTime
	}
	for _, line := range doc.Items {
		item := domain.OrderLineItem{
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			Name:           line.Name,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			FinalUnitPrice: line.FinalUnitPrice,
			LineTotal:      line.LineTotal,
		}
		if line.Offer != nil {
			item.Offer = &domain.AppliedOffer{
				OfferID:    line.Offer.OfferID,
				OfferName:  line.Offer.OfferName,
				UnitAmount: line.Offer.UnitAmount,
				LineAmount: line.Offer.LineAmount,
			}
		}
		order.Items = append(order.Items, item)
	}
	if doc.Discount != nil {
		order.Discount = &domain.AppliedDiscount{
			DiscountID: doc.Discount.DiscountID,
			Code:       doc.Discount.Code,
			Name:       doc.Discount.Name,
			Kind:       domain.DiscountKind(doc.Discount.Kind),
			Amount:     doc.Discount.Amount,
		}
	}
	if doc.ShippingAddress != nil {
		order.ShippingAddress = &domain.Address{
			Recipient:  doc.ShippingAddress.Recipient,
			Line1:      doc.ShippingAddress.Line1,
			Line2:      doc.ShippingAddress.Line2,
			City:       doc.ShippingAddress.City,
			State:      doc.ShippingAddress.State,
			PostalCode: doc.ShippingAddress.PostalCode,
			Country:    doc.ShippingAddress.Country,
			Phone:      doc.ShippingAddress.Phone,
		}
	}
	if doc.CancelReason != nil {
		reason := *doc.CancelReason
		order.CancelReason = &reason
	}
	if doc.DeliveredAt != nil {
		value := *doc.DeliveredAt
		order.DeliveredAt = &value
	}
	if doc.CancelledAt != nil {
		value := *doc.CancelledAt
		order.CancelledAt = &value
	}
	return order
}

func encodePricingTotals(totals domain.PricingResult) pricingTotalsDocument {
	return pricingTotalsDocument{
		Subtotal:              totals.Subtotal,
		UndiscountedSubtotal:  totals.UndiscountedSubtotal,
		OfferSavings:          totals.OfferSavings,
		DiscountAmount:        totals.DiscountAmount,
		SubtotalAfterDiscount: totals.SubtotalAfterDiscount,
		Shipping:              totals.Shipping,
		Total:                 totals.Total,
	}
}

func decodePricingTotals(currency string, doc pricingTotalsDocument) domain.PricingResult {
	return domain.PricingResult{
		Currency:              currency,
		Subtotal:              doc.Subtotal,
		UndiscountedSubtotal:  doc.UndiscountedSubtotal,
		OfferSavings:          doc.OfferSavings,
		DiscountAmount:        doc.DiscountAmount,
		SubtotalAfterDiscount: doc.SubtotalAfterDiscount,
		Shipping:              doc.Shipping,
		Total:                 doc.Total,
	}
}

type orderDocument struct {
	OrderNumber     string                   `firestore:"orderNumber"`
	UserID          string                   `firestore:"userId"`
	Status          string                   `firestore:"status"`
	Currency        string                   `firestore:"currency"`
	Items           []orderLineDocument      `firestore:"items"`
	Discount        *appliedDiscountDocument `firestore:"discount,omitempty"`
	Totals          pricingTotalsDocument    `firestore:"totals"`
	PaymentMethod   string                   `firestore:"paymentMethod"`
	WalletApplied   int64                    `firestore:"walletApplied"`
	AmountDue       int64                    `firestore:"amountDue"`
	ShippingAddress *orderAddressDocument    `firestore:"shippingAddress,omitempty"`
	CancelReason    *string                  `firestore:"cancelReason,omitempty"`
	PlacedAt        time.Time                `firestore:"placedAt"`
	UpdatedAt       time.Time                `firestore:"updatedAt"`
	DeliveredAt     *time.Time               `firestore:"deliveredAt,omitempty"`
	CancelledAt     *time.Time               `firestore:"cancelledAt,omitempty"`
}

type orderLineDocument struct {
	ProductID      string                `firestore:"productId"`
	VariantID      string                `firestore:"variantId,omitempty"`
	Name           string                `firestore:"name"`
	Quantity       int                   `firestore:"quantity"`
	UnitPrice      int64                 `firestore:"unitPrice"`
	FinalUnitPrice int64                 `firestore:"finalUnitPrice"`
	LineTotal      int64                 `firestore:"lineTotal"`
	Offer          *appliedOfferDocument `firestore:"offer,omitempty"`
}

type appliedOfferDocument struct {
	OfferID    string `firestore:"offerId"`
	OfferName  string `firestore:"offerName,omitempty"`
	UnitAmount int64  `firestore:"unitAmount"`
	LineAmount int64  `firestore:"lineAmount"`
}

type appliedDiscountDocument struct {
	DiscountID string `firestore:"discountId"`
	Code       string `firestore:"code,omitempty"`
	Name       string `firestore:"name,omitempty"`
	Kind       string `firestore:"kind"`
	Amount     int64  `firestore:"amount"`
}

type orderAddressDocument struct {
	Recipient  string  `firestore:"recipient"`
	Line1      string  `firestore:"line1"`
	Line2      *string `firestore:"line2,omitempty"`
	City       string  `firestore:"city"`
	State      *string `firestore:"state,omitempty"`
	PostalCode string  `firestore:"postalCode"`
	Country    string  `firestore:"country"`
	Phone      *string `firestore:"phone,omitempty"`
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
