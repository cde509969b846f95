package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/kharidari/api/internal/domain"
	pfirestore "github.com/kharidari/api/internal/platform/firestore"
	"github.com/kharidari/api/internal/repositories"
)

const offersCollection = "offers"

// Firestore caps "in" and "array-contains-any" clauses at 10 operands.
const firestoreClauseLimit = 10

// OfferRepository persists per-product offer definitions.
type OfferRepository struct {
	base *pfirestore.BaseRepository[offerDocument]
}

// NewOfferRepository constructs a Firestore-backed offer repository.
func NewOfferRepository(provider *pfirestore.Provider) (*OfferRepository, error) {
	if provider == nil {
		return nil, errors.New("offer repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[offerDocument](provider, offersCollection, nil, nil)
	return &OfferRepository{base: base}, nil
}

// Insert stores a new offer document. The ID must be unique.
func (r *OfferRepository) Insert(ctx context.Context, offer domain.Offer) error {
	if r == nil || r.base == nil {
		return errors.New("offer repository not initialised")
	}
	offerID := strings.TrimSpace(offer.ID)
	if offerID == "" {
		return errors.New("offer repository: offer id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, offerID)
	if err != nil {
		return err
	}
	doc := encodeOfferDocument(offer)
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("offers.insert", err)
	}
	return nil
}

// Update replaces the persisted offer state with the provided snapshot.
func (r *OfferRepository) Update(ctx context.Context, offer domain.Offer) error {
	if r == nil || r.base == nil {
		return errors.New("offer repository not initialised")
	}
	offerID := strings.TrimSpace(offer.ID)
	if offerID == "" {
		return errors.New("offer repository: offer id is required")
	}
	doc := encodeOfferDocument(offer)
	if _, err := r.base.Set(ctx, offerID, doc); err != nil {
		return err
	}
	return nil
}

// Delete removes the offer definition.
func (r *OfferRepository) Delete(ctx context.Context, offerID string) error {
	if r == nil || r.base == nil {
		return errors.New("offer repository not initialised")
	}
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return errors.New("offer repository: offer id is required")
	}
	_, err := r.base.Delete(ctx, offerID)
	return err
}

// FindByID fetches a single offer.
func (r *OfferRepository) FindByID(ctx context.Context, offerID string) (domain.Offer, error) {
	if r == nil || r.base == nil {
		return domain.Offer{}, errors.New("offer repository not initialised")
	}
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return domain.Offer{}, errors.New("offer repository: offer id is required")
	}
	doc, err := r.base.Get(ctx, offerID)
	if err != nil {
		return domain.Offer{}, err
	}
	return decodeOfferDocument(offerID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// List returns offers ordered by most recent update, optionally scoped to a product.
func (r *OfferRepository) List(ctx context.Context, filter repositories.OfferListFilter) (domain.CursorPage[domain.Offer], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Offer]{}, errors.New("offer repository not initialised")
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
			return domain.CursorPage[domain.Offer]{}, fmt.Errorf("offer repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	productID := ""
	if filter.ProductID != nil {
		productID = strings.TrimSpace(*filter.ProductID)
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if productID != "" {
			q = q.Where("productIds", "array-contains", productID)
		}
		if filter.ActiveOnly {
			q = q.Where("active", "==", true)
		}
		q = q.OrderBy("updatedAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Offer]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		tokenTime := last.Data.UpdatedAt
		if tokenTime.IsZero() {
			tokenTime = last.UpdateTime
		}
		nextToken = encodeListToken(tokenTime, last.ID)
		docs = docs[:limit]
	}

	now := filter.Now
	offers := make([]domain.Offer, 0, len(docs))
	for _, doc := range docs {
		offer := decodeOfferDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime)
		if filter.ActiveOnly && !now.IsZero() && !offerWindowContains(offer, now) {
			continue
		}
		offers = append(offers, offer)
	}

	return domain.CursorPage[domain.Offer]{Items: offers, NextPageToken: nextToken}, nil
}

// ListActiveByProducts returns active offers covering the given products,
// keyed by product id. Product ids are queried in chunks because of the
// array-contains-any operand cap; validity windows are filtered in memory
// since Firestore cannot combine range filters on two fields.
func (r *OfferRepository) ListActiveByProducts(ctx context.Context, productIDs []string, now time.Time) (map[string][]domain.Offer, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("offer repository not initialised")
	}

	wanted := make(map[string]struct{}, len(productIDs))
	unique := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := wanted[id]; ok {
			continue
		}
		wanted[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return map[string][]domain.Offer{}, nil
	}

	seen := make(map[string]struct{})
	result := make(map[string][]domain.Offer, len(unique))

	for _, chunk := range chunkStrings(unique, firestoreClauseLimit) {
		chunk := chunk
		docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
			return q.
				Where("productIds", "array-contains-any", chunk).
				Where("active", "==", true)
		})
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if _, ok := seen[doc.ID]; ok {
				continue
			}
			seen[doc.ID] = struct{}{}

			offer := decodeOfferDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime)
			if !offerWindowContains(offer, now) {
				continue
			}
			for _, productID := range offer.ProductIDs {
				if _, ok := wanted[productID]; !ok {
					continue
				}
				result[productID] = append(result[productID], offer)
			}
		}
	}

	for productID := range result {
		offers := result[productID]
		sort.Slice(offers, func(i, j int) bool { return offers[i].ID < offers[j].ID })
		result[productID] = offers
	}
	return result, nil
}

func offerWindowContains(offer domain.Offer, now time.Time) bool {
	if now.IsZero() {
		return true
	}
	if !offer.StartsAt.IsZero() && now.Before(offer.StartsAt) {
		return false
	}
	if !offer.EndsAt.IsZero() && now.After(offer.EndsAt) {
		return false
	}
	return true
}

func encodeOfferDocument(offer domain.Offer) offerDocument {
	doc := offerDocument{
		Name:          strings.TrimSpace(offer.Name),
		DiscountType:  string(offer.DiscountType),
		DiscountValue: offer.DiscountValue,
		Active:        offer.Active,
		StartsAt:      offer.StartsAt.UTC(),
		EndsAt:        offer.EndsAt.UTC(),
		CreatedAt:     offer.CreatedAt.UTC(),
		UpdatedAt:     offer.UpdatedAt.UTC(),
	}
	if offer.MaximumDiscount != nil {
		value := *offer.MaximumDiscount
		doc.MaximumDiscount = &value
	}
	for _, productID := range offer.ProductIDs {
		productID = strings.TrimSpace(productID)
		if productID == "" {
			continue
		}
		doc.ProductIDs = append(doc.ProductIDs, productID)
	}
	return doc
}

func decodeOfferDocument(id string, doc offerDocument, createTime, updateTime time.Time) domain.Offer {
	offer := domain.Offer{
		ID:            id,
		Name:          doc.Name,
		DiscountType:  domain.DiscountType(doc.DiscountType),
		DiscountValue: doc.DiscountValue,
		ProductIDs:    append([]string(nil), doc.ProductIDs...),
		Active:        doc.Active,
		StartsAt:      doc.StartsAt,
		EndsAt:        doc.EndsAt,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	if doc.MaximumDiscount != nil {
		value := *doc.MaximumDiscount
		offer.MaximumDiscount = &value
	}
	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = createTime
	}
	if offer.UpdatedAt.IsZero() {
		offer.UpdatedAt = updateTime
	}
	return offer
}

type offerDocument struct {
	Name            string    `firestore:"name"`
	DiscountType    string    `firestore:"discountType"`
	DiscountValue   int64     `firestore:"discountValue"`
	MaximumDiscount *int64    `firestore:"maximumDiscount,omitempty"`
	ProductIDs      []string  `firestore:"productIds"`
	Active          bool      `firestore:"active"`
	StartsAt        time.Time `firestore:"startsAt"`
	EndsAt          time.Time `firestore:"endsAt"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

var _ repositories.OfferRepository = (*OfferRepository)(nil)
