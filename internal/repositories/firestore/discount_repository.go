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

const discountsCollection = "discounts"

// DiscountRepository persists coupon and account discount definitions.
type DiscountRepository struct {
	base *pfirestore.BaseRepository[discountDocument]
}

// NewDiscountRepository constructs a Firestore-backed discount repository.
func NewDiscountRepository(provider *pfirestore.Provider) (*DiscountRepository, error) {
	if provider == nil {
		return nil, errors.New("discount repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[discountDocument](provider, discountsCollection, nil, nil)
	return &DiscountRepository{base: base}, nil
}

// Insert stores a new discount document. The ID must be unique.
func (r *DiscountRepository) Insert(ctx context.Context, discount domain.Discount) error {
	if r == nil || r.base == nil {
		return errors.New("discount repository not initialised")
	}
	discountID := strings.TrimSpace(discount.ID)
	if discountID == "" {
		return errors.New("discount repository: discount id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, discountID)
	if err != nil {
		return err
	}
	doc := encodeDiscountDocument(discount)
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("discounts.insert", err)
	}
	return nil
}

// Update replaces the persisted discount state with the provided snapshot.
func (r *DiscountRepository) Update(ctx context.Context, discount domain.Discount) error {
	if r == nil || r.base == nil {
		return errors.New("discount repository not initialised")
	}
	discountID := strings.TrimSpace(discount.ID)
	if discountID == "" {
		return errors.New("discount repository: discount id is required")
	}
	doc := encodeDiscountDocument(discount)
	if _, err := r.base.Set(ctx, discountID, doc); err != nil {
		return err
	}
	return nil
}

// Delete removes the discount definition.
func (r *DiscountRepository) Delete(ctx context.Context, discountID string) error {
	if r == nil || r.base == nil {
		return errors.New("discount repository not initialised")
	}
	discountID = strings.TrimSpace(discountID)
	if discountID == "" {
		return errors.New("discount repository: discount id is required")
	}
	_, err := r.base.Delete(ctx, discountID)
	return err
}

// FindByID fetches a single discount.
func (r *DiscountRepository) FindByID(ctx context.Context, discountID string) (domain.Discount, error) {
	if r == nil || r.base == nil {
		return domain.Discount{}, errors.New("discount repository not initialised")
	}
	discountID = strings.TrimSpace(discountID)
	if discountID == "" {
		return domain.Discount{}, errors.New("discount repository: discount id is required")
	}
	doc, err := r.base.Get(ctx, discountID)
	if err != nil {
		return domain.Discount{}, err
	}
	return decodeDiscountDocument(discountID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// FindByCode resolves a coupon by its normalised code. Codes are unique per
// store; the first match wins.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (domain.Discount, error) {
	if r == nil || r.base == nil {
		return domain.Discount{}, errors.New("discount repository not initialised")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Discount{}, errors.New("discount repository: code is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("code", "==", code).Limit(1)
	})
	if err != nil {
		return domain.Discount{}, err
	}
	if len(docs) == 0 {
		return domain.Discount{}, pfirestore.NotFoundError("discounts.find_by_code")
	}
	doc := docs[0]
	return decodeDiscountDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// List returns discounts ordered by most recent update, optionally scoped by kind.
func (r *DiscountRepository) List(ctx context.Context, filter repositories.DiscountListFilter) (domain.CursorPage[domain.Discount], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Discount]{}, errors.New("discount repository not initialised")
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
			return domain.CursorPage[domain.Discount]{}, fmt.Errorf("discount repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	kind := ""
	if filter.Kind != nil {
		kind = strings.TrimSpace(string(*filter.Kind))
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if kind != "" {
			q = q.Where("kind", "==", kind)
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
		return domain.CursorPage[domain.Discount]{}, err
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

	discounts := make([]domain.Discount, 0, len(docs))
	for _, doc := range docs {
		discount := decodeDiscountDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime)
		if filter.ActiveOnly && !filter.Now.IsZero() && !discountWindowContains(discount, filter.Now) {
			continue
		}
		discounts = append(discounts, discount)
	}

	return domain.CursorPage[domain.Discount]{Items: discounts, NextPageToken: nextToken}, nil
}

// ListActiveByKind returns active discounts of the given kind whose validity
// window contains now. The window check runs in memory because Firestore
// cannot range-filter startsAt and endsAt in one query.
func (r *DiscountRepository) ListActiveByKind(ctx context.Context, kind domain.DiscountKind, now time.Time) ([]domain.Discount, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("discount repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.
			Where("kind", "==", string(kind)).
			Where("active", "==", true).
			OrderBy("updatedAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	discounts := make([]domain.Discount, 0, len(docs))
	for _, doc := range docs {
		discount := decodeDiscountDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime)
		if !discountWindowContains(discount, now) {
			continue
		}
		discounts = append(discounts, discount)
	}
	return discounts, nil
}

func discountWindowContains(discount domain.Discount, now time.Time) bool {
	if now.IsZero() {
		return true
	}
	if !discount.StartsAt.IsZero() && now.Before(discount.StartsAt) {
		return false
	}
	if !discount.EndsAt.IsZero() && now.After(discount.EndsAt) {
		return false
	}
	return true
}

func encodeDiscountDocument(discount domain.Discount) discountDocument {
	doc := discountDocument{
		Code:          strings.TrimSpace(discount.Code),
		Name:          strings.TrimSpace(discount.Name),
		Kind:          string(discount.Kind),
		DiscountType:  string(discount.DiscountType),
		DiscountValue: discount.DiscountValue,
		MinimumAmount: discount.MinimumAmount,
		Active:        discount.Active,
		StartsAt:      discount.StartsAt.UTC(),
		EndsAt:        discount.EndsAt.UTC(),
		CreatedAt:     discount.CreatedAt.UTC(),
		UpdatedAt:     discount.UpdatedAt.UTC(),
	}
	if discount.MaximumDiscount != nil {
		value := *discount.MaximumDiscount
		doc.MaximumDiscount = &value
	}
	if discount.MaxUsagePerUser != nil {
		value := *discount.MaxUsagePerUser
		doc.MaxUsagePerUser = &value
	}
	return doc
}

func decodeDiscountDocument(id string, doc discountDocument, createTime, updateTime time.Time) domain.Discount {
	discount := domain.Discount{
		ID:            id,
		Code:          doc.Code,
		Name:          doc.Name,
		Kind:          domain.DiscountKind(doc.Kind),
		DiscountType:  domain.DiscountType(doc.DiscountType),
		DiscountValue: doc.DiscountValue,
		MinimumAmount: doc.MinimumAmount,
		Active:        doc.Active,
		StartsAt:      doc.StartsAt,
		EndsAt:        doc.EndsAt,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	if doc.MaximumDiscount != nil {
		value := *doc.MaximumDiscount
		discount.MaximumDiscount = &value
	}
	if doc.MaxUsagePerUser != nil {
		value := *doc.MaxUsagePerUser
		discount.MaxUsagePerUser = &value
	}
	if discount.CreatedAt.IsZero() {
		discount.CreatedAt = createTime
	}
	if discount.UpdatedAt.IsZero() {
		discount.UpdatedAt = updateTime
	}
	return discount
}

type discountDocument struct {
	Code            string    `firestore:"code,omitempty"`
	Name            string    `firestore:"name"`
	Kind            string    `firestore:"kind"`
	DiscountType    string    `firestore:"discountType"`
	DiscountValue   int64     `firestore:"discountValue"`
	MinimumAmount   int64     `firestore:"minimumAmount"`
	MaximumDiscount *int64    `firestore:"maximumDiscount,omitempty"`
	MaxUsagePerUser *int      `firestore:"maxUsagePerUser,omitempty"`
	Active          bool      `firestore:"active"`
	StartsAt        time.Time `firestore:"startsAt"`
	EndsAt          time.Time `firestore:"endsAt"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

var _ repositories.DiscountRepository = (*DiscountRepository)(nil)
