package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/kharidari/api/internal/domain"
	pfirestore "github.com/kharidari/api/internal/platform/firestore"
	"github.com/kharidari/api/internal/repositories"
)

const discountUsageCollection = "discount_usage"

// DiscountUsageRepository tracks per-user redemption counts. One document per
// discount/user pair, keyed "<discountID>_<userID>".
type DiscountUsageRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[discountUsageDocument]
}

// NewDiscountUsageRepository constructs a Firestore-backed usage repository.
func NewDiscountUsageRepository(provider *pfirestore.Provider) (*DiscountUsageRepository, error) {
	if provider == nil {
		return nil, errors.New("discount usage repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[discountUsageDocument](provider, discountUsageCollection, nil, nil)
	return &DiscountUsageRepository{provider: provider, base: base}, nil
}

// Get returns the usage record, or a zero-count record when none exists yet.
func (r *DiscountUsageRepository) Get(ctx context.Context, discountID string, userID string) (domain.DiscountUsage, error) {
	if r == nil || r.base == nil {
		return domain.DiscountUsage{}, errors.New("discount usage repository not initialised")
	}
	id, err := usageDocumentID(discountID, userID)
	if err != nil {
		return domain.DiscountUsage{}, err
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.DiscountUsage{
				DiscountID: strings.TrimSpace(discountID),
				UserID:     strings.TrimSpace(userID),
			}, nil
		}
		return domain.DiscountUsage{}, err
	}

	return domain.DiscountUsage{
		DiscountID: doc.Data.DiscountID,
		UserID:     doc.Data.UserID,
		Count:      doc.Data.Count,
		LastUsedAt: doc.Data.LastUsedAt,
	}, nil
}

// Increment bumps the redemption count atomically and returns the new record.
func (r *DiscountUsageRepository) Increment(ctx context.Context, discountID string, userID string, now time.Time) (domain.DiscountUsage, error) {
	if r == nil || r.provider == nil {
		return domain.DiscountUsage{}, errors.New("discount usage repository not initialised")
	}
	id, err := usageDocumentID(discountID, userID)
	if err != nil {
		return domain.DiscountUsage{}, err
	}
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	var updated domain.DiscountUsage
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}

		snapshot, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.NotFound:
			doc := discountUsageDocument{
				DiscountID: strings.TrimSpace(discountID),
				UserID:     strings.TrimSpace(userID),
				Count:      1,
				LastUsedAt: now,
			}
			if err := tx.Create(ref, doc); err != nil {
				return err
			}
			updated = domain.DiscountUsage{
				DiscountID: doc.DiscountID,
				UserID:     doc.UserID,
				Count:      doc.Count,
				LastUsedAt: doc.LastUsedAt,
			}
			return nil
		case codes.OK:
			// proceed
		default:
			return err
		}

		var doc discountUsageDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore discount usage decode %s: %w", id, err)
		}

		doc.Count++
		doc.LastUsedAt = now
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		updated = domain.DiscountUsage{
			DiscountID: doc.DiscountID,
			UserID:     doc.UserID,
			Count:      doc.Count,
			LastUsedAt: doc.LastUsedAt,
		}
		return nil
	})
	if err != nil {
		return domain.DiscountUsage{}, pfirestore.WrapError("discount_usage.increment", err)
	}
	return updated, nil
}

func usageDocumentID(discountID, userID string) (string, error) {
	discountID = strings.TrimSpace(discountID)
	userID = strings.TrimSpace(userID)
	if discountID == "" {
		return "", errors.New("discount usage repository: discount id is required")
	}
	if userID == "" {
		return "", errors.New("discount usage repository: user id is required")
	}
	return discountID + "_" + userID, nil
}

type discountUsageDocument struct {
	DiscountID string    `firestore:"discountId"`
	UserID     string    `firestore:"userId"`
	Count      int       `firestore:"count"`
	LastUsedAt time.Time `firestore:"lastUsedAt"`
}

var _ repositories.DiscountUsageRepository = (*DiscountUsageRepository)(nil)
