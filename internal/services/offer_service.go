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

// ErrOfferInvalidInput indicates the caller supplied invalid offer data.
var ErrOfferInvalidInput = errors.New("offer service: invalid input")

// ErrOfferNotFound indicates the requested offer does not exist.
var ErrOfferNotFound = errors.New("offer service: not found")

// ErrOfferConflict indicates the offer could not be stored due to a duplicate or concurrent change.
var ErrOfferConflict = errors.New("offer service: conflict")

// ErrOfferUnavailable indicates the offer backend cannot fulfil the request.
var ErrOfferUnavailable = errors.New("offer service: unavailable")

const maxOfferNameLength = 200

// OfferServiceDeps wires the repository and ambient dependencies for offer management.
type OfferServiceDeps struct {
	Repository  repositories.OfferRepository
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type offerService struct {
	repo   repositories.OfferRepository
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
	newID  func() string
}

// NewOfferService constructs an OfferService enforcing dependency validation.
func NewOfferService(deps OfferServiceDeps) (OfferService, error) {
	if deps.Repository == nil {
		return nil, errors.New("offer service: repository is required")
	}
	if deps.Clock == nil {
		return nil, errors.New("offer service: clock is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &offerService{
		repo:   deps.Repository,
		now:    func() time.Time { return deps.Clock().UTC() },
		logger: logger,
		newID:  idGen,
	}, nil
}

func (s *offerService) ListOffers(ctx context.Context, filter OfferListFilter) (domain.CursorPage[Offer], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[Offer]{}, ErrOfferUnavailable
	}

	repoFilter := repositories.OfferListFilter{
		ActiveOnly: filter.ActiveOnly,
		Pagination: filter.Pagination,
	}
	if filter.ActiveOnly {
		repoFilter.Now = s.now()
	}
	if filter.ProductID != nil {
		productID := strings.TrimSpace(*filter.ProductID)
		if productID == "" {
			return domain.CursorPage[Offer]{}, fmt.Errorf("%w: product id cannot be blank", ErrOfferInvalidInput)
		}
		repoFilter.ProductID = &productID
	}

	page, err := s.repo.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[Offer]{}, s.translateRepoError(err)
	}
	return page, nil
}

func (s *offerService) GetOffer(ctx context.Context, offerID string) (Offer, error) {
	if s == nil || s.repo == nil {
		return Offer{}, ErrOfferUnavailable
	}
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return Offer{}, ErrOfferInvalidInput
	}
	offer, err := s.repo.FindByID(ctx, offerID)
	if err != nil {
		return Offer{}, s.translateRepoError(err)
	}
	return offer, nil
}

func (s *offerService) CreateOffer(ctx context.Context, cmd UpsertOfferCommand) (Offer, error) {
	if s == nil || s.repo == nil {
		return Offer{}, ErrOfferUnavailable
	}

	offer, err := normaliseOffer(cmd.Offer)
	if err != nil {
		return Offer{}, err
	}

	now := s.now()
	offer.ID = s.newID()
	offer.CreatedAt = now
	offer.UpdatedAt = now

	if err := s.repo.Insert(ctx, offer); err != nil {
		return Offer{}, s.translateRepoError(err)
	}

	s.logger(ctx, "offer_created", map[string]any{
		"offerId": offer.ID,
		"actorId": cmd.ActorID,
	})
	return offer, nil
}

func (s *offerService) UpdateOffer(ctx context.Context, cmd UpsertOfferCommand) (Offer, error) {
	if s == nil || s.repo == nil {
		return Offer{}, ErrOfferUnavailable
	}
	if cmd.OfferID == nil || strings.TrimSpace(*cmd.OfferID) == "" {
		return Offer{}, fmt.Errorf("%w: offer id is required", ErrOfferInvalidInput)
	}
	offerID := strings.TrimSpace(*cmd.OfferID)

	existing, err := s.repo.FindByID(ctx, offerID)
	if err != nil {
		return Offer{}, s.translateRepoError(err)
	}

	offer, err := normaliseOffer(cmd.Offer)
	if err != nil {
		return Offer{}, err
	}
	offer.ID = offerID
	offer.CreatedAt = existing.CreatedAt
	offer.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, offer); err != nil {
		return Offer{}, s.translateRepoError(err)
	}

	s.logger(ctx, "offer_updated", map[string]any{
		"offerId": offer.ID,
		"actorId": cmd.ActorID,
	})
	return offer, nil
}

func (s *offerService) DeleteOffer(ctx context.Context, offerID string) error {
	if s == nil || s.repo == nil {
		return ErrOfferUnavailable
	}
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return ErrOfferInvalidInput
	}
	if _, err := s.repo.FindByID(ctx, offerID); err != nil {
		return s.translateRepoError(err)
	}
	if err := s.repo.Delete(ctx, offerID); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

// BestOffersForProducts resolves at most one offer per product: the one with
// the largest per-unit reduction against that product's current unit price.
// Ties break on the lexicographically smaller offer ID so the outcome is
// stable across calls.
func (s *offerService) BestOffersForProducts(ctx context.Context, unitPrices map[string]int64) (map[string]Offer, error) {
	if s == nil || s.repo == nil {
		return nil, ErrOfferUnavailable
	}
	if len(unitPrices) == 0 {
		return map[string]Offer{}, nil
	}

	productIDs := make([]string, 0, len(unitPrices))
	for productID := range unitPrices {
		productID = strings.TrimSpace(productID)
		if productID == "" {
			continue
		}
		productIDs = append(productIDs, productID)
	}
	if len(productIDs) == 0 {
		return map[string]Offer{}, nil
	}

	active, err := s.repo.ListActiveByProducts(ctx, productIDs, s.now())
	if err != nil {
		return nil, s.translateRepoError(err)
	}

	best := make(map[string]Offer, len(active))
	for productID, offers := range active {
		unitPrice := unitPrices[productID]
		if unitPrice <= 0 {
			continue
		}
		var winner *Offer
		var winnerReduction int64
		for i := range offers {
			offer := offers[i]
			reduction := offerReduction(unitPrice, &offer)
			if reduction <= 0 {
				continue
			}
			if winner == nil || reduction > winnerReduction || (reduction == winnerReduction && offer.ID < winner.ID) {
				winner = &offers[i]
				winnerReduction = reduction
			}
		}
		if winner != nil {
			best[productID] = *winner
		}
	}
	return best, nil
}

func normaliseOffer(offer Offer) (Offer, error) {
	offer.Name = strings.TrimSpace(offer.Name)
	if offer.Name == "" {
		return Offer{}, fmt.Errorf("%w: name is required", ErrOfferInvalidInput)
	}
	if len(offer.Name) > maxOfferNameLength {
		return Offer{}, fmt.Errorf("%w: name exceeds %d characters", ErrOfferInvalidInput, maxOfferNameLength)
	}

	switch offer.DiscountType {
	case DiscountTypePercentage:
		if offer.DiscountValue <= 0 || offer.DiscountValue > 100 {
			return Offer{}, fmt.Errorf("%w: percentage must be between 1 and 100", ErrOfferInvalidInput)
		}
		if offer.MaximumDiscount != nil && *offer.MaximumDiscount <= 0 {
			return Offer{}, fmt.Errorf("%w: maximum discount must be positive", ErrOfferInvalidInput)
		}
	case DiscountTypeFixed:
		if offer.DiscountValue <= 0 {
			return Offer{}, fmt.Errorf("%w: fixed amount must be positive", ErrOfferInvalidInput)
		}
		offer.MaximumDiscount = nil
	default:
		return Offer{}, fmt.Errorf("%w: unknown discount type %q", ErrOfferInvalidInput, offer.DiscountType)
	}

	seen := make(map[string]struct{}, len(offer.ProductIDs))
	productIDs := make([]string, 0, len(offer.ProductIDs))
	for _, productID := range offer.ProductIDs {
		productID = strings.TrimSpace(productID)
		if productID == "" {
			continue
		}
		if _, ok := seen[productID]; ok {
			continue
		}
		seen[productID] = struct{}{}
		productIDs = append(productIDs, productID)
	}
	if len(productIDs) == 0 {
		return Offer{}, fmt.Errorf("%w: at least one product id is required", ErrOfferInvalidInput)
	}
	offer.ProductIDs = productIDs

	if !offer.StartsAt.IsZero() && !offer.EndsAt.IsZero() && offer.EndsAt.Before(offer.StartsAt) {
		return Offer{}, fmt.Errorf("%w: validity window ends before it starts", ErrOfferInvalidInput)
	}
	offer.StartsAt = offer.StartsAt.UTC()
	offer.EndsAt = offer.EndsAt.UTC()

	return offer, nil
}

func (s *offerService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOfferNotFound
		case repoErr.IsConflict():
			return ErrOfferConflict
		case repoErr.IsUnavailable():
			return ErrOfferUnavailable
		}
	}
	return ErrOfferUnavailable
}
