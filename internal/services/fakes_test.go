package services

import (
	"context"
	"time"

	domain "github.com/kharidari/api/internal/domain"
	"github.com/kharidari/api/internal/repositories"
)

// fakeRepoError implements repositories.RepositoryError for error-path tests.
type fakeRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *fakeRepoError) Error() string       { return e.msg }
func (e *fakeRepoError) IsNotFound() bool    { return e.notFound }
func (e *fakeRepoError) IsConflict() bool    { return e.conflict }
func (e *fakeRepoError) IsUnavailable() bool { return e.unavailable }

var (
	errStubNotFound    = &fakeRepoError{msg: "not found", notFound: true}
	errStubConflict    = &fakeRepoError{msg: "conflict", conflict: true}
	errStubUnavailable = &fakeRepoError{msg: "unavailable", unavailable: true}
)

type stubCartRepository struct {
	upsertFunc func(ctx context.Context, cart domain.Cart, expected *time.Time) (domain.Cart, error)
	getFunc    func(ctx context.Context, userID string) (domain.Cart, error)
	deleteFunc func(ctx context.Context, userID string) error
}

func (s *stubCartRepository) UpsertCart(ctx context.Context, cart domain.Cart, expected *time.Time) (domain.Cart, error) {
	if s.upsertFunc != nil {
		return s.upsertFunc(ctx, cart, expected)
	}
	return cart, nil
}

func (s *stubCartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, userID)
	}
	return domain.Cart{}, errStubNotFound
}

func (s *stubCartRepository) DeleteCart(ctx context.Context, userID string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, userID)
	}
	return nil
}

type stubOfferRepository struct {
	insertFunc       func(ctx context.Context, offer domain.Offer) error
	updateFunc       func(ctx context.Context, offer domain.Offer) error
	deleteFunc       func(ctx context.Context, offerID string) error
	findFunc         func(ctx context.Context, offerID string) (domain.Offer, error)
	listFunc         func(ctx context.Context, filter repositories.OfferListFilter) (domain.CursorPage[domain.Offer], error)
	listByProductsFn func(ctx context.Context, productIDs []string, now time.Time) (map[string][]domain.Offer, error)
}

func (s *stubOfferRepository) Insert(ctx context.Context, offer domain.Offer) error {
	if s.insertFunc != nil {
		return s.insertFunc(ctx, offer)
	}
	return nil
}

func (s *stubOfferRepository) Update(ctx context.Context, offer domain.Offer) error {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, offer)
	}
	return nil
}

func (s *stubOfferRepository) Delete(ctx context.Context, offerID string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, offerID)
	}
	return nil
}

func (s *stubOfferRepository) FindByID(ctx context.Context, offerID string) (domain.Offer, error) {
	if s.findFunc != nil {
		return s.findFunc(ctx, offerID)
	}
	return domain.Offer{}, errStubNotFound
}

func (s *stubOfferRepository) List(ctx context.Context, filter repositories.OfferListFilter) (domain.CursorPage[domain.Offer], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[domain.Offer]{}, nil
}

func (s *stubOfferRepository) ListActiveByProducts(ctx context.Context, productIDs []string, now time.Time) (map[string][]domain.Offer, error) {
	if s.listByProductsFn != nil {
		return s.listByProductsFn(ctx, productIDs, now)
	}
	return map[string][]domain.Offer{}, nil
}

type stubDiscountRepository struct {
	insertFunc     func(ctx context.Context, discount domain.Discount) error
	updateFunc     func(ctx context.Context, discount domain.Discount) error
	deleteFunc     func(ctx context.Context, discountID string) error
	findFunc       func(ctx context.Context, discountID string) (domain.Discount, error)
	findByCodeFunc func(ctx context.Context, code string) (domain.Discount, error)
	listFunc       func(ctx context.Context, filter repositories.DiscountListFilter) (domain.CursorPage[domain.Discount], error)
	listByKindFunc func(ctx context.Context, kind domain.DiscountKind, now time.Time) ([]domain.Discount, error)
}

func (s *stubDiscountRepository) Insert(ctx context.Context, discount domain.Discount) error {
	if s.insertFunc != nil {
		return s.insertFunc(ctx, discount)
	}
	return nil
}

func (s *stubDiscountRepository) Update(ctx context.Context, discount domain.Discount) error {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, discount)
	}
	return nil
}

func (s *stubDiscountRepository) Delete(ctx context.Context, discountID string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, discountID)
	}
	return nil
}

func (s *stubDiscountRepository) FindByID(ctx context.Context, discountID string) (domain.Discount, error) {
	if s.findFunc != nil {
		return s.findFunc(ctx, discountID)
	}
	return domain.Discount{}, errStubNotFound
}

func (s *stubDiscountRepository) FindByCode(ctx context.Context, code string) (domain.Discount, error) {
	if s.findByCodeFunc != nil {
		return s.findByCodeFunc(ctx, code)
	}
	return domain.Discount{}, errStubNotFound
}

func (s *stubDiscountRepository) List(ctx context.Context, filter repositories.DiscountListFilter) (domain.CursorPage[domain.Discount], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[domain.Discount]{}, nil
}

func (s *stubDiscountRepository) ListActiveByKind(ctx context.Context, kind domain.DiscountKind, now time.Time) ([]domain.Discount, error) {
	if s.listByKindFunc != nil {
		return s.listByKindFunc(ctx, kind, now)
	}
	return nil, nil
}

type stubUsageRepository struct {
	getFunc       func(ctx context.Context, discountID, userID string) (domain.DiscountUsage, error)
	incrementFunc func(ctx context.Context, discountID, userID string, now time.Time) (domain.DiscountUsage, error)
}

func (s *stubUsageRepository) Get(ctx context.Context, discountID, userID string) (domain.DiscountUsage, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, discountID, userID)
	}
	return domain.DiscountUsage{DiscountID: discountID, UserID: userID}, nil
}

func (s *stubUsageRepository) Increment(ctx context.Context, discountID, userID string, now time.Time) (domain.DiscountUsage, error) {
	if s.incrementFunc != nil {
		return s.incrementFunc(ctx, discountID, userID, now)
	}
	return domain.DiscountUsage{DiscountID: discountID, UserID: userID, Count: 1, LastUsedAt: now}, nil
}

type stubOrderRepository struct {
	insertFunc      func(ctx context.Context, order domain.Order) error
	updateFunc      func(ctx context.Context, order domain.Order) error
	findFunc        func(ctx context.Context, orderID string) (domain.Order, error)
	listFunc        func(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	listBetweenFunc func(ctx context.Context, from, to time.Time) ([]domain.Order, error)
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFunc != nil {
		return s.insertFunc(ctx, order)
	}
	return nil
}

func (s *stubOrderRepository) Update(ctx context.Context, order domain.Order) error {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, order)
	}
	return nil
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFunc != nil {
		return s.findFunc(ctx, orderID)
	}
	return domain.Order{}, errStubNotFound
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

func (s *stubOrderRepository) ListPlacedBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	if s.listBetweenFunc != nil {
		return s.listBetweenFunc(ctx, from, to)
	}
	return nil, nil
}

type stubWalletRepository struct {
	getFunc    func(ctx context.Context, userID string) (domain.Wallet, error)
	listFunc   func(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.WalletEntry], error)
	appendFunc func(ctx context.Context, entry domain.WalletEntry) (domain.Wallet, domain.WalletEntry, error)
}

func (s *stubWalletRepository) GetWallet(ctx context.Context, userID string) (domain.Wallet, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, userID)
	}
	return domain.Wallet{UserID: userID}, nil
}

func (s *stubWalletRepository) ListEntries(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.WalletEntry], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, userID, pager)
	}
	return domain.CursorPage[domain.WalletEntry]{}, nil
}

func (s *stubWalletRepository) Append(ctx context.Context, entry domain.WalletEntry) (domain.Wallet, domain.WalletEntry, error) {
	if s.appendFunc != nil {
		return s.appendFunc(ctx, entry)
	}
	return domain.Wallet{UserID: entry.UserID, Balance: entry.Amount}, entry, nil
}

type stubCounterRepository struct {
	nextFunc      func(ctx context.Context, counterID string, step int64) (int64, error)
	configureFunc func(ctx context.Context, counterID string, cfg repositories.CounterConfig) error

	nextCalls      []counterNextCall
	configureCalls []counterConfigureCall
}

type counterNextCall struct {
	ID   string
	Step int64
}

type counterConfigureCall struct {
	ID  string
	Cfg repositories.CounterConfig
}

func (s *stubCounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	s.nextCalls = append(s.nextCalls, counterNextCall{ID: counterID, Step: step})
	if s.nextFunc != nil {
		return s.nextFunc(ctx, counterID, step)
	}
	return 1, nil
}

func (s *stubCounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	s.configureCalls = append(s.configureCalls, counterConfigureCall{ID: counterID, Cfg: cfg})
	if s.configureFunc != nil {
		return s.configureFunc(ctx, counterID, cfg)
	}
	return nil
}

type stubPublisher struct {
	events []domain.OrderEvent
	err    error
}

func (s *stubPublisher) PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}
