package handlers

import (
	"context"
	"errors"
	"time"

	domain "github.com/kharidari/api/internal/domain"
	"github.com/kharidari/api/internal/services"
)

var errStubFailure = errors.New("stub failure")

type stubCartService struct {
	getOrCreateFunc     func(ctx context.Context, userID string) (services.Cart, error)
	addItemFunc         func(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error)
	updateItemFunc      func(ctx context.Context, cmd services.UpdateCartItemCommand) (services.Cart, error)
	removeItemFunc      func(ctx context.Context, cmd services.RemoveCartItemCommand) (services.Cart, error)
	clearFunc           func(ctx context.Context, userID string) error
	applyCouponFunc     func(ctx context.Context, cmd services.ApplyCouponCommand) (services.Cart, error)
	selectDiscountFunc  func(ctx context.Context, cmd services.SelectAccountDiscountCommand) (services.Cart, error)
	removeDiscountFunc  func(ctx context.Context, userID string) (services.Cart, error)
	estimateFunc        func(ctx context.Context, userID string) (services.PricingResult, error)
}

func (s *stubCartService) GetOrCreateCart(ctx context.Context, userID string) (services.Cart, error) {
	if s.getOrCreateFunc != nil {
		return s.getOrCreateFunc(ctx, userID)
	}
	return services.Cart{}, errStubFailure
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
	if s.addItemFunc != nil {
		return s.addItemFunc(ctx, cmd)
	}
	return services.Cart{}, errStubFailure
}

func (s *stubCartService) UpdateItemQuantity(ctx context.Context, cmd services.UpdateCartItemCommand) (services.Cart, error) {
	if s.updateItemFunc != nil {
		return s.updateItemFunc(ctx, cmd)
	}
	return services.Cart{}, errStubFailure
}

func (s *stubCartService) RemoveItem(ctx context.Context, cmd services.RemoveCartItemCommand) (services.Cart, error) {
	if s.removeItemFunc != nil {
		return s.removeItemFunc(ctx, cmd)
	}
	return services.Cart{}, errStubFailure
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	if s.clearFunc != nil {
		return s.clearFunc(ctx, userID)
	}
	return errStubFailure
}

func (s *stubCartService) ApplyCoupon(ctx context.Context, cmd services.ApplyCouponCommand) (services.Cart, error) {
	if s.applyCouponFunc != nil {
		return s.applyCouponFunc(ctx, cmd)
	}
	return services.Cart{}, errStubFailure
}

func (s *stubCartService) SelectAccountDiscount(ctx context.Context, cmd services.SelectAccountDiscountCommand) (services.Cart, error) {
	if s.selectDiscountFunc != nil {
		return s.selectDiscountFunc(ctx, cmd)
	}
	return services.Cart{}, errStubFailure
}

func (s *stubCartService) RemoveDiscount(ctx context.Context, userID string) (services.Cart, error) {
	if s.removeDiscountFunc != nil {
		return s.removeDiscountFunc(ctx, userID)
	}
	return services.Cart{}, errStubFailure
}

func (s *stubCartService) Estimate(ctx context.Context, userID string) (services.PricingResult, error) {
	if s.estimateFunc != nil {
		return s.estimateFunc(ctx, userID)
	}
	return services.PricingResult{}, errStubFailure
}

type stubCheckoutService struct {
	quoteFunc func(ctx context.Context, cmd services.CheckoutQuoteCommand) (services.CheckoutQuote, error)
}

func (s *stubCheckoutService) Quote(ctx context.Context, cmd services.CheckoutQuoteCommand) (services.CheckoutQuote, error) {
	if s.quoteFunc != nil {
		return s.quoteFunc(ctx, cmd)
	}
	return services.CheckoutQuote{}, errStubFailure
}

type stubOrderService struct {
	submitFunc     func(ctx context.Context, cmd services.SubmitOrderCommand) (services.Order, error)
	listFunc       func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error)
	getFunc        func(ctx context.Context, query services.GetOrderQuery) (services.Order, error)
	transitionFunc func(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error)
	cancelFunc     func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error)
}

func (s *stubOrderService) SubmitOrder(ctx context.Context, cmd services.SubmitOrderCommand) (services.Order, error) {
	if s.submitFunc != nil {
		return s.submitFunc(ctx, cmd)
	}
	return services.Order{}, errStubFailure
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[services.Order]{}, errStubFailure
}

func (s *stubOrderService) GetOrder(ctx context.Context, query services.GetOrderQuery) (services.Order, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, query)
	}
	return services.Order{}, errStubFailure
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
	if s.transitionFunc != nil {
		return s.transitionFunc(ctx, cmd)
	}
	return services.Order{}, errStubFailure
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	if s.cancelFunc != nil {
		return s.cancelFunc(ctx, cmd)
	}
	return services.Order{}, errStubFailure
}

type stubOfferService struct {
	listFunc   func(ctx context.Context, filter services.OfferListFilter) (domain.CursorPage[services.Offer], error)
	getFunc    func(ctx context.Context, offerID string) (services.Offer, error)
	createFunc func(ctx context.Context, cmd services.UpsertOfferCommand) (services.Offer, error)
	updateFunc func(ctx context.Context, cmd services.UpsertOfferCommand) (services.Offer, error)
	deleteFunc func(ctx context.Context, offerID string) error
	bestFunc   func(ctx context.Context, unitPrices map[string]int64) (map[string]services.Offer, error)
}

func (s *stubOfferService) ListOffers(ctx context.Context, filter services.OfferListFilter) (domain.CursorPage[services.Offer], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[services.Offer]{}, errStubFailure
}

func (s *stubOfferService) GetOffer(ctx context.Context, offerID string) (services.Offer, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, offerID)
	}
	return services.Offer{}, errStubFailure
}

func (s *stubOfferService) CreateOffer(ctx context.Context, cmd services.UpsertOfferCommand) (services.Offer, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.Offer{}, errStubFailure
}

func (s *stubOfferService) UpdateOffer(ctx context.Context, cmd services.UpsertOfferCommand) (services.Offer, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, cmd)
	}
	return services.Offer{}, errStubFailure
}

func (s *stubOfferService) DeleteOffer(ctx context.Context, offerID string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, offerID)
	}
	return errStubFailure
}

func (s *stubOfferService) BestOffersForProducts(ctx context.Context, unitPrices map[string]int64) (map[string]services.Offer, error) {
	if s.bestFunc != nil {
		return s.bestFunc(ctx, unitPrices)
	}
	return nil, errStubFailure
}

type stubDiscountService struct {
	validateFunc     func(ctx context.Context, cmd services.ValidateCouponCommand) (services.Discount, error)
	listAccountFunc  func(ctx context.Context, query services.AccountDiscountQuery) ([]services.Discount, error)
	eligibleFunc     func(ctx context.Context, query services.EligibleDiscountQuery) (services.Discount, error)
	recordUsageFunc  func(ctx context.Context, discountID, userID string) error
	listFunc         func(ctx context.Context, filter services.DiscountListFilter) (domain.CursorPage[services.Discount], error)
	getFunc          func(ctx context.Context, discountID string) (services.Discount, error)
	createFunc       func(ctx context.Context, cmd services.UpsertDiscountCommand) (services.Discount, error)
	updateFunc       func(ctx context.Context, cmd services.UpsertDiscountCommand) (services.Discount, error)
	deleteFunc       func(ctx context.Context, discountID string) error
}

func (s *stubDiscountService) ValidateCoupon(ctx context.Context, cmd services.ValidateCouponCommand) (services.Discount, error) {
	if s.validateFunc != nil {
		return s.validateFunc(ctx, cmd)
	}
	return services.Discount{}, errStubFailure
}

func (s *stubDiscountService) ListAccountDiscounts(ctx context.Context, query services.AccountDiscountQuery) ([]services.Discount, error) {
	if s.listAccountFunc != nil {
		return s.listAccountFunc(ctx, query)
	}
	return nil, errStubFailure
}

func (s *stubDiscountService) GetEligibleDiscount(ctx context.Context, query services.EligibleDiscountQuery) (services.Discount, error) {
	if s.eligibleFunc != nil {
		return s.eligibleFunc(ctx, query)
	}
	return services.Discount{}, errStubFailure
}

func (s *stubDiscountService) RecordUsage(ctx context.Context, discountID, userID string) error {
	if s.recordUsageFunc != nil {
		return s.recordUsageFunc(ctx, discountID, userID)
	}
	return errStubFailure
}

func (s *stubDiscountService) ListDiscounts(ctx context.Context, filter services.DiscountListFilter) (domain.CursorPage[services.Discount], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[services.Discount]{}, errStubFailure
}

func (s *stubDiscountService) GetDiscount(ctx context.Context, discountID string) (services.Discount, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, discountID)
	}
	return services.Discount{}, errStubFailure
}

func (s *stubDiscountService) CreateDiscount(ctx context.Context, cmd services.UpsertDiscountCommand) (services.Discount, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.Discount{}, errStubFailure
}

func (s *stubDiscountService) UpdateDiscount(ctx context.Context, cmd services.UpsertDiscountCommand) (services.Discount, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, cmd)
	}
	return services.Discount{}, errStubFailure
}

func (s *stubDiscountService) DeleteDiscount(ctx context.Context, discountID string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, discountID)
	}
	return errStubFailure
}

type stubWalletService struct {
	getFunc         func(ctx context.Context, userID string) (services.Wallet, error)
	listEntriesFunc func(ctx context.Context, userID string, pager services.Pagination) (domain.CursorPage[services.WalletEntry], error)
	creditFunc      func(ctx context.Context, cmd services.WalletCreditCommand) (services.WalletEntry, error)
	debitFunc       func(ctx context.Context, cmd services.WalletDebitCommand) (services.WalletEntry, error)
}

func (s *stubWalletService) GetWallet(ctx context.Context, userID string) (services.Wallet, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, userID)
	}
	return services.Wallet{}, errStubFailure
}

func (s *stubWalletService) ListEntries(ctx context.Context, userID string, pager services.Pagination) (domain.CursorPage[services.WalletEntry], error) {
	if s.listEntriesFunc != nil {
		return s.listEntriesFunc(ctx, userID, pager)
	}
	return domain.CursorPage[services.WalletEntry]{}, errStubFailure
}

func (s *stubWalletService) Credit(ctx context.Context, cmd services.WalletCreditCommand) (services.WalletEntry, error) {
	if s.creditFunc != nil {
		return s.creditFunc(ctx, cmd)
	}
	return services.WalletEntry{}, errStubFailure
}

func (s *stubWalletService) Debit(ctx context.Context, cmd services.WalletDebitCommand) (services.WalletEntry, error) {
	if s.debitFunc != nil {
		return s.debitFunc(ctx, cmd)
	}
	return services.WalletEntry{}, errStubFailure
}

type stubReportService struct {
	salesFunc  func(ctx context.Context, query services.SalesReportQuery) (services.SalesReport, error)
	exportFunc func(ctx context.Context, query services.SalesReportQuery) (services.ReportExport, error)
}

func (s *stubReportService) SalesReport(ctx context.Context, query services.SalesReportQuery) (services.SalesReport, error) {
	if s.salesFunc != nil {
		return s.salesFunc(ctx, query)
	}
	return services.SalesReport{}, errStubFailure
}

func (s *stubReportService) ExportSalesReportCSV(ctx context.Context, query services.SalesReportQuery) (services.ReportExport, error) {
	if s.exportFunc != nil {
		return s.exportFunc(ctx, query)
	}
	return services.ReportExport{}, errStubFailure
}

type stubSystemService struct {
	reportFunc func(ctx context.Context) (domain.SystemHealthReport, error)
	build      services.BuildInfo
	uptime     time.Duration
}

func (s *stubSystemService) HealthReport(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.reportFunc != nil {
		return s.reportFunc(ctx)
	}
	return domain.SystemHealthReport{}, errStubFailure
}

func (s *stubSystemService) Build() services.BuildInfo {
	return s.build
}

func (s *stubSystemService) Uptime() time.Duration {
	return s.uptime
}
