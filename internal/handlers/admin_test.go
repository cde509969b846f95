package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/kharidari/api/internal/domain"
	"github.com/kharidari/api/internal/platform/auth"
	"github.com/kharidari/api/internal/services"
)

type adminRouterDeps struct {
	offers    services.OfferService
	discounts services.DiscountService
	orders    services.OrderService
	reports   services.ReportService
}

func newAdminRouter(deps adminRouterDeps) chi.Router {
	handler := NewAdminHandlers(nil, deps.offers, deps.discounts, deps.orders, deps.reports)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)
	return router
}

func adminRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "staff-1", Roles: []string{auth.RoleStaff}}))
}

func TestAdminHandlersCreateOfferSanitizesName(t *testing.T) {
	service := &stubOfferService{
		createFunc: func(ctx context.Context, cmd services.UpsertOfferCommand) (services.Offer, error) {
			if cmd.OfferID != nil {
				t.Fatalf("expected nil offer id on create, got %v", *cmd.OfferID)
			}
			if cmd.ActorID != "staff-1" {
				t.Fatalf("unexpected actor %q", cmd.ActorID)
			}
			if cmd.Offer.Name != "Festive 25" {
				t.Fatalf("expected markup stripped from name, got %q", cmd.Offer.Name)
			}
			if cmd.Offer.DiscountType != services.DiscountTypePercentage || cmd.Offer.DiscountValue != 25 {
				t.Fatalf("unexpected offer values: %#v", cmd.Offer)
			}
			if len(cmd.Offer.ProductIDs) != 2 {
				t.Fatalf("expected two product ids, got %#v", cmd.Offer.ProductIDs)
			}
			saved := cmd.Offer
			saved.ID = "offer-1"
			return saved, nil
		},
	}

	body := `{
		"name": "<script>alert(1)</script>Festive 25",
		"discount_type": "percentage",
		"discount_value": 25,
		"product_ids": ["prod-1", " prod-2 "],
		"active": true,
		"starts_at": "2026-02-01T00:00:00Z",
		"ends_at": "2026-03-31T23:59:59Z"
	}`

	router := newAdminRouter(adminRouterDeps{offers: service})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodPost, "/admin/offers", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp offerResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Offer.ID != "offer-1" {
		t.Fatalf("unexpected offer id %q", resp.Offer.ID)
	}
}

func TestAdminHandlersUpdateOffer(t *testing.T) {
	service := &stubOfferService{
		updateFunc: func(ctx context.Context, cmd services.UpsertOfferCommand) (services.Offer, error) {
			if cmd.OfferID == nil || *cmd.OfferID != "offer-3" {
				t.Fatalf("expected offer id offer-3, got %#v", cmd.OfferID)
			}
			saved := cmd.Offer
			saved.ID = "offer-3"
			return saved, nil
		},
	}

	body := `{"name":"Monsoon sale","discount_type":"fixed","discount_value":5000}`
	router := newAdminRouter(adminRouterDeps{offers: service})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodPut, "/admin/offers/offer-3", body))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAdminHandlersOfferInvalidTimestamp(t *testing.T) {
	router := newAdminRouter(adminRouterDeps{offers: &stubOfferService{}})
	body := `{"name":"X","discount_type":"fixed","discount_value":100,"starts_at":"not-a-time"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodPost, "/admin/offers", body))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlersDeleteOfferNotFound(t *testing.T) {
	service := &stubOfferService{
		deleteFunc: func(ctx context.Context, offerID string) error {
			return services.ErrOfferNotFound
		},
	}
	router := newAdminRouter(adminRouterDeps{offers: service})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodDelete, "/admin/offers/offer-9", ""))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestAdminHandlersCreateDiscountUppercasesCode(t *testing.T) {
	service := &stubDiscountService{
		createFunc: func(ctx context.Context, cmd services.UpsertDiscountCommand) (services.Discount, error) {
			if cmd.Discount.Code != "WELCOME10" {
				t.Fatalf("expected upper-cased code, got %q", cmd.Discount.Code)
			}
			if cmd.Discount.Kind != services.DiscountKindCoupon {
				t.Fatalf("unexpected kind %q", cmd.Discount.Kind)
			}
			if cmd.Discount.MinimumAmount != 50_000 {
				t.Fatalf("unexpected minimum %d", cmd.Discount.MinimumAmount)
			}
			saved := cmd.Discount
			saved.ID = "disc-1"
			return saved, nil
		},
	}

	body := `{"code":" welcome10 ","name":"Welcome","kind":"coupon","discount_type":"fixed","discount_value":10000,"minimum_amount":50000,"active":true}`
	router := newAdminRouter(adminRouterDeps{discounts: service})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodPost, "/admin/discounts", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp adminDiscountResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Discount.ID != "disc-1" || resp.Discount.Code != "WELCOME10" {
		t.Fatalf("unexpected discount payload: %#v", resp.Discount)
	}
}

func TestAdminHandlersListDiscountsByKind(t *testing.T) {
	service := &stubDiscountService{
		listFunc: func(ctx context.Context, filter services.DiscountListFilter) (domain.CursorPage[services.Discount], error) {
			if filter.Kind == nil || *filter.Kind != services.DiscountKindAccount {
				t.Fatalf("expected account kind filter, got %#v", filter.Kind)
			}
			if !filter.ActiveOnly {
				t.Fatalf("expected active-only filter")
			}
			return domain.CursorPage[services.Discount]{
				Items: []services.Discount{{ID: "disc-2", Kind: services.DiscountKindAccount}},
			}, nil
		},
	}

	router := newAdminRouter(adminRouterDeps{discounts: service})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodGet, "/admin/discounts?kind=account&active=true", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestAdminHandlersListDiscountsUnknownKind(t *testing.T) {
	router := newAdminRouter(adminRouterDeps{discounts: &stubDiscountService{}})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodGet, "/admin/discounts?kind=mystery", ""))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlersTransitionOrderStatus(t *testing.T) {
	service := &stubOrderService{
		transitionFunc: func(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
			if cmd.OrderID != "order-7" {
				t.Fatalf("unexpected order id %q", cmd.OrderID)
			}
			if cmd.TargetStatus != services.OrderStatusShipped {
				t.Fatalf("unexpected target status %q", cmd.TargetStatus)
			}
			if cmd.ExpectedStatus == nil || *cmd.ExpectedStatus != services.OrderStatusConfirmed {
				t.Fatalf("expected expected_status confirmed, got %#v", cmd.ExpectedStatus)
			}
			if cmd.ActorID != "staff-1" {
				t.Fatalf("unexpected actor %q", cmd.ActorID)
			}
			return services.Order{ID: "order-7", Status: services.OrderStatusShipped}, nil
		},
	}

	body := `{"status":"shipped","expected_status":"confirmed"}`
	router := newAdminRouter(adminRouterDeps{orders: service})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodPost, "/admin/orders/order-7/status", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.Status != "shipped" {
		t.Fatalf("unexpected status %q", resp.Order.Status)
	}
}

func TestAdminHandlersTransitionOrderStatusConflict(t *testing.T) {
	service := &stubOrderService{
		transitionFunc: func(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderConflict
		},
	}
	router := newAdminRouter(adminRouterDeps{orders: service})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodPost, "/admin/orders/order-7/status", `{"status":"shipped"}`))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestAdminHandlersTransitionOrderStatusMissingStatus(t *testing.T) {
	router := newAdminRouter(adminRouterDeps{orders: &stubOrderService{}})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodPost, "/admin/orders/order-7/status", `{"reason":"why not"}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlersSalesReport(t *testing.T) {
	service := &stubReportService{
		salesFunc: func(ctx context.Context, query services.SalesReportQuery) (services.SalesReport, error) {
			wantFrom := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
			if !query.From.Equal(wantFrom) {
				t.Fatalf("unexpected from %v", query.From)
			}
			if !query.To.After(query.From) {
				t.Fatalf("expected to after from, got %v", query.To)
			}
			if query.TopProductLimit != 3 {
				t.Fatalf("unexpected top limit %d", query.TopProductLimit)
			}
			return services.SalesReport{
				From:       query.From,
				To:         query.To,
				OrderCount: 2,
				NetSales:   150_000,
				ByDay: []domain.SalesReportRow{
					{Date: "2026-03-01", OrderCount: 2, NetSales: 150_000},
				},
				TopProducts: []domain.ProductSales{
					{ProductID: "prod-1", Name: "Kurta", Units: 3, Revenue: 120_000},
				},
			}, nil
		},
	}

	router := newAdminRouter(adminRouterDeps{reports: service})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodGet, "/admin/reports/sales?from=2026-03-01&to=2026-03-07&top_limit=3", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp salesReportResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Report.OrderCount != 2 || resp.Report.NetSales != 150_000 {
		t.Fatalf("unexpected report payload: %#v", resp.Report)
	}
	if len(resp.Report.ByDay) != 1 || resp.Report.ByDay[0].Date != "2026-03-01" {
		t.Fatalf("unexpected by_day rows: %#v", resp.Report.ByDay)
	}
}

func TestAdminHandlersSalesReportMissingRange(t *testing.T) {
	router := newAdminRouter(adminRouterDeps{reports: &stubReportService{}})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodGet, "/admin/reports/sales?from=2026-03-01", ""))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlersExportSalesReport(t *testing.T) {
	service := &stubReportService{
		exportFunc: func(ctx context.Context, query services.SalesReportQuery) (services.ReportExport, error) {
			return services.ReportExport{
				Bucket:      "kharidari-reports",
				ObjectPath:  "sales/2026-03-01_2026-03-07.csv",
				RowCount:    7,
				GeneratedAt: time.Date(2026, 3, 8, 6, 0, 0, 0, time.UTC),
			}, nil
		},
	}

	router := newAdminRouter(adminRouterDeps{reports: service})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodPost, "/admin/reports/sales/export?from=2026-03-01&to=2026-03-07", ""))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp reportExportResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Export.ObjectPath != "sales/2026-03-01_2026-03-07.csv" || resp.Export.RowCount != 7 {
		t.Fatalf("unexpected export payload: %#v", resp.Export)
	}
}

func TestAdminHandlersExportUnavailable(t *testing.T) {
	service := &stubReportService{
		exportFunc: func(ctx context.Context, query services.SalesReportQuery) (services.ReportExport, error) {
			return services.ReportExport{}, services.ErrReportUnavailable
		},
	}
	router := newAdminRouter(adminRouterDeps{reports: service})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodPost, "/admin/reports/sales/export?from=2026-03-01&to=2026-03-07", ""))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
