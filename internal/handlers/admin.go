package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	domain "github.com/kharidari/api/internal/domain"
	"github.com/kharidari/api/internal/platform/auth"
	"github.com/kharidari/api/internal/platform/httpx"
	"github.com/kharidari/api/internal/services"
)

const (
	maxAdminBodySize     = 64 * 1024
	defaultAdminPageSize = 20
	maxAdminPageSize     = 100
)

// adminTextPolicy strips all markup from operator-entered names and codes
// before they are persisted and echoed back to storefront clients.
var adminTextPolicy = newAdminTextPolicy()

func newAdminTextPolicy() *bluemonday.Policy {
	return bluemonday.StrictPolicy()
}

func sanitizeAdminText(value string) string {
	return strings.TrimSpace(adminTextPolicy.Sanitize(value))
}

// AdminHandlers exposes the operator surface: offer and discount CRUD, order
// status transitions, and sales reporting.
type AdminHandlers struct {
	authn     *auth.Authenticator
	offers    services.OfferService
	discounts services.DiscountService
	orders    services.OrderService
	reports   services.ReportService
}

// NewAdminHandlers constructs handlers restricted to staff and admin roles.
func NewAdminHandlers(authn *auth.Authenticator, offers services.OfferService, discounts services.DiscountService, orders services.OrderService, reports services.ReportService) *AdminHandlers {
	return &AdminHandlers{
		authn:     authn,
		offers:    offers,
		discounts: discounts,
		orders:    orders,
		reports:   reports,
	}
}

// Routes wires the /admin endpoints onto the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireIdentity(auth.RoleStaff, auth.RoleAdmin))
	}

	r.Route("/offers", func(r chi.Router) {
		r.Get("/", h.listOffers)
		r.Post("/", h.createOffer)
		r.Get("/{offerID}", h.getOffer)
		r.Put("/{offerID}", h.updateOffer)
		r.Delete("/{offerID}", h.deleteOffer)
	})
	r.Route("/discounts", func(r chi.Router) {
		r.Get("/", h.listDiscounts)
		r.Post("/", h.createDiscount)
		r.Get("/{discountID}", h.getDiscount)
		r.Put("/{discountID}", h.updateDiscount)
		r.Delete("/{discountID}", h.deleteDiscount)
	})
	r.Post("/orders/{orderID}/status", h.transitionOrderStatus)
	r.Route("/reports", func(r chi.Router) {
		r.Get("/sales", h.salesReport)
		r.Post("/sales/export", h.exportSalesReport)
	})
}

// Offers ---------------------------------------------------------------------

func (h *AdminHandlers) listOffers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.offers == nil {
		h.writeUnavailable(ctx, w, "offer")
		return
	}

	filter := services.OfferListFilter{
		Pagination: parsePagination(r, defaultAdminPageSize, maxAdminPageSize),
	}
	if productID := strings.TrimSpace(r.URL.Query().Get("product_id")); productID != "" {
		filter.ProductID = &productID
	}
	if strings.EqualFold(r.URL.Query().Get("active"), "true") {
		filter.ActiveOnly = true
	}

	page, err := h.offers.ListOffers(ctx, filter)
	if err != nil {
		h.writeAdminOfferError(ctx, w, err)
		return
	}

	payload := offerListResponse{
		Offers:        make([]offerPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, offer := range page.Items {
		payload.Offers = append(payload.Offers, buildOfferPayload(offer))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminHandlers) createOffer(w http.ResponseWriter, r *http.Request) {
	h.upsertOffer(w, r, nil)
}

func (h *AdminHandlers) updateOffer(w http.ResponseWriter, r *http.Request) {
	offerID := strings.TrimSpace(chi.URLParam(r, "offerID"))
	if offerID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "offer id is required", http.StatusBadRequest))
		return
	}
	h.upsertOffer(w, r, &offerID)
}

func (h *AdminHandlers) upsertOffer(w http.ResponseWriter, r *http.Request, offerID *string) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w)
	if !ok {
		return
	}
	if h.offers == nil {
		h.writeUnavailable(ctx, w, "offer")
		return
	}

	var req upsertOfferRequest
	if !h.decodeAdminBody(ctx, w, r, &req) {
		return
	}

	offer, err := req.toOffer()
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	cmd := services.UpsertOfferCommand{OfferID: offerID, Offer: offer, ActorID: actor}
	var (
		saved  services.Offer
		status = http.StatusCreated
	)
	if offerID == nil {
		saved, err = h.offers.CreateOffer(ctx, cmd)
	} else {
		saved, err = h.offers.UpdateOffer(ctx, cmd)
		status = http.StatusOK
	}
	if err != nil {
		h.writeAdminOfferError(ctx, w, err)
		return
	}
	writeJSONResponse(w, status, offerResponse{Offer: buildOfferPayload(saved)})
}

func (h *AdminHandlers) getOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.offers == nil {
		h.writeUnavailable(ctx, w, "offer")
		return
	}

	offer, err := h.offers.GetOffer(ctx, chi.URLParam(r, "offerID"))
	if err != nil {
		h.writeAdminOfferError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, offerResponse{Offer: buildOfferPayload(offer)})
}

func (h *AdminHandlers) deleteOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.offers == nil {
		h.writeUnavailable(ctx, w, "offer")
		return
	}

	if err := h.offers.DeleteOffer(ctx, chi.URLParam(r, "offerID")); err != nil {
		h.writeAdminOfferError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusNoContent, nil)
}

// Discounts ------------------------------------------------------------------

func (h *AdminHandlers) listDiscounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.discounts == nil {
		h.writeUnavailable(ctx, w, "discount")
		return
	}

	filter := services.DiscountListFilter{
		Pagination: parsePagination(r, defaultAdminPageSize, maxAdminPageSize),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
		kind := domain.DiscountKind(strings.ToLower(raw))
		if kind != domain.DiscountKindCoupon && kind != domain.DiscountKindAccount {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown discount kind "+raw, http.StatusBadRequest))
			return
		}
		filter.Kind = &kind
	}
	if strings.EqualFold(r.URL.Query().Get("active"), "true") {
		filter.ActiveOnly = true
	}

	page, err := h.discounts.ListDiscounts(ctx, filter)
	if err != nil {
		h.writeAdminDiscountError(ctx, w, err)
		return
	}

	payload := adminDiscountListResponse{
		Discounts:     make([]adminDiscountRecord, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, discount := range page.Items {
		payload.Discounts = append(payload.Discounts, buildAdminDiscountRecord(discount))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminHandlers) createDiscount(w http.ResponseWriter, r *http.Request) {
	h.upsertDiscount(w, r, nil)
}

func (h *AdminHandlers) updateDiscount(w http.ResponseWriter, r *http.Request) {
	discountID := strings.TrimSpace(chi.URLParam(r, "discountID"))
	if discountID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "discount id is required", http.StatusBadRequest))
		return
	}
	h.upsertDiscount(w, r, &discountID)
}

func (h *AdminHandlers) upsertDiscount(w http.ResponseWriter, r *http.Request, discountID *string) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w)
	if !ok {
		return
	}
	if h.discounts == nil {
		h.writeUnavailable(ctx, w, "discount")
		return
	}

	var req upsertDiscountRequest
	if !h.decodeAdminBody(ctx, w, r, &req) {
		return
	}

	discount, err := req.toDiscount()
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	cmd := services.UpsertDiscountCommand{DiscountID: discountID, Discount: discount, ActorID: actor}
	var (
		saved  services.Discount
		status = http.StatusCreated
	)
	if discountID == nil {
		saved, err = h.discounts.CreateDiscount(ctx, cmd)
	} else {
		saved, err = h.discounts.UpdateDiscount(ctx, cmd)
		status = http.StatusOK
	}
	if err != nil {
		h.writeAdminDiscountError(ctx, w, err)
		return
	}
	writeJSONResponse(w, status, adminDiscountResponse{Discount: buildAdminDiscountRecord(saved)})
}

func (h *AdminHandlers) getDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.discounts == nil {
		h.writeUnavailable(ctx, w, "discount")
		return
	}

	discount, err := h.discounts.GetDiscount(ctx, chi.URLParam(r, "discountID"))
	if err != nil {
		h.writeAdminDiscountError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, adminDiscountResponse{Discount: buildAdminDiscountRecord(discount)})
}

func (h *AdminHandlers) deleteDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.discounts == nil {
		h.writeUnavailable(ctx, w, "discount")
		return
	}

	if err := h.discounts.DeleteDiscount(ctx, chi.URLParam(r, "discountID")); err != nil {
		h.writeAdminDiscountError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusNoContent, nil)
}

// Orders ---------------------------------------------------------------------

func (h *AdminHandlers) transitionOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w)
	if !ok {
		return
	}
	if h.orders == nil {
		h.writeUnavailable(ctx, w, "order")
		return
	}

	var req transitionOrderStatusRequest
	if !h.decodeAdminBody(ctx, w, r, &req) {
		return
	}

	target := domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if target == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is required", http.StatusBadRequest))
		return
	}

	cmd := services.OrderStatusTransitionCommand{
		OrderID:      chi.URLParam(r, "orderID"),
		TargetStatus: target,
		ActorID:      actor,
		Reason:       strings.TrimSpace(req.Reason),
	}
	if raw := strings.TrimSpace(req.ExpectedStatus); raw != "" {
		expected := domain.OrderStatus(strings.ToLower(raw))
		cmd.ExpectedStatus = &expected
	}

	order, err := h.orders.TransitionStatus(ctx, cmd)
	if err != nil {
		writeOrderServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

// Reports --------------------------------------------------------------------

func (h *AdminHandlers) salesReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reports == nil {
		h.writeUnavailable(ctx, w, "report")
		return
	}

	query, err := parseSalesReportQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	report, err := h.reports.SalesReport(ctx, query)
	if err != nil {
		h.writeAdminReportError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSalesReportPayload(report))
}

func (h *AdminHandlers) exportSalesReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reports == nil {
		h.writeUnavailable(ctx, w, "report")
		return
	}

	query, err := parseSalesReportQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	export, err := h.reports.ExportSalesReportCSV(ctx, query)
	if err != nil {
		h.writeAdminReportError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusAccepted, reportExportResponse{Export: reportExportPayload{
		Bucket:      export.Bucket,
		ObjectPath:  export.ObjectPath,
		RowCount:    export.RowCount,
		GeneratedAt: formatTime(export.GeneratedAt),
	}})
}

func parseSalesReportQuery(r *http.Request) (services.SalesReportQuery, error) {
	query := services.SalesReportQuery{}
	rawFrom := strings.TrimSpace(r.URL.Query().Get("from"))
	rawTo := strings.TrimSpace(r.URL.Query().Get("to"))
	if rawFrom == "" || rawTo == "" {
		return query, errors.New("from and to are required")
	}

	from, err := parseReportTime(rawFrom, false)
	if err != nil {
		return query, errors.New("from must be an RFC3339 timestamp or YYYY-MM-DD date")
	}
	to, err := parseReportTime(rawTo, true)
	if err != nil {
		return query, errors.New("to must be an RFC3339 timestamp or YYYY-MM-DD date")
	}
	query.From = from
	query.To = to

	if raw := strings.TrimSpace(r.URL.Query().Get("top_limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return query, errors.New("top_limit must be a positive integer")
		}
		query.TopProductLimit = limit
	}
	return query, nil
}

// parseReportTime accepts a full timestamp or a bare date. Bare dates expand
// to the start of that day, or the end of it when endOfDay is set.
func parseReportTime(raw string, endOfDay bool) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return day.UTC().Add(24*time.Hour - time.Nanosecond), nil
	}
	return day.UTC(), nil
}

// Shared plumbing ------------------------------------------------------------

func (h *AdminHandlers) requireActor(ctx context.Context, w http.ResponseWriter) (string, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return identity.UID, true
}

func (h *AdminHandlers) decodeAdminBody(ctx context.Context, w http.ResponseWriter, r *http.Request, target any) bool {
	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
			return false
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", errEmptyBody.Error(), http.StatusBadRequest))
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return false
	}
	return true
}

func (h *AdminHandlers) writeUnavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError(name+"_service_unavailable", name+" service is unavailable", http.StatusServiceUnavailable))
}

func (h *AdminHandlers) writeAdminOfferError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOfferNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("offer_not_found", "offer not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOfferConflict):
		httpx.WriteError(ctx, w, httpx.NewError("offer_conflict", "offer changed concurrently; refresh and retry", http.StatusConflict))
	case errors.Is(err, services.ErrOfferInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOfferUnavailable):
		h.writeUnavailable(ctx, w, "offer")
	default:
		httpx.WriteError(ctx, w, httpx.NewError("offer_error", "offer request failed", http.StatusInternalServerError))
	}
}

func (h *AdminHandlers) writeAdminDiscountError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrDiscountNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("discount_not_found", "discount not found", http.StatusNotFound))
	case errors.Is(err, services.ErrDiscountConflict):
		httpx.WriteError(ctx, w, httpx.NewError("discount_conflict", "discount changed concurrently; refresh and retry", http.StatusConflict))
	case errors.Is(err, services.ErrDiscountInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrDiscountUnavailable):
		h.writeUnavailable(ctx, w, "discount")
	default:
		httpx.WriteError(ctx, w, httpx.NewError("discount_error", "discount request failed", http.StatusInternalServerError))
	}
}

func (h *AdminHandlers) writeAdminReportError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrReportInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrReportUnavailable):
		h.writeUnavailable(ctx, w, "report")
	default:
		httpx.WriteError(ctx, w, httpx.NewError("report_error", "report request failed", http.StatusInternalServerError))
	}
}

// Payloads -------------------------------------------------------------------

type upsertOfferRequest struct {
	Name            string   `json:"name"`
	DiscountType    string   `json:"discount_type"`
	DiscountValue   int64    `json:"discount_value"`
	MaximumDiscount *int64   `json:"maximum_discount"`
	ProductIDs      []string `json:"product_ids"`
	Active          bool     `json:"active"`
	StartsAt        string   `json:"starts_at"`
	EndsAt          string   `json:"ends_at"`
}

func (req upsertOfferRequest) toOffer() (services.Offer, error) {
	offer := services.Offer{
		Name:            sanitizeAdminText(req.Name),
		DiscountType:    domain.DiscountType(strings.ToLower(strings.TrimSpace(req.DiscountType))),
		DiscountValue:   req.DiscountValue,
		MaximumDiscount: req.MaximumDiscount,
		Active:          req.Active,
	}
	for _, productID := range req.ProductIDs {
		if trimmed := strings.TrimSpace(productID); trimmed != "" {
			offer.ProductIDs = append(offer.ProductIDs, trimmed)
		}
	}
	var err error
	if offer.StartsAt, err = parseOptionalTimestamp(req.StartsAt); err != nil {
		return services.Offer{}, errors.New("starts_at must be an RFC3339 timestamp")
	}
	if offer.EndsAt, err = parseOptionalTimestamp(req.EndsAt); err != nil {
		return services.Offer{}, errors.New("ends_at must be an RFC3339 timestamp")
	}
	return offer, nil
}

type upsertDiscountRequest struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	Kind            string `json:"kind"`
	DiscountType    string `json:"discount_type"`
	DiscountValue   int64  `json:"discount_value"`
	MinimumAmount   int64  `json:"minimum_amount"`
	MaximumDiscount *int64 `json:"maximum_discount"`
	MaxUsagePerUser *int   `json:"max_usage_per_user"`
	Active          bool   `json:"active"`
	StartsAt        string `json:"starts_at"`
	EndsAt          string `json:"ends_at"`
}

func (req upsertDiscountRequest) toDiscount() (services.Discount, error) {
	discount := services.Discount{
		Code:            strings.ToUpper(sanitizeAdminText(req.Code)),
		Name:            sanitizeAdminText(req.Name),
		Kind:            domain.DiscountKind(strings.ToLower(strings.TrimSpace(req.Kind))),
		DiscountType:    domain.DiscountType(strings.ToLower(strings.TrimSpace(req.DiscountType))),
		DiscountValue:   req.DiscountValue,
		MinimumAmount:   req.MinimumAmount,
		MaximumDiscount: req.MaximumDiscount,
		MaxUsagePerUser: req.MaxUsagePerUser,
		Active:          req.Active,
	}
	var err error
	if discount.StartsAt, err = parseOptionalTimestamp(req.StartsAt); err != nil {
		return services.Discount{}, errors.New("starts_at must be an RFC3339 timestamp")
	}
	if discount.EndsAt, err = parseOptionalTimestamp(req.EndsAt); err != nil {
		return services.Discount{}, errors.New("ends_at must be an RFC3339 timestamp")
	}
	return discount, nil
}

func parseOptionalTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

type transitionOrderStatusRequest struct {
	Status         string `json:"status"`
	ExpectedStatus string `json:"expected_status"`
	Reason         string `json:"reason"`
}

type offerResponse struct {
	Offer offerPayload `json:"offer"`
}

type adminDiscountResponse struct {
	Discount adminDiscountRecord `json:"discount"`
}

type adminDiscountListResponse struct {
	Discounts     []adminDiscountRecord `json:"discounts"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type adminDiscountRecord struct {
	ID              string `json:"id"`
	Code            string `json:"code,omitempty"`
	Name            string `json:"name"`
	Kind            string `json:"kind"`
	DiscountType    string `json:"discount_type"`
	DiscountValue   int64  `json:"discount_value"`
	MinimumAmount   int64  `json:"minimum_amount"`
	MaximumDiscount *int64 `json:"maximum_discount,omitempty"`
	MaxUsagePerUser *int   `json:"max_usage_per_user,omitempty"`
	Active          bool   `json:"active"`
	StartsAt        string `json:"starts_at,omitempty"`
	EndsAt          string `json:"ends_at,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

func buildAdminDiscountRecord(discount services.Discount) adminDiscountRecord {
	return adminDiscountRecord{
		ID:              discount.ID,
		Code:            discount.Code,
		Name:            discount.Name,
		Kind:            string(discount.Kind),
		DiscountType:    string(discount.DiscountType),
		DiscountValue:   discount.DiscountValue,
		MinimumAmount:   discount.MinimumAmount,
		MaximumDiscount: discount.MaximumDiscount,
		MaxUsagePerUser: discount.MaxUsagePerUser,
		Active:          discount.Active,
		StartsAt:        formatTime(discount.StartsAt),
		EndsAt:          formatTime(discount.EndsAt),
		CreatedAt:       formatTime(discount.CreatedAt),
		UpdatedAt:       formatTime(discount.UpdatedAt),
	}
}

type salesReportResponse struct {
	Report salesReportPayload `json:"report"`
}

type salesReportPayload struct {
	From           string                  `json:"from"`
	To             string                  `json:"to"`
	OrderCount     int                     `json:"order_count"`
	GrossSales     int64                   `json:"gross_sales"`
	OfferSavings   int64                   `json:"offer_savings"`
	DiscountsGiven int64                   `json:"discounts_given"`
	ShippingFees   int64                   `json:"shipping_fees"`
	NetSales       int64                   `json:"net_sales"`
	ByDay          []salesReportRowPayload `json:"by_day"`
	TopProducts    []productSalesPayload   `json:"top_products"`
}

type salesReportRowPayload struct {
	Date       string `json:"date"`
	OrderCount int    `json:"order_count"`
	NetSales   int64  `json:"net_sales"`
}

type productSalesPayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Units     int    `json:"units"`
	Revenue   int64  `json:"revenue"`
}

func buildSalesReportPayload(report services.SalesReport) salesReportResponse {
	payload := salesReportPayload{
		From:           formatTime(report.From),
		To:             formatTime(report.To),
		OrderCount:     report.OrderCount,
		GrossSales:     report.GrossSales,
		OfferSavings:   report.OfferSavings,
		DiscountsGiven: report.DiscountsGiven,
		ShippingFees:   report.ShippingFees,
		NetSales:       report.NetSales,
		ByDay:          make([]salesReportRowPayload, 0, len(report.ByDay)),
		TopProducts:    make([]productSalesPayload, 0, len(report.TopProducts)),
	}
	for _, row := range report.ByDay {
		payload.ByDay = append(payload.ByDay, salesReportRowPayload{
			Date:       row.Date,
			OrderCount: row.OrderCount,
			NetSales:   row.NetSales,
		})
	}
	for _, product := range report.TopProducts {
		payload.TopProducts = append(payload.TopProducts, productSalesPayload{
			ProductID: product.ProductID,
			Name:      product.Name,
			Units:     product.Units,
			Revenue:   product.Revenue,
		})
	}
	return salesReportResponse{Report: payload}
}

type reportExportResponse struct {
	Export reportExportPayload `json:"export"`
}

type reportExportPayload struct {
	Bucket      string `json:"bucket"`
	ObjectPath  string `json:"object_path"`
	RowCount    int    `json:"row_count"`
	GeneratedAt string `json:"generated_at"`
}
