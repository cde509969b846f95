package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/kharidari/api/internal/domain"
	"github.com/kharidari/api/internal/platform/storage"
	"github.com/kharidari/api/internal/repositories"
)

// ErrReportInvalidInput indicates the caller supplied an invalid date range.
var ErrReportInvalidInput = errors.New("report service: invalid input")

// ErrReportUnavailable indicates the report backend cannot fulfil the request.
var ErrReportUnavailable = errors.New("report service: unavailable")

const (
	defaultTopProductLimit = 10
	maxReportRangeDays     = 366
)

// ReportServiceDeps wires order history and the export bucket.
type ReportServiceDeps struct {
	Orders        repositories.OrderRepository
	Uploader      *storage.Uploader
	ReportsBucket string
	Clock         func() time.Time
	Logger        func(context.Context, string, map[string]any)
	IDGenerator   func() string
}

type reportService struct {
	orders repositories.OrderRepository
	upload *storage.Uploader
	bucket string
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
	newID  func() string
}

// NewReportService constructs a ReportService enforcing dependency validation.
func NewReportService(deps ReportServiceDeps) (ReportService, error) {
	if deps.Orders == nil {
		return nil, errors.New("report service: order repository is required")
	}
	if deps.Clock == nil {
		return nil, errors.New("report service: clock is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &reportService{
		orders: deps.Orders,
		upload: deps.Uploader,
		bucket: strings.TrimSpace(deps.ReportsBucket),
		now:    func() time.Time { return deps.Clock().UTC() },
		logger: logger,
		newID:  idGen,
	}, nil
}

// SalesReport aggregates delivered-revenue figures over the range. Cancelled
// and returned orders are excluded from every total.
func (s *reportService) SalesReport(ctx context.Context, query SalesReportQuery) (SalesReport, error) {
	if s == nil || s.orders == nil {
		return SalesReport{}, ErrReportUnavailable
	}
	from, to, err := normaliseReportRange(query)
	if err != nil {
		return SalesReport{}, err
	}

	orders, err := s.orders.ListPlacedBetween(ctx, from, to)
	if err != nil {
		return SalesReport{}, ErrReportUnavailable
	}

	report := SalesReport{From: from, To: to}
	byDay := make(map[string]*domain.SalesReportRow)
	byProduct := make(map[string]*domain.ProductSales)

	for _, order := range orders {
		if order.Status == domain.OrderStatusCancelled || order.Status == domain.OrderStatusReturned {
			continue
		}

		report.OrderCount++
		report.GrossSales += order.Totals.UndiscountedSubtotal
		report.OfferSavings += order.Totals.OfferSavings
		report.DiscountsGiven += order.Totals.DiscountAmount
		report.ShippingFees += order.Totals.Shipping
		report.NetSales += order.Totals.Total

		day := order.PlacedAt.UTC().Format("2006-01-02")
		row, ok := byDay[day]
		if !ok {
			row = &domain.SalesReportRow{Date: day}
			byDay[day] = row
		}
		row.OrderCount++
		row.NetSales += order.Totals.Total

		for _, line := range order.Items {
			sales, ok := byProduct[line.ProductID]
			if !ok {
				sales = &domain.ProductSales{ProductID: line.ProductID, Name: line.Name}
				byProduct[line.ProductID] = sales
			}
			sales.Units += line.Quantity
			sales.Revenue += line.LineTotal
		}
	}

	report.ByDay = make([]domain.SalesReportRow, 0, len(byDay))
	for _, row := range byDay {
		report.ByDay = append(report.ByDay, *row)
	}
	sort.Slice(report.ByDay, func(i, j int) bool { return report.ByDay[i].Date < report.ByDay[j].Date })

	topLimit := query.TopProductLimit
	if topLimit <= 0 {
		topLimit = defaultTopProductLimit
	}
	report.TopProducts = make([]domain.ProductSales, 0, len(byProduct))
	for _, sales := range byProduct {
		report.TopProducts = append(report.TopProducts, *sales)
	}
	sort.Slice(report.TopProducts, func(i, j int) bool {
		if report.TopProducts[i].Revenue != report.TopProducts[j].Revenue {
			return report.TopProducts[i].Revenue > report.TopProducts[j].Revenue
		}
		return report.TopProducts[i].ProductID < report.TopProducts[j].ProductID
	})
	if len(report.TopProducts) > topLimit {
		report.TopProducts = report.TopProducts[:topLimit]
	}

	return report, nil
}

// ExportSalesReportCSV renders the per-day rows as CSV and writes them to the
// reports bucket.
func (s *reportService) ExportSalesReportCSV(ctx context.Context, query SalesReportQuery) (ReportExport, error) {
	if s == nil || s.orders == nil {
		return ReportExport{}, ErrReportUnavailable
	}
	if s.upload == nil || s.bucket == "" {
		return ReportExport{}, fmt.Errorf("%w: report exports are not configured", ErrReportUnavailable)
	}

	report, err := s.SalesReport(ctx, query)
	if err != nil {
		return ReportExport{}, err
	}

	payload, rowCount, err := renderSalesReportCSV(report)
	if err != nil {
		return ReportExport{}, ErrReportUnavailable
	}

	exportID := strings.ToLower(s.newID())
	objectPath, err := storage.BuildSalesReportPath(storage.ReportPathParams{
		From:     report.From,
		To:       report.To,
		ExportID: exportID,
	})
	if err != nil {
		return ReportExport{}, ErrReportInvalidInput
	}

	info, err := s.upload.Upload(ctx, storage.UploadInput{
		Bucket:      s.bucket,
		Object:      objectPath,
		ContentType: "text/csv",
		Metadata: map[string]string{
			"reportFrom": report.From.Format("2006-01-02"),
			"reportTo":   report.To.Format("2006-01-02"),
		},
		Payload: bytes.NewReader(payload),
	})
	if err != nil {
		s.logger(ctx, "report_export_failed", map[string]any{
			"bucket": s.bucket,
			"object": objectPath,
			"error":  err.Error(),
		})
		return ReportExport{}, ErrReportUnavailable
	}

	s.logger(ctx, "report_exported", map[string]any{
		"bucket": info.Bucket,
		"object": info.Object,
		"rows":   rowCount,
	})

	return ReportExport{
		Bucket:      info.Bucket,
		ObjectPath:  info.Object,
		RowCount:    rowCount,
		GeneratedAt: s.now(),
	}, nil
}

func renderSalesReportCSV(report SalesReport) ([]byte, int, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"date", "orders", "net_sales"}); err != nil {
		return nil, 0, err
	}
	for _, row := range report.ByDay {
		record := []string{
			row.Date,
			strconv.Itoa(row.OrderCount),
			strconv.FormatInt(row.NetSales, 10),
		}
		if err := writer.Write(record); err != nil {
			return nil, 0, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), len(report.ByDay), nil
}

func normaliseReportRange(query SalesReportQuery) (time.Time, time.Time, error) {
	if query.From.IsZero() || query.To.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date range is required", ErrReportInvalidInput)
	}
	from := query.From.UTC()
	to := query.To.UTC()
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: range end precedes start", ErrReportInvalidInput)
	}
	if to.Sub(from) > maxReportRangeDays*24*time.Hour {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: range cannot exceed %d days", ErrReportInvalidInput, maxReportRangeDays)
	}
	return from, to, nil
}
