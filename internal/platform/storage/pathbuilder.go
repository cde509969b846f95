package storage

import (
	"fmt"
	"strings"
	"time"
)

// ObjectPurpose captures high-level intent for storage layout decisions.
type ObjectPurpose string

const (
	// PurposeSalesReport holds exported sales report CSVs.
	PurposeSalesReport ObjectPurpose = "sales-report"
)

// ReportPathParams provide identifiers to compose report object keys.
type ReportPathParams struct {
	From     time.Time
	To       time.Time
	ExportID string
}

// BuildSalesReportPath composes the object key for an exported sales report.
// Layout: reports/sales/<year>/<month>/sales-<from>-<to>-<exportID>.csv
func BuildSalesReportPath(params ReportPathParams) (string, error) {
	exportID, err := validateSegment("exportID", params.ExportID)
	if err != nil {
		return "", err
	}
	if params.From.IsZero() || params.To.IsZero() {
		return "", fmt.Errorf("storage: report date range is required")
	}
	from := params.From.UTC()
	to := params.To.UTC()
	if to.Before(from) {
		return "", fmt.Errorf("storage: report range end precedes start")
	}
	return fmt.Sprintf(
		"reports/sales/%04d/%02d/sales-%s-%s-%s.csv",
		from.Year(), int(from.Month()),
		from.Format("20060102"), to.Format("20060102"),
		exportID,
	), nil
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid traversal sequence", name)
	}
	return value, nil
}
