package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/format"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
)

const dateParamLayout = "2006-01-02"

// parseSelection builds the filter selection from query parameters. The
// membership filters accept repeated parameters and comma-separated lists.
// Supplying only one of from/to collapses the range to that single day.
func parseSelection(r *http.Request) (services.Selection, error) {
	q := r.URL.Query()
	var sel services.Selection

	if v := q.Get("from"); v != "" {
		d, err := time.Parse(dateParamLayout, v)
		if err != nil {
			return sel, errors.BadRequest(fmt.Sprintf("invalid from date %q, want YYYY-MM-DD", v))
		}
		sel.From = d
	}
	if v := q.Get("to"); v != "" {
		d, err := time.Parse(dateParamLayout, v)
		if err != nil {
			return sel, errors.BadRequest(fmt.Sprintf("invalid to date %q, want YYYY-MM-DD", v))
		}
		sel.To = d
	}
	if !sel.From.IsZero() && !sel.To.IsZero() && sel.To.Before(sel.From) {
		return sel, errors.BadRequest("to date precedes from date")
	}

	sel.Categories = splitParam(q["category"])
	sel.Segments = splitParam(q["segment"])
	sel.Payments = splitParam(q["payment"])
	return sel, nil
}

func splitParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// tableRow is one display-formatted row of the data table.
type tableRow struct {
	TransactionID string `json:"transaction_id"`
	Date          string `json:"date"`
	ProductName   string `json:"product_name"`
	Category      string `json:"category"`
	CustomerID    string `json:"customer_id"`
	Segment       string `json:"segment"`
	PaymentMethod string `json:"payment_method"`
	Quantity      int    `json:"quantity"`
	Total         string `json:"total"`
}

// buildTableRows formats the newest records of the view for display.
// Unmatched join attributes render as an em-dash placeholder rather than an
// empty cell.
func buildTableRows(records []models.CombinedRecord, limit int) []tableRow {
	if len(records) > limit {
		records = records[:limit]
	}

	rows := make([]tableRow, 0, len(records))
	for _, rec := range records {
		row := tableRow{
			TransactionID: rec.TransactionID,
			Date:          rec.Date.Format(dateParamLayout),
			ProductName:   rec.ProductName,
			Category:      rec.Category,
			CustomerID:    rec.CustomerID,
			Segment:       rec.Segment,
			PaymentMethod: rec.PaymentMethod,
			Quantity:      rec.Quantity,
			Total:         format.Currency(rec.Total),
		}
		if !rec.HasProduct {
			row.ProductName, row.Category = missingValue, missingValue
		}
		if !rec.HasCustomer {
			row.Segment = missingValue
		}
		if row.PaymentMethod == "" {
			row.PaymentMethod = missingValue
		}
		rows = append(rows, row)
	}
	return rows
}

const missingValue = "—"
