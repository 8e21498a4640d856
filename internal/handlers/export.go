package handlers

import (
	"log/slog"
	"net/http"

	"github.com/xuri/excelize/v2"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

const exportSheet = "Transactions"

var exportHeader = []string{
	"Transaction ID", "Date", "Product", "Category", "Customer ID",
	"Segment", "Payment Method", "Quantity", "Total",
}

type ExportHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewExportHandlers(analytics *services.Analytics, logger *slog.Logger) *ExportHandlers {
	return &ExportHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

// HandleTransactionsXLSX streams the filtered, date-descending record set
// as a spreadsheet. Unlike the on-page table it is not row-capped.
func (h *ExportHandlers) HandleTransactionsXLSX(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	sel, err := parseSelection(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	records := h.analytics.View(sel).SortedByDateDesc()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		errors.WriteError(w, h.logger, errors.InternalWrap(err, "prepare export sheet"), requestID)
		return
	}

	for col, name := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(exportSheet, cell, name)
	}

	for i, rec := range records {
		rowNum := i + 2
		values := []any{
			rec.TransactionID,
			rec.Date.Format(dateParamLayout),
			orMissing(rec.ProductName, rec.HasProduct),
			orMissing(rec.Category, rec.HasProduct),
			rec.CustomerID,
			orMissing(rec.Segment, rec.HasCustomer),
			rec.PaymentMethod,
			rec.Quantity,
			rec.Total,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowNum)
			f.SetCellValue(exportSheet, cell, v)
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.xlsx"`)
	if err := f.Write(w); err != nil {
		h.logger.Error("write xlsx export",
			"error", err,
			"request_id", requestID,
			"rows", len(records),
		)
		return
	}

	h.logger.Info("exported transactions",
		"rows", len(records),
		"request_id", requestID,
	)
}

func orMissing(value string, known bool) string {
	if !known {
		return ""
	}
	return value
}
