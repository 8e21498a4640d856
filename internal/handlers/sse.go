package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/format"
	"sales-dashboard/internal/services"
)

var kpiTemplate = template.Must(template.New("kpiCards").Parse(`
<div id="kpi-cards" class="kpi-grid">
<div class="kpi-card"><span class="kpi-label">Total Sales</span><span class="kpi-value">{{.TotalSales}}</span></div>
<div class="kpi-card"><span class="kpi-label">Avg Monthly Sales</span><span class="kpi-value">{{.AvgMonthlySales}}</span></div>
<div class="kpi-card"><span class="kpi-label">Unique Customers</span><span class="kpi-value">{{.UniqueCustomers}}</span></div>
<div class="kpi-card"><span class="kpi-label">Retention Rate</span><span class="kpi-value">{{.RetentionRate}}</span></div>
</div>`))

var tableTemplate = template.Must(template.New("transactionsTable").Parse(`
<div id="table-content">
<table class="modern-table">
<thead><tr><th>Transaction</th><th>Date</th><th>Product</th><th>Category</th><th>Customer</th><th>Segment</th><th>Payment</th><th>Qty</th><th>Total</th></tr></thead>
<tbody>
{{range .Rows}}<tr>
<td>{{.TransactionID}}</td>
<td>{{.Date}}</td>
<td>{{.ProductName}}</td>
<td><span class="category-badge">{{.Category}}</span></td>
<td>{{.CustomerID}}</td>
<td>{{.Segment}}</td>
<td>{{.PaymentMethod}}</td>
<td>{{.Quantity}}</td>
<td><strong>{{.Total}}</strong></td>
</tr>{{end}}
</tbody>
</table>
<p class="table-note">{{.Shown}} of {{.Matched}} matching transactions</p>
</div>`))

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	dashboard config.DashboardConfig
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger, dashboard config.DashboardConfig) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
		dashboard: dashboard,
	}
}

// dashboardSignals mirrors the filter signals owned by the page.
type dashboardSignals struct {
	From       string   `json:"from"`
	To         string   `json:"to"`
	Categories []string `json:"categories"`
	Segments   []string `json:"segments"`
	Payments   []string `json:"payments"`
}

type kpiDisplay struct {
	TotalSales      string
	AvgMonthlySales string
	UniqueCustomers string
	RetentionRate   string
}

type tableDisplay struct {
	Rows    []tableRow
	Shown   int
	Matched int
}

// HandleDashboard is the reactive re-render: every filter change re-runs
// the whole pipeline and patches KPI cards, table HTML and chart signals in
// one SSE response.
func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	var signals dashboardSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.logger.Warn("read dashboard signals", "error", err)
	}
	sel := h.selectionFromSignals(signals)

	view := h.analytics.View(sel)
	metrics := view.Metrics()

	kpiHTML, err := renderTemplate(kpiTemplate, kpiDisplay{
		TotalSales:      format.Currency(metrics.TotalSales),
		AvgMonthlySales: format.Currency(metrics.AvgMonthlySales),
		UniqueCustomers: format.Int(metrics.UniqueCustomers),
		RetentionRate:   format.Percent(metrics.RetentionRate),
	})
	if err != nil {
		h.logger.Error("render kpi cards", "error", err)
		return
	}
	sse.PatchElements(kpiHTML)

	sorted := view.SortedByDateDesc()
	rows := buildTableRows(sorted, h.dashboard.TableMaxRows)
	tableHTML, err := renderTemplate(tableTemplate, tableDisplay{
		Rows:    rows,
		Shown:   len(rows),
		Matched: len(sorted),
	})
	if err != nil {
		h.logger.Error("render transactions table", "error", err)
		return
	}
	sse.PatchElements(tableHTML)

	chartSignals, err := json.Marshal(map[string]any{
		"monthlyData":  view.MonthlyTrend(),
		"categoryData": view.CategoryBreakdown(),
		"segmentData":  view.SegmentBreakdown(),
		"paymentData":  view.PaymentBreakdown(),
		"productsData": view.TopProducts(h.dashboard.TopProducts),
		"priceData":    view.PriceQuantity(),
	})
	if err != nil {
		h.logger.Error("marshal chart signals", "error", err)
		return
	}
	sse.PatchSignals(chartSignals)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// selectionFromSignals is deliberately lenient: a half-typed date in the
// picker is treated as no bound rather than an error mid-interaction.
func (h *SSEHandlers) selectionFromSignals(signals dashboardSignals) services.Selection {
	var sel services.Selection
	if d, err := time.Parse(dateParamLayout, signals.From); err == nil {
		sel.From = d
	}
	if d, err := time.Parse(dateParamLayout, signals.To); err == nil {
		sel.To = d
	}
	sel.Categories = signals.Categories
	sel.Segments = signals.Segments
	sel.Payments = signals.Payments
	return sel
}

func renderTemplate(tmpl *template.Template, data any) (string, error) {
	var buf strings.Builder
	err := tmpl.Execute(&buf, data)
	return buf.String(), err
}
