// Package templates renders the dashboard page. The page owns the filter
// signals; every change re-runs the pipeline through /sse/dashboard, which
// patches the KPI cards, the table and the chart data signals back in.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"

	"sales-dashboard/internal/models"
)

// Dashboard builds the page component for the given filter domains. The
// sidebar widgets default to the full date range with every category,
// segment and payment method selected.
func Dashboard(domains models.FilterDomains) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		signals, err := initialSignals(domains)
		if err != nil {
			return fmt.Errorf("encode initial signals: %w", err)
		}

		var b strings.Builder
		b.WriteString(pageHead)

		fmt.Fprintf(&b, "<body data-signals='%s' data-on-load=\"@get('/sse/dashboard')\">\n", template.HTMLEscapeString(signals))
		b.WriteString(`<div class="layout">` + "\n")

		writeSidebar(&b, domains)
		writeMain(&b)

		b.WriteString("</div>\n")
		b.WriteString(pageScript)
		b.WriteString("</body>\n</html>\n")

		_, err = io.WriteString(w, b.String())
		return err
	})
}

func initialSignals(domains models.FilterDomains) (string, error) {
	signals := map[string]any{
		"from":         dateValue(domains.MinDate),
		"to":           dateValue(domains.MaxDate),
		"categories":   orEmpty(domains.Categories),
		"segments":     orEmpty(domains.Segments),
		"payments":     orEmpty(domains.PaymentMethods),
		"monthlyData":  []any{},
		"categoryData": []any{},
		"segmentData":  []any{},
		"paymentData":  []any{},
		"productsData": []any{},
		"priceData":    []any{},
	}
	encoded, err := json.Marshal(signals)
	return string(encoded), err
}

func dateValue(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func writeSidebar(b *strings.Builder, domains models.FilterDomains) {
	b.WriteString(`<aside class="sidebar">` + "\n")
	b.WriteString("<h2>Filters</h2>\n")

	minDate := dateValue(domains.MinDate)
	maxDate := dateValue(domains.MaxDate)
	b.WriteString(`<section><h3>Date Range</h3>` + "\n")
	fmt.Fprintf(b, `<input type="date" data-bind-from data-on-change="@get('/sse/dashboard')" min=%q max=%q>`+"\n", minDate, maxDate)
	fmt.Fprintf(b, `<input type="date" data-bind-to data-on-change="@get('/sse/dashboard')" min=%q max=%q>`+"\n", minDate, maxDate)
	b.WriteString("</section>\n")

	writeCheckboxGroup(b, "Product Categories", "categories", domains.Categories)
	writeCheckboxGroup(b, "Customer Segments", "segments", domains.Segments)
	writeCheckboxGroup(b, "Payment Methods", "payments", domains.PaymentMethods)

	b.WriteString(`<a id="export-link" class="export-link" href="/export/transactions.xlsx" data-effect="el.href = buildExportUrl($from, $to, $categories, $segments, $payments)">Export XLSX</a>` + "\n")
	b.WriteString("</aside>\n")
}

func writeCheckboxGroup(b *strings.Builder, title, signal string, values []string) {
	fmt.Fprintf(b, "<section><h3>%s</h3>\n", template.HTMLEscapeString(title))
	for _, v := range values {
		escaped := template.HTMLEscapeString(v)
		fmt.Fprintf(b,
			`<label><input type="checkbox" data-bind-%s data-on-change="@get('/sse/dashboard')" value=%q checked> %s</label>`+"\n",
			signal, escaped, escaped)
	}
	b.WriteString("</section>\n")
}

func writeMain(b *strings.Builder) {
	b.WriteString(`<main class="content">` + "\n")
	b.WriteString("<h1>Sales Analytics Dashboard</h1>\n")
	b.WriteString("<p class=\"subtitle\">Interactive sales metrics and customer distribution. Use the sidebar filters to customize the view.</p>\n")

	b.WriteString("<h2>Key Metrics</h2>\n")
	b.WriteString(`<div id="kpi-cards" class="kpi-grid"><div class="kpi-card">Loading…</div></div>` + "\n")

	b.WriteString("<h2>Monthly Sales Trend</h2>\n")
	b.WriteString(`<div id="monthly-chart" class="chart" data-effect="renderMonthlyChart($monthlyData)"></div>` + "\n")

	b.WriteString("<h2>Customer Map</h2>\n")
	b.WriteString(`<div id="customer-map" class="map"></div>` + "\n")

	b.WriteString(`<div class="chart-row">` + "\n")
	b.WriteString(`<div><h2>Sales by Category</h2><div id="category-share-chart" class="chart" data-effect="renderCategoryShare($categoryData)"></div></div>` + "\n")
	b.WriteString(`<div><h2>Category Ranking</h2><div id="category-rank-chart" class="chart" data-effect="renderCategoryRank($categoryData)"></div></div>` + "\n")
	b.WriteString("</div>\n")

	b.WriteString(`<div class="chart-row">` + "\n")
	b.WriteString(`<div><h2>Sales by Segment</h2><div id="segment-chart" class="chart" data-effect="renderSegmentChart($segmentData)"></div></div>` + "\n")
	b.WriteString(`<div><h2>Payment Methods</h2><div id="payment-chart" class="chart" data-effect="renderPaymentChart($paymentData)"></div></div>` + "\n")
	b.WriteString("</div>\n")

	b.WriteString(`<div class="chart-row">` + "\n")
	b.WriteString(`<div><h2>Top Products</h2><div id="products-chart" class="chart" data-effect="renderProductsChart($productsData)"></div></div>` + "\n")
	b.WriteString(`<div><h2>Price vs Quantity</h2><div id="price-chart" class="chart" data-effect="renderPriceChart($priceData)"></div></div>` + "\n")
	b.WriteString("</div>\n")

	b.WriteString("<h2>Transactions</h2>\n")
	b.WriteString(`<div id="table-content" class="table-viewport"><p>Loading…</p></div>` + "\n")

	b.WriteString("</main>\n")
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Sales Analytics Dashboard</title>
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/leaflet@1.9.4/dist/leaflet.min.css">
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/leaflet.markercluster@1.5.3/dist/MarkerCluster.Default.css">
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0/bundles/datastar.js"></script>
<script src="https://cdn.jsdelivr.net/npm/plotly.js-dist-min@2.35.2/plotly.min.js"></script>
<script src="https://cdn.jsdelivr.net/npm/leaflet@1.9.4/dist/leaflet.min.js"></script>
<script src="https://cdn.jsdelivr.net/npm/leaflet.markercluster@1.5.3/dist/leaflet.markercluster.min.js"></script>
<style>
body { font-family: system-ui, sans-serif; margin: 0; background: #f5f6f8; color: #1f2430; }
.layout { display: flex; min-height: 100vh; }
.sidebar { width: 260px; padding: 1rem; background: #fff; border-right: 1px solid #e2e5ea; }
.sidebar section { margin-bottom: 1.25rem; }
.sidebar label { display: block; font-size: 0.9rem; margin: 0.15rem 0; }
.content { flex: 1; padding: 1rem 2rem; }
.subtitle { color: #5a6172; }
.kpi-grid { display: grid; grid-template-columns: repeat(4, 1fr); gap: 1rem; }
.kpi-card { background: #fff; border-radius: 8px; padding: 1rem; box-shadow: 0 1px 3px rgba(0,0,0,0.08); }
.kpi-label { display: block; font-size: 0.8rem; color: #5a6172; }
.kpi-value { display: block; font-size: 1.4rem; font-weight: 600; }
.chart { min-height: 320px; background: #fff; border-radius: 8px; }
.chart-row { display: grid; grid-template-columns: 1fr 1fr; gap: 1rem; }
.map { height: 500px; border-radius: 8px; }
.table-viewport { max-height: 420px; overflow-y: auto; background: #fff; border-radius: 8px; }
.modern-table { width: 100%; border-collapse: collapse; font-size: 0.85rem; }
.modern-table th, .modern-table td { padding: 0.4rem 0.6rem; text-align: left; border-bottom: 1px solid #eef0f3; }
.category-badge { background: #eef3ff; border-radius: 4px; padding: 0.1rem 0.4rem; }
.table-note { color: #5a6172; font-size: 0.8rem; padding: 0.25rem 0.6rem; }
.export-link { display: inline-block; margin-top: 0.5rem; font-size: 0.9rem; }
</style>
</head>
`

const pageScript = `<script>
function buildExportUrl(from, to, categories, segments, payments) {
  const params = new URLSearchParams();
  if (from) params.set('from', from);
  if (to) params.set('to', to);
  if (categories.length) params.set('category', categories.join(','));
  if (segments.length) params.set('segment', segments.join(','));
  if (payments.length) params.set('payment', payments.join(','));
  const query = params.toString();
  return '/export/transactions.xlsx' + (query ? '?' + query : '');
}

function renderMonthlyChart(data) {
  Plotly.react('monthly-chart', [{
    x: data.map(d => d.month),
    y: data.map(d => d.total),
    customdata: data.map(d => d.transactions),
    type: 'scatter', mode: 'lines+markers', fill: 'tozeroy',
    fillcolor: 'rgba(100, 200, 150, 0.2)', line: { width: 2.5 },
    hovertemplate: '<b>Month:</b> %{x}<br><b>Sales:</b> $%{y:,.2f}<br><b>Transactions:</b> %{customdata:,}<extra></extra>'
  }], { margin: { t: 20 }, xaxis: { title: 'Month' }, yaxis: { title: 'Sales ($)' } }, { responsive: true });
}

function renderCategoryShare(data) {
  Plotly.react('category-share-chart', [{
    labels: data.map(d => d.category),
    values: data.map(d => d.total),
    type: 'pie', hole: 0.3,
    hovertemplate: '<b>Category:</b> %{label}<br><b>Total:</b> $%{value:,.2f}<extra></extra>'
  }], { margin: { t: 20 } }, { responsive: true });
}

function renderCategoryRank(data) {
  Plotly.react('category-rank-chart', [{
    x: data.map(d => d.category),
    y: data.map(d => d.total),
    type: 'bar',
    hovertemplate: '<b>Category:</b> %{x}<br><b>Total:</b> $%{y:,.2f}<extra></extra>'
  }], { margin: { t: 20 }, yaxis: { title: 'Sales ($)' } }, { responsive: true });
}

function renderSegmentChart(data) {
  Plotly.react('segment-chart', [{
    x: data.map(d => d.segment),
    y: data.map(d => d.total),
    type: 'bar',
    hovertemplate: '<b>Segment:</b> %{x}<br><b>Total:</b> $%{y:,.2f}<extra></extra>'
  }], { margin: { t: 20 }, yaxis: { title: 'Sales ($)' } }, { responsive: true });
}

function renderPaymentChart(data) {
  Plotly.react('payment-chart', [{
    labels: data.map(d => d.method),
    values: data.map(d => d.total),
    type: 'pie', hole: 0.3,
    hovertemplate: '<b>Payment method:</b> %{label}<br><b>Total:</b> $%{value:,.2f}<extra></extra>'
  }], { margin: { t: 20 } }, { responsive: true });
}

function renderProductsChart(data) {
  Plotly.react('products-chart', [{
    x: data.map(d => d.product_name),
    y: data.map(d => d.quantity),
    type: 'bar',
    hovertemplate: '<b>Product:</b> %{x}<br><b>Units:</b> %{y:,}<extra></extra>'
  }], { margin: { t: 20 }, xaxis: { tickangle: -45 }, yaxis: { title: 'Units sold' } }, { responsive: true });
}

function renderPriceChart(data) {
  const byCategory = new Map();
  for (const d of data) {
    const key = d.category || 'Unknown';
    if (!byCategory.has(key)) byCategory.set(key, { x: [], y: [] });
    const series = byCategory.get(key);
    series.x.push(d.quantity);
    series.y.push(d.price);
  }
  const traces = [...byCategory.entries()].map(([name, series]) => ({
    x: series.x, y: series.y, name: name,
    type: 'scatter', mode: 'markers', marker: { opacity: 0.6 },
    hovertemplate: '<b>Quantity:</b> %{x}<br><b>Unit price:</b> $%{y:,.2f}<extra>' + name + '</extra>'
  }));
  Plotly.react('price-chart', traces,
    { margin: { t: 20 }, xaxis: { title: 'Quantity' }, yaxis: { title: 'Unit price ($)' } },
    { responsive: true });
}

async function initCustomerMap() {
  const response = await fetch('/api/customer-map');
  const payload = await response.json();
  if (!payload.success) return;
  const view = payload.data;

  const center = view.has_center ? [view.center_lat, view.center_lon] : [0, 0];
  const map = L.map('customer-map').setView(center, view.has_center ? view.zoom : 2);
  L.tileLayer('https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}.png', {
    attribution: '&copy; OpenStreetMap contributors &copy; CARTO'
  }).addTo(map);

  const clustered = L.markerClusterGroup();
  const plain = L.layerGroup();
  for (const loc of view.locations) {
    const marker = L.circleMarker([loc.latitude, loc.longitude], {
      radius: 5 + loc.customers / 500, color: '#3388ff',
      fill: true, fillColor: loc.color, fillOpacity: 0.8
    }).bindPopup(
      '<b>City:</b> ' + loc.city +
      '<br><b>Customers:</b> ' + loc.customers.toLocaleString() +
      '<br><b>Total sales:</b> $' + loc.total_sales.toFixed(2) +
      '<br><b>Transactions:</b> ' + loc.transactions.toLocaleString() +
      '<br><b>Avg ticket:</b> $' + loc.avg_ticket.toFixed(2) +
      '<br><b>Top segment:</b> ' + loc.top_segment
    ).bindTooltip(loc.city + ' - ' + loc.customers + ' customers');
    clustered.addLayer(marker);
    plain.addLayer(L.circleMarker([loc.latitude, loc.longitude], {
      radius: 4, color: '#3388ff', fill: true, fillColor: loc.color, fillOpacity: 0.8
    }));
  }
  clustered.addTo(map);
  L.control.layers({ 'Clustered': clustered, 'All markers': plain }).addTo(map);
}

document.addEventListener('DOMContentLoaded', initCustomerMap);
</script>
`
