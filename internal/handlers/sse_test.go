package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestHandleDashboard(t *testing.T) {
	h := NewSSEHandlers(testAnalytics(), testLogger(), testDashboardConfig())

	rec := httptest.NewRecorder()
	h.HandleDashboard(rec, httptest.NewRequest(http.MethodGet, "/sse/dashboard", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	body := rec.Body.String()

	// KPI cards patched with formatted values.
	if !strings.Contains(body, `id="kpi-cards"`) {
		t.Error("response missing kpi-cards fragment")
	}
	if !strings.Contains(body, "$400.00") {
		t.Error("response missing formatted total sales")
	}
	if !strings.Contains(body, "50.0%") {
		t.Error("response missing formatted retention rate")
	}

	// Table patched with the newest rows.
	if !strings.Contains(body, `id="table-content"`) {
		t.Error("response missing table fragment")
	}
	if !strings.Contains(body, "3 of 3 matching transactions") {
		t.Error("response missing table note")
	}

	// Chart data patched as signals.
	if !strings.Contains(body, "monthlyData") {
		t.Error("response missing monthlyData signal")
	}
	if !strings.Contains(body, "productsData") {
		t.Error("response missing productsData signal")
	}
	if !strings.Contains(body, "priceData") {
		t.Error("response missing priceData signal")
	}
}

func TestHandleDashboard_SignalsFilter(t *testing.T) {
	h := NewSSEHandlers(testAnalytics(), testLogger(), testDashboardConfig())

	// GET requests carry signals in the datastar query parameter.
	signals := url.QueryEscape(`{"from":"2024-03-01","to":"2024-03-31","categories":[],"segments":[],"payments":[]}`)
	rec := httptest.NewRecorder()
	h.HandleDashboard(rec, httptest.NewRequest(http.MethodGet, "/sse/dashboard?datastar="+signals, nil))

	body := rec.Body.String()
	if !strings.Contains(body, "$350.00") {
		t.Error("response missing March-only total")
	}
	if !strings.Contains(body, "2 of 2 matching transactions") {
		t.Error("table note not narrowed to the March rows")
	}
	if strings.Contains(body, "T003") {
		t.Error("April transaction leaked into the filtered table")
	}
}

func TestHandleDashboard_MalformedSignals(t *testing.T) {
	h := NewSSEHandlers(testAnalytics(), testLogger(), testDashboardConfig())

	// Unreadable signals fall back to the unfiltered view instead of failing.
	rec := httptest.NewRecorder()
	h.HandleDashboard(rec, httptest.NewRequest(http.MethodGet, "/sse/dashboard?datastar=not-json", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "$400.00") {
		t.Error("fallback render missing unfiltered total")
	}
}

func TestSelectionFromSignals_LenientDates(t *testing.T) {
	h := NewSSEHandlers(testAnalytics(), testLogger(), testDashboardConfig())

	sel := h.selectionFromSignals(dashboardSignals{
		From:       "2024-03",
		To:         "2024-03-31",
		Categories: []string{"Electronics"},
	})

	if !sel.From.IsZero() {
		t.Errorf("half-typed from treated as bound: %v", sel.From)
	}
	if sel.To.IsZero() {
		t.Error("valid to date dropped")
	}
	if len(sel.Categories) != 1 {
		t.Errorf("Categories = %v", sel.Categories)
	}
}
