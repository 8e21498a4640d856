package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

// Cache headers: the filter domains and the customer map only change when
// the dataset is reloaded; filtered responses are never cached.
var stableHeaders = map[string]string{
	"Cache-Control": "public, max-age=300",
}

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	dashboard config.DashboardConfig
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger, dashboard config.DashboardConfig) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
		dashboard: dashboard,
	}
}

func (h *APIHandlers) HandleFilters(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.Domains(), stableHeaders)
}

func (h *APIHandlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, view.Metrics())
}

func (h *APIHandlers) HandleMonthlyTrend(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, view.MonthlyTrend())
}

func (h *APIHandlers) HandleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, view.CategoryBreakdown())
}

func (h *APIHandlers) HandleSegmentBreakdown(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, view.SegmentBreakdown())
}

func (h *APIHandlers) HandlePaymentBreakdown(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, view.PaymentBreakdown())
}

func (h *APIHandlers) HandlePriceQuantity(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, view.PriceQuantity())
}

func (h *APIHandlers) HandleTopProducts(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, view.TopProducts(h.dashboard.TopProducts))
}

// HandleCustomerMap serves the map payload. It is built from the full
// customer table; the sidebar filters deliberately do not apply here.
func (h *APIHandlers) HandleCustomerMap(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.CustomerMap(), stableHeaders)
}

func (h *APIHandlers) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, buildTableRows(view.SortedByDateDesc(), h.dashboard.TableMaxRows))
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}

func (h *APIHandlers) view(w http.ResponseWriter, r *http.Request) (*services.View, bool) {
	sel, err := parseSelection(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return nil, false
	}
	return h.analytics.View(sel), true
}
