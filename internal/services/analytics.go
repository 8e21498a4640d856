// Package services holds the filter engine and every aggregation the
// dashboard renders. The model is deliberately simple: an immutable loaded
// dataset plus pure functions from (dataset, selection) to metrics, chart
// rows and table rows, re-run in full on every filter change.
package services

import (
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"sales-dashboard/internal/dataset"
	"sales-dashboard/internal/models"
)

type Analytics struct {
	mu     sync.RWMutex
	data   *dataset.Dataset
	logger *slog.Logger
}

func NewAnalytics() *Analytics {
	return &Analytics{
		data:   &dataset.Dataset{},
		logger: slog.Default(),
	}
}

// SetDataset swaps in a freshly loaded dataset.
func (a *Analytics) SetDataset(ds *dataset.Dataset) {
	a.mu.Lock()
	a.data = ds
	a.mu.Unlock()

	a.logger.Info("dataset swapped",
		"records", len(ds.Combined),
		"customers", len(ds.Customers),
		"loaded_at", ds.LoadedAt,
	)
}

// SetData is the test seam: it builds a dataset directly from records.
func (a *Analytics) SetData(combined []models.CombinedRecord, customers []models.Customer) {
	a.SetDataset(&dataset.Dataset{
		Combined:  combined,
		Customers: customers,
		LoadedAt:  time.Now(),
	})
}

// Selection is the active filter state. A zero From/To means no date bound
// on that side; an empty slice means that membership filter is inactive.
type Selection struct {
	From       time.Time
	To         time.Time
	Categories []string
	Segments   []string
	Payments   []string
}

// Domains derives the selectable filter values from the full combined set.
func (a *Analytics) Domains() models.FilterDomains {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return domains(a.data.Combined)
}

func domains(records []models.CombinedRecord) models.FilterDomains {
	d := models.FilterDomains{}
	categories := make(map[string]struct{})
	segments := make(map[string]struct{})
	payments := make(map[string]struct{})

	for i, rec := range records {
		day := dateOnly(rec.Date)
		if i == 0 || day.Before(d.MinDate) {
			d.MinDate = day
		}
		if i == 0 || day.After(d.MaxDate) {
			d.MaxDate = day
		}
		if rec.HasProduct && rec.Category != "" {
			categories[rec.Category] = struct{}{}
		}
		if rec.HasCustomer && rec.Segment != "" {
			segments[rec.Segment] = struct{}{}
		}
		if rec.PaymentMethod != "" {
			payments[rec.PaymentMethod] = struct{}{}
		}
	}

	d.Categories = sortedKeys(categories)
	d.Segments = sortedKeys(segments)
	d.PaymentMethods = sortedKeys(payments)
	return d
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// View applies sel to the combined set and returns the filtered snapshot
// all downstream aggregations read from.
func (a *Analytics) View(sel Selection) *View {
	a.mu.RLock()
	records := a.data.Combined
	a.mu.RUnlock()

	d := domains(records)

	// A collapsed range (only one endpoint supplied) is the one-day range
	// at that endpoint.
	from, to := sel.From, sel.To
	if to.IsZero() && !from.IsZero() {
		to = from
	}
	if from.IsZero() && !to.IsZero() {
		from = to
	}
	from, to = dateOnly(from), dateOnly(to)

	categorySet := activeSet(sel.Categories, d.Categories)
	segmentSet := activeSet(sel.Segments, d.Segments)
	paymentSet := activeSet(sel.Payments, d.PaymentMethods)

	var filtered []models.CombinedRecord
	for _, rec := range records {
		day := dateOnly(rec.Date)
		if !from.IsZero() && day.Before(from) {
			continue
		}
		if !to.IsZero() && day.After(to) {
			continue
		}
		if !memberOrUnknown(categorySet, rec.Category, rec.HasProduct) {
			continue
		}
		if !memberOrUnknown(segmentSet, rec.Segment, rec.HasCustomer) {
			continue
		}
		if paymentSet != nil {
			if _, ok := paymentSet[rec.PaymentMethod]; !ok {
				continue
			}
		}
		filtered = append(filtered, rec)
	}

	return &View{records: filtered}
}

// activeSet returns nil when the selection leaves the filter inactive:
// nothing selected, or every domain value selected.
func activeSet(selected, domain []string) map[string]struct{} {
	if len(selected) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		set[s] = struct{}{}
	}
	all := true
	for _, v := range domain {
		if _, ok := set[v]; !ok {
			all = false
			break
		}
	}
	if all {
		return nil
	}
	return set
}

// memberOrUnknown applies a membership filter to a possibly-null joined
// attribute. Records whose join failed stay visible while the filter is
// inactive and drop out once the user narrows the selection.
func memberOrUnknown(set map[string]struct{}, value string, known bool) bool {
	if set == nil {
		return true
	}
	if !known {
		return false
	}
	_, ok := set[value]
	return ok
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// View is one filtered snapshot. Every method is a pure aggregation over
// the same record slice.
type View struct {
	records []models.CombinedRecord
}

func (v *View) Records() []models.CombinedRecord {
	return v.records
}

func (v *View) Count() int {
	return len(v.records)
}

// Metrics computes the four KPIs. All of them degrade to zero on an empty
// view; the retention and monthly averages guard their denominators.
func (v *View) Metrics() models.Metrics {
	var m models.Metrics

	months := make(map[string]struct{})
	purchasesByCustomer := make(map[string]int)

	for _, rec := range v.records {
		m.TotalSales += rec.Total
		months[monthKey(rec.Date)] = struct{}{}
		if rec.CustomerID != "" {
			purchasesByCustomer[rec.CustomerID]++
		}
	}

	if len(months) > 0 {
		m.AvgMonthlySales = m.TotalSales / float64(len(months))
	}

	m.UniqueCustomers = len(purchasesByCustomer)
	if m.UniqueCustomers > 0 {
		repeat := 0
		for _, n := range purchasesByCustomer {
			if n > 1 {
				repeat++
			}
		}
		m.RetentionRate = float64(repeat) / float64(m.UniqueCustomers) * 100
	}

	return m
}

// MonthlyTrend groups the view by calendar month, ordered chronologically.
// Only months with at least one record appear.
func (v *View) MonthlyTrend() []models.MonthlyPoint {
	byMonth := make(map[string]*models.MonthlyPoint)
	for _, rec := range v.records {
		key := monthKey(rec.Date)
		p := byMonth[key]
		if p == nil {
			p = &models.MonthlyPoint{Month: key}
			byMonth[key] = p
		}
		p.Total += rec.Total
		p.Transactions++
	}

	trend := make([]models.MonthlyPoint, 0, len(byMonth))
	for _, p := range byMonth {
		trend = append(trend, *p)
	}
	slices.SortFunc(trend, func(a, b models.MonthlyPoint) int {
		return strings.Compare(a.Month, b.Month)
	})
	return trend
}

// CategoryBreakdown is the single grouped pass behind both the share chart
// and the ranked bar chart. Records with no matched product are excluded.
func (v *View) CategoryBreakdown() []models.CategoryTotal {
	byCategory := make(map[string]float64)
	var grand float64
	for _, rec := range v.records {
		if !rec.HasProduct || rec.Category == "" {
			continue
		}
		byCategory[rec.Category] += rec.Total
		grand += rec.Total
	}

	breakdown := make([]models.CategoryTotal, 0, len(byCategory))
	for category, total := range byCategory {
		ct := models.CategoryTotal{Category: category, Total: total}
		if grand > 0 {
			ct.Share = total / grand * 100
		}
		breakdown = append(breakdown, ct)
	}
	sortByTotalDesc(breakdown, func(c models.CategoryTotal) (float64, string) { return c.Total, c.Category })
	return breakdown
}

func (v *View) SegmentBreakdown() []models.SegmentTotal {
	bySegment := make(map[string]float64)
	for _, rec := range v.records {
		if !rec.HasCustomer || rec.Segment == "" {
			continue
		}
		bySegment[rec.Segment] += rec.Total
	}

	breakdown := make([]models.SegmentTotal, 0, len(bySegment))
	for segment, total := range bySegment {
		breakdown = append(breakdown, models.SegmentTotal{Segment: segment, Total: total})
	}
	sortByTotalDesc(breakdown, func(s models.SegmentTotal) (float64, string) { return s.Total, s.Segment })
	return breakdown
}

func (v *View) PaymentBreakdown() []models.PaymentTotal {
	byMethod := make(map[string]float64)
	for _, rec := range v.records {
		if rec.PaymentMethod == "" {
			continue
		}
		byMethod[rec.PaymentMethod] += rec.Total
	}

	breakdown := make([]models.PaymentTotal, 0, len(byMethod))
	for method, total := range byMethod {
		breakdown = append(breakdown, models.PaymentTotal{Method: method, Total: total})
	}
	sortByTotalDesc(breakdown, func(p models.PaymentTotal) (float64, string) { return p.Total, p.Method })
	return breakdown
}

// TopProducts ranks matched products by units sold, descending.
func (v *View) TopProducts(limit int) []models.ProductQuantity {
	type group struct {
		category string
		quantity int
	}
	byProduct := make(map[string]*group)
	for _, rec := range v.records {
		if !rec.HasProduct || rec.ProductName == "" {
			continue
		}
		g := byProduct[rec.ProductName]
		if g == nil {
			g = &group{category: rec.Category}
			byProduct[rec.ProductName] = g
		}
		g.quantity += rec.Quantity
	}

	products := make([]models.ProductQuantity, 0, len(byProduct))
	for name, g := range byProduct {
		products = append(products, models.ProductQuantity{
			ProductName: name,
			Category:    g.category,
			Quantity:    g.quantity,
		})
	}
	slices.SortFunc(products, func(a, b models.ProductQuantity) int {
		if a.Quantity != b.Quantity {
			return b.Quantity - a.Quantity
		}
		return strings.Compare(a.ProductName, b.ProductName)
	})
	if len(products) > limit {
		products = products[:limit]
	}
	return products
}

// PriceQuantity derives the unit-price scatter from the view, one point per
// record. Rows with a non-positive quantity are skipped; the unit price is
// undefined for them.
func (v *View) PriceQuantity() []models.PricePoint {
	points := make([]models.PricePoint, 0, len(v.records))
	for _, rec := range v.records {
		if rec.Quantity <= 0 {
			continue
		}
		points = append(points, models.PricePoint{
			Price:    rec.Total / float64(rec.Quantity),
			Quantity: rec.Quantity,
			Category: rec.Category,
		})
	}
	return points
}

// SortedByDateDesc returns the view's records ordered newest first, for the
// table and the export. The receiver's slice is not mutated.
func (v *View) SortedByDateDesc() []models.CombinedRecord {
	rows := slices.Clone(v.records)
	slices.SortFunc(rows, func(a, b models.CombinedRecord) int {
		if a.Date.After(b.Date) {
			return -1
		}
		if a.Date.Before(b.Date) {
			return 1
		}
		return strings.Compare(a.TransactionID, b.TransactionID)
	})
	return rows
}

// CustomerMap builds the geographic payload from the full customer table.
// The sidebar filters deliberately do not apply here; the map always shows
// every customer.
func (a *Analytics) CustomerMap() models.MapView {
	a.mu.RLock()
	customers := a.data.Customers
	combined := a.data.Combined
	a.mu.RUnlock()

	view := models.MapView{Zoom: 2, Locations: []models.MapLocation{}}
	if len(customers) == 0 {
		return view
	}

	type salesTotals struct {
		total        float64
		transactions int
	}
	salesByCustomer := make(map[string]salesTotals)
	for _, rec := range combined {
		t := salesByCustomer[rec.CustomerID]
		t.total += rec.Total
		t.transactions++
		salesByCustomer[rec.CustomerID] = t
	}

	type location struct {
		models.MapLocation
		segments map[string]int
	}
	var sumLat, sumLon float64
	locations := make(map[string]*location)
	order := make([]string, 0)

	for _, c := range customers {
		sumLat += c.Latitude
		sumLon += c.Longitude

		key := coordKey(c.Latitude) + "|" + coordKey(c.Longitude) + "|" + c.City
		loc := locations[key]
		if loc == nil {
			loc = &location{
				MapLocation: models.MapLocation{
					City:      c.City,
					Latitude:  c.Latitude,
					Longitude: c.Longitude,
				},
				segments: make(map[string]int),
			}
			locations[key] = loc
			order = append(order, key)
		}
		loc.Customers++
		loc.segments[c.Segment]++
		if t, ok := salesByCustomer[c.CustomerID]; ok {
			loc.TotalSales += t.total
			loc.Transactions += t.transactions
		}
	}

	view.CenterLat = sumLat / float64(len(customers))
	view.CenterLon = sumLon / float64(len(customers))
	view.Zoom = 6
	view.HasCenter = true

	for _, key := range order {
		loc := locations[key]
		if loc.Transactions > 0 {
			loc.AvgTicket = loc.TotalSales / float64(loc.Transactions)
		}
		loc.TopSegment = dominantSegment(loc.segments)
		loc.Color = salesColor(loc.TotalSales)
		view.Locations = append(view.Locations, loc.MapLocation)
	}
	return view
}

func dominantSegment(counts map[string]int) string {
	best, bestCount := "", -1
	for segment, n := range counts {
		if n > bestCount || (n == bestCount && segment < best) {
			best, bestCount = segment, n
		}
	}
	return best
}

// salesColor steps the marker color by location sales volume.
func salesColor(sales float64) string {
	switch {
	case sales > 1_000_000:
		return "#ff0000"
	case sales > 500_000:
		return "#ff6600"
	case sales > 100_000:
		return "#ffcc00"
	default:
		return "#33cc33"
	}
}

// Stats reports dataset-level counters for the admin endpoint.
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	d := domains(a.data.Combined)
	return map[string]any{
		"record_count":    len(a.data.Combined),
		"customer_count":  len(a.data.Customers),
		"categories":      len(d.Categories),
		"segments":        len(d.Segments),
		"payment_methods": len(d.PaymentMethods),
		"loaded_at":       a.data.LoadedAt,
	}
}

func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

func coordKey(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// sortByTotalDesc orders breakdown rows by amount descending with a stable
// alphabetical tiebreak.
func sortByTotalDesc[T any](rows []T, key func(T) (float64, string)) {
	slices.SortFunc(rows, func(a, b T) int {
		at, an := key(a)
		bt, bn := key(b)
		if at > bt {
			return -1
		}
		if at < bt {
			return 1
		}
		return strings.Compare(an, bn)
	})
}
