package services

import (
	"math"
	"testing"
	"time"

	"sales-dashboard/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tx(id string, date time.Time, customerID, category, segment string, quantity int, total float64) models.CombinedRecord {
	return models.CombinedRecord{
		Transaction: models.Transaction{
			TransactionID: id,
			Date:          date,
			ProductID:     "P-" + id,
			CustomerID:    customerID,
			Quantity:      quantity,
			Total:         total,
			PaymentMethod: "Card",
		},
		ProductName: "Product " + id,
		Category:    category,
		Segment:     segment,
		City:        "Bogota",
		HasProduct:  true,
		HasCustomer: true,
	}
}

// The three-transaction scenario used throughout: two customers, one of
// them a repeat buyer, all in one category and month.
func seedAnalytics(t *testing.T) *Analytics {
	t.Helper()
	a := NewAnalytics()
	a.SetData([]models.CombinedRecord{
		tx("T001", day(2024, 3, 5), "C001", "Electronics", "Premium", 1, 100),
		tx("T002", day(2024, 3, 12), "C001", "Electronics", "Premium", 2, 250),
		tx("T003", day(2024, 3, 20), "C002", "Electronics", "Standard", 1, 50),
	}, []models.Customer{
		{CustomerID: "C001", Segment: "Premium", City: "Bogota", Latitude: 4.6, Longitude: -74.1},
		{CustomerID: "C002", Segment: "Standard", City: "Medellin", Latitude: 6.2, Longitude: -75.6},
	})
	return a
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAnalytics_Domains(t *testing.T) {
	a := seedAnalytics(t)
	d := a.Domains()

	if !d.MinDate.Equal(day(2024, 3, 5)) {
		t.Errorf("MinDate = %v, want 2024-03-05", d.MinDate)
	}
	if !d.MaxDate.Equal(day(2024, 3, 20)) {
		t.Errorf("MaxDate = %v, want 2024-03-20", d.MaxDate)
	}
	if len(d.Categories) != 1 || d.Categories[0] != "Electronics" {
		t.Errorf("Categories = %v, want [Electronics]", d.Categories)
	}
	if len(d.Segments) != 2 || d.Segments[0] != "Premium" || d.Segments[1] != "Standard" {
		t.Errorf("Segments = %v, want sorted [Premium Standard]", d.Segments)
	}
}

func TestAnalytics_Domains_ExcludeUnmatchedJoins(t *testing.T) {
	a := NewAnalytics()
	orphan := tx("T001", day(2024, 1, 1), "C001", "", "", 1, 10)
	orphan.HasProduct = false
	orphan.HasCustomer = false
	a.SetData([]models.CombinedRecord{orphan}, nil)

	d := a.Domains()
	if len(d.Categories) != 0 {
		t.Errorf("Categories = %v, want empty for unmatched product", d.Categories)
	}
	if len(d.Segments) != 0 {
		t.Errorf("Segments = %v, want empty for unmatched customer", d.Segments)
	}
}

func TestAnalytics_View_DateRangeInclusive(t *testing.T) {
	a := seedAnalytics(t)

	tests := []struct {
		name string
		sel  Selection
		want int
	}{
		{"no bounds", Selection{}, 3},
		{"full range", Selection{From: day(2024, 3, 5), To: day(2024, 3, 20)}, 3},
		{"endpoints inclusive", Selection{From: day(2024, 3, 12), To: day(2024, 3, 20)}, 2},
		{"collapsed to one day", Selection{From: day(2024, 3, 12), To: day(2024, 3, 12)}, 1},
		{"only from supplied", Selection{From: day(2024, 3, 12)}, 1},
		{"only to supplied", Selection{To: day(2024, 3, 20)}, 1},
		{"empty range", Selection{From: day(2025, 1, 1), To: day(2025, 1, 31)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.View(tt.sel).Count(); got != tt.want {
				t.Errorf("Count() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAnalytics_View_MembershipFilters(t *testing.T) {
	a := seedAnalytics(t)

	if got := a.View(Selection{Segments: []string{"Premium"}}).Count(); got != 2 {
		t.Errorf("premium view = %d records, want 2", got)
	}
	if got := a.View(Selection{Segments: []string{"Premium", "Standard"}}).Count(); got != 3 {
		t.Errorf("all-segments view = %d records, want 3", got)
	}
	if got := a.View(Selection{Categories: []string{"Furniture"}}).Count(); got != 0 {
		t.Errorf("unknown category view = %d records, want 0", got)
	}
}

func TestAnalytics_View_UnmatchedProductVisibility(t *testing.T) {
	a := NewAnalytics()
	orphan := tx("T900", day(2024, 3, 1), "C900", "", "Premium", 1, 75)
	orphan.HasProduct = false
	orphan.ProductName = ""
	a.SetData([]models.CombinedRecord{
		orphan,
		tx("T901", day(2024, 3, 2), "C901", "Electronics", "Premium", 1, 25),
	}, nil)

	// Inactive category filter keeps the orphan in the view and in totals.
	view := a.View(Selection{})
	if view.Count() != 2 {
		t.Fatalf("default view = %d records, want 2", view.Count())
	}
	m := view.Metrics()
	if !almostEqual(m.TotalSales, 100) {
		t.Errorf("TotalSales = %v, want 100 (orphan included)", m.TotalSales)
	}

	breakdown := view.CategoryBreakdown()
	if len(breakdown) != 1 || breakdown[0].Category != "Electronics" {
		t.Fatalf("CategoryBreakdown = %v, want only Electronics", breakdown)
	}
	if !almostEqual(breakdown[0].Total, 25) {
		t.Errorf("Electronics total = %v, want 25 (orphan excluded)", breakdown[0].Total)
	}

	// Narrowing the category selection drops the orphan.
	narrowed := a.View(Selection{Categories: []string{"Electronics"}})
	if narrowed.Count() != 2 {
		// Electronics is the entire category domain, so the filter stays
		// inactive and the orphan survives.
		t.Errorf("full-domain selection = %d records, want 2", narrowed.Count())
	}
}

func TestView_Metrics_Scenario(t *testing.T) {
	a := seedAnalytics(t)
	m := a.View(Selection{}).Metrics()

	if !almostEqual(m.TotalSales, 400) {
		t.Errorf("TotalSales = %v, want 400", m.TotalSales)
	}
	// One month present, so the monthly average equals the full total.
	if !almostEqual(m.AvgMonthlySales, 400) {
		t.Errorf("AvgMonthlySales = %v, want 400", m.AvgMonthlySales)
	}
	if m.UniqueCustomers != 2 {
		t.Errorf("UniqueCustomers = %d, want 2", m.UniqueCustomers)
	}
	if !almostEqual(m.RetentionRate, 50) {
		t.Errorf("RetentionRate = %v, want 50", m.RetentionRate)
	}
}

func TestView_Metrics_EmptyView(t *testing.T) {
	a := seedAnalytics(t)
	m := a.View(Selection{From: day(2030, 1, 1), To: day(2030, 1, 31)}).Metrics()

	if m.TotalSales != 0 || m.AvgMonthlySales != 0 || m.UniqueCustomers != 0 || m.RetentionRate != 0 {
		t.Errorf("empty view metrics = %+v, want all zeros", m)
	}
}

func TestView_Metrics_AvgAcrossPresentMonthsOnly(t *testing.T) {
	a := NewAnalytics()
	// January and April have records; February and March do not and must
	// not appear in the average's denominator.
	a.SetData([]models.CombinedRecord{
		tx("T1", day(2024, 1, 10), "C1", "Electronics", "Premium", 1, 100),
		tx("T2", day(2024, 4, 10), "C2", "Electronics", "Premium", 1, 300),
	}, nil)

	m := a.View(Selection{}).Metrics()
	if !almostEqual(m.AvgMonthlySales, 200) {
		t.Errorf("AvgMonthlySales = %v, want 200 (two months present)", m.AvgMonthlySales)
	}
}

func TestView_Metrics_RetentionBounds(t *testing.T) {
	a := NewAnalytics()
	a.SetData([]models.CombinedRecord{
		tx("T1", day(2024, 1, 1), "C1", "Electronics", "Premium", 1, 10),
		tx("T2", day(2024, 1, 2), "C2", "Electronics", "Premium", 1, 10),
	}, nil)

	m := a.View(Selection{}).Metrics()
	if m.RetentionRate != 0 {
		t.Errorf("RetentionRate = %v, want 0 when every customer bought once", m.RetentionRate)
	}

	a.SetData([]models.CombinedRecord{
		tx("T1", day(2024, 1, 1), "C1", "Electronics", "Premium", 1, 10),
		tx("T2", day(2024, 1, 2), "C1", "Electronics", "Premium", 1, 10),
	}, nil)

	m = a.View(Selection{}).Metrics()
	if !almostEqual(m.RetentionRate, 100) {
		t.Errorf("RetentionRate = %v, want 100 for a single repeat customer", m.RetentionRate)
	}
}

func TestView_FilteredTotalNeverExceedsUnfiltered(t *testing.T) {
	a := seedAnalytics(t)
	full := a.View(Selection{}).Metrics().TotalSales

	sels := []Selection{
		{From: day(2024, 3, 12)},
		{Segments: []string{"Premium"}},
		{Categories: []string{"Electronics"}, Segments: []string{"Standard"}},
	}
	for _, sel := range sels {
		if got := a.View(sel).Metrics().TotalSales; got > full {
			t.Errorf("filtered total %v exceeds unfiltered %v for %+v", got, full, sel)
		}
	}

	if got := a.View(Selection{Categories: []string{"Electronics"}, Segments: []string{"Premium", "Standard"}}).Metrics().TotalSales; !almostEqual(got, full) {
		t.Errorf("select-everything total = %v, want %v", got, full)
	}
}

func TestView_MonthlyTrend(t *testing.T) {
	a := NewAnalytics()
	a.SetData([]models.CombinedRecord{
		tx("T1", day(2024, 2, 1), "C1", "Electronics", "Premium", 1, 30),
		tx("T2", day(2024, 1, 15), "C1", "Electronics", "Premium", 1, 100),
		tx("T3", day(2024, 1, 20), "C2", "Electronics", "Premium", 1, 50),
	}, nil)

	trend := a.View(Selection{}).MonthlyTrend()
	if len(trend) != 2 {
		t.Fatalf("trend has %d points, want 2", len(trend))
	}
	if trend[0].Month != "2024-01" || trend[1].Month != "2024-02" {
		t.Errorf("trend order = %s, %s; want chronological", trend[0].Month, trend[1].Month)
	}
	if !almostEqual(trend[0].Total, 150) || trend[0].Transactions != 2 {
		t.Errorf("January = %+v, want total 150 over 2 transactions", trend[0])
	}
}

func TestView_CategoryBreakdown(t *testing.T) {
	a := NewAnalytics()
	a.SetData([]models.CombinedRecord{
		tx("T1", day(2024, 1, 1), "C1", "Furniture", "Premium", 1, 100),
		tx("T2", day(2024, 1, 2), "C1", "Electronics", "Premium", 1, 300),
		tx("T3", day(2024, 1, 3), "C2", "Furniture", "Premium", 1, 100),
	}, nil)

	view := a.View(Selection{})
	breakdown := view.CategoryBreakdown()
	if len(breakdown) != 2 {
		t.Fatalf("breakdown has %d rows, want 2", len(breakdown))
	}
	if breakdown[0].Category != "Electronics" {
		t.Errorf("breakdown[0] = %s, want Electronics first (descending)", breakdown[0].Category)
	}
	if !almostEqual(breakdown[0].Share, 60) || !almostEqual(breakdown[1].Share, 40) {
		t.Errorf("shares = %v/%v, want 60/40", breakdown[0].Share, breakdown[1].Share)
	}

	var sum float64
	for _, row := range breakdown {
		sum += row.Total
	}
	if total := view.Metrics().TotalSales; !almostEqual(sum, total) {
		t.Errorf("breakdown sum %v != view total %v", sum, total)
	}
}

func TestView_TopProducts(t *testing.T) {
	a := NewAnalytics()
	records := []models.CombinedRecord{}
	for i := 0; i < 3; i++ {
		r := tx("T1", day(2024, 1, 1+i), "C1", "Electronics", "Premium", 5, 10)
		r.ProductName = "Laptop"
		records = append(records, r)
	}
	mouse := tx("T9", day(2024, 1, 9), "C2", "Electronics", "Premium", 2, 10)
	mouse.ProductName = "Mouse"
	records = append(records, mouse)
	a.SetData(records, nil)

	products := a.View(Selection{}).TopProducts(10)
	if len(products) != 2 {
		t.Fatalf("products = %d, want 2", len(products))
	}
	if products[0].ProductName != "Laptop" || products[0].Quantity != 15 {
		t.Errorf("top product = %+v, want Laptop with 15 units", products[0])
	}

	if got := a.View(Selection{}).TopProducts(1); len(got) != 1 {
		t.Errorf("limit 1 returned %d products", len(got))
	}
}

func TestView_PriceQuantity(t *testing.T) {
	a := NewAnalytics()
	bulk := tx("T1", day(2024, 1, 1), "C1", "Electronics", "Premium", 4, 100)
	zeroQty := tx("T2", day(2024, 1, 2), "C1", "Electronics", "Premium", 0, 50)
	single := tx("T3", day(2024, 1, 3), "C2", "Furniture", "Standard", 1, 80)
	a.SetData([]models.CombinedRecord{bulk, zeroQty, single}, nil)

	points := a.View(Selection{}).PriceQuantity()
	if len(points) != 2 {
		t.Fatalf("points = %d, want 2 (zero-quantity row skipped)", len(points))
	}
	if !almostEqual(points[0].Price, 25) || points[0].Quantity != 4 {
		t.Errorf("points[0] = %+v, want unit price 25 over quantity 4", points[0])
	}
	if points[1].Category != "Furniture" {
		t.Errorf("points[1].Category = %s, want Furniture", points[1].Category)
	}
}

func TestView_SortedByDateDesc(t *testing.T) {
	a := seedAnalytics(t)
	rows := a.View(Selection{}).SortedByDateDesc()

	for i := 1; i < len(rows); i++ {
		if rows[i].Date.After(rows[i-1].Date) {
			t.Errorf("rows not sorted descending at index %d", i)
		}
	}
	if rows[0].TransactionID != "T003" {
		t.Errorf("newest row = %s, want T003", rows[0].TransactionID)
	}
}

func TestAnalytics_CustomerMap(t *testing.T) {
	a := seedAnalytics(t)
	view := a.CustomerMap()

	if !view.HasCenter {
		t.Fatal("HasCenter = false with customers present")
	}
	if !almostEqual(view.CenterLat, (4.6+6.2)/2) || !almostEqual(view.CenterLon, (-74.1-75.6)/2) {
		t.Errorf("centroid = (%v, %v)", view.CenterLat, view.CenterLon)
	}
	if len(view.Locations) != 2 {
		t.Fatalf("locations = %d, want 2", len(view.Locations))
	}

	for _, loc := range view.Locations {
		if loc.City == "Bogota" {
			if loc.Transactions != 2 || !almostEqual(loc.TotalSales, 350) {
				t.Errorf("Bogota = %+v, want 2 transactions totalling 350", loc)
			}
			if !almostEqual(loc.AvgTicket, 175) {
				t.Errorf("Bogota avg ticket = %v, want 175", loc.AvgTicket)
			}
			if loc.TopSegment != "Premium" {
				t.Errorf("Bogota top segment = %s, want Premium", loc.TopSegment)
			}
			if loc.Color != "#33cc33" {
				t.Errorf("Bogota color = %s, want green under 100K", loc.Color)
			}
		}
	}
}

// The map deliberately ignores the sidebar filters: it is always built from
// the full customer table.
func TestAnalytics_CustomerMap_IgnoresFilters(t *testing.T) {
	a := seedAnalytics(t)
	before := a.CustomerMap()
	_ = a.View(Selection{Segments: []string{"Premium"}})
	after := a.CustomerMap()

	if len(before.Locations) != len(after.Locations) {
		t.Errorf("map changed after filtering: %d vs %d locations", len(before.Locations), len(after.Locations))
	}
}

func TestAnalytics_CustomerMap_EmptyCustomerTable(t *testing.T) {
	a := NewAnalytics()
	a.SetData(nil, nil)

	view := a.CustomerMap()
	if view.HasCenter {
		t.Error("HasCenter = true with no customers")
	}
	if view.Zoom != 2 {
		t.Errorf("Zoom = %d, want world-view fallback 2", view.Zoom)
	}
	if len(view.Locations) != 0 {
		t.Errorf("locations = %d, want 0", len(view.Locations))
	}
}

func TestSalesColor(t *testing.T) {
	tests := []struct {
		sales float64
		want  string
	}{
		{2_000_000, "#ff0000"},
		{600_000, "#ff6600"},
		{200_000, "#ffcc00"},
		{50_000, "#33cc33"},
		{0, "#33cc33"},
	}
	for _, tt := range tests {
		if got := salesColor(tt.sales); got != tt.want {
			t.Errorf("salesColor(%v) = %s, want %s", tt.sales, got, tt.want)
		}
	}
}

func TestAnalytics_ConcurrentAccess(t *testing.T) {
	a := seedAnalytics(t)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- true }()

			view := a.View(Selection{})
			_ = view.Metrics()
			_ = view.MonthlyTrend()
			_ = view.CategoryBreakdown()
			_ = a.CustomerMap()
			_ = a.Domains()
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestAnalytics_Stats(t *testing.T) {
	a := seedAnalytics(t)
	stats := a.Stats()

	if stats["record_count"] != 3 {
		t.Errorf("record_count = %v, want 3", stats["record_count"])
	}
	if stats["customer_count"] != 2 {
		t.Errorf("customer_count = %v, want 2", stats["customer_count"])
	}
}
