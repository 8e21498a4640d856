package models

import "time"

// Transaction is one row of the sales table. ProductID and CustomerID are
// opaque string tokens; parsing them as numbers would strip leading zeros.
type Transaction struct {
	TransactionID string
	Date          time.Time
	ProductID     string
	CustomerID    string
	Quantity      int
	Total         float64
	PaymentMethod string
}

// Product is one row of the product catalog.
type Product struct {
	ProductID string
	Name      string
	Category  string
}

// Customer is one row of the customer table.
type Customer struct {
	CustomerID string
	Segment    string
	City       string
	Latitude   float64
	Longitude  float64
}

// CombinedRecord is a transaction with its product and customer attributes
// left-joined on. HasProduct / HasCustomer distinguish a matched join from
// genuinely empty attribute values.
type CombinedRecord struct {
	Transaction
	ProductName string
	Category    string
	Segment     string
	City        string
	Latitude    float64
	Longitude   float64
	HasProduct  bool
	HasCustomer bool
}

// FilterDomains holds the selectable values derived from the full combined
// set. The slices are deduplicated and sorted alphabetically.
type FilterDomains struct {
	MinDate        time.Time `json:"min_date"`
	MaxDate        time.Time `json:"max_date"`
	Categories     []string  `json:"categories"`
	Segments       []string  `json:"segments"`
	PaymentMethods []string  `json:"payment_methods"`
}

type Metrics struct {
	TotalSales      float64 `json:"total_sales"`
	AvgMonthlySales float64 `json:"avg_monthly_sales"`
	UniqueCustomers int     `json:"unique_customers"`
	RetentionRate   float64 `json:"retention_rate"`
}

// MonthlyPoint is one month-end bucket of the trend chart. Month is the
// "2006-01" key, which also sorts chronologically.
type MonthlyPoint struct {
	Month        string  `json:"month"`
	Total        float64 `json:"total"`
	Transactions int     `json:"transactions"`
}

type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Share    float64 `json:"share"`
}

type SegmentTotal struct {
	Segment string  `json:"segment"`
	Total   float64 `json:"total"`
}

type PaymentTotal struct {
	Method string  `json:"method"`
	Total  float64 `json:"total"`
}

// PricePoint is one transaction of the price-quantity scatter. Price is the
// unit price derived from the row: total divided by quantity.
type PricePoint struct {
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Category string  `json:"category"`
}

type ProductQuantity struct {
	ProductName string `json:"product_name"`
	Category    string `json:"category"`
	Quantity    int    `json:"quantity"`
}

// MapLocation is one clustered coordinate on the customer map with the
// popup metrics for that location.
type MapLocation struct {
	City         string  `json:"city"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Customers    int     `json:"customers"`
	TotalSales   float64 `json:"total_sales"`
	Transactions int     `json:"transactions"`
	AvgTicket    float64 `json:"avg_ticket"`
	TopSegment   string  `json:"top_segment"`
	Color        string  `json:"color"`
}

// MapView is the full customer-map payload. HasCenter is false when the
// customer table is empty; the client then falls back to a world view.
type MapView struct {
	CenterLat float64       `json:"center_lat"`
	CenterLon float64       `json:"center_lon"`
	Zoom      int           `json:"zoom"`
	HasCenter bool          `json:"has_center"`
	Locations []MapLocation `json:"locations"`
}
