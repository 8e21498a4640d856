// Package dataset loads the three CSV source tables and joins them into the
// denormalized record set the dashboard works from.
package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"sales-dashboard/internal/models"
)

// Files names the three source tables.
type Files struct {
	Transactions string
	Products     string
	Customers    string
}

// Dataset is the immutable output of one load: every transaction with its
// product and customer attributes left-joined on, plus the raw customer
// table for the map.
type Dataset struct {
	Combined  []models.CombinedRecord
	Customers []models.Customer
	LoadedAt  time.Time
}

var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339}

// Load reads the three tables concurrently and builds the combined set.
// Any missing file, missing column or malformed row is fatal; join misses
// are not. The combined set always has exactly one record per transaction.
func Load(ctx context.Context, files Files) (*Dataset, error) {
	var (
		transactions []models.Transaction
		products     []models.Product
		customers    []models.Customer
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		transactions, err = loadTransactions(ctx, files.Transactions)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = loadProducts(ctx, files.Products)
		return err
	})
	g.Go(func() error {
		var err error
		customers, err = loadCustomers(ctx, files.Customers)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Dataset{
		Combined:  join(transactions, products, customers),
		Customers: customers,
		LoadedAt:  time.Now(),
	}, nil
}

func join(transactions []models.Transaction, products []models.Product, customers []models.Customer) []models.CombinedRecord {
	productsByID := make(map[string]models.Product, len(products))
	for _, p := range products {
		productsByID[p.ProductID] = p
	}
	customersByID := make(map[string]models.Customer, len(customers))
	for _, c := range customers {
		customersByID[c.CustomerID] = c
	}

	combined := make([]models.CombinedRecord, 0, len(transactions))
	for _, tx := range transactions {
		rec := models.CombinedRecord{Transaction: tx}
		if p, ok := productsByID[tx.ProductID]; ok {
			rec.ProductName = p.Name
			rec.Category = p.Category
			rec.HasProduct = true
		}
		if c, ok := customersByID[tx.CustomerID]; ok {
			rec.Segment = c.Segment
			rec.City = c.City
			rec.Latitude = c.Latitude
			rec.Longitude = c.Longitude
			rec.HasCustomer = true
		}
		combined = append(combined, rec)
	}
	return combined
}

// table wraps a csv.Reader with header-based column lookup, so the loaders
// never depend on column order.
type table struct {
	reader  *csv.Reader
	columns map[string]int
	file    string
	row     int
}

func openTable(filename string, required ...string) (*table, *os.File, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", filename, err)
	}

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("read header of %s: %w", filename, err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			f.Close()
			return nil, nil, fmt.Errorf("%s: missing column %q", filename, name)
		}
	}

	return &table{reader: r, columns: columns, file: filename, row: 1}, f, nil
}

func (t *table) next() ([]string, error) {
	record, err := t.reader.Read()
	if err != nil {
		return nil, err
	}
	t.row++
	return record, nil
}

func (t *table) field(record []string, column string) string {
	idx, ok := t.columns[column]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func (t *table) rowErr(column string, err error) error {
	return fmt.Errorf("%s row %d: column %q: %w", t.file, t.row, column, err)
}

func loadTransactions(ctx context.Context, filename string) ([]models.Transaction, error) {
	t, f, err := openTable(filename, "transaccion_id", "fecha", "producto_id", "cliente_id", "cantidad", "total")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var transactions []models.Transaction
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filename, err)
		}

		date, err := parseDate(t.field(record, "fecha"))
		if err != nil {
			return nil, t.rowErr("fecha", err)
		}
		quantity, err := strconv.Atoi(t.field(record, "cantidad"))
		if err != nil {
			return nil, t.rowErr("cantidad", err)
		}
		total, err := strconv.ParseFloat(t.field(record, "total"), 64)
		if err != nil {
			return nil, t.rowErr("total", err)
		}

		transactions = append(transactions, models.Transaction{
			TransactionID: t.field(record, "transaccion_id"),
			Date:          date,
			ProductID:     t.field(record, "producto_id"),
			CustomerID:    t.field(record, "cliente_id"),
			Quantity:      quantity,
			Total:         total,
			PaymentMethod: NormalizeLabel(t.field(record, "metodo_pago")),
		})
	}

	if len(transactions) == 0 {
		return nil, fmt.Errorf("%s: no transaction rows", filename)
	}
	return transactions, nil
}

func loadProducts(ctx context.Context, filename string) ([]models.Product, error) {
	t, f, err := openTable(filename, "producto_id", "nombre", "categoria")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var products []models.Product
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filename, err)
		}

		products = append(products, models.Product{
			ProductID: t.field(record, "producto_id"),
			Name:      t.field(record, "nombre"),
			Category:  NormalizeLabel(t.field(record, "categoria")),
		})
	}
	return products, nil
}

func loadCustomers(ctx context.Context, filename string) ([]models.Customer, error) {
	t, f, err := openTable(filename, "cliente_id", "segmento", "latitud", "longitud")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var customers []models.Customer
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filename, err)
		}

		latitude, err := strconv.ParseFloat(t.field(record, "latitud"), 64)
		if err != nil {
			return nil, t.rowErr("latitud", err)
		}
		longitude, err := strconv.ParseFloat(t.field(record, "longitud"), 64)
		if err != nil {
			return nil, t.rowErr("longitud", err)
		}

		customers = append(customers, models.Customer{
			CustomerID: t.field(record, "cliente_id"),
			Segment:    NormalizeLabel(t.field(record, "segmento")),
			City:       t.field(record, "ciudad"),
			Latitude:   latitude,
			Longitude:  longitude,
		})
	}
	return customers, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, value); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// NormalizeLabel collapses the categorical columns into one canonical
// spelling: trimmed, lowercased, then each word capitalized. "PREMIUM " and
// "premium" both become "Premium".
func NormalizeLabel(s string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
