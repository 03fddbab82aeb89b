package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"storefront/internal/domain"
)

// ProductWriter receives imported products.
type ProductWriter interface {
	Put(product domain.Product)
}

// CSVImporter reads a product CSV into a catalog.
//
// Recognized columns: id, slug, name, price, currency, stock, image. Rows without an id
// continue the previous product and may only carry an image; the first image wins.
type CSVImporter struct {
	reader  *csv.Reader
	catalog ProductWriter
}

func NewCSVImporter(r io.Reader, catalog ProductWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:  csvr,
		catalog: catalog,
	}
}

type csvRow struct {
	line     int
	ID       string
	Slug     string
	Name     string
	Price    string
	Currency string
	Stock    string
	Image    string
}

// Run parses CSV rows and writes one product per id row.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["id"]; !ok {
		return 0, errors.New("missing id column")
	}

	var (
		current  *csvRow
		imported int
		line     = 1
	)

	for {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line++

		row := parseRow(record, index)
		if row == nil {
			continue
		}
		row.line = line

		if row.ID != "" {
			if current != nil {
				if err := i.save(current); err != nil {
					return imported, err
				}
				imported++
			}
			current = row
			continue
		}

		// Continuation rows (images) belong to the current product.
		if current != nil && current.Image == "" {
			current.Image = row.Image
		}
	}

	if current != nil {
		if err := i.save(current); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) save(row *csvRow) error {
	if row.Name == "" || row.Price == "" || row.Currency == "" {
		return fmt.Errorf("line %d: invalid product row (missing required fields) for id %q", row.line, row.ID)
	}
	id, err := strconv.ParseInt(row.ID, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("line %d: invalid id %q", row.line, row.ID)
	}
	price, err := decimal.NewFromString(row.Price)
	if err != nil || price.IsNegative() {
		return fmt.Errorf("line %d: invalid price %q", row.line, row.Price)
	}
	stock := -1
	if row.Stock != "" {
		stock, err = strconv.Atoi(row.Stock)
		if err != nil {
			return fmt.Errorf("line %d: invalid stock %q", row.line, row.Stock)
		}
	}

	i.catalog.Put(domain.Product{
		ID:       domain.ProductID(id),
		Name:     row.Name,
		Slug:     row.Slug,
		Image:    row.Image,
		Price:    price,
		Currency: strings.ToUpper(row.Currency),
		Stock:    stock,
	})
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) *csvRow {
	row := &csvRow{
		ID:       pick(record, index, "id"),
		Slug:     pick(record, index, "slug"),
		Name:     pick(record, index, "name"),
		Price:    pick(record, index, "price"),
		Currency: pick(record, index, "currency"),
		Stock:    pick(record, index, "stock"),
		Image:    pick(record, index, "image"),
	}
	if row.ID == "" && row.Image == "" {
		return nil
	}
	return row
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
