// Package catalog owns the process-lifetime product table: CSV loading,
// id normalization, and the mutable stock ledger. A Catalog is constructed
// once by the batch driver and passed by shared reference into the graph,
// replacing the teacher's module-level memoized table
// (internal/application/executor's global registries) with an explicit
// value, per the "Global mutable catalog" design note.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hermesflow/hermes/internal/domain"
	hermeserrors "github.com/hermesflow/hermes/internal/domain/errors"
)

// wantedHeader is the exact, case-exact CSV header required by the catalog
// schema (spec §6).
var wantedHeader = []string{"product_id", "name", "category", "description", "stock", "price", "season", "type"}

// Catalog is the in-memory, read-only-after-load product table, keyed by
// normalized product id. Stock is the single mutable field, owned by
// Ledger.
type Catalog struct {
	products map[string]domain.Product
	order    []string // insertion order, for deterministic iteration
	Ledger   *StockLedger
}

// LoadCSV loads a Catalog from a CSV source matching the catalog schema.
// source is either a filesystem path or "SHEET_ID#SHEET_NAME"; only the
// file-path form is implemented here; the spreadsheet form is the
// responsibility of an external collaborator (spec §1/§6) and is rejected
// with a CatalogLoadError describing that it must be resolved to a local
// CSV before reaching the catalog loader.
func LoadCSV(source string) (*Catalog, error) {
	if strings.Contains(source, "#") && !fileExists(source) {
		return nil, hermeserrors.NewCatalogLoadError(source,
			"spreadsheet sources must be materialized to a local CSV by the I/O adapter before catalog load", nil)
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, hermeserrors.NewCatalogLoadError(source, "failed to open catalog source", err)
	}
	defer f.Close()

	return loadCSVReader(source, f)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func loadCSVReader(source string, r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, hermeserrors.NewCatalogLoadError(source, "failed to read CSV header", err)
	}
	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[h] = i
	}
	for _, want := range wantedHeader {
		if _, ok := colIdx[want]; !ok {
			return nil, hermeserrors.NewCatalogLoadError(source,
				fmt.Sprintf("missing required column %q", want), nil)
		}
	}

	cat := &Catalog{
		products: make(map[string]domain.Product),
		Ledger:   NewStockLedger(),
	}

	line := 1
	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, hermeserrors.NewCatalogLoadError(source, fmt.Sprintf("CSV parse error at line %d", line), err)
		}

		p, err := rowToProduct(record, colIdx)
		if err != nil {
			return nil, hermeserrors.NewCatalogLoadError(source, fmt.Sprintf("invalid row at line %d: %v", line, err), err)
		}

		key := NormalizeID(p.ProductID)
		cat.products[key] = p
		cat.order = append(cat.order, key)
		cat.Ledger.set(key, p.Stock)
	}

	return cat, nil
}

func rowToProduct(record []string, colIdx map[string]int) (domain.Product, error) {
	get := func(col string) string {
		idx, ok := colIdx[col]
		if !ok || idx >= len(record) {
			return ""
		}
		return record[idx]
	}

	productID := strings.TrimSpace(get("product_id"))
	if productID == "" {
		return domain.Product{}, fmt.Errorf("product_id must not be empty")
	}

	stock, err := strconv.Atoi(strings.TrimSpace(get("stock")))
	if err != nil {
		return domain.Product{}, fmt.Errorf("invalid stock: %w", err)
	}
	if stock < 0 {
		return domain.Product{}, fmt.Errorf("stock must be >= 0, got %d", stock)
	}

	price, err := decimal.NewFromString(strings.TrimSpace(get("price")))
	if err != nil {
		return domain.Product{}, fmt.Errorf("invalid price: %w", err)
	}
	if price.IsNegative() {
		return domain.Product{}, fmt.Errorf("price must be >= 0, got %s", price)
	}

	return domain.Product{
		ProductID:   productID,
		Name:        get("name"),
		Description: get("description"),
		Category:    domain.NormalizeCategory(get("category")),
		ProductType: get("type"),
		Stock:       stock,
		Seasons:     parseSeasons(get("season")),
		Price:       price,
	}, nil
}

func parseSeasons(raw string) map[domain.Season]struct{} {
	out := make(map[domain.Season]struct{})
	for _, part := range strings.Split(raw, ",") {
		s := strings.TrimSpace(part)
		if s == "" {
			continue
		}
		out[domain.Season(s)] = struct{}{}
	}
	return out
}

// bracketRE strips bracket characters ([, ], (, )) from a mention id before
// normalization.
var bracketRE = regexp.MustCompile(`[\[\]()]`)

// ProductIDPattern is the regex a classifier-extracted product id token
// must match, after whitespace/bracket stripping, to be taken at full
// confidence (spec §4.5).
var ProductIDPattern = regexp.MustCompile(`^[A-Z]{3}[0-9]{4}$`)

// NormalizeID strips whitespace and bracket characters and upper-cases a
// mention or catalog product id. NormalizeID is idempotent:
// NormalizeID(NormalizeID(x)) == NormalizeID(x).
func NormalizeID(raw string) string {
	s := bracketRE.ReplaceAllString(raw, "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\t", "")
	s = strings.ReplaceAll(s, "\n", "")
	return strings.ToUpper(strings.TrimSpace(s))
}

// Get returns the product registered under the normalized id, if any.
func (c *Catalog) Get(id string) (domain.Product, bool) {
	p, ok := c.products[NormalizeID(id)]
	if !ok {
		return domain.Product{}, false
	}
	p.Stock = c.Ledger.Get(NormalizeID(id))
	return p, true
}

// All returns every catalog product in load order, with current stock.
func (c *Catalog) All() []domain.Product {
	out := make([]domain.Product, 0, len(c.order))
	for _, id := range c.order {
		p := c.products[id]
		p.Stock = c.Ledger.Get(id)
		out = append(out, p)
	}
	return out
}

// Len returns the number of distinct products in the catalog.
func (c *Catalog) Len() int { return len(c.products) }
