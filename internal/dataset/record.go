package dataset

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sales-assistant/internal/models"
)

// ErrMissingColumn is returned when a source lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07",
	"02/01/2006",
	"2006/01/02",
}

// Placeholders some exports write instead of leaving a cell empty.
var nullTokens = map[string]struct{}{
	`\n`: {}, "null": {}, "undefined": {}, "nan": {}, "none": {}, "nat": {},
}

type field int

const (
	fieldDate field = iota
	fieldPrice
	fieldCountry
	fieldCity
	fieldRegion
	fieldPlan
	fieldSource
	fieldGateway
	fieldCount
)

var headerFields = map[string]field{
	"purchasedate":   fieldDate,
	"date":           fieldDate,
	"sellingprice":   fieldPrice,
	"price":          fieldPrice,
	"countryname":    fieldCountry,
	"country":        fieldCountry,
	"city":           fieldCity,
	"cityname":       fieldCity,
	"regionname":     fieldRegion,
	"region":         fieldRegion,
	"planname":       fieldPlan,
	"plan":           fieldPlan,
	"source":         fieldSource,
	"paymentgateway": fieldGateway,
	"gateway":        fieldGateway,
}

// rawRow is one record as text, before cleaning.
type rawRow [fieldCount]string

// columnMap holds the record index of every field, or -1.
type columnMap [fieldCount]int

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.NewReplacer("_", "", " ", "", "-", "").Replace(h)
}

func mapHeader(header []string) (columnMap, error) {
	var m columnMap
	for i := range m {
		m[i] = -1
	}
	for i, h := range header {
		if f, ok := headerFields[normalizeHeader(h)]; ok && m[f] < 0 {
			m[f] = i
		}
	}
	if m[fieldDate] < 0 {
		return m, fmt.Errorf("%w: purchase_date", ErrMissingColumn)
	}
	if m[fieldPrice] < 0 {
		return m, fmt.Errorf("%w: selling_price", ErrMissingColumn)
	}
	return m, nil
}

func (m columnMap) row(record []string) rawRow {
	var r rawRow
	for f, i := range m {
		if i >= 0 && i < len(record) {
			r[f] = record[i]
		}
	}
	return r
}

type dateParser func(string) (time.Time, bool)

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	if _, ok := nullTokens[strings.ToLower(s)]; ok {
		return ""
	}
	return s
}

// transaction cleans a raw row. Missing or unparseable dates become the zero
// time and missing prices become null; a price that is present but not a
// non-negative number drops the row.
func (r rawRow) transaction(parse dateParser) (models.Transaction, bool) {
	tx := models.Transaction{
		Country:        clean(r[fieldCountry]),
		City:           clean(r[fieldCity]),
		Region:         clean(r[fieldRegion]),
		Plan:           clean(r[fieldPlan]),
		Source:         clean(r[fieldSource]),
		PaymentGateway: clean(r[fieldGateway]),
	}

	if s := clean(r[fieldDate]); s != "" {
		if d, ok := parse(s); ok {
			tx.PurchaseDate = d
		}
	}

	if s := clean(r[fieldPrice]); s != "" {
		price, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
		if err != nil || price.IsNegative() {
			return models.Transaction{}, false
		}
		tx.SellingPrice = decimal.NewNullDecimal(price)
	}
	return tx, true
}

func rowKey(tx models.Transaction) string {
	price := "null"
	if tx.Priced() {
		price = tx.SellingPrice.Decimal.String()
	}
	return strings.Join([]string{
		tx.PurchaseDate.Format(time.RFC3339Nano), price,
		tx.Country, tx.City, tx.Region, tx.Plan, tx.Source, tx.PaymentGateway,
	}, "\x1f")
}

// dedupe drops exact duplicate rows, keeping the first.
func dedupe(rows []models.Transaction) []models.Transaction {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0:0]
	for _, tx := range rows {
		k := rowKey(tx)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, tx)
	}
	return out
}
