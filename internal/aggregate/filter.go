// Package aggregate computes sums, averages, rankings and comparisons over a
// slice of transactions. Every function treats its input as read only and
// returns freshly allocated results.
package aggregate

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sales-assistant/internal/models"
)

// Predicate reports whether a transaction is kept by Filter.
type Predicate func(models.Transaction) bool

// Filter returns the rows matching every predicate, in their original order.
func Filter(rows []models.Transaction, preds ...Predicate) []models.Transaction {
	out := make([]models.Transaction, 0, len(rows))
next:
	for _, row := range rows {
		for _, p := range preds {
			if !p(row) {
				continue next
			}
		}
		out = append(out, row)
	}
	return out
}

// OnDate keeps rows purchased on the calendar day of d.
func OnDate(d time.Time) Predicate {
	key := dayKey(d)
	return func(t models.Transaction) bool {
		return t.HasDate() && dayKey(t.PurchaseDate) == key
	}
}

// InRange keeps rows purchased between start and end, both days inclusive.
func InRange(start, end time.Time) Predicate {
	lo, hi := dayKey(start), dayKey(end)
	return func(t models.Transaction) bool {
		if !t.HasDate() {
			return false
		}
		k := dayKey(t.PurchaseDate)
		return k >= lo && k <= hi
	}
}

func InMonth(month, year int) Predicate {
	return func(t models.Transaction) bool {
		return t.HasDate() && int(t.PurchaseDate.Month()) == month && t.PurchaseDate.Year() == year
	}
}

func InYear(year int) Predicate {
	return func(t models.Transaction) bool {
		return t.HasDate() && t.PurchaseDate.Year() == year
	}
}

// Equals keeps rows whose column c equals value, ignoring case.
func Equals(c models.Column, value string) Predicate {
	return func(t models.Transaction) bool {
		return strings.EqualFold(t.Field(c), value)
	}
}

// Sum adds up the prices of priced rows.
func Sum(rows []models.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		if row.Priced() {
			total = total.Add(row.Price())
		}
	}
	return total
}

// PricedCount counts rows that carry a price.
func PricedCount(rows []models.Transaction) int {
	n := 0
	for _, row := range rows {
		if row.Priced() {
			n++
		}
	}
	return n
}

// Max returns the largest single price. ok is false when no row is priced.
func Max(rows []models.Transaction) (maxPrice decimal.Decimal, ok bool) {
	for _, row := range rows {
		if !row.Priced() {
			continue
		}
		if price := row.Price(); !ok || price.GreaterThan(maxPrice) {
			maxPrice, ok = price, true
		}
	}
	return maxPrice, ok
}

// Usable reports whether rows can answer any query: at least one row and at
// least one price.
func Usable(rows []models.Transaction) bool {
	for _, row := range rows {
		if row.Priced() {
			return true
		}
	}
	return false
}

// dayKey compares calendar days independent of time zone and clock time.
func dayKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// safeDiv returns zero when the divisor is zero.
func safeDiv(n decimal.Decimal, d int64) decimal.Decimal {
	if d == 0 {
		return decimal.Zero
	}
	return n.Div(decimal.NewFromInt(d))
}
