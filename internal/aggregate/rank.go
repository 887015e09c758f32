package aggregate

import (
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"sales-assistant/internal/models"
)

// ErrEmptyGroup is returned by RankExtremes when there is nothing to rank.
var ErrEmptyGroup = errors.New("no groups to rank")

// Fixed breakdown sizes used across replies.
const (
	GeoBreakdownN  = 10
	PlanBreakdownN = 5
)

// Count is one group of a breakdown: the number of priced sales and their
// summed value.
type Count struct {
	Value string          `json:"value"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// Ranked is a group and its summed sales value.
type Ranked struct {
	Value string          `json:"value"`
	Total decimal.Decimal `json:"total"`
}

// PairCount is a breakdown over two columns at once.
type PairCount struct {
	First  string          `json:"first"`
	Second string          `json:"second"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

// group collects rows by column value in first-encountered order. Rows with
// an empty value are skipped.
func group(rows []models.Transaction, c models.Column) []Count {
	index := make(map[string]int)
	var groups []Count
	for _, row := range rows {
		v := row.Field(c)
		if v == "" {
			continue
		}
		i, ok := index[v]
		if !ok {
			i = len(groups)
			index[v] = i
			groups = append(groups, Count{Value: v, Total: decimal.Zero})
		}
		if row.Priced() {
			groups[i].Count++
			groups[i].Total = groups[i].Total.Add(row.Price())
		}
	}
	return groups
}

// TopNByCount returns the n groups of column c with the most priced sales.
// Ties keep first-encountered order. n <= 0 returns every group.
func TopNByCount(rows []models.Transaction, c models.Column, n int) []Count {
	groups := group(rows, c)
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Count > groups[j].Count })
	return head(groups, n)
}

// BottomNByCount is TopNByCount in ascending order.
func BottomNByCount(rows []models.Transaction, c models.Column, n int) []Count {
	groups := group(rows, c)
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Count < groups[j].Count })
	return head(groups, n)
}

// TopNByTotal orders groups by summed sales value, highest first.
func TopNByTotal(rows []models.Transaction, c models.Column, n int) []Count {
	groups := group(rows, c)
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Total.GreaterThan(groups[j].Total) })
	return head(groups, n)
}

// Breakdown is TopNByCount with the size replies use for c: ten for
// geographic columns, five for everything else.
func Breakdown(rows []models.Transaction, c models.Column) []Count {
	return TopNByCount(rows, c, BreakdownSize(c))
}

func BreakdownSize(c models.Column) int {
	switch c {
	case models.ColumnCountry, models.ColumnRegion, models.ColumnCity:
		return GeoBreakdownN
	default:
		return PlanBreakdownN
	}
}

func head(groups []Count, n int) []Count {
	if n > 0 && len(groups) > n {
		groups = groups[:n]
	}
	return groups
}

// RankExtremes returns the groups of column c with the highest and lowest
// summed sales value. Ties resolve to the first group encountered.
func RankExtremes(rows []models.Transaction, c models.Column) (maxGroup, minGroup Ranked, err error) {
	groups := group(rows, c)
	if len(groups) == 0 {
		return Ranked{}, Ranked{}, ErrEmptyGroup
	}
	hi, lo := groups[0], groups[0]
	for _, g := range groups[1:] {
		if g.Total.GreaterThan(hi.Total) {
			hi = g
		}
		if g.Total.LessThan(lo.Total) {
			lo = g
		}
	}
	return Ranked{Value: hi.Value, Total: hi.Total}, Ranked{Value: lo.Value, Total: lo.Total}, nil
}

// Distinct returns the non-empty values of column c, unique ignoring case,
// keeping the casing of the first occurrence.
func Distinct(rows []models.Transaction, c models.Column) []string {
	seen := make(map[string]struct{})
	var values []string
	for _, row := range rows {
		v := strings.TrimSpace(row.Field(c))
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		values = append(values, v)
	}
	return values
}

// GroupPairs breaks rows down by the combination of columns a and b, ordered
// by a then b.
func GroupPairs(rows []models.Transaction, a, b models.Column) []PairCount {
	type key struct{ a, b string }
	index := make(map[key]int)
	var pairs []PairCount
	for _, row := range rows {
		k := key{row.Field(a), row.Field(b)}
		if k.a == "" || k.b == "" {
			continue
		}
		i, ok := index[k]
		if !ok {
			i = len(pairs)
			index[k] = i
			pairs = append(pairs, PairCount{First: k.a, Second: k.b, Total: decimal.Zero})
		}
		if row.Priced() {
			pairs[i].Count++
			pairs[i].Total = pairs[i].Total.Add(row.Price())
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].First != pairs[j].First {
			return pairs[i].First < pairs[j].First
		}
		return pairs[i].Second < pairs[j].Second
	})
	return pairs
}
