package aggregate

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"sales-assistant/internal/models"
)

type GrowthPeriod int

const (
	GrowthMonth GrowthPeriod = iota
	GrowthYear
)

// GrowthPoint is the change in sales count against the previous period.
// Available is false when the previous period had no sales.
type GrowthPoint struct {
	Label     string          `json:"label"`
	Percent   decimal.Decimal `json:"percent"`
	Available bool            `json:"available"`
}

var hundred = decimal.NewFromInt(100)

// Growth returns the period-over-period percentage change in the number of
// sales with a positive price. Periods are those present in the data, in
// chronological order; the first has nothing to compare against and is not
// reported.
func Growth(rows []models.Transaction, by GrowthPeriod) []GrowthPoint {
	counts := make(map[int]int64)
	for _, row := range rows {
		if !row.HasDate() {
			continue
		}
		k := row.PurchaseDate.Year()
		if by == GrowthMonth {
			k = k*100 + int(row.PurchaseDate.Month())
		}
		if _, ok := counts[k]; !ok {
			counts[k] = 0
		}
		if row.Priced() && row.Price().IsPositive() {
			counts[k]++
		}
	}

	keys := make([]int, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	var points []GrowthPoint
	for i := 1; i < len(keys); i++ {
		prev, cur := counts[keys[i-1]], counts[keys[i]]
		p := GrowthPoint{Label: growthLabel(keys[i], by)}
		if prev != 0 {
			p.Available = true
			p.Percent = decimal.NewFromInt(cur - prev).Div(decimal.NewFromInt(prev)).Mul(hundred)
		}
		points = append(points, p)
	}
	return points
}

func growthLabel(k int, by GrowthPeriod) string {
	if by == GrowthYear {
		return strconv.Itoa(k)
	}
	month := k % 100
	label := strconv.Itoa(k/100) + "-"
	if month < 10 {
		label += "0"
	}
	return label + strconv.Itoa(month)
}
