package aggregate

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"sales-assistant/internal/extract"
	"sales-assistant/internal/lexicon"
	"sales-assistant/internal/models"
	"sales-assistant/internal/resolve"
)

// Result is one labelled line of a period answer.
type Result struct {
	Label   string          `json:"label"`
	Total   decimal.Decimal `json:"total"`
	Average decimal.Decimal `json:"average"`
}

// SumAndAverage totals rows over the resolved period. When entity is non-nil
// only rows matching it are considered. The average denominator depends on
// the period kind: the running count of dates for explicit dates, N (or the
// matching row count) for a last N months range, the days in the month for
// month periods, 12 for years, and none for all time (average 0).
func SumAndAverage(rows []models.Transaction, p resolve.Period, entity *models.Entity) []Result {
	if entity != nil {
		rows = Filter(rows, Equals(entity.Column, entity.Value))
	}

	switch p.Kind {
	case resolve.KindDates:
		results := make([]Result, 0, len(p.Dates))
		running := decimal.Zero
		for i, d := range p.Dates {
			running = running.Add(Sum(Filter(rows, OnDate(d))))
			results = append(results, Result{
				Label:   d.Format(extract.DateLayout),
				Total:   running,
				Average: safeDiv(running, int64(i+1)),
			})
		}
		return results

	case resolve.KindRange:
		matched := Filter(rows, InRange(p.Start, p.End))
		total := Sum(matched)
		denom := int64(p.Months)
		if p.Average == resolve.AverageCount {
			denom = int64(PricedCount(matched))
		}
		return []Result{{
			Label:   fmt.Sprintf("the last %d months", p.Months),
			Total:   total,
			Average: safeDiv(total, denom),
		}}

	case resolve.KindMonthYears, resolve.KindMonths:
		results := make([]Result, 0, len(p.MonthYears))
		for _, my := range p.MonthYears {
			total := Sum(Filter(rows, InMonth(my.Month, my.Year)))
			results = append(results, Result{
				Label:   fmt.Sprintf("%s %d", lexicon.MonthName(my.Month), my.Year),
				Total:   total,
				Average: safeDiv(total, int64(lexicon.DaysIn(my.Month, my.Year))),
			})
		}
		return results

	case resolve.KindYears:
		results := make([]Result, 0, len(p.Years))
		for _, y := range p.Years {
			total := Sum(Filter(rows, InYear(y)))
			results = append(results, Result{
				Label:   strconv.Itoa(y),
				Total:   total,
				Average: safeDiv(total, 12),
			})
		}
		return results

	default:
		return []Result{{Label: "all time", Total: Sum(rows), Average: decimal.Zero}}
	}
}
