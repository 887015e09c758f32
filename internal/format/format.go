// Package format renders aggregate results as the fixed sentences returned to
// the user.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"sales-assistant/internal/aggregate"
	"sales-assistant/internal/models"
)

const NotAvailable = "not available"

var titleCaser = cases.Title(language.English)

// Money renders a currency amount with two decimals.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Percent renders a ratio already scaled to 100, or NotAvailable when it is
// undefined.
func Percent(d decimal.Decimal, ok bool) string {
	if !ok {
		return NotAvailable
	}
	return d.StringFixed(2) + "%"
}

// Label keeps the dataset's casing but title-cases values typed entirely in
// lower case, as slot values usually are.
func Label(s string) string {
	s = strings.TrimSpace(s)
	if s != strings.ToLower(s) {
		return s
	}
	return titleCaser.String(s)
}

// Results renders one sentence per result line.
func Results(results []aggregate.Result, entity *models.Entity) []string {
	where := ""
	if entity != nil {
		where = " in " + Label(entity.Value)
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("The total sales for %s%s is %s, with an average of %s.",
			r.Label, where, Money(r.Total), Money(r.Average)))
	}
	return lines
}

// Counts renders a titled breakdown, one group per line.
func Counts(title string, counts []aggregate.Count) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString(":")
	for _, c := range counts {
		fmt.Fprintf(&b, "\n%s: %d sales, $%s", c.Value, c.Count, Money(c.Total))
	}
	return b.String()
}

// Totals renders a breakdown led by the summed value.
func Totals(title string, counts []aggregate.Count) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString(":")
	for _, c := range counts {
		fmt.Fprintf(&b, "\n%s: Total Sales = $%s, Sales Count = %d", c.Value, Money(c.Total), c.Count)
	}
	return b.String()
}

func Pairs(title string, pairs []aggregate.PairCount) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString(":")
	for _, p := range pairs {
		fmt.Fprintf(&b, "\n%s - %s: Count = %d, Total Sales = $%s", p.First, p.Second, p.Count, Money(p.Total))
	}
	return b.String()
}

func Growth(title string, points []aggregate.GrowthPoint) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString(":")
	for _, p := range points {
		fmt.Fprintf(&b, "\n%s: %s", p.Label, Percent(p.Percent, p.Available))
	}
	return b.String()
}

// List renders "There are a total of 3 countries: A, B, C."
func List(noun string, values []string) string {
	return fmt.Sprintf("There are a total of %d %s: %s.", len(values), noun, strings.Join(values, ", "))
}

func Extremes(c models.Column, hi, lo aggregate.Ranked) []string {
	return []string{
		fmt.Sprintf("The %s with the highest sales is %s with %s.", c.Label(), hi.Value, Money(hi.Total)),
		fmt.Sprintf("The %s with the lowest sales is %s with %s.", c.Label(), lo.Value, Money(lo.Total)),
	}
}

// Comparison renders one paragraph per block.
func Comparison(blocks []aggregate.Block) []string {
	out := make([]string, 0, len(blocks))
	for _, blk := range blocks {
		name := Label(blk.Entity.Value)

		var b strings.Builder
		fmt.Fprintf(&b, "%s: total sales %s from %d sales, an average of %s per sale.",
			name, Money(blk.Total), blk.Count, Money(blk.Average))
		if len(blk.Geo) > 0 {
			b.WriteString("\n")
			b.WriteString(Counts(fmt.Sprintf("Top %d %s in %s by sales count", aggregate.GeoBreakdownN, Plural(blk.GeoColumn), name), blk.Geo))
		}
		if len(blk.Plans) > 0 {
			b.WriteString("\n")
			b.WriteString(Counts(fmt.Sprintf("Top %d plans in %s by sales count", aggregate.PlanBreakdownN, name), blk.Plans))
		}
		out = append(out, b.String())
	}
	return out
}

// Maximum renders the largest single sale for a location.
func Maximum(where string, d decimal.Decimal, ok bool) string {
	if !ok {
		return fmt.Sprintf("There are no priced sales in %s.", Label(where))
	}
	return fmt.Sprintf("The maximum sale in %s is %s.", Label(where), Money(d))
}

// PlansIn lists the plans sold in one location.
func PlansIn(where string, plans []string) string {
	if len(plans) == 0 {
		return fmt.Sprintf("No plans found for %s.", Label(where))
	}
	return fmt.Sprintf("The available plans in %s are: %s.", Label(where), strings.Join(plans, ", "))
}

// Missing is the reply for a list with nothing in it.
func Missing(c models.Column) string {
	return fmt.Sprintf("No %s found in the sales data.", Plural(c))
}

// Plural is the plural noun for a column, as used in list replies.
func Plural(c models.Column) string {
	switch c {
	case models.ColumnCountry:
		return "countries"
	case models.ColumnCity:
		return "cities"
	default:
		return c.Label() + "s"
	}
}

// Clock renders "Today is 16th October 2024, time is 14:30."
func Clock(t time.Time) string {
	return fmt.Sprintf("Today is %s %s %d, time is %s.", ordinal(t.Day()), t.Month(), t.Year(), t.Format("15:04"))
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
