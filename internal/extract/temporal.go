// Package extract recognises calendar periods and geographic names in free
// text. Every recognizer is independent, case-insensitive and reports absence
// with an empty result rather than an error.
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"sales-assistant/internal/lexicon"
)

// DateLayout is the canonical form ExplicitDates normalises to.
const DateLayout = "02/01/2006"

var (
	dayFirstDate  = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4})\b`)
	yearFirstDate = regexp.MustCompile(`\b(\d{4})[/-](\d{1,2})[/-](\d{1,2})\b`)
	ordinalDate   = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)\s+(?:of\s+)?(` + lexicon.MonthPattern + `)\s*,?\s*(\d{4})\b`)

	lastMonths = regexp.MustCompile(`(?i)\blast\s+(\d+|` + lexicon.NumberWordPattern + `)\s+months?\b`)
	monthYear  = regexp.MustCompile(`(?i)\b(` + lexicon.MonthPattern + `)\s*(?:of\s*)?(\d{4})\b`)
	bareYear   = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	bareMonth  = regexp.MustCompile(`(?i)\b(` + lexicon.MonthPattern + `)\b`)
)

// MonthYear is a month of a specific year.
type MonthYear struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

func (m MonthYear) String() string {
	return fmt.Sprintf("%s %d", lexicon.MonthName(m.Month), m.Year)
}

type dateMatch struct {
	start, end int
	date       time.Time
}

// ExplicitDates returns every valid calendar date written in the text as
// dd/mm/yyyy, dd-mm-yyyy, yyyy/mm/dd, yyyy-mm-dd or "12th June 2023", in order
// of appearance and normalised to dd/mm/yyyy. Date-like substrings that are
// not real dates are skipped.
func ExplicitDates(text string) []string {
	var found []dateMatch

	for _, m := range dayFirstDate.FindAllStringSubmatchIndex(text, -1) {
		d, mo, y := atoi(text[m[2]:m[3]]), atoi(text[m[4]:m[5]]), atoi(text[m[6]:m[7]])
		if t, ok := calendarDate(y, mo, d); ok {
			found = append(found, dateMatch{start: m[0], end: m[1], date: t})
		}
	}
	for _, m := range yearFirstDate.FindAllStringSubmatchIndex(text, -1) {
		y, mo, d := atoi(text[m[2]:m[3]]), atoi(text[m[4]:m[5]]), atoi(text[m[6]:m[7]])
		if t, ok := calendarDate(y, mo, d); ok {
			found = append(found, dateMatch{start: m[0], end: m[1], date: t})
		}
	}
	for _, m := range ordinalDate.FindAllStringSubmatchIndex(text, -1) {
		mo, _ := lexicon.MonthNumber(text[m[4]:m[5]])
		d, y := atoi(text[m[2]:m[3]]), atoi(text[m[6]:m[7]])
		if t, ok := calendarDate(y, mo, d); ok {
			found = append(found, dateMatch{start: m[0], end: m[1], date: t})
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].start < found[j].start })

	dates := make([]string, 0, len(found))
	lastEnd := -1
	for _, f := range found {
		if f.start < lastEnd {
			continue
		}
		lastEnd = f.end
		dates = append(dates, f.date.Format(DateLayout))
	}
	return dates
}

// ParseDate parses a date produced by ExplicitDates.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// LastNMonths reports N for phrases like "last 6 months" or "last three month".
func LastNMonths(text string) (int, bool) {
	m := lastMonths.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	word := strings.ToLower(m[1])
	if n, ok := lexicon.WordToNumber(word); ok {
		return n, true
	}
	n, err := strconv.Atoi(word)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// MonthYearPairs returns every "<month> [of] <yyyy>" reference in order,
// duplicates included.
func MonthYearPairs(text string) []MonthYear {
	var pairs []MonthYear
	for _, m := range monthYear.FindAllStringSubmatch(text, -1) {
		month, ok := lexicon.MonthNumber(m[1])
		if !ok {
			continue
		}
		pairs = append(pairs, MonthYear{Month: month, Year: atoi(m[2])})
	}
	return pairs
}

// BareYears returns every four digit year between 1900 and 2099.
func BareYears(text string) []int {
	var years []int
	for _, m := range bareYear.FindAllString(text, -1) {
		years = append(years, atoi(m))
	}
	return years
}

// BareMonths returns month numbers named without a year. Months that belong
// to a month-year pair are not reported.
func BareMonths(text string) []int {
	consumed := monthYear.FindAllStringIndex(text, -1)

	var result []int
	for _, m := range bareMonth.FindAllStringSubmatchIndex(text, -1) {
		if within(m[0], consumed) {
			continue
		}
		if month, ok := lexicon.MonthNumber(text[m[2]:m[3]]); ok {
			result = append(result, month)
		}
	}
	return result
}

func within(pos int, spans [][]int) bool {
	for _, s := range spans {
		if pos >= s[0] && pos < s[1] {
			return true
		}
	}
	return false
}

func calendarDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// atoi is only called on regexp digit groups.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
