// Package resolve turns the output of the temporal recognizers into the
// single period a query is answered for.
package resolve

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sales-assistant/internal/extract"
	"sales-assistant/internal/lexicon"
)

// ErrMalformedSlot is returned when a pre-filled month or year slot does not
// parse or falls outside its allowed range.
var ErrMalformedSlot = errors.New("malformed slot value")

const (
	MinYear = 1900
	MaxYear = 2099
)

type Kind int

const (
	KindAllTime Kind = iota
	KindDates
	KindRange
	KindMonthYears
	KindMonths
	KindYears
)

func (k Kind) String() string {
	switch k {
	case KindDates:
		return "dates"
	case KindRange:
		return "range"
	case KindMonthYears:
		return "month_years"
	case KindMonths:
		return "months"
	case KindYears:
		return "years"
	default:
		return "all_time"
	}
}

// Period is exactly one temporal filter. Only the fields belonging to Kind
// are set. Bare months are stored as MonthYears already pinned to the
// current year.
type Period struct {
	Kind       Kind
	Dates      []time.Time
	Start      time.Time
	End        time.Time
	Months     int
	Average    AverageBase
	MonthYears []extract.MonthYear
	Years      []int
}

// Clock supplies "today".
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in Location, or in local time when
// Location is nil.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// Anchor selects how the start of a "last N months" range is computed.
type Anchor string

const (
	// AnchorCalendar starts on the first day of the month N months back.
	AnchorCalendar Anchor = "calendar"
	// AnchorFlat30 starts 30*N days before today.
	AnchorFlat30 Anchor = "flat30"
)

// AverageBase selects the denominator of a "last N months" average.
type AverageBase string

const (
	AverageMonths AverageBase = "months"
	AverageCount  AverageBase = "count"
)

type Policy struct {
	Anchor  Anchor
	Average AverageBase
}

func DefaultPolicy() Policy {
	return Policy{Anchor: AnchorCalendar, Average: AverageMonths}
}

// ParsePolicy validates the configured anchor and average names. Empty
// values take the defaults.
func ParsePolicy(anchor, average string) (Policy, error) {
	p := DefaultPolicy()
	switch Anchor(strings.ToLower(anchor)) {
	case "":
	case AnchorCalendar:
		p.Anchor = AnchorCalendar
	case AnchorFlat30:
		p.Anchor = AnchorFlat30
	default:
		return p, fmt.Errorf("unknown last-N-months anchor %q", anchor)
	}
	switch AverageBase(strings.ToLower(average)) {
	case "":
	case AverageMonths:
		p.Average = AverageMonths
	case AverageCount:
		p.Average = AverageCount
	default:
		return p, fmt.Errorf("unknown last-N-months average %q", average)
	}
	return p, nil
}

type Resolver struct {
	Clock  Clock
	Policy Policy
}

func New(clock Clock, policy Policy) *Resolver {
	if clock == nil {
		clock = SystemClock{}
	}
	if policy.Average == "" {
		policy.Average = AverageMonths
	}
	return &Resolver{Clock: clock, Policy: policy}
}

// Resolve applies the recognizers in precedence order and returns the first
// form that matched: explicit dates, last N months, month-year pairs, bare
// months, bare years, then all time.
func (r *Resolver) Resolve(text string) Period {
	if dates := explicitDates(text); len(dates) > 0 {
		return Period{Kind: KindDates, Dates: dates}
	}

	now := r.Clock.Now()
	if n, ok := extract.LastNMonths(text); ok {
		return r.lastMonths(n, now)
	}
	if pairs := extract.MonthYearPairs(text); len(pairs) > 0 {
		return Period{Kind: KindMonthYears, MonthYears: pairs}
	}
	if months := extract.BareMonths(text); len(months) > 0 {
		return currentYearMonths(months, now.Year())
	}
	if years := extract.BareYears(text); len(years) > 0 {
		return Period{Kind: KindYears, Years: years}
	}
	return Period{Kind: KindAllTime}
}

// ResolveSlots builds a period from slots a dialogue layer already filled.
// Both empty means all time.
func (r *Resolver) ResolveSlots(month, year string) (Period, error) {
	month, year = strings.TrimSpace(month), strings.TrimSpace(year)

	var m, y int
	if month != "" {
		n, ok := parseMonth(month)
		if !ok {
			return Period{}, fmt.Errorf("%w: month %q", ErrMalformedSlot, month)
		}
		m = n
	}
	if year != "" {
		n, err := strconv.Atoi(year)
		if err != nil || n < MinYear || n > MaxYear {
			return Period{}, fmt.Errorf("%w: year %q", ErrMalformedSlot, year)
		}
		y = n
	}

	switch {
	case m != 0 && y != 0:
		return Period{Kind: KindMonthYears, MonthYears: []extract.MonthYear{{Month: m, Year: y}}}, nil
	case m != 0:
		return currentYearMonths([]int{m}, r.Clock.Now().Year()), nil
	case y != 0:
		return Period{Kind: KindYears, Years: []int{y}}, nil
	default:
		return Period{Kind: KindAllTime}, nil
	}
}

func (r *Resolver) lastMonths(n int, now time.Time) Period {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var start time.Time
	switch r.Policy.Anchor {
	case AnchorFlat30:
		start = today.AddDate(0, 0, -30*n)
	default:
		start = time.Date(today.Year(), today.Month()-time.Month(n), 1, 0, 0, 0, 0, today.Location())
	}
	return Period{Kind: KindRange, Start: start, End: today, Months: n, Average: r.Policy.Average}
}

func currentYearMonths(months []int, year int) Period {
	pairs := make([]extract.MonthYear, 0, len(months))
	for _, m := range months {
		pairs = append(pairs, extract.MonthYear{Month: m, Year: year})
	}
	return Period{Kind: KindMonths, MonthYears: pairs}
}

func explicitDates(text string) []time.Time {
	raw := extract.ExplicitDates(text)
	dates := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		d, err := extract.ParseDate(s)
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

// parseMonth accepts a month number or a month name.
func parseMonth(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 1 && n <= 12
	}
	return lexicon.MonthNumber(s)
}
