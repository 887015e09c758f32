package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplicitDates(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"day first slash", "sales on 12/06/2023 please", []string{"12/06/2023"}},
		{"day first dash", "what about 1-2-2024?", []string{"01/02/2024"}},
		{"year first dash", "numbers for 2023-06-15", []string{"15/06/2023"}},
		{"year first slash", "2023/6/5 totals", []string{"05/06/2023"}},
		{"ordinal", "sales on the 3rd of March 2023", []string{"03/03/2023"}},
		{"ordinal abbreviated", "21st jun, 2022", []string{"21/06/2022"}},
		{"several in order", "2023-01-02 and 05/01/2023", []string{"02/01/2023", "05/01/2023"}},
		{"invalid day dropped", "31/02/2023 then 28/02/2023", []string{"28/02/2023"}},
		{"invalid month dropped", "13/13/2023", []string{}},
		{"no dates", "total sales for March 2023", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExplicitDates(tt.text))
		})
	}
}

func TestExplicitDatesIdempotent(t *testing.T) {
	inputs := []string{"12/06/2023", "1-2-2024", "2023-06-15", "on 7th July 2021 only"}
	for _, in := range inputs {
		first := ExplicitDates(in)
		require.Len(t, first, 1, in)
		again := ExplicitDates(first[0])
		assert.Equal(t, first, again, in)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("15/06/2023")
	require.NoError(t, err)
	assert.Equal(t, 2023, d.Year())
	assert.Equal(t, 6, int(d.Month()))
	assert.Equal(t, 15, d.Day())
}

func TestLastNMonths(t *testing.T) {
	tests := []struct {
		text string
		want int
		ok   bool
	}{
		{"last 6 months sales in France", 6, true},
		{"Last three months", 3, true},
		{"sales for the last 1 month", 1, true},
		{"LAST TWELVE MONTHS", 12, true},
		{"last 0 months", 0, false},
		{"last month", 0, false},
		{"last year", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			n, ok := LastNMonths(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestMonthYearPairs(t *testing.T) {
	tests := []struct {
		text string
		want []MonthYear
	}{
		{"total sales for March 2023", []MonthYear{{3, 2023}}},
		{"MAR 2023", []MonthYear{{3, 2023}}},
		{"sales in june of 2022", []MonthYear{{6, 2022}}},
		{"Sept 2021 and sep 2021", []MonthYear{{9, 2021}, {9, 2021}}},
		{"jan 2023, feb 2023 and December of 2022", []MonthYear{{1, 2023}, {2, 2023}, {12, 2022}}},
		{"sales in 2023", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, MonthYearPairs(tt.text))
		})
	}
}

func TestMonthYearPairsEveryMonthSpelling(t *testing.T) {
	spellings := map[string]int{
		"January": 1, "Jan": 1, "February": 2, "Feb": 2, "March": 3, "Mar": 3,
		"April": 4, "Apr": 4, "May": 5, "June": 6, "Jun": 6, "July": 7, "Jul": 7,
		"August": 8, "Aug": 8, "September": 9, "Sep": 9, "October": 10, "Oct": 10,
		"November": 11, "Nov": 11, "December": 12, "Dec": 12,
	}
	for name, month := range spellings {
		for _, form := range []string{name, strings.ToLower(name), strings.ToUpper(name)} {
			for _, of := range []string{" ", " of "} {
				text := "sales " + form + of + "2020"
				got := MonthYearPairs(text)
				require.Len(t, got, 1, text)
				assert.Equal(t, MonthYear{Month: month, Year: 2020}, got[0], text)
			}
		}
	}
}

func TestBareYears(t *testing.T) {
	assert.Equal(t, []int{2023, 2022, 2023}, BareYears("2023 vs 2022 vs 2023"))
	assert.Equal(t, []int{1999}, BareYears("in 1999 and 2150 and 1850"))
	assert.Nil(t, BareYears("order 12345"))
}

func TestBareMonths(t *testing.T) {
	assert.Equal(t, []int{3, 5}, BareMonths("march and may sales"))
	assert.Equal(t, []int{4}, BareMonths("April 2023 and apr"))
	assert.Nil(t, BareMonths("ask Mayer about Decimals"))
}

func TestRecognizersDoNotMutateInput(t *testing.T) {
	text := "Sales 12/06/2023, last 3 months, June 2023, 2022, march"
	orig := text
	ExplicitDates(text)
	LastNMonths(text)
	MonthYearPairs(text)
	BareYears(text)
	BareMonths(text)
	assert.Equal(t, orig, text)
}
