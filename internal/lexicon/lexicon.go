// Package lexicon holds the constant month and number-word tables used when
// reading dates out of free text.
package lexicon

import (
	"strings"
	"time"
)

var months = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may": 5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sep": 9, "sept": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

// MonthPattern matches any month name or abbreviation. It has no anchors or
// groups so callers can embed it.
const MonthPattern = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`

// NumberWordPattern matches the number words WordToNumber understands.
const NumberWordPattern = `one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve`

// MonthNumber returns 1..12 for a month name or abbreviation.
func MonthNumber(name string) (int, bool) {
	n, ok := months[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}

// MonthName returns the canonical English name, or "" when n is out of range.
func MonthName(n int) string {
	if n < 1 || n > 12 {
		return ""
	}
	return time.Month(n).String()
}

// WordToNumber returns the value of a number word from one to twelve.
func WordToNumber(word string) (int, bool) {
	n, ok := numberWords[strings.ToLower(strings.TrimSpace(word))]
	return n, ok
}

// DaysIn returns the number of days in the given month of year.
func DaysIn(month, year int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
