package extract

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/pariz/gountries"

	"sales-assistant/internal/models"
)

var (
	countryCode  = regexp.MustCompile(`\b[A-Z]{2,3}\b`)
	countryQuery = sync.OnceValue(gountries.New)
)

// English words and month abbreviations that are also ISO 3166 codes
// (IN India, PER Peru, CAN Canada, AND Andorra, MAR Morocco). They never
// resolve as codes. US does: in mixed-case text it names the United States.
var codeStopWords = map[string]struct{}{
	"AM": {}, "AN": {}, "AND": {}, "ARE": {}, "ARM": {}, "AS": {}, "AT": {},
	"BE": {}, "BY": {}, "CAN": {}, "DO": {}, "FOR": {}, "GO": {}, "HAS": {},
	"HE": {}, "IN": {}, "IS": {}, "IT": {}, "MAR": {}, "MAY": {}, "ME": {},
	"MY": {}, "NO": {}, "NOT": {}, "OF": {}, "ON": {}, "OR": {}, "PER": {},
	"SO": {}, "THE": {}, "TO": {}, "WE": {},
}

type hit struct {
	value    string
	column   models.Column
	priority int
	start    int
	end      int
}

// FindEntities returns the vocabulary entries that occur in text, ordered by
// first occurrence. Matching is a case-insensitive literal search that must
// sit on word boundaries; an entry found only inside a longer entry's match
// ("York" inside "New York") is not reported.
func FindEntities(text string, vocabulary []string) []string {
	if text == "" || len(vocabulary) == 0 {
		return nil
	}
	hits := findHits(strings.ToLower(text), vocabulary, "", 0)
	hits = keepFirst(dropNested(hits))

	names := make([]string, 0, len(hits))
	for _, h := range hits {
		names = append(names, h.value)
	}
	return names
}

// FindAll runs FindEntities over every geographic vocabulary. A name present
// in more than one column is reported once, under the column that comes first
// in models.GeoColumns. Upper-case ISO country codes ("FR", "USA") resolve to
// the country they stand for when that country is in the vocabulary.
func FindAll(text string, vocab map[models.Column][]string) []models.Entity {
	if text == "" || len(vocab) == 0 {
		return nil
	}
	lower := strings.ToLower(text)

	var hits []hit
	for priority, col := range models.GeoColumns {
		hits = append(hits, findHits(lower, vocab[col], col, priority)...)
	}
	hits = append(hits, countryCodeHits(text, vocab[models.ColumnCountry], hits)...)
	hits = keepFirst(dropNested(hits))

	entities := make([]models.Entity, 0, len(hits))
	for _, h := range hits {
		entities = append(entities, models.Entity{Column: h.column, Value: h.value})
	}
	return entities
}

func findHits(lower string, entries []string, col models.Column, priority int) []hit {
	var hits []hit
	for _, entry := range entries {
		needle := strings.ToLower(strings.TrimSpace(entry))
		if needle == "" {
			continue
		}
		for from := 0; from < len(lower); {
			i := strings.Index(lower[from:], needle)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(needle)
			if onBoundary(lower, needle, start, end) {
				hits = append(hits, hit{value: entry, column: col, priority: priority, start: start, end: end})
			}
			_, size := utf8.DecodeRuneInString(lower[start:])
			from = start + size
		}
	}
	return hits
}

// onBoundary requires a non word character on each side of the match, but
// only on an edge where the needle itself starts or ends with a word
// character.
func onBoundary(s, needle string, start, end int) bool {
	first, _ := utf8.DecodeRuneInString(needle)
	if isWord(first) && start > 0 {
		prev, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWord(prev) {
			return false
		}
	}
	last, _ := utf8.DecodeLastRuneInString(needle)
	if isWord(last) && end < len(s) {
		next, _ := utf8.DecodeRuneInString(s[end:])
		if isWord(next) {
			return false
		}
	}
	return true
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// countryCodeHits resolves ISO codes written in capitals. Text without any
// lower-case letter is treated as shouted and yields no codes. Tokens that
// already matched a vocabulary entry literally are skipped.
func countryCodeHits(text string, countries []string, existing []hit) []hit {
	if len(countries) == 0 || !strings.ContainsFunc(text, unicode.IsLower) {
		return nil
	}
	byName := make(map[string]string, len(countries))
	for _, c := range countries {
		byName[strings.ToLower(c)] = c
	}

	var hits []hit
	for _, m := range countryCode.FindAllStringIndex(text, -1) {
		token := text[m[0]:m[1]]
		if _, stop := codeStopWords[token]; stop || coveredBy(m[0], m[1], existing) {
			continue
		}
		country, err := countryQuery().FindCountryByAlpha(token)
		if err != nil {
			continue
		}
		for _, name := range []string{country.Name.Common, country.Name.Official} {
			if v, ok := byName[strings.ToLower(name)]; ok {
				hits = append(hits, hit{value: v, column: models.ColumnCountry, start: m[0], end: m[1]})
				break
			}
		}
	}
	return hits
}

func coveredBy(start, end int, hits []hit) bool {
	for _, h := range hits {
		if h.start <= start && end <= h.end {
			return true
		}
	}
	return false
}

func dropNested(hits []hit) []hit {
	kept := hits[:0:0]
	for i, h := range hits {
		nested := false
		for j, o := range hits {
			if i == j {
				continue
			}
			if o.start <= h.start && h.end <= o.end && o.end-o.start > h.end-h.start {
				nested = true
				break
			}
		}
		if !nested {
			kept = append(kept, h)
		}
	}
	return kept
}

// keepFirst orders hits by position and keeps one hit per distinct value.
func keepFirst(hits []hit) []hit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].start != hits[j].start {
			return hits[i].start < hits[j].start
		}
		return hits[i].priority < hits[j].priority
	})

	seen := make(map[string]int, len(hits))
	out := make([]hit, 0, len(hits))
	for _, h := range hits {
		key := strings.ToLower(h.value)
		if idx, ok := seen[key]; ok {
			if h.priority < out[idx].priority {
				out[idx].column = h.column
				out[idx].priority = h.priority
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, h)
	}
	return out
}
