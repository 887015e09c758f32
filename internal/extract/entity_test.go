package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sales-assistant/internal/models"
)

func TestFindEntities(t *testing.T) {
	vocab := []string{"France", "India", "United Kingdom", "Oman", "New York", "York"}

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single", "last 6 months sales in France", []string{"France"}},
		{"case insensitive", "sales in FRANCE and india", []string{"France", "India"}},
		{"ordered by position", "india vs france", []string{"India", "France"}},
		{"multi word", "sales in the united kingdom", []string{"United Kingdom"}},
		{"word boundary", "sales in Romania", []string{}},
		{"nested match dropped", "sales in New York", []string{"New York"}},
		{"nested and standalone", "New York and York", []string{"New York", "York"}},
		{"duplicates collapse", "France, france, FRANCE", []string{"France"}},
		{"none", "total sales", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindEntities(tt.text, vocab))
		})
	}
}

func TestFindEntitiesEmptyVocabulary(t *testing.T) {
	assert.Empty(t, FindEntities("sales in France", nil))
	assert.Empty(t, FindEntities("", []string{"France"}))
}

func TestFindEntitiesMetacharacters(t *testing.T) {
	vocab := []string{"Korea (South)", "St. Kitts+Nevis", "a.b*"}

	assert.NotPanics(t, func() {
		FindEntities("anything (", vocab)
	})
	assert.Equal(t, []string{"Korea (South)"}, FindEntities("sales in korea (south) please", vocab))
	assert.Equal(t, []string{"St. Kitts+Nevis"}, FindEntities("St. Kitts+Nevis totals", vocab))
	assert.Empty(t, FindEntities("Korea South", vocab))
	assert.Empty(t, FindEntities("axb", vocab))
}

func TestFindAll(t *testing.T) {
	vocab := map[models.Column][]string{
		models.ColumnCountry: {"France", "United Kingdom", "Georgia"},
		models.ColumnRegion:  {"Europe", "Georgia"},
		models.ColumnCity:    {"Paris", "London"},
	}

	t.Run("mixed columns", func(t *testing.T) {
		got := FindAll("sales in Paris and Europe", vocab)
		assert.Equal(t, []models.Entity{
			{Column: models.ColumnCity, Value: "Paris"},
			{Column: models.ColumnRegion, Value: "Europe"},
		}, got)
	})

	t.Run("same name in two columns prefers country", func(t *testing.T) {
		got := FindAll("sales in georgia", vocab)
		assert.Equal(t, []models.Entity{{Column: models.ColumnCountry, Value: "Georgia"}}, got)
	})

	t.Run("country code", func(t *testing.T) {
		got := FindAll("total sales FR last 3 months", vocab)
		assert.Equal(t, []models.Entity{{Column: models.ColumnCountry, Value: "France"}}, got)
	})

	t.Run("lower case code ignored", func(t *testing.T) {
		assert.Empty(t, FindAll("sales fr", vocab))
	})

	t.Run("united states", func(t *testing.T) {
		got := FindAll("sales in the US", map[models.Column][]string{models.ColumnCountry: {"United States"}})
		assert.Equal(t, []models.Entity{{Column: models.ColumnCountry, Value: "United States"}}, got)
	})

	t.Run("code for country outside vocabulary", func(t *testing.T) {
		assert.Empty(t, FindAll("sales DE", vocab))
	})

	t.Run("empty vocabulary", func(t *testing.T) {
		assert.Empty(t, FindAll("sales in France", nil))
	})
}

func TestFindAllIgnoresWordsThatAreCountryCodes(t *testing.T) {
	vocab := map[models.Column][]string{
		models.ColumnCountry: {"France", "India", "Peru", "Canada", "Andorra", "Italy", "United States", "Morocco"},
	}

	tests := []struct {
		name string
		text string
		want []models.Entity
	}{
		{"shouted question", "TOTAL SALES IN JUNE 2023", []models.Entity{}},
		{"shouted per", "SHOW SALES PER MONTH", []models.Entity{}},
		{"shouted can", "WHAT CAN YOU TELL ME ABOUT SALES", []models.Entity{}},
		{"shouted us", "TELL US THE TOTAL", []models.Entity{}},
		{"shouted names still match", "COMPARE FRANCE AND INDIA", []models.Entity{
			{Column: models.ColumnCountry, Value: "France"},
			{Column: models.ColumnCountry, Value: "India"},
		}},
		{"emphasis in mixed case", "compare France AND India, IT is urgent", []models.Entity{
			{Column: models.ColumnCountry, Value: "France"},
			{Column: models.ColumnCountry, Value: "India"},
		}},
		{"month abbreviation", "sales for MAR 2023", []models.Entity{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindAll(tt.text, vocab)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
