package aggregate

import (
	"github.com/shopspring/decimal"

	"sales-assistant/internal/models"
)

// Block is one entity's side of a comparison.
type Block struct {
	Entity    models.Entity   `json:"entity"`
	Total     decimal.Decimal `json:"total"`
	Count     int             `json:"count"`
	Average   decimal.Decimal `json:"average"`
	GeoColumn models.Column   `json:"geo_column,omitempty"`
	Geo       []Count         `json:"geo,omitempty"`
	Plans     []Count         `json:"plans"`
}

// SubColumn is the geographic column an entity of column c is broken down
// by. Cities have no finer column.
func SubColumn(c models.Column) (models.Column, bool) {
	switch c {
	case models.ColumnCountry:
		return models.ColumnCity, true
	case models.ColumnRegion:
		return models.ColumnCountry, true
	default:
		return "", false
	}
}

// Compare builds one block per entity from that entity's rows, with no
// period filter. Average is the mean price of a priced sale.
func Compare(rows []models.Transaction, entities []models.Entity) []Block {
	blocks := make([]Block, 0, len(entities))
	for _, e := range entities {
		scoped := Filter(rows, Equals(e.Column, e.Value))
		count := PricedCount(scoped)
		total := Sum(scoped)

		b := Block{
			Entity:  e,
			Total:   total,
			Count:   count,
			Average: safeDiv(total, int64(count)),
			Plans:   TopNByCount(scoped, models.ColumnPlan, PlanBreakdownN),
		}
		if sub, ok := SubColumn(e.Column); ok {
			b.GeoColumn = sub
			b.Geo = TopNByCount(scoped, sub, GeoBreakdownN)
		}
		blocks = append(blocks, b)
	}
	return blocks
}
