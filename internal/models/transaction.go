package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one sale. A zero PurchaseDate means the date was missing or
// unparseable; an invalid SellingPrice means the price was missing.
type Transaction struct {
	PurchaseDate   time.Time
	SellingPrice   decimal.NullDecimal
	Country        string
	City           string
	Region         string
	Plan           string
	Source         string
	PaymentGateway string
}

func (t Transaction) HasDate() bool {
	return !t.PurchaseDate.IsZero()
}

func (t Transaction) Priced() bool {
	return t.SellingPrice.Valid
}

// Price returns the selling price, or zero when it is missing.
func (t Transaction) Price() decimal.Decimal {
	if !t.SellingPrice.Valid {
		return decimal.Zero
	}
	return t.SellingPrice.Decimal
}

// Column names a groupable text column of the dataset.
type Column string

const (
	ColumnCountry        Column = "country_name"
	ColumnCity           Column = "city"
	ColumnRegion         Column = "region_name"
	ColumnPlan           Column = "plan_name"
	ColumnSource         Column = "source"
	ColumnPaymentGateway Column = "payment_gateway"
)

// Columns lists every groupable column.
var Columns = []Column{
	ColumnCountry,
	ColumnCity,
	ColumnRegion,
	ColumnPlan,
	ColumnSource,
	ColumnPaymentGateway,
}

// GeoColumns are the columns entity extraction matches against, highest
// priority first.
var GeoColumns = []Column{ColumnCountry, ColumnRegion, ColumnCity}

func ParseColumn(s string) (Column, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Columns {
		if string(c) == s {
			return c, true
		}
	}
	switch s {
	case "country", "countries":
		return ColumnCountry, true
	case "cities":
		return ColumnCity, true
	case "region", "regions":
		return ColumnRegion, true
	case "plan", "plans":
		return ColumnPlan, true
	case "sources":
		return ColumnSource, true
	case "gateway", "gateways", "payment_gateways":
		return ColumnPaymentGateway, true
	}
	return "", false
}

// Field returns the value of column c.
func (t Transaction) Field(c Column) string {
	switch c {
	case ColumnCountry:
		return t.Country
	case ColumnCity:
		return t.City
	case ColumnRegion:
		return t.Region
	case ColumnPlan:
		return t.Plan
	case ColumnSource:
		return t.Source
	case ColumnPaymentGateway:
		return t.PaymentGateway
	default:
		return ""
	}
}

// Label is a human name for the column, used in reply templates.
func (c Column) Label() string {
	switch c {
	case ColumnCountry:
		return "country"
	case ColumnCity:
		return "city"
	case ColumnRegion:
		return "region"
	case ColumnPlan:
		return "plan"
	case ColumnSource:
		return "source"
	case ColumnPaymentGateway:
		return "payment gateway"
	default:
		return string(c)
	}
}

// Entity is a geographic name recognised in an utterance.
type Entity struct {
	Column Column `json:"column"`
	Value  string `json:"value"`
}
