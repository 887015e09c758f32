package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"sales-assistant/internal/aggregate"
	"sales-assistant/internal/dataset"
	"sales-assistant/internal/errors"
	"sales-assistant/internal/extract"
	"sales-assistant/internal/format"
	"sales-assistant/internal/models"
	"sales-assistant/internal/observability"
	"sales-assistant/internal/resolve"
)

type Intent string

const (
	IntentTotalSales            Intent = "total_sales"
	IntentCountrySales          Intent = "country_sales"
	IntentCompare               Intent = "compare"
	IntentListCountries         Intent = "list_countries"
	IntentListPlans             Intent = "list_plans"
	IntentListRegions           Intent = "list_regions"
	IntentPlansByCountry        Intent = "plans_by_country"
	IntentTopCountriesAndPlans  Intent = "top_countries_and_plans"
	IntentLowestCountries       Intent = "lowest_countries"
	IntentLowestPlans           Intent = "lowest_plans"
	IntentTopRegions            Intent = "top_regions"
	IntentSalesGrowth           Intent = "sales_growth"
	IntentSalesBySource         Intent = "sales_by_source"
	IntentSalesByPaymentGateway Intent = "sales_by_payment_gateway"
	IntentSalesByCountryAndPlan Intent = "sales_by_country_and_plan"
	IntentRankExtremes          Intent = "rank_extremes"
	IntentCurrentTime           Intent = "current_time"
)

const (
	growthUnspecified = "Please specify whether you want to see the sales growth by month or by year."
	growthTooShort    = "There is not enough dated sales data to show growth."
	noSales           = "No sales data found."
)

// Slots are values a dialogue layer has already extracted. They take
// precedence over what the text itself contains.
type Slots struct {
	Month   string   `json:"month,omitempty"`
	Year    string   `json:"year,omitempty"`
	Country string   `json:"country,omitempty"`
	Plan    string   `json:"plan,omitempty"`
	Region  string   `json:"region,omitempty"`
	City    string   `json:"city,omitempty"`
	Compare []string `json:"compare,omitempty"`
}

type Request struct {
	Intent string `json:"intent"`
	Text   string `json:"text"`
	Slots  Slots  `json:"slots"`
}

// Reply is what the user is told. Code is set when the question could not be
// answered; the messages then hold the explanation.
type Reply struct {
	Intent   Intent           `json:"intent"`
	Messages []string         `json:"messages"`
	Code     errors.ErrorCode `json:"code,omitempty"`
}

type handlerFunc func(a *Assistant, q *query) ([]string, error)

var handlers = map[Intent]handlerFunc{
	IntentTotalSales:            (*Assistant).totalSales,
	IntentCountrySales:          (*Assistant).countrySales,
	IntentCompare:               (*Assistant).compare,
	IntentListCountries:         listOf(models.ColumnCountry),
	IntentListPlans:             listOf(models.ColumnPlan),
	IntentListRegions:           listOf(models.ColumnRegion),
	IntentPlansByCountry:        (*Assistant).plansByLocation,
	IntentTopCountriesAndPlans:  (*Assistant).topCountriesAndPlans,
	IntentLowestCountries:       lowest(models.ColumnCountry),
	IntentLowestPlans:           lowest(models.ColumnPlan),
	IntentTopRegions:            (*Assistant).topRegions,
	IntentSalesGrowth:           (*Assistant).salesGrowth,
	IntentSalesBySource:         totalsBy(models.ColumnSource, "Sources by total sales"),
	IntentSalesByPaymentGateway: totalsBy(models.ColumnPaymentGateway, "Sales grouped by payment gateway"),
	IntentSalesByCountryAndPlan: (*Assistant).countryAndPlan,
	IntentRankExtremes:          (*Assistant).rankExtremes,
}

// Intents lists every intent Handle accepts.
func Intents() []Intent {
	out := make([]Intent, 0, len(handlers)+1)
	for intent := range handlers {
		out = append(out, intent)
	}
	out = append(out, IntentCurrentTime)
	slices.Sort(out)
	return out
}

// ParseIntent normalises an intent name. Empty means total sales.
func ParseIntent(s string) (Intent, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "action_get_")
	if s == "" {
		return IntentTotalSales, true
	}
	intent := Intent(s)
	if intent == IntentCurrentTime {
		return intent, true
	}
	_, ok := handlers[intent]
	return intent, ok
}

// Assistant answers sales questions from the current dataset snapshot.
type Assistant struct {
	store    *dataset.Store
	resolver *resolve.Resolver
	logger   *slog.Logger

	queries atomic.Int64
}

func NewAssistant(store *dataset.Store, resolver *resolve.Resolver, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	if resolver == nil {
		resolver = resolve.New(nil, resolve.DefaultPolicy())
	}
	return &Assistant{store: store, resolver: resolver, logger: logger}
}

// Queries counts requests that reached the aggregator.
func (a *Assistant) Queries() int64 {
	return a.queries.Load()
}

// Store returns the dataset store the assistant reads from.
func (a *Assistant) Store() *dataset.Store {
	return a.store
}

type query struct {
	ctx  context.Context
	req  Request
	snap *dataset.Snapshot
}

func (q *query) rows() []models.Transaction {
	return q.snap.Rows
}

// scoped narrows the rows to the plan slot when one is filled.
func (q *query) scoped() []models.Transaction {
	if plan := strings.TrimSpace(q.req.Slots.Plan); plan != "" {
		return aggregate.Filter(q.snap.Rows, aggregate.Equals(models.ColumnPlan, plan))
	}
	return q.snap.Rows
}

// Handle answers one request. Failures that the user can act on come back as
// messages with Code set; Handle never returns a Go error.
func (a *Assistant) Handle(ctx context.Context, req Request) Reply {
	intent, ok := ParseIntent(req.Intent)
	ctx, span := observability.StartSpan(ctx, "assistant.handle")
	defer span.End(a.logger)
	span.SetTag("intent", string(intent))

	if !ok {
		return a.fail(ctx, span, intent, errors.Validation(fmt.Sprintf("unknown intent %q", req.Intent)))
	}

	if intent == IntentCurrentTime {
		return Reply{Intent: intent, Messages: []string{format.Clock(a.resolver.Clock.Now())}}
	}

	snap, err := a.store.Snapshot(ctx)
	if err != nil || !snap.Usable() {
		return a.fail(ctx, span, intent, errors.DataUnavailable(err))
	}

	a.queries.Add(1)
	messages, err := handlers[intent](a, &query{ctx: ctx, req: req, snap: snap})
	if err != nil {
		return a.fail(ctx, span, intent, err)
	}
	return Reply{Intent: intent, Messages: messages}
}

func (a *Assistant) fail(ctx context.Context, span *observability.Span, intent Intent, err error) Reply {
	span.SetError(err)
	code := errors.Code(err)
	a.logger.Info("question not answered",
		"intent", intent,
		"code", code,
		"error", err,
		"request_id", observability.GetRequestID(ctx),
	)
	return Reply{Intent: intent, Messages: []string{errors.UserMessage(err)}, Code: code}
}

// period resolves the question's time frame. Filled month or year slots win
// over the text.
func (a *Assistant) period(req Request) (resolve.Period, error) {
	if req.Slots.Month != "" || req.Slots.Year != "" {
		p, err := a.resolver.ResolveSlots(req.Slots.Month, req.Slots.Year)
		if err != nil {
			return resolve.Period{}, errors.MalformedSlot(err)
		}
		return p, nil
	}
	return a.resolver.Resolve(req.Text), nil
}

// entities returns the locations the question is about: comparison slots
// first, then location slots, then names found in the text. A filled slot
// naming no known location is a NoEntity error rather than an empty scope.
func entities(req Request, snap *dataset.Snapshot) ([]models.Entity, error) {
	var found []models.Entity
	for _, name := range req.Slots.Compare {
		if strings.TrimSpace(name) == "" {
			continue
		}
		hits := extract.FindAll(name, snap.Vocabulary)
		if len(hits) == 0 {
			return nil, errors.NoEntity()
		}
		found = append(found, hits[0])
	}

	slots := []models.Entity{
		{Column: models.ColumnCountry, Value: req.Slots.Country},
		{Column: models.ColumnRegion, Value: req.Slots.Region},
		{Column: models.ColumnCity, Value: req.Slots.City},
	}
	for _, e := range slots {
		v := strings.TrimSpace(e.Value)
		if v == "" {
			continue
		}
		known, ok := canonical(snap.Values(e.Column), v)
		if !ok {
			return nil, errors.NoEntity()
		}
		found = append(found, models.Entity{Column: e.Column, Value: known})
	}

	if len(found) == 0 {
		found = extract.FindAll(req.Text, snap.Vocabulary)
	}
	return uniqueEntities(found), nil
}

// canonical returns the vocabulary spelling of value.
func canonical(vocab []string, value string) (string, bool) {
	for _, v := range vocab {
		if strings.EqualFold(v, value) {
			return v, true
		}
	}
	return "", false
}

func uniqueEntities(in []models.Entity) []models.Entity {
	seen := make(map[models.Entity]bool, len(in))
	out := in[:0:0]
	for _, e := range in {
		key := models.Entity{Column: e.Column, Value: strings.ToLower(e.Value)}
		if !seen[key] {
			seen[key] = true
			out = append(out, e)
		}
	}
	return out
}

func (a *Assistant) totalSales(q *query) ([]string, error) {
	p, err := a.period(q.req)
	if err != nil {
		return nil, err
	}

	ents, err := entities(q.req, q.snap)
	if err != nil {
		return nil, err
	}
	if len(ents) > 1 {
		return format.Comparison(aggregate.Compare(q.scoped(), ents)), nil
	}

	var entity *models.Entity
	if len(ents) == 1 {
		entity = &ents[0]
	}
	a.logger.Debug("period resolved", "kind", p.Kind, "entity", entity, "request_id", observability.GetRequestID(q.ctx))
	return format.Results(aggregate.SumAndAverage(q.scoped(), p, entity), entity), nil
}

// countrySales answers a question about one location: its largest sale when
// the question asks for the maximum, otherwise its period totals.
func (a *Assistant) countrySales(q *query) ([]string, error) {
	ents, err := entities(q.req, q.snap)
	if err != nil {
		return nil, err
	}
	if len(ents) == 0 {
		return nil, errors.NoEntity()
	}
	if strings.Contains(strings.ToLower(q.req.Text), "max") {
		e := ents[0]
		maxPrice, ok := aggregate.Max(aggregate.Filter(q.scoped(), aggregate.Equals(e.Column, e.Value)))
		return []string{format.Maximum(e.Value, maxPrice, ok)}, nil
	}
	return a.totalSales(q)
}

func (a *Assistant) compare(q *query) ([]string, error) {
	ents, err := entities(q.req, q.snap)
	if err != nil {
		return nil, err
	}
	if len(ents) == 0 {
		return nil, errors.NoEntity()
	}
	return format.Comparison(aggregate.Compare(q.scoped(), ents)), nil
}

func listOf(c models.Column) handlerFunc {
	return func(_ *Assistant, q *query) ([]string, error) {
		values := q.snap.Values(c)
		if len(values) == 0 {
			return []string{format.Missing(c)}, nil
		}
		return []string{format.List(format.Plural(c), values)}, nil
	}
}

func (a *Assistant) plansByLocation(q *query) ([]string, error) {
	ents, err := entities(q.req, q.snap)
	if err != nil {
		return nil, err
	}
	if len(ents) == 0 {
		return nil, errors.NoEntity()
	}
	lines := make([]string, 0, len(ents))
	for _, e := range ents {
		plans := aggregate.Distinct(aggregate.Filter(q.rows(), aggregate.Equals(e.Column, e.Value)), models.ColumnPlan)
		lines = append(lines, format.PlansIn(e.Value, plans))
	}
	return lines, nil
}

func (a *Assistant) topCountriesAndPlans(q *query) ([]string, error) {
	return []string{
		format.Counts(fmt.Sprintf("Top %d countries by sales count", aggregate.GeoBreakdownN),
			aggregate.Breakdown(q.rows(), models.ColumnCountry)),
		format.Counts(fmt.Sprintf("Top %d plans by sales", aggregate.PlanBreakdownN),
			aggregate.Breakdown(q.rows(), models.ColumnPlan)),
	}, nil
}

func lowest(c models.Column) handlerFunc {
	return func(_ *Assistant, q *query) ([]string, error) {
		n := aggregate.BreakdownSize(c)
		return []string{format.Counts(fmt.Sprintf("Lowest %d %s by sales count", n, format.Plural(c)),
			aggregate.BottomNByCount(q.rows(), c, n))}, nil
	}
}

func (a *Assistant) topRegions(q *query) ([]string, error) {
	return []string{format.Counts(fmt.Sprintf("Top %d regions by sales count", aggregate.GeoBreakdownN),
		aggregate.Breakdown(q.rows(), models.ColumnRegion))}, nil
}

func (a *Assistant) salesGrowth(q *query) ([]string, error) {
	text := strings.ToLower(q.req.Text)

	var by aggregate.GrowthPeriod
	var title string
	switch {
	case strings.Contains(text, "month"):
		by, title = aggregate.GrowthMonth, "Sales growth percentage by month"
	case strings.Contains(text, "year"):
		by, title = aggregate.GrowthYear, "Sales growth percentage by year"
	default:
		return []string{growthUnspecified}, nil
	}

	points := aggregate.Growth(q.rows(), by)
	if len(points) == 0 {
		return []string{growthTooShort}, nil
	}
	return []string{format.Growth(title, points)}, nil
}

func totalsBy(c models.Column, title string) handlerFunc {
	return func(_ *Assistant, q *query) ([]string, error) {
		totals := aggregate.TopNByTotal(q.rows(), c, 0)
		if len(totals) == 0 {
			return []string{format.Missing(c)}, nil
		}
		return []string{format.Totals(title, totals)}, nil
	}
}

func (a *Assistant) countryAndPlan(q *query) ([]string, error) {
	pairs := aggregate.GroupPairs(q.rows(), models.ColumnCountry, models.ColumnPlan)
	if len(pairs) == 0 {
		return []string{noSales}, nil
	}
	return []string{format.Pairs("Sales grouped by country and plan", pairs)}, nil
}

func (a *Assistant) rankExtremes(q *query) ([]string, error) {
	c := columnIn(q.req.Text)
	hi, lo, err := aggregate.RankExtremes(q.rows(), c)
	if err != nil {
		return nil, errors.EmptyGroup(err)
	}
	return format.Extremes(c, hi, lo), nil
}

// columnIn picks the column a ranking question names, defaulting to country.
// Names match as whole words, so "capacity" does not name the city column.
func columnIn(text string) models.Column {
	for _, c := range models.Columns {
		if len(extract.FindEntities(text, []string{c.Label(), format.Plural(c)})) > 0 {
			return c
		}
	}
	return models.ColumnCountry
}
