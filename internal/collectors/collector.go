// Package collectors provides the per-dimension data collectors that gather
// the structured facts an analysis prompt is built from.
//
// The dimension set is closed: NewRegistry builds a fixed table with one
// collector per analysis dimension and fails construction if any entry is
// missing, so a forgotten dimension is a startup error rather than a silent
// no-op at research time.
package collectors

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/clients/marketdata"
	"github.com/aristath/lookout/internal/domain"
)

// Fact is one labelled value in a collected record.
type Fact struct {
	Label string
	Value string
}

// Record is the structured output of one collection step, rendered into the
// analysis prompt in fact order.
type Record struct {
	Dimension domain.Dimension
	Facts     []Fact
}

// Add appends a fact to the record.
func (r *Record) Add(label, value string) {
	r.Facts = append(r.Facts, Fact{Label: label, Value: value})
}

// AddF appends a formatted fact to the record.
func (r *Record) AddF(label, format string, args ...interface{}) {
	r.Add(label, fmt.Sprintf(format, args...))
}

// Render formats the record as prompt-ready text, one fact per line.
func (r *Record) Render() string {
	var sb strings.Builder
	for _, fact := range r.Facts {
		sb.WriteString(fact.Label)
		sb.WriteString(": ")
		sb.WriteString(fact.Value)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Collector gathers the structured record for one dimension of a security.
type Collector interface {
	Collect(ctx context.Context, identity domain.SecurityIdentity) (*Record, error)
}

// MarketData is the slice of the market data client the collectors consume.
type MarketData interface {
	GetOverview(ctx context.Context, symbol string) (*marketdata.Overview, error)
	GetEarnings(ctx context.Context, symbol string) ([]marketdata.EarningsReport, error)
	GetDividends(ctx context.Context, symbol string) ([]marketdata.Dividend, error)
	GetDailyPrices(ctx context.Context, symbol string, limit int) ([]marketdata.DailyPrice, error)
	GetNews(ctx context.Context, symbol string, limit int) ([]marketdata.NewsItem, error)
}

// Registry is the closed dimension-to-collector table.
type Registry struct {
	collectors map[domain.Dimension]Collector
}

// NewRegistry builds the collector table. Every analysis dimension must have
// an entry; a missing one is a construction error.
func NewRegistry(md MarketData, log zerolog.Logger) (*Registry, error) {
	table := map[domain.Dimension]Collector{
		domain.DimensionFundamentals: NewFundamentalsCollector(md, log),
		domain.DimensionValuation:    NewValuationCollector(md, log),
		domain.DimensionGrowth:       NewGrowthCollector(md, log),
		domain.DimensionDividends:    NewDividendsCollector(md, log),
		domain.DimensionTechnicals:   NewTechnicalsCollector(md, log),
		domain.DimensionSentiment:    NewSentimentCollector(md, log),
		domain.DimensionRisk:         NewRiskCollector(md, log),
	}

	for _, dim := range domain.AnalysisDimensions() {
		if table[dim] == nil {
			return nil, fmt.Errorf("no collector registered for dimension %s", dim)
		}
	}

	return &Registry{collectors: table}, nil
}

// Get returns the collector for a dimension.
func (r *Registry) Get(dim domain.Dimension) (Collector, bool) {
	c, ok := r.collectors[dim]
	return c, ok
}
