package collectors

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/domain"
)

// ValuationCollector gathers price-multiple facts.
type ValuationCollector struct {
	md  MarketData
	log zerolog.Logger
}

// NewValuationCollector creates a new valuation collector.
func NewValuationCollector(md MarketData, log zerolog.Logger) *ValuationCollector {
	return &ValuationCollector{
		md:  md,
		log: log.With().Str("collector", "valuation").Logger(),
	}
}

// Collect gathers the valuation record for a security.
func (c *ValuationCollector) Collect(ctx context.Context, identity domain.SecurityIdentity) (*Record, error) {
	overview, err := c.md.GetOverview(ctx, identity.Symbol)
	if err != nil {
		return nil, fmt.Errorf("overview fetch: %w", err)
	}

	record := &Record{Dimension: domain.DimensionValuation}
	record.AddF("P/E ratio", "%.2f", overview.PERatio)
	record.AddF("Price to book", "%.2f", overview.PriceToBook)
	record.AddF("EV/EBITDA", "%.2f", overview.EVToEBITDA)
	record.AddF("Earnings yield", "%.2f%%", earningsYield(overview.PERatio))
	record.AddF("Market cap", "%.0f %s", overview.MarketCap, nonEmpty(overview.Currency, "USD"))

	prices, err := c.md.GetDailyPrices(ctx, identity.Symbol, 252)
	if err == nil && len(prices) > 0 {
		last := prices[len(prices)-1].Close
		high, low := last, last
		for _, p := range prices {
			if p.Close > high {
				high = p.Close
			}
			if p.Close < low {
				low = p.Close
			}
		}
		record.AddF("Price vs 52-week range", "%.2f (low %.2f, high %.2f)", last, low, high)
	}

	return record, nil
}

func earningsYield(pe float64) float64 {
	if pe <= 0 {
		return 0
	}
	return 100 / pe
}
