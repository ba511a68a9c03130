package collectors

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/domain"
)

// GrowthCollector gathers revenue and earnings growth facts.
type GrowthCollector struct {
	md  MarketData
	log zerolog.Logger
}

// NewGrowthCollector creates a new growth collector.
func NewGrowthCollector(md MarketData, log zerolog.Logger) *GrowthCollector {
	return &GrowthCollector{
		md:  md,
		log: log.With().Str("collector", "growth").Logger(),
	}
}

// Collect gathers the growth record for a security.
func (c *GrowthCollector) Collect(ctx context.Context, identity domain.SecurityIdentity) (*Record, error) {
	overview, err := c.md.GetOverview(ctx, identity.Symbol)
	if err != nil {
		return nil, fmt.Errorf("overview fetch: %w", err)
	}

	record := &Record{Dimension: domain.DimensionGrowth}
	record.AddF("Revenue growth YoY", "%.1f%%", overview.RevenueGrowthYOY*100)
	record.AddF("Earnings growth YoY", "%.1f%%", overview.EarningsGrowthYOY*100)

	earnings, err := c.md.GetEarnings(ctx, identity.Symbol)
	if err != nil {
		return nil, fmt.Errorf("earnings fetch: %w", err)
	}

	if len(earnings) >= 2 {
		beats := 0
		for i, report := range earnings {
			if i >= 8 {
				break
			}
			if report.ReportedEPS > report.EstimatedEPS {
				beats++
			}
		}
		counted := len(earnings)
		if counted > 8 {
			counted = 8
		}
		record.AddF("Estimate beats", "%d of last %d quarters", beats, counted)

		// Trailing EPS trajectory, oldest to newest, for trend judgement.
		first := earnings[len(earnings)-1]
		if len(earnings) > 8 {
			first = earnings[7]
		}
		latest := earnings[0]
		record.AddF("EPS trajectory", "%.2f (%s) -> %.2f (%s)",
			first.ReportedEPS, first.FiscalDateEnding,
			latest.ReportedEPS, latest.FiscalDateEnding)
	} else {
		record.Add("Earnings history", fmt.Sprintf("only %d quarters available", len(earnings)))
	}

	return record, nil
}
