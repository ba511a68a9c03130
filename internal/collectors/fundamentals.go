package collectors

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/domain"
)

// FundamentalsCollector gathers balance-sheet and profitability facts.
type FundamentalsCollector struct {
	md  MarketData
	log zerolog.Logger
}

// NewFundamentalsCollector creates a new fundamentals collector.
func NewFundamentalsCollector(md MarketData, log zerolog.Logger) *FundamentalsCollector {
	return &FundamentalsCollector{
		md:  md,
		log: log.With().Str("collector", "fundamentals").Logger(),
	}
}

// Collect gathers the fundamentals record for a security.
func (c *FundamentalsCollector) Collect(ctx context.Context, identity domain.SecurityIdentity) (*Record, error) {
	overview, err := c.md.GetOverview(ctx, identity.Symbol)
	if err != nil {
		return nil, fmt.Errorf("overview fetch: %w", err)
	}

	record := &Record{Dimension: domain.DimensionFundamentals}
	record.Add("Sector", nonEmpty(overview.Sector, "unknown"))
	record.Add("Industry", nonEmpty(overview.Industry, "unknown"))
	record.AddF("Market cap", "%.0f %s", overview.MarketCap, nonEmpty(overview.Currency, "USD"))
	record.AddF("Profit margin", "%.1f%%", overview.ProfitMargin*100)
	record.AddF("Return on equity", "%.1f%%", overview.ReturnOnEquity*100)
	record.AddF("Debt to equity", "%.2f", overview.DebtToEquity)
	record.AddF("EPS", "%.2f", overview.EPS)

	earnings, err := c.md.GetEarnings(ctx, identity.Symbol)
	if err != nil {
		// Overview alone is still a usable record; note the gap instead of
		// failing the whole dimension.
		c.log.Warn().Err(err).Str("symbol", identity.Symbol).Msg("Earnings unavailable")
		record.Add("Recent earnings", "unavailable")
		return record, nil
	}

	for i, report := range earnings {
		if i >= 4 {
			break
		}
		record.AddF(fmt.Sprintf("Quarter %s EPS", report.FiscalDateEnding),
			"%.2f reported vs %.2f estimated (%+.1f%% surprise)",
			report.ReportedEPS, report.EstimatedEPS, report.SurprisePercent)
	}

	return record, nil
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
