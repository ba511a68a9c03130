package collectors

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/domain"
)

// DividendsCollector gathers dividend yield, payout and history facts.
type DividendsCollector struct {
	md  MarketData
	log zerolog.Logger
}

// NewDividendsCollector creates a new dividends collector.
func NewDividendsCollector(md MarketData, log zerolog.Logger) *DividendsCollector {
	return &DividendsCollector{
		md:  md,
		log: log.With().Str("collector", "dividends").Logger(),
	}
}

// Collect gathers the dividend record for a security.
func (c *DividendsCollector) Collect(ctx context.Context, identity domain.SecurityIdentity) (*Record, error) {
	overview, err := c.md.GetOverview(ctx, identity.Symbol)
	if err != nil {
		return nil, fmt.Errorf("overview fetch: %w", err)
	}

	record := &Record{Dimension: domain.DimensionDividends}
	record.AddF("Dividend yield", "%.2f%%", overview.DividendYield*100)
	record.AddF("Payout ratio", "%.1f%%", overview.PayoutRatio*100)

	dividends, err := c.md.GetDividends(ctx, identity.Symbol)
	if err != nil {
		c.log.Debug().Err(err).Str("symbol", identity.Symbol).Msg("dividend history unavailable")
		record.Add("Payment history", "unavailable")
		return record, nil
	}

	if len(dividends) == 0 {
		record.Add("Payment history", "no dividends paid")
		return record, nil
	}

	record.AddF("Payments on record", "%d", len(dividends))
	latest := dividends[0]
	record.AddF("Latest payment", "%.4f per share (ex %s)", latest.Amount, latest.ExDate)

	oldest := dividends[len(dividends)-1]
	if oldest.Amount > 0 && len(dividends) >= 4 {
		record.AddF("Payment trend", "%.4f (%s) -> %.4f (%s)",
			oldest.Amount, oldest.ExDate, latest.Amount, latest.ExDate)
	}

	return record, nil
}
