package collectors

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/lookout/internal/clients/marketdata"
	"github.com/aristath/lookout/internal/domain"
)

const riskLookback = 252

// RiskCollector derives volatility and drawdown statistics from daily returns.
type RiskCollector struct {
	md  MarketData
	log zerolog.Logger
}

// NewRiskCollector creates a new risk collector.
func NewRiskCollector(md MarketData, log zerolog.Logger) *RiskCollector {
	return &RiskCollector{
		md:  md,
		log: log.With().Str("collector", "risk").Logger(),
	}
}

// Collect computes annualized volatility, downside deviation and max drawdown.
func (c *RiskCollector) Collect(ctx context.Context, identity domain.SecurityIdentity) (*Record, error) {
	overview, err := c.md.GetOverview(ctx, identity.Symbol)
	if err != nil {
		return nil, fmt.Errorf("overview fetch: %w", err)
	}

	record := &Record{Dimension: domain.DimensionRisk}
	record.AddF("Beta", "%.2f", overview.Beta)
	record.AddF("Debt to equity", "%.2f", overview.DebtToEquity)

	prices, err := c.md.GetDailyPrices(ctx, identity.Symbol, riskLookback)
	if err != nil {
		return nil, fmt.Errorf("daily prices fetch: %w", err)
	}
	if len(prices) < 30 {
		return nil, fmt.Errorf("insufficient price history: %d days", len(prices))
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, prices[i].Close/prev-1)
	}

	vol := stat.StdDev(returns, nil) * math.Sqrt(252)
	record.AddF("Annualized volatility", "%.1f%%", vol*100)

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) > 1 {
		record.AddF("Downside deviation", "%.1f%% annualized",
			stat.StdDev(downside, nil)*math.Sqrt(252)*100)
	}

	record.AddF("Max drawdown", "%.1f%%", maxDrawdown(prices)*100)
	record.AddF("Mean daily return", "%.3f%%", stat.Mean(returns, nil)*100)

	return record, nil
}

func maxDrawdown(prices []marketdata.DailyPrice) float64 {
	peak := prices[0].Close
	worst := 0.0
	for _, p := range prices {
		if p.Close > peak {
			peak = p.Close
		}
		if peak > 0 {
			dd := (p.Close - peak) / peak
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst
}
