package collectors

import (
	"context"
	"fmt"

	talib "github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/domain"
)

const technicalsLookback = 252

// TechnicalsCollector derives momentum and trend indicators from daily prices.
type TechnicalsCollector struct {
	md  MarketData
	log zerolog.Logger
}

// NewTechnicalsCollector creates a new technicals collector.
func NewTechnicalsCollector(md MarketData, log zerolog.Logger) *TechnicalsCollector {
	return &TechnicalsCollector{
		md:  md,
		log: log.With().Str("collector", "technicals").Logger(),
	}
}

// Collect computes RSI, moving averages and MACD over the trailing year.
func (c *TechnicalsCollector) Collect(ctx context.Context, identity domain.SecurityIdentity) (*Record, error) {
	prices, err := c.md.GetDailyPrices(ctx, identity.Symbol, technicalsLookback)
	if err != nil {
		return nil, fmt.Errorf("daily prices fetch: %w", err)
	}
	if len(prices) < 50 {
		return nil, fmt.Errorf("insufficient price history: %d days", len(prices))
	}

	closes := make([]float64, len(prices))
	for i, p := range prices {
		closes[i] = p.Close
	}
	last := closes[len(closes)-1]

	record := &Record{Dimension: domain.DimensionTechnicals}
	record.AddF("Last close", "%.2f", last)

	rsi := talib.Rsi(closes, 14)
	record.AddF("RSI(14)", "%.1f", rsi[len(rsi)-1])

	sma50 := talib.Sma(closes, 50)
	record.AddF("SMA(50)", "%.2f (price %+.1f%% vs SMA)", sma50[len(sma50)-1], pctAbove(last, sma50[len(sma50)-1]))

	if len(closes) >= 200 {
		sma200 := talib.Sma(closes, 200)
		record.AddF("SMA(200)", "%.2f (price %+.1f%% vs SMA)", sma200[len(sma200)-1], pctAbove(last, sma200[len(sma200)-1]))
	}

	macd, signal, hist := talib.Macd(closes, 12, 26, 9)
	record.AddF("MACD(12,26,9)", "%.3f signal %.3f histogram %.3f",
		macd[len(macd)-1], signal[len(signal)-1], hist[len(hist)-1])

	high, low := closes[0], closes[0]
	for _, v := range closes {
		if v > high {
			high = v
		}
		if v < low {
			low = v
		}
	}
	record.AddF("Trailing range", "%.2f - %.2f over %d sessions", low, high, len(closes))

	return record, nil
}

func pctAbove(price, ref float64) float64 {
	if ref == 0 {
		return 0
	}
	return (price - ref) / ref * 100
}
