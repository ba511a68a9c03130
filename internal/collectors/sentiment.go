package collectors

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/domain"
)

const maxNewsItems = 10

// SentimentCollector gathers recent news headlines and their sentiment labels.
type SentimentCollector struct {
	md  MarketData
	log zerolog.Logger
}

// NewSentimentCollector creates a new sentiment collector.
func NewSentimentCollector(md MarketData, log zerolog.Logger) *SentimentCollector {
	return &SentimentCollector{
		md:  md,
		log: log.With().Str("collector", "sentiment").Logger(),
	}
}

// Collect gathers the news sentiment record for a security.
func (c *SentimentCollector) Collect(ctx context.Context, identity domain.SecurityIdentity) (*Record, error) {
	news, err := c.md.GetNews(ctx, identity.Symbol, maxNewsItems)
	if err != nil {
		return nil, fmt.Errorf("news fetch: %w", err)
	}

	record := &Record{Dimension: domain.DimensionSentiment}
	if len(news) == 0 {
		record.Add("Recent news", "no coverage found")
		return record, nil
	}

	var sum float64
	counted := 0
	for i, item := range news {
		if i >= maxNewsItems {
			break
		}
		sum += item.SentimentScore
		counted++
		record.AddF(fmt.Sprintf("Headline %d", i+1), "%s (%s, %s, sentiment %s)",
			item.Title, item.Source, item.PublishedAt, item.Sentiment)
	}

	if counted > 0 {
		record.AddF("Mean sentiment score", "%.3f over %d articles", sum/float64(counted), counted)
	}

	return record, nil
}
