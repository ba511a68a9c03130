package clientdata

import "time"

// TTL constants for different data categories.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Stable data (rarely changes)
	TTLSymbolSearch = 30 * 24 * time.Hour // Symbol-to-identity mappings rarely change
	TTLOverview     = 7 * 24 * time.Hour  // Company overview, multiples, market cap

	// Quarterly financial data (updates with filings)
	TTLEarnings  = 45 * 24 * time.Hour
	TTLDividends = 7 * 24 * time.Hour

	// Time-sensitive data
	TTLDailyPrices = 24 * time.Hour
	TTLNews        = 6 * time.Hour
)
