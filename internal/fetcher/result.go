package fetcher

import "time"

// Bar is one daily entry of a provider's price history.
type Bar struct {
	// Time is the bar's session start, in the exchange's time zone.
	Time time.Time

	// Close is nil when the provider has no close for this session yet.
	Close *float64
}

// PricePoint is the latest close of an index. It is produced once per run
// and never modified afterwards.
type PricePoint struct {
	Symbol string

	// TradeDate is midnight of the trading day in the exchange's time zone.
	TradeDate time.Time

	// Close is finite and non-negative.
	Close float64
}

// IsZero reports whether p is the zero PricePoint returned alongside errors.
func (p PricePoint) IsZero() bool {
	return p.Symbol == "" && p.TradeDate.IsZero() && p.Close == 0
}
