package fetcher

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// MinLookbackDays is the smallest window that still covers a trading session
// when the run happens on a weekend or holiday.
const MinLookbackDays = 2

// HistoryProvider is the market-data client the fetcher reads from.
type HistoryProvider interface {
	// History returns the daily bars of symbol over the last lookbackDays
	// calendar days. An empty slice means the provider has no data.
	History(ctx context.Context, symbol string, lookbackDays int) ([]Bar, error)
}

// Fetcher retrieves the most recent close of an index.
type Fetcher interface {
	// FetchLatestClose returns the close of the last completed session.
	// Every failure is a *FetchError; an empty series also matches
	// ErrDataUnavailable.
	FetchLatestClose(ctx context.Context, symbol string) (PricePoint, error)
}

// LatestCloseFetcher implements Fetcher on top of a HistoryProvider.
type LatestCloseFetcher struct {
	provider     HistoryProvider
	lookbackDays int
}

// NewLatestCloseFetcher creates a fetcher reading lookbackDays of history.
func NewLatestCloseFetcher(provider HistoryProvider, lookbackDays int) *LatestCloseFetcher {
	if lookbackDays < MinLookbackDays {
		lookbackDays = MinLookbackDays
	}
	return &LatestCloseFetcher{
		provider:     provider,
		lookbackDays: lookbackDays,
	}
}

// FetchLatestClose implements Fetcher.
func (f *LatestCloseFetcher) FetchLatestClose(ctx context.Context, symbol string) (PricePoint, error) {
	bars, err := f.provider.History(ctx, symbol, f.lookbackDays)
	if err != nil {
		return PricePoint{}, AsFetchError(err)
	}

	last, ok := latestBar(bars)
	if !ok {
		return PricePoint{}, NewNoDataError(symbol)
	}

	price := *last.Close
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return PricePoint{}, NewValidationError(fmt.Sprintf("close for %s is not a finite number", symbol))
	}
	if price < 0 {
		return PricePoint{}, NewValidationError(fmt.Sprintf("close for %s is negative: %v", symbol, price))
	}

	return PricePoint{
		Symbol:    symbol,
		TradeDate: truncateToDay(last.Time),
		Close:     price,
	}, nil
}

// latestBar returns the chronologically last bar carrying a close value.
func latestBar(bars []Bar) (Bar, bool) {
	closed := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if b.Close != nil {
			closed = append(closed, b)
		}
	}
	if len(closed) == 0 {
		return Bar{}, false
	}
	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].Time.Before(closed[j].Time)
	})
	return closed[len(closed)-1], true
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
