package testutil

import (
	"context"
	"sync"
	"time"

	"indexcast/internal/fetcher"
	"indexcast/internal/platform"
)

// MockHistoryProvider is a mock implementation of fetcher.HistoryProvider for testing
type MockHistoryProvider struct {
	HistoryFunc func(ctx context.Context, symbol string, lookbackDays int) ([]fetcher.Bar, error)

	mu    sync.Mutex
	Calls int
}

// History implements fetcher.HistoryProvider
func (m *MockHistoryProvider) History(ctx context.Context, symbol string, lookbackDays int) ([]fetcher.Bar, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, symbol, lookbackDays)
	}
	return nil, nil
}

// NewMockHistory creates a provider that always returns bars and err
func NewMockHistory(bars []fetcher.Bar, err error) *MockHistoryProvider {
	return &MockHistoryProvider{
		HistoryFunc: func(ctx context.Context, symbol string, lookbackDays int) ([]fetcher.Bar, error) {
			return bars, err
		},
	}
}

// Bar builds a daily bar at midnight UTC of the given day.
func Bar(year int, month time.Month, day int, value float64) fetcher.Bar {
	return fetcher.Bar{
		Time:  time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
		Close: &value,
	}
}

// MockFetcher is a mock implementation of fetcher.Fetcher for testing
type MockFetcher struct {
	FetchFunc func(ctx context.Context, symbol string) (fetcher.PricePoint, error)
}

// FetchLatestClose implements fetcher.Fetcher
func (m *MockFetcher) FetchLatestClose(ctx context.Context, symbol string) (fetcher.PricePoint, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, symbol)
	}
	return fetcher.PricePoint{}, nil
}

// NewMockFetcher creates a fetcher with a predefined result
func NewMockFetcher(point fetcher.PricePoint, err error) *MockFetcher {
	return &MockFetcher{
		FetchFunc: func(ctx context.Context, symbol string) (fetcher.PricePoint, error) {
			return point, err
		},
	}
}

// MockChannel is a platform.Channel recording every message sent to it.
type MockChannel struct {
	IDValue   string
	NameValue string
	SendErr   error

	mu   sync.Mutex
	Sent []string
}

// ID implements platform.Channel
func (c *MockChannel) ID() string { return c.IDValue }

// Name implements platform.Channel
func (c *MockChannel) Name() string { return c.NameValue }

// Send implements platform.Channel
func (c *MockChannel) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sent = append(c.Sent, text)
	return c.SendErr
}

// Messages returns a copy of the messages sent so far.
func (c *MockChannel) Messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Sent...)
}

// MockSession is a platform.Session backed by a fixed channel map.
// Unknown identifiers resolve to platform.ErrChannelNotFound.
type MockSession struct {
	Channels map[string]*MockChannel

	mu       sync.Mutex
	Resolved []string
}

// NewMockSession creates a session knowing the given channels
func NewMockSession(channels ...*MockChannel) *MockSession {
	s := &MockSession{Channels: make(map[string]*MockChannel)}
	for _, ch := range channels {
		s.Channels[ch.IDValue] = ch
	}
	return s
}

// Channel implements platform.Session
func (s *MockSession) Channel(ctx context.Context, id string) (platform.Channel, error) {
	s.mu.Lock()
	s.Resolved = append(s.Resolved, id)
	s.mu.Unlock()

	ch, ok := s.Channels[id]
	if !ok {
		return nil, platform.ErrChannelNotFound
	}
	return ch, nil
}

// Lookups returns the identifiers resolved so far, in order.
func (s *MockSession) Lookups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Resolved...)
}
