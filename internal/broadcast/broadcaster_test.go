package broadcast_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indexcast/internal/broadcast"
	"indexcast/internal/fetcher"
	"indexcast/internal/platform"
	"indexcast/internal/testutil"
)

var (
	nikkei = broadcast.Format{IndexName: "Nikkei 225", CurrencyUnit: "yen"}
	point  = fetcher.PricePoint{
		Symbol:    "^N225",
		TradeDate: time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC),
		Close:     38500.25,
	}
)

const wantMessage = "Nikkei 225 latest close: 38500.25 yen. (2024/05/02)"

func TestFormat_Message(t *testing.T) {
	tests := []struct {
		close float64
		want  string
	}{
		{38500.25, "Nikkei 225 latest close: 38500.25 yen. (2024/05/02)"},
		{38000, "Nikkei 225 latest close: 38000.0 yen. (2024/05/02)"},
		{0, "Nikkei 225 latest close: 0.0 yen. (2024/05/02)"},
	}

	for _, tt := range tests {
		p := point
		p.Close = tt.close
		assert.Equal(t, tt.want, nikkei.Message(p))
	}
}

func TestSendToAll_SendFailureDoesNotStopBatch(t *testing.T) {
	failing := &testutil.MockChannel{IDValue: "111", NameValue: "channel-111-name", SendErr: errors.New("missing permissions")}
	working := &testutil.MockChannel{IDValue: "222", NameValue: "channel-222-name"}
	session := testutil.NewMockSession(failing, working)

	b := broadcast.New(session, nikkei, zerolog.Nop())
	report := b.SendToAll(context.Background(), point, []string{"111", "222"})

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, broadcast.StatusSendFailed, report.Outcomes[0].Status)
	assert.Equal(t, "111", report.Outcomes[0].Destination)
	assert.EqualError(t, report.Outcomes[0].Err, "missing permissions")

	assert.Equal(t, broadcast.Delivered("222", "channel-222-name"), report.Outcomes[1])

	assert.False(t, report.AllFailed())
	assert.False(t, report.NotConfigured())
	assert.Equal(t, 1, report.Delivered())
	assert.Equal(t, 1, report.Failed())

	assert.Equal(t, []string{wantMessage}, failing.Messages())
	assert.Equal(t, []string{wantMessage}, working.Messages())
}

func TestSendToAll_UnresolvableDestination(t *testing.T) {
	session := testutil.NewMockSession()

	b := broadcast.New(session, nikkei, zerolog.Nop())
	report := b.SendToAll(context.Background(), point, []string{"999"})

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, broadcast.StatusNotFound, report.Outcomes[0].Status)
	assert.Equal(t, "999", report.Outcomes[0].Destination)
	assert.ErrorIs(t, report.Outcomes[0].Err, platform.ErrChannelNotFound)
	assert.True(t, report.AllFailed())
}

func TestSendToAll_EmptyDestinations(t *testing.T) {
	session := testutil.NewMockSession()

	b := broadcast.New(session, nikkei, zerolog.Nop())
	for _, dests := range [][]string{nil, {}} {
		report := b.SendToAll(context.Background(), point, dests)

		assert.Empty(t, report.Outcomes)
		assert.True(t, report.NotConfigured())
		assert.False(t, report.AllFailed())
	}
	assert.Empty(t, session.Lookups())
}

func TestSendToAll_OneOutcomePerDestinationInOrder(t *testing.T) {
	a := &testutil.MockChannel{IDValue: "a", NameValue: "alpha"}
	c := &testutil.MockChannel{IDValue: "c", NameValue: "", SendErr: errors.New("rate limited")}
	session := testutil.NewMockSession(a, c)

	dests := []string{"a", "missing", "c", "a", "missing", "a"}

	b := broadcast.New(session, nikkei, zerolog.Nop())
	report := b.SendToAll(context.Background(), point, dests)

	require.Len(t, report.Outcomes, len(dests))
	for i, o := range report.Outcomes {
		assert.Equal(t, dests[i], o.Destination, "outcome %d", i)
	}

	wantStatus := []broadcast.Status{
		broadcast.StatusDelivered,
		broadcast.StatusNotFound,
		broadcast.StatusSendFailed,
		broadcast.StatusDelivered,
		broadcast.StatusNotFound,
		broadcast.StatusDelivered,
	}
	for i, o := range report.Outcomes {
		assert.Equal(t, wantStatus[i], o.Status, "outcome %d", i)
	}

	// Duplicates are attempted independently.
	assert.Len(t, a.Messages(), 3)
	assert.Equal(t, dests, session.Lookups())

	// Unnamed channels fall back to their ID.
	assert.Equal(t, "c", report.Outcomes[2].ChannelName)
}

type nilSession struct{}

func (nilSession) Channel(ctx context.Context, id string) (platform.Channel, error) {
	return nil, nil
}

func TestSendToAll_NilChannelIsNotFound(t *testing.T) {
	b := broadcast.New(nilSession{}, nikkei, zerolog.Nop())
	report := b.SendToAll(context.Background(), point, []string{"x"})

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, broadcast.NotFound("x", nil), report.Outcomes[0])
}

type canceledSession struct{}

func (canceledSession) Channel(ctx context.Context, id string) (platform.Channel, error) {
	return nil, fmt.Errorf("failed to fetch channel %s: %w", id, context.Canceled)
}

func TestSendToAll_InterruptedLookupIsSendFailure(t *testing.T) {
	b := broadcast.New(canceledSession{}, nikkei, zerolog.Nop())
	report := b.SendToAll(context.Background(), point, []string{"111", "222"})

	require.Len(t, report.Outcomes, 2)
	for _, o := range report.Outcomes {
		assert.Equal(t, broadcast.StatusSendFailed, o.Status, o.Destination)
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
}

func TestFormatClose(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{38500.25, "38500.25"},
		{38000, "38000.0"},
		{0, "0.0"},
		{39098.68, "39098.68"},
		{0.1, "0.1"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, broadcast.FormatClose(tt.in), "%v", tt.in)
	}
}

func TestSendToAll_LogsFollowDestinationOrder(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	ok := &testutil.MockChannel{IDValue: "1", NameValue: "one"}
	session := testutil.NewMockSession(ok)

	b := broadcast.New(session, nikkei, log)
	b.SendToAll(context.Background(), point, []string{"404", "1"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"destination":"404"`)
	assert.Contains(t, lines[0], "channel not found")
	assert.Contains(t, lines[1], `"destination":"1"`)
	assert.Contains(t, lines[2], "broadcast finished")
}

func TestSendToAll_AllFailedSummary(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	b := broadcast.New(testutil.NewMockSession(), nikkei, log)
	report := b.SendToAll(context.Background(), point, []string{"999"})

	assert.True(t, report.AllFailed())
	assert.Contains(t, buf.String(), "broadcast failed for every destination")
	assert.Contains(t, buf.String(), `"level":"error"`)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "Delivered(general)", broadcast.Delivered("1", "general").String())
	assert.Equal(t, "NotFound(999)", broadcast.NotFound("999", nil).String())
	assert.Equal(t, "SendFailed(111, boom)", broadcast.SendFailed("111", "x", errors.New("boom")).String())
}
