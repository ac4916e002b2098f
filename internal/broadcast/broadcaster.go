package broadcast

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"indexcast/internal/fetcher"
	"indexcast/internal/platform"
)

// Broadcaster delivers a price message to a list of destinations.
type Broadcaster struct {
	session platform.Session
	format  Format
	log     zerolog.Logger
}

// New creates a Broadcaster sending through session.
func New(session platform.Session, format Format, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		session: session,
		format:  format,
		log:     log.With().Str("comp", "broadcast").Logger(),
	}
}

// SendToAll delivers point to every destination in order and returns one
// Outcome per destination. Failures are recorded, never returned: a failing
// destination does not stop the ones after it. Sends are sequential because
// they share one platform connection and log order must follow input order.
func (b *Broadcaster) SendToAll(ctx context.Context, point fetcher.PricePoint, destinations []string) Report {
	report := Report{Outcomes: make([]Outcome, 0, len(destinations))}
	if len(destinations) == 0 {
		b.log.Warn().Msg("no destinations configured, nothing to send")
		return report
	}

	text := b.format.Message(point)
	for _, id := range destinations {
		o := b.sendOne(ctx, id, text)
		b.logOutcome(o)
		report.Outcomes = append(report.Outcomes, o)
	}

	ev := b.log.Info()
	if report.AllFailed() {
		ev = b.log.Error()
	} else if report.Failed() > 0 {
		ev = b.log.Warn()
	}
	msg := "broadcast finished"
	if report.AllFailed() {
		msg = "broadcast failed for every destination"
	}
	ev.Int("total", len(report.Outcomes)).
		Int("delivered", report.Delivered()).
		Int("failed", report.Failed()).
		Msg(msg)

	return report
}

func (b *Broadcaster) sendOne(ctx context.Context, id, text string) Outcome {
	ch, err := b.session.Channel(ctx, id)
	if err != nil && isContextError(err) {
		// The lookup never completed, so the channel may well exist.
		return SendFailed(id, "", err)
	}
	if err != nil || ch == nil {
		return NotFound(id, err)
	}

	if err := ch.Send(ctx, text); err != nil {
		return SendFailed(id, channelName(ch), err)
	}
	return Delivered(id, channelName(ch))
}

func (b *Broadcaster) logOutcome(o Outcome) {
	switch o.Status {
	case StatusDelivered:
		b.log.Info().Str("destination", o.Destination).Str("channel", o.ChannelName).Msg("message delivered")
	case StatusNotFound:
		b.log.Warn().Str("destination", o.Destination).Err(o.Err).Msg("channel not found")
	case StatusSendFailed:
		b.log.Warn().Str("destination", o.Destination).Str("channel", o.ChannelName).Err(o.Err).Msg("send failed")
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func channelName(ch platform.Channel) string {
	if name := ch.Name(); name != "" {
		return name
	}
	return ch.ID()
}
