// Package responder answers the on-demand price command in the channel it
// was issued from.
package responder

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"

	"indexcast/internal/broadcast"
	"indexcast/internal/fetcher"
	"indexcast/internal/metrics"
	"indexcast/internal/platform"
)

// Responder builds command replies from a fresh fetch.
type Responder struct {
	fetcher fetcher.Fetcher
	format  broadcast.Format
	symbol  string
	metrics *metrics.Recorder
	log     zerolog.Logger

	// notify reports readiness to the service manager; swapped in tests.
	notify func(state string) (bool, error)
}

// New creates a Responder. rec may be nil.
func New(f fetcher.Fetcher, format broadcast.Format, symbol string, rec *metrics.Recorder, log zerolog.Logger) *Responder {
	return &Responder{
		fetcher: f,
		format:  format,
		symbol:  symbol,
		metrics: rec,
		log:     log.With().Str("comp", "responder").Logger(),
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
	}
}

// Reply returns the broadcast text for the latest close, or an error
// message suitable for posting back to the user.
func (r *Responder) Reply(ctx context.Context) string {
	point, err := r.fetcher.FetchLatestClose(ctx, r.symbol)
	if err != nil {
		if fe := fetcher.AsFetchError(err); fe != nil {
			r.metrics.ObserveFetchFailure(string(fe.Type))
		}
		r.log.Error().Err(err).Str("symbol", r.symbol).Msg("failed to fetch latest close for command")
		return fmt.Sprintf("An error occurred: %v", err)
	}

	r.metrics.ObserveClose(point.Symbol, point.Close)
	return r.format.Message(point)
}

// Serve registers the command on src and dispatches until ctx is done.
func (r *Responder) Serve(ctx context.Context, src platform.CommandSource, command string) error {
	src.HandleCommand(command, r.Reply)

	if sent, err := r.notify(daemon.SdNotifyReady); err != nil {
		r.log.Warn().Err(err).Msg("failed to notify systemd")
	} else if sent {
		r.log.Debug().Msg("notified systemd")
	}

	r.log.Info().Str("command", command).Msg("listening for commands")
	err := src.Listen(ctx)

	if _, nerr := r.notify(daemon.SdNotifyStopping); nerr != nil {
		r.log.Debug().Err(nerr).Msg("failed to notify systemd of shutdown")
	}
	return err
}
