package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	"indexcast/internal/broadcast"
	"indexcast/internal/config"
	"indexcast/internal/coordinator"
	"indexcast/internal/fetcher"
	"indexcast/internal/logging"
	"indexcast/internal/metrics"
	"indexcast/internal/platform"
	"indexcast/internal/platform/discord"
	"indexcast/internal/platform/telegram"
	"indexcast/internal/responder"
	"indexcast/internal/yahoo"
)

const pushTimeout = 10 * time.Second

// app holds the dependencies shared by every command.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	metrics *metrics.Recorder
	fetcher fetcher.Fetcher
	format  broadcast.Format
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}

	chart := yahoo.NewChartClient(cfg.YahooBaseURL, log)
	return &app{
		cfg:     cfg,
		log:     log,
		metrics: metrics.NewRecorder(),
		fetcher: fetcher.NewLatestCloseFetcher(chart, cfg.LookbackDays),
		format:  broadcast.Format{IndexName: cfg.IndexName, CurrencyUnit: cfg.CurrencyUnit},
	}, nil
}

// client builds the session for the configured platform.
func (a *app) client() (platform.Client, error) {
	switch a.cfg.Platform {
	case config.PlatformTelegram:
		return telegram.New(telegram.Config{
			Token:        a.cfg.Token(),
			URL:          a.cfg.TelegramBaseURL,
			ReadyTimeout: a.cfg.ReadyTimeout,
		}, a.log)
	default:
		return discord.New(a.cfg.Token(), a.cfg.CommandPrefix, a.cfg.ReadyTimeout, a.log)
	}
}

// open connects the platform client and waits for readiness.
func (a *app) open(ctx context.Context) (platform.Client, error) {
	c, err := a.client()
	if err != nil {
		return nil, err
	}
	a.log.Info().Str("platform", a.cfg.Platform).Msg("connecting")
	if err := c.Open(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

type broadcastCmd struct {
	strict bool
}

func (*broadcastCmd) Name() string { return "broadcast" }
func (*broadcastCmd) Synopsis() string {
	return "fetch the latest close and send it to every destination"
}
func (*broadcastCmd) Usage() string {
	return `indexcast broadcast [-strict]

  Fetches the latest daily close and posts it to each configured destination
  once, then exits. Failing destinations do not stop the others.
`
}

func (c *broadcastCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.strict, "strict", false, "exit 1 when the fetch fails or no destination receives the message")
}

func (c *broadcastCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	client, err := a.open(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to connect to platform")
		return subcommands.ExitFailure
	}
	defer client.Close()

	b := broadcast.New(client, a.format, a.log)
	coord := coordinator.New(a.fetcher, b, a.cfg.Symbol, a.cfg.Destinations, a.metrics, a.log)
	// The signal context only bounds connecting; the run itself completes.
	sum := coord.Run(ctx)

	pushCtx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := a.metrics.Push(pushCtx, a.cfg.PushgatewayURL, a.cfg.PushJob); err != nil {
		a.log.Warn().Err(err).Str("url", a.cfg.PushgatewayURL).Msg("failed to push metrics")
	}

	return exitStatus(sum, c.strict)
}

// exitStatus maps a finished run to the process exit code. Runs exit 0
// whatever their outcome unless strict is set, in which case a failed fetch
// or a batch with no delivery exits 1.
func exitStatus(sum coordinator.Summary, strict bool) subcommands.ExitStatus {
	if strict && sum.Failed() {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type serveCmd struct{}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "answer the price command until interrupted" }
func (*serveCmd) Usage() string {
	return `indexcast serve

  Stays connected and replies to the configured command (for example
  "!latest_nikkei225" on Discord or "/latest_nikkei225" on Telegram) in the
  channel it was issued from.
`
}

func (*serveCmd) SetFlags(f *flag.FlagSet) {}

func (*serveCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	client, err := a.open(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to connect to platform")
		return subcommands.ExitFailure
	}
	defer client.Close()

	r := responder.New(a.fetcher, a.format, a.cfg.Symbol, a.metrics, a.log)
	if err := r.Serve(ctx, client, a.cfg.CommandName); err != nil {
		a.log.Error().Err(err).Msg("command listener stopped")
		return subcommands.ExitFailure
	}
	a.log.Info().Msg("shutting down")
	return subcommands.ExitSuccess
}
