// Package discord implements the platform boundary on top of a discordgo
// gateway session.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"indexcast/internal/platform"
)

const intents = discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent

// Session is a Discord bot connection.
type Session struct {
	dg           *discordgo.Session
	prefix       string
	readyTimeout time.Duration
	log          zerolog.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a Session for the bot token. prefix is prepended to command
// names registered with HandleCommand.
func New(token, prefix string, readyTimeout time.Duration, log zerolog.Logger) (*Session, error) {
	dg, err := discordgo.New("Bot " + strings.TrimPrefix(token, "Bot "))
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	dg.Identify.Intents = intents

	s := &Session{
		dg:           dg,
		prefix:       prefix,
		readyTimeout: readyTimeout,
		log:          log.With().Str("comp", "discord").Logger(),
		ready:        make(chan struct{}),
	}
	dg.AddHandler(s.onReady)
	return s, nil
}

func (s *Session) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	s.readyOnce.Do(func() {
		if r != nil && r.User != nil {
			s.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("logged in")
		}
		close(s.ready)
	})
}

// Open connects to the gateway and waits for the Ready event.
func (s *Session) Open(ctx context.Context) error {
	if err := s.dg.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}

	timer := time.NewTimer(s.readyTimeout)
	defer timer.Stop()

	select {
	case <-s.ready:
		return nil
	case <-timer.C:
		return fmt.Errorf("discord session not ready after %s", s.readyTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the gateway.
func (s *Session) Close() error {
	return s.dg.Close()
}

// Channel resolves a channel snowflake, using the gateway cache first.
func (s *Session) Channel(ctx context.Context, id string) (platform.Channel, error) {
	if c, err := s.dg.State.Channel(id); err == nil {
		return &channel{dg: s.dg, ch: c}, nil
	}

	c, err := s.dg.Channel(id, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", platform.ErrChannelNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch channel %s: %w", id, err)
	}
	if c == nil {
		return nil, nil
	}
	return &channel{dg: s.dg, ch: c}, nil
}

// HandleCommand answers "<prefix><name>" in the channel it was sent from.
func (s *Session) HandleCommand(name string, h platform.CommandHandler) {
	command := s.prefix + name
	s.dg.AddHandler(func(dg *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot || (dg.State.User != nil && m.Author.ID == dg.State.User.ID) {
			return
		}
		if !matchCommand(m.Content, command) {
			return
		}

		s.log.Info().Str("command", command).Str("channel", m.ChannelID).Str("author", m.Author.Username).Msg("command received")

		ctx, cancel := context.WithTimeout(context.Background(), s.readyTimeout)
		defer cancel()

		reply := h(ctx)
		if _, err := dg.ChannelMessageSend(m.ChannelID, reply, discordgo.WithContext(ctx)); err != nil {
			s.log.Error().Err(err).Str("channel", m.ChannelID).Msg("failed to reply")
		}
	})
}

// Listen blocks until ctx is done; discordgo dispatches events on its own
// goroutines.
func (s *Session) Listen(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// matchCommand reports whether content invokes command. Trailing arguments
// are allowed.
func matchCommand(content, command string) bool {
	fields := strings.Fields(content)
	return len(fields) > 0 && fields[0] == command
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return false
	}
	switch restErr.Response.StatusCode {
	case http.StatusNotFound, http.StatusBadRequest:
		return true
	}
	return false
}

type channel struct {
	dg *discordgo.Session
	ch *discordgo.Channel
}

func (c *channel) ID() string { return c.ch.ID }

func (c *channel) Name() string {
	if c.ch.Name != "" {
		return c.ch.Name
	}
	return c.ch.ID
}

func (c *channel) Send(ctx context.Context, text string) error {
	if _, err := c.dg.ChannelMessageSend(c.ch.ID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send to channel %s: %w", c.ch.ID, err)
	}
	return nil
}
