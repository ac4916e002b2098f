// Package telegram implements the platform boundary with telebot.
//
// Destinations are numeric chat ids ("-1001234567890") or public usernames
// ("@markets"). Commands are registered as "/<name>".
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"

	"indexcast/internal/platform"
)

const defaultPollTimeout = 10 * time.Second

// Config configures a Telegram session.
type Config struct {
	Token string
	// URL overrides the Bot API endpoint; empty means api.telegram.org.
	URL          string
	PollTimeout  time.Duration
	ReadyTimeout time.Duration
}

// Session is a Telegram bot connection. The bot is created by Open, which
// performs getMe and therefore doubles as the readiness check.
type Session struct {
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex
	bot      *tele.Bot
	commands map[string]platform.CommandHandler
}

// New validates cfg and returns an unopened Session.
func New(cfg Config, log zerolog.Logger) (*Session, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 30 * time.Second
	}
	return &Session{
		cfg:      cfg,
		log:      log.With().Str("comp", "telegram").Logger(),
		commands: make(map[string]platform.CommandHandler),
	}, nil
}

// Open authenticates the bot. It returns once getMe succeeds, the ready
// timeout passes, or ctx is done.
func (s *Session) Open(ctx context.Context) error {
	type result struct {
		bot *tele.Bot
		err error
	}
	done := make(chan result, 1)
	go func() {
		b, err := tele.NewBot(tele.Settings{
			Token:  s.cfg.Token,
			URL:    s.cfg.URL,
			Poller: &tele.LongPoller{Timeout: s.cfg.PollTimeout},
		})
		done <- result{bot: b, err: err}
	}()

	timer := time.NewTimer(s.cfg.ReadyTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("failed to authenticate telegram bot: %w", r.err)
		}
		s.mu.Lock()
		s.bot = r.bot
		s.mu.Unlock()
		if r.bot.Me != nil {
			s.log.Info().Str("user", r.bot.Me.Username).Msg("logged in")
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("telegram bot not ready after %s", s.cfg.ReadyTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the session. Polling is stopped by Listen.
func (s *Session) Close() error {
	s.mu.Lock()
	s.bot = nil
	s.mu.Unlock()
	return nil
}

func (s *Session) current() (*tele.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bot == nil {
		return nil, errors.New("telegram session is not open")
	}
	return s.bot, nil
}

// Channel resolves a chat id or @username with getChat.
func (s *Session) Channel(ctx context.Context, id string) (platform.Channel, error) {
	bot, err := s.current()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var chat *tele.Chat
	if strings.HasPrefix(id, "@") {
		chat, err = bot.ChatByUsername(id)
	} else {
		chatID, perr := strconv.ParseInt(id, 10, 64)
		if perr != nil {
			return nil, fmt.Errorf("%w: %q is neither a chat id nor an @username", platform.ErrChannelNotFound, id)
		}
		chat, err = bot.ChatByID(chatID)
	}
	if err != nil {
		if errors.Is(err, tele.ErrChatNotFound) {
			return nil, fmt.Errorf("%w: %s", platform.ErrChannelNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch chat %s: %w", id, err)
	}
	if chat == nil {
		return nil, nil
	}
	return &channel{bot: bot, id: id, chat: chat}, nil
}

// HandleCommand registers h for "/<name>". Handlers are attached by Listen.
func (s *Session) HandleCommand(name string, h platform.CommandHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands["/"+strings.TrimPrefix(name, "/")] = h
}

// Listen polls for updates until ctx is done.
func (s *Session) Listen(ctx context.Context) error {
	bot, err := s.current()
	if err != nil {
		return err
	}

	s.mu.Lock()
	for command, h := range s.commands {
		bot.Handle(command, s.reply(command, h))
	}
	s.mu.Unlock()

	s.log.Info().Msg("polling started")
	go bot.Start()

	<-ctx.Done()
	bot.Stop()
	s.log.Info().Msg("polling stopped")
	return nil
}

func (s *Session) reply(command string, h platform.CommandHandler) tele.HandlerFunc {
	return func(c tele.Context) error {
		chat := c.Chat()
		if sender := c.Sender(); sender != nil && sender.IsBot {
			return nil
		}

		ev := s.log.Info().Str("command", command)
		if chat != nil {
			ev = ev.Int64("chat", chat.ID)
		}
		ev.Msg("command received")

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ReadyTimeout)
		defer cancel()

		if err := c.Send(h(ctx)); err != nil {
			s.log.Error().Err(err).Str("command", command).Msg("failed to reply")
		}
		return nil
	}
}

type channel struct {
	bot  *tele.Bot
	id   string
	chat *tele.Chat
}

func (c *channel) ID() string { return c.id }

func (c *channel) Name() string {
	return chatName(c.chat, c.id)
}

func (c *channel) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.bot.Send(c.chat, text); err != nil {
		return fmt.Errorf("failed to send to chat %s: %w", c.id, err)
	}
	return nil
}

// chatName picks the display name for reports: group title, then
// @username, then first name, then the configured identifier.
func chatName(chat *tele.Chat, fallback string) string {
	switch {
	case chat == nil:
		return fallback
	case chat.Title != "":
		return chat.Title
	case chat.Username != "":
		return "@" + chat.Username
	case chat.FirstName != "":
		return chat.FirstName
	}
	return fallback
}
