// Package platform defines the chat-platform boundary: resolving configured
// destination identifiers to channels and sending text to them.
package platform

import (
	"context"
	"errors"
)

// ErrChannelNotFound is returned when an identifier does not resolve to a channel.
var ErrChannelNotFound = errors.New("channel not found")

// Channel is a resolved, live destination.
type Channel interface {
	ID() string
	// Name is the display name used in reports. Falls back to the ID.
	Name() string
	Send(ctx context.Context, text string) error
}

// Session resolves destination identifiers. A nil Channel with a nil error
// is treated the same as ErrChannelNotFound by callers.
type Session interface {
	Channel(ctx context.Context, id string) (Channel, error)
}

// CommandHandler produces the reply text for a chat command.
type CommandHandler func(ctx context.Context) string

// Opener manages the connection lifetime.
type Opener interface {
	// Open connects and returns once the platform reports readiness.
	Open(ctx context.Context) error
	Close() error
}

// CommandSource dispatches chat commands to handlers.
type CommandSource interface {
	// HandleCommand registers h for the bare command name; the platform adds
	// its own prefix. Must be called before Listen.
	HandleCommand(name string, h CommandHandler)

	// Listen dispatches incoming commands until ctx is done.
	Listen(ctx context.Context) error
}

// Client is a full platform connection.
type Client interface {
	Session
	Opener
	CommandSource
}
