// Package chat connects the bot to a chat: it delivers incoming messages
// and posts replies.
package chat

import (
	"context"

	"github.com/chatradio/radiobot/internal/command"
)

// messageBuffer is the capacity of a transport's message channel.
const messageBuffer = 64

// Transport is a chat connection. Run owns the network I/O and feeds
// Messages until ctx is done.
type Transport interface {
	command.Replier
	Name() string
	Messages() <-chan command.Message
	Run(ctx context.Context) error
}
