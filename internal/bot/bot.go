// Package bot owns the main loop: it drains chat, dispatches commands and
// ticks the handlers, while the chat transport and background services run
// alongside it.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/chatradio/radiobot/internal/chat"
	"github.com/chatradio/radiobot/internal/command"
	"github.com/chatradio/radiobot/internal/log"
)

// Service is a background task that runs until ctx is done. Service
// failures are logged and do not stop the bot.
type Service struct {
	Name string
	Run  func(ctx context.Context) error
}

// Bot ties a chat transport to a command registry.
type Bot struct {
	transport chat.Transport
	registry  *command.Registry
	tick      time.Duration
	services  []Service
	logger    zerolog.Logger
}

// New creates a bot. tick is the pause between loop iterations.
func New(transport chat.Transport, registry *command.Registry, tick time.Duration, services ...Service) *Bot {
	return &Bot{
		transport: transport,
		registry:  registry,
		tick:      tick,
		services:  services,
		logger:    log.WithComponent("bot"),
	}
}

// Run blocks until ctx is cancelled or the transport fails.
func (b *Bot) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, s := range b.services {
		g.Go(func() error {
			if err := s.Run(ctx); err != nil {
				b.logger.Error().Err(err).Str("service", s.Name).Msg("service stopped")
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := b.transport.Run(ctx); err != nil {
			return fmt.Errorf("%s transport: %w", b.transport.Name(), err)
		}
		return nil
	})

	g.Go(func() error {
		b.loop(ctx)
		return nil
	})

	b.logger.Info().
		Str("transport", b.transport.Name()).
		Int("handlers", len(b.registry.Handlers())).
		Msg("bot running")

	return g.Wait()
}

func (b *Bot) loop(ctx context.Context) {
	timer := time.NewTimer(b.tick)
	defer timer.Stop()

	for {
		b.drain(ctx)
		b.registry.Update(ctx, b.transport)

		timer.Reset(b.tick)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// drain dispatches every message already buffered without waiting for more.
func (b *Bot) drain(ctx context.Context) {
	for {
		select {
		case msg := <-b.transport.Messages():
			b.logger.Debug().
				Str("message_id", msg.ID).
				Str("chatter", msg.Chatter.Name).
				Str("text", msg.Text).
				Msg("chat message")
			b.registry.Dispatch(ctx, msg, b.transport)
		default:
			return
		}
	}
}
