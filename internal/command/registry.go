package command

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/chatradio/radiobot/internal/log"
	"github.com/chatradio/radiobot/internal/metrics"
)

// Registry offers every message to every handler, in registration order.
// Handler errors are logged, never returned.
type Registry struct {
	handlers []Handler
	logger   zerolog.Logger
}

// NewRegistry creates a registry with handlers.
func NewRegistry(handlers ...Handler) *Registry {
	return &Registry{
		handlers: handlers,
		logger:   log.WithComponent("command"),
	}
}

// Add appends a handler.
func (r *Registry) Add(h Handler) {
	r.handlers = append(r.handlers, h)
}

// Handlers returns the registered handlers.
func (r *Registry) Handlers() []Handler {
	return r.handlers
}

// Dispatch runs msg through every handler.
func (r *Registry) Dispatch(ctx context.Context, msg Message, rep Replier) {
	for _, h := range r.handlers {
		res := h.Parse(msg)
		switch res.Kind {
		case KindWrongCommand:
			continue
		case KindInsufficientPermissions:
			r.logger.Debug().
				Str("handler", h.Name()).
				Str("chatter", msg.Chatter.Name).
				Msg("insufficient permissions")
		case KindBadArguments:
			r.logger.Debug().
				Str("handler", h.Name()).
				Str("reason", res.Message).
				Msg("bad arguments")
			if err := rep.Reply(ctx, res.Message, msg.ID); err != nil {
				r.logger.Debug().Err(err).Msg("reply failed")
			}
		case KindExecute:
			if err := h.Execute(ctx, res.Args, msg, rep); err != nil {
				metrics.IncCommandError(h.Name(), "execute")
				r.logger.Error().Err(err).
					Str("handler", h.Name()).
					Str("message_id", msg.ID).
					Msg("command failed")
			}
		}
	}
}

// Update ticks every handler implementing Updater.
func (r *Registry) Update(ctx context.Context, rep Replier) {
	for _, h := range r.handlers {
		u, ok := h.(Updater)
		if !ok {
			continue
		}
		if err := u.Update(ctx, rep); err != nil {
			metrics.IncCommandError(h.Name(), "update")
			r.logger.Error().Err(err).Str("handler", h.Name()).Msg("update failed")
		}
	}
}
