// Package editor lets chat switch the streamer's editor colorscheme. Editor
// plugins connect over TCP and receive "set_theme <name>" frames.
package editor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/chatradio/radiobot/internal/command"
	"github.com/chatradio/radiobot/internal/fanout"
	"github.com/chatradio/radiobot/internal/log"
	"github.com/chatradio/radiobot/internal/metrics"
)

// DefaultAddr is where the editor plugin expects the bot.
const DefaultAddr = "127.0.0.1:24694"

const (
	usage         = "Usage: !theme [theme]"
	pendingBuffer = 16
)

var commandNames = []string{"!theme", "!settheme", "!colorscheme"}

type themeArgs struct {
	theme string
}

// ThemeServer is a command handler that forwards theme changes to every
// connected editor. Connections are accepted by Serve and picked up on the
// next Update tick.
type ThemeServer struct {
	listener net.Listener
	clients  *fanout.Group
	pending  chan net.Conn
	logger   zerolog.Logger

	closeOnce sync.Once
}

// Listen binds addr. Use "127.0.0.1:0" for an ephemeral port.
func Listen(addr string) (*ThemeServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for editors: %w", err)
	}
	return &ThemeServer{
		listener: ln,
		clients:  fanout.NewGroup(fanout.DefaultWriteTimeout),
		pending:  make(chan net.Conn, pendingBuffer),
		logger:   log.WithComponent("editor"),
	}, nil
}

// Addr returns the bound address.
func (s *ThemeServer) Addr() string {
	return s.listener.Addr().String()
}

// Clients returns the number of adopted editor connections.
func (s *ThemeServer) Clients() int {
	return s.clients.Len()
}

// Serve accepts editor connections until ctx is done.
func (s *ThemeServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.listener.Close() })
	defer stop()

	s.logger.Info().Str("addr", s.Addr()).Msg("theme server listening")
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			s.logger.Warn().Err(err).Msg("accept error")
			continue
		}

		select {
		case s.pending <- conn:
		default:
			s.logger.Warn().Str("remote", conn.RemoteAddr().String()).Msg("too many pending editors, rejecting")
			conn.Close()
		}
	}
}

// Close stops accepting and disconnects every editor.
func (s *ThemeServer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.listener.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	drain:
		for {
			select {
			case conn := <-s.pending:
				conn.Close()
			default:
				break drain
			}
		}
		s.clients.CloseAll()
		metrics.EditorClients.Set(0)
	})
	return err
}

func (s *ThemeServer) Name() string {
	return "theme"
}

func (s *ThemeServer) Parse(msg command.Message) command.Result {
	if !slices.Contains(commandNames, msg.Command()) {
		return command.WrongCommand()
	}

	args := msg.Args()
	if len(args) == 0 {
		return command.BadArguments(usage)
	}
	return command.Execute(themeArgs{theme: args[0]})
}

// Execute sends the theme to every editor. Editors that cannot take it are
// dropped; that is not a command failure.
func (s *ThemeServer) Execute(_ context.Context, args any, msg command.Message, _ command.Replier) error {
	a, ok := args.(themeArgs)
	if !ok {
		return fmt.Errorf("unexpected args %T", args)
	}

	if err := s.clients.Broadcast([]byte("set_theme " + a.theme)); err != nil {
		s.logger.Debug().Err(err).Msg("dropped editor")
	}
	metrics.EditorClients.Set(float64(s.clients.Len()))
	s.logger.Info().
		Str("theme", a.theme).
		Str("chatter", msg.Chatter.Name).
		Int("editors", s.clients.Len()).
		Msg("theme requested")
	return nil
}

// Update adopts connections accepted since the last tick.
func (s *ThemeServer) Update(context.Context, command.Replier) error {
	for {
		select {
		case conn := <-s.pending:
			s.clients.Add(conn)
			metrics.EditorClients.Set(float64(s.clients.Len()))
			s.logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("editor connected")
		default:
			return nil
		}
	}
}

var (
	_ command.Handler = (*ThemeServer)(nil)
	_ command.Updater = (*ThemeServer)(nil)
)
